package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"arcdiff/internal/api"
	"arcdiff/internal/domain"
)

var taskColumns = []string{"id", "status", "local", "primary", "secondary", "matches", "missing", "different", "batch", "updated"}

func newTasksCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Manage diff tasks",
	}
	cmd.AddCommand(newTasksListCmd(opts))
	cmd.AddCommand(newTasksGetCmd(opts))
	cmd.AddCommand(newTasksCountCmd(opts))
	cmd.AddCommand(newTasksDevicesCmd(opts))
	cmd.AddCommand(newTasksSubmitCmd(opts))
	cmd.AddCommand(newTasksSnapshotsCmd(opts))
	cmd.AddCommand(newTasksAddSnapshotCmd(opts))
	cmd.AddCommand(newTasksResultCmd(opts))
	cmd.AddCommand(newTasksResetCmd(opts))
	cmd.AddCommand(newTasksRescheduleCmd(opts))
	cmd.AddCommand(newTasksDeleteCmd(opts))
	cmd.AddCommand(newTasksClaimCmd(opts))
	cmd.AddCommand(newTasksCompleteCmd(opts))
	cmd.AddCommand(newTasksFailCmd(opts))
	return cmd
}

func newTasksListCmd(opts *rootOptions) *cobra.Command {
	var (
		filter api.FilterParams
		page   pageFlags
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List diff tasks matching a filter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			qf, tf, err := filter.Build()
			if err != nil {
				return err
			}
			rt, err := opts.open()
			if err != nil {
				return err
			}
			defer rt.Close() //nolint:errcheck

			var tasks []*domain.DiffTask
			for task, err := range rt.app.Services.Diff.ListTasks(cmd.Context(), qf, tf, page.offset, page.limit, page.orderBy) {
				if err != nil {
					return err
				}
				tasks = append(tasks, task)
			}

			if getOutputFormat(cmd) == "json" {
				views := make([]api.DiffTask, 0, len(tasks))
				for _, t := range tasks {
					views = append(views, api.DiffTaskToAPI(t))
				}
				return printJSON(os.Stdout, views)
			}
			rows := make([][]string, 0, len(tasks))
			for _, t := range tasks {
				rows = append(rows, taskRow(t))
			}
			printTable(os.Stdout, taskColumns, rows)
			return nil
		},
	}
	addFilterFlags(cmd.Flags(), &filter)
	addPageFlags(cmd.Flags(), &page)
	return cmd
}

func newTasksGetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <task-id>",
		Short: "Show one diff task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := domain.ParseTaskID(args[0])
			if err != nil {
				return err
			}
			rt, err := opts.open()
			if err != nil {
				return err
			}
			defer rt.Close() //nolint:errcheck

			task, err := rt.app.Services.Diff.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(os.Stdout, api.DiffTaskToAPI(task))
			}
			printDetail(os.Stdout, taskDetail(task))
			return nil
		},
	}
}

func newTasksCountCmd(opts *rootOptions) *cobra.Command {
	var filter api.FilterParams
	cmd := &cobra.Command{
		Use:   "count",
		Short: "Count diff tasks matching a filter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			qf, tf, err := filter.Build()
			if err != nil {
				return err
			}
			rt, err := opts.open()
			if err != nil {
				return err
			}
			defer rt.Close() //nolint:errcheck

			n, err := rt.app.Services.Diff.CountTasks(cmd.Context(), qf, tf)
			if err != nil {
				return err
			}
			return printCount(cmd, "count", n)
		},
	}
	addFilterFlags(cmd.Flags(), &filter)
	return cmd
}

func newTasksDevicesCmd(opts *rootOptions) *cobra.Command {
	var filter api.FilterParams
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List devices owning diff tasks matching a filter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			qf, tf, err := filter.Build()
			if err != nil {
				return err
			}
			rt, err := opts.open()
			if err != nil {
				return err
			}
			defer rt.Close() //nolint:errcheck

			names, err := rt.app.Services.Diff.ListDeviceNames(cmd.Context(), qf, tf)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				if names == nil {
					names = []string{}
				}
				return printJSON(os.Stdout, names)
			}
			rows := make([][]string, 0, len(names))
			for _, n := range names {
				rows = append(rows, []string{n})
			}
			printTable(os.Stdout, []string{"device"}, rows)
			return nil
		},
	}
	addFilterFlags(cmd.Flags(), &filter)
	return cmd
}

func newTasksSubmitCmd(opts *rootOptions) *cobra.Command {
	var req domain.DiffRequest
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Schedule a new diff task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := opts.open()
			if err != nil {
				return err
			}
			defer rt.Close() //nolint:errcheck

			host, _ := os.Hostname()
			req.RequestInfo = &domain.RequestInfo{
				RequestURI: "diffd tasks submit",
				RemoteUser: os.Getenv("USER"),
				LocalHost:  host,
			}
			task, err := rt.app.Services.Diff.Submit(cmd.Context(), req)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(os.Stdout, api.DiffTaskToAPI(task))
			}
			_, _ = fmt.Fprintf(os.Stdout, "Scheduled diff task %d (message %s)\n", task.ID, deref(task.QueueMessageID))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.LocalAET, "local-aet", "", "Local AE title (required)")
	f.StringVar(&req.PrimaryAET, "primary-aet", "", "Primary AE title (required)")
	f.StringVar(&req.SecondaryAET, "secondary-aet", "", "Secondary AE title (required)")
	f.StringVar(&req.QueryString, "query", "", "Query string selecting the studies to compare")
	f.IntVar(&req.Priority, "priority", domain.DefaultPriority, "Queue priority (lower is claimed first)")
	f.StringVar(&req.BatchID, "batch", "", "Batch ID to group the task under")
	f.BoolVar(&req.CheckMissing, "check-missing", false, "Report studies missing on the secondary")
	f.BoolVar(&req.CheckDifferent, "check-different", true, "Report studies whose attributes differ")
	f.StringSliceVar(&req.CompareFields, "compare-fields", nil, "Attribute fields to compare (repeatable)")
	_ = cmd.MarkFlagRequired("local-aet")
	_ = cmd.MarkFlagRequired("primary-aet")
	_ = cmd.MarkFlagRequired("secondary-aet")
	return cmd
}

func newTasksSnapshotsCmd(opts *rootOptions) *cobra.Command {
	var (
		filter api.FilterParams
		page   pageFlags
	)
	cmd := &cobra.Command{
		Use:   "snapshots [task-id]",
		Short: "List attribute snapshots of one task, or of all tasks matching a filter",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			qf, tf, err := filter.Build()
			if err != nil {
				return err
			}
			var id int64
			if len(args) == 1 {
				if id, err = domain.ParseTaskID(args[0]); err != nil {
					return err
				}
			}
			rt, err := opts.open()
			if err != nil {
				return err
			}
			defer rt.Close() //nolint:errcheck

			var payloads [][]byte
			if len(args) == 1 {
				payloads, err = rt.app.Services.Diff.ListSnapshots(cmd.Context(), id, page.offset, page.limit)
			} else {
				payloads, err = rt.app.Services.Diff.ListSnapshotsByFilter(cmd.Context(), qf, tf, page.offset, page.limit)
			}
			if err != nil {
				return err
			}

			out := make([]string, 0, len(payloads))
			for _, p := range payloads {
				out = append(out, string(p))
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(os.Stdout, out)
			}
			for _, p := range out {
				_, _ = fmt.Fprintln(os.Stdout, p)
			}
			return nil
		},
	}
	addFilterFlags(cmd.Flags(), &filter)
	cmd.Flags().IntVar(&page.offset, "offset", 0, "Number of snapshots to skip")
	cmd.Flags().IntVar(&page.limit, "limit", domain.DefaultPageSize, "Maximum number of snapshots (0 = no limit)")
	return cmd
}

func newTasksAddSnapshotCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add-snapshot <task-id> <payload>",
		Short: "Append an attribute snapshot to a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := domain.ParseTaskID(args[0])
			if err != nil {
				return err
			}
			rt, err := opts.open()
			if err != nil {
				return err
			}
			defer rt.Close() //nolint:errcheck

			return rt.app.Services.Diff.AppendSnapshot(cmd.Context(), id, []byte(args[1]))
		},
	}
}

func newTasksResultCmd(opts *rootOptions) *cobra.Command {
	var matches, missing, different int64
	cmd := &cobra.Command{
		Use:   "result <task-id>",
		Short: "Record the comparison counters of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := domain.ParseTaskID(args[0])
			if err != nil {
				return err
			}
			rt, err := opts.open()
			if err != nil {
				return err
			}
			defer rt.Close() //nolint:errcheck

			return rt.app.Services.Diff.RecordResult(cmd.Context(), id, matches, missing, different)
		},
	}
	cmd.Flags().Int64Var(&matches, "matches", 0, "Number of matching studies")
	cmd.Flags().Int64Var(&missing, "missing", 0, "Number of studies missing on the secondary")
	cmd.Flags().Int64Var(&different, "different", 0, "Number of studies with differing attributes")
	return cmd
}

func newTasksResetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <task-id>",
		Short: "Zero the counters of a task and drop its snapshots",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := domain.ParseTaskID(args[0])
			if err != nil {
				return err
			}
			rt, err := opts.open()
			if err != nil {
				return err
			}
			defer rt.Close() //nolint:errcheck

			return rt.app.Services.Diff.Reset(cmd.Context(), id)
		},
	}
}

func newTasksRescheduleCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reschedule <task-id>",
		Short: "Re-submit the queue message of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := domain.ParseTaskID(args[0])
			if err != nil {
				return err
			}
			rt, err := opts.open()
			if err != nil {
				return err
			}
			defer rt.Close() //nolint:errcheck

			return rt.app.Services.Diff.Reschedule(cmd.Context(), id, rt.eventLogger())
		},
	}
}

func newTasksDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <task-id>",
		Short: "Delete a task together with its queue message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := domain.ParseTaskID(args[0])
			if err != nil {
				return err
			}
			rt, err := opts.open()
			if err != nil {
				return err
			}
			defer rt.Close() //nolint:errcheck

			ok, err := rt.app.Services.Diff.Delete(cmd.Context(), id, rt.eventLogger())
			if err != nil {
				return err
			}
			if !ok {
				return domain.ErrNotFound("diff task %d not found", id)
			}
			return nil
		},
	}
}

func newTasksClaimCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "claim",
		Short: "Move the next due diff message to IN_PROCESS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := opts.open()
			if err != nil {
				return err
			}
			defer rt.Close() //nolint:errcheck

			msg, err := rt.app.Services.Queue.Claim(cmd.Context(), rt.cfg.QueueName)
			if err != nil {
				return err
			}
			if msg == nil {
				return domain.ErrNotFound("no message due on queue %s", rt.cfg.QueueName)
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(os.Stdout, api.QueueMessageToAPI(msg))
			}
			printDetail(os.Stdout, messageDetail(msg))
			return nil
		},
	}
}

func newTasksCompleteCmd(opts *rootOptions) *cobra.Command {
	var (
		outcome string
		warning bool
	)
	cmd := &cobra.Command{
		Use:   "complete <message-id>",
		Short: "Finish an in-process message as COMPLETED or WARNING",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.open()
			if err != nil {
				return err
			}
			defer rt.Close() //nolint:errcheck

			return rt.app.Services.Queue.Complete(cmd.Context(), args[0], outcome, warning)
		},
	}
	cmd.Flags().StringVar(&outcome, "outcome", "", "Outcome message")
	cmd.Flags().BoolVar(&warning, "warning", false, "Finish with WARNING instead of COMPLETED")
	return cmd
}

func newTasksFailCmd(opts *rootOptions) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "fail <message-id>",
		Short: "Finish an in-process message as FAILED",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.open()
			if err != nil {
				return err
			}
			defer rt.Close() //nolint:errcheck

			var cause error
			if reason != "" {
				cause = errors.New(reason)
			}
			return rt.app.Services.Queue.Fail(cmd.Context(), args[0], cause)
		},
	}
	cmd.Flags().StringVar(&reason, "error", "", "Error message to record")
	return cmd
}
