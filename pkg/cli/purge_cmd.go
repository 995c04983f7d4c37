package cli

import (
	"github.com/spf13/cobra"

	"arcdiff/internal/api"
	"arcdiff/internal/domain"
)

func newPurgeCmd(opts *rootOptions) *cobra.Command {
	var (
		filter   api.FilterParams
		maxCount int
	)
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete diff tasks matching a filter",
		Long: "Deletes matching tasks and their queue messages in rounds of DELETE_FETCH_SIZE " +
			"until none remain. With --max only a single round of that size runs.",
		Args: cobra.NoArgs,
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

			var deleted int
			if cmd.Flags().Changed("max") {
				deleted, err = rt.app.Services.Diff.BulkDelete(cmd.Context(), qf, tf, maxCount)
			} else {
				deleted, err = rt.app.Services.Diff.DrainDelete(cmd.Context(), qf, tf, rt.cfg.DeleteFetchSize)
			}
			if err != nil {
				return err
			}
			return printCount(cmd, "deleted", int64(deleted))
		},
	}
	addFilterFlags(cmd.Flags(), &filter)
	cmd.Flags().IntVar(&maxCount, "max", 0, "Delete at most this many tasks in one round")
	return cmd
}

func newCancelCmd(opts *rootOptions) *cobra.Command {
	var filter api.FilterParams
	cmd := &cobra.Command{
		Use:   "cancel [task-id]",
		Short: "Cancel one diff task, or every scheduled or in-process task matching a filter",
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

			if len(args) == 1 {
				ok, err := rt.app.Services.Diff.Cancel(cmd.Context(), id, rt.eventLogger())
				if err != nil {
					return err
				}
				if !ok {
					return domain.ErrNotFound("diff task %d not found", id)
				}
				return printCount(cmd, "canceled", 1)
			}

			n, err := rt.app.Services.Diff.BulkCancel(cmd.Context(), qf, tf)
			if err != nil {
				return err
			}
			return printCount(cmd, "canceled", n)
		},
	}
	addFilterFlags(cmd.Flags(), &filter)
	return cmd
}
