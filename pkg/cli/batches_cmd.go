package cli

import (
	"os"

	"github.com/spf13/cobra"

	"arcdiff/internal/api"
)

var batchColumns = []string{"batch", "total", "scheduled", "in_process", "completed", "warning", "failed", "canceled", "matches", "missing", "different", "devices"}

func newBatchesCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batches",
		Short: "Inspect diff task batches",
	}
	cmd.AddCommand(newBatchesListCmd(opts))
	return cmd
}

func newBatchesListCmd(opts *rootOptions) *cobra.Command {
	var (
		filter api.FilterParams
		page   pageFlags
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Aggregate matching diff tasks by batch ID",
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

			batches, err := rt.app.Services.Diff.ListBatches(cmd.Context(), qf, tf, page.offset, page.limit, page.orderBy)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				views := make([]api.DiffBatch, 0, len(batches))
				for _, b := range batches {
					views = append(views, api.DiffBatchToAPI(b))
				}
				return printJSON(os.Stdout, views)
			}
			rows := make([][]string, 0, len(batches))
			for _, b := range batches {
				rows = append(rows, batchRow(b))
			}
			printTable(os.Stdout, batchColumns, rows)
			return nil
		},
	}
	addFilterFlags(cmd.Flags(), &filter)
	addPageFlags(cmd.Flags(), &page)
	return cmd
}
