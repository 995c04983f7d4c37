package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"arcdiff/internal/domain"
)

var (
	version = "dev"
	commit  = "none"
)

// Execute runs the CLI.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		output, _ := rootCmd.PersistentFlags().GetString("output")
		if output == "json" {
			errObj := map[string]interface{}{
				"error": err.Error(),
			}
			if kind := errorKind(err); kind != "" {
				errObj["code"] = kind
			}
			_ = printJSON(os.Stdout, errObj)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// errorKind names the domain error class of err, or "" for other errors.
func errorKind(err error) string {
	var (
		nf       *domain.NotFoundError
		invalid  *domain.ValidationError
		conflict *domain.ConflictError
		illegal  *domain.IllegalStateError
		capacity *domain.CapacityExceededError
		te       *domain.TransportError
	)
	switch {
	case errors.As(err, &nf):
		return "NOT_FOUND"
	case errors.As(err, &invalid):
		return "VALIDATION"
	case errors.As(err, &conflict):
		return "CONFLICT"
	case errors.As(err, &illegal):
		return "ILLEGAL_STATE"
	case errors.As(err, &capacity):
		return "CAPACITY_EXCEEDED"
	case errors.As(err, &te):
		return "TRANSPORT"
	default:
		return ""
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "diffd",
		Short:         "Diff task engine",
		Long:          "Schedules, tracks and aggregates comparisons between a primary and a secondary archive.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("output") {
				if v := os.Getenv("DIFFD_OUTPUT"); v != "" {
					opts.output = v
				} else {
					opts.output = defaultOutputFormat(os.Stdout)
				}
			}
			return validateOutputFormat(opts.output)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "Path to a YAML config file")
	pf.StringVar(&opts.envFile, "env-file", ".env", "Path to a .env file (missing file is ignored)")
	pf.StringVar(&opts.dbPath, "db", "", "SQLite database path (overrides META_DB_PATH)")
	pf.StringVarP(&opts.output, "output", "o", "table", "Output format (table, json)")
	pf.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newServeCmd(opts))
	rootCmd.AddCommand(newMigrateCmd(opts))
	rootCmd.AddCommand(newReconcileCmd(opts))
	rootCmd.AddCommand(newTasksCmd(opts))
	rootCmd.AddCommand(newBatchesCmd(opts))
	rootCmd.AddCommand(newPurgeCmd(opts))
	rootCmd.AddCommand(newCancelCmd(opts))
	rootCmd.AddCommand(newVersionCmd())

	// Shell completions
	rootCmd.AddCommand(newCompletionCmd())

	return rootCmd
}

func newCompletionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
			default:
				return fmt.Errorf("unsupported shell: %s", args[0])
			}
		},
	}
	return cmd
}
