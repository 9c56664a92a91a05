package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wdiesveld/tinyqueries/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update  bool   // regenerate golden files
	Filter  string // scenario filter (glob pattern)
	Sources string // default sources for scenarios that name none
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run YAML query scenarios",
		Long: `Run scenario files against fresh in-memory SQLite databases.

Each scenario sets up a schema, registers queries from CUE sources or
inline definitions, runs a flow of terms and checks expectations,
assertions and, when present, the golden trace in golden/<name>.golden.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  tinyq test ./scenarios
  tinyq test ./scenarios --filter "users-*"
  tinyq test ./scenarios --sources ./queries --update`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().StringVar(&opts.Sources, "sources", "", "CUE sources for scenarios without their own")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}
	if opts.Sources != "" {
		if _, err := os.Stat(opts.Sources); os.IsNotExist(err) {
			return NewExitError(ExitCommandError, fmt.Sprintf("sources directory not found: %s", opts.Sources))
		}
	}

	suite, err := harness.RunSuite(cmd.Context(), scenariosDir, harness.SuiteOptions{
		Filter:  opts.Filter,
		Update:  opts.Update,
		Sources: opts.Sources,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	if opts.Format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(suite); err != nil {
			return err
		}
	} else {
		outputTestText(cmd, suite, opts.Update)
	}

	if suite.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", suite.Failed))
	}
	return nil
}

func outputTestText(cmd *cobra.Command, suite *harness.SuiteResult, updated bool) {
	w := cmd.OutOrStdout()

	if suite.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return
	}

	for _, s := range suite.Scenarios {
		if s.Pass {
			if updated {
				fmt.Fprintf(w, "%s %s (golden updated)\n", markOK, s.Name)
			} else {
				fmt.Fprintf(w, "%s %s\n", markOK, s.Name)
			}
			continue
		}
		fmt.Fprintf(w, "%s %s\n", markFail, s.Name)
		for _, e := range s.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Results: %d passed, %d failed, %d total\n", suite.Passed, suite.Failed, suite.Total)
}
