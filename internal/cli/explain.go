package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ExplainResult is the JSON form of an explained term.
type ExplainResult struct {
	Term string `json:"term"`
	Kind string `json:"kind"`
	Tree string `json:"tree"`
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explain <term>",
		Short: "Print the node tree of a term",
		Long: `Parse a term against the compiled queries and print the node tree it
builds, without touching the database.

Example:
  tinyq explain "users(messages)+stats"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runExplain(opts *RootOptions, term string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	rt, err := openRuntime(cmd.Context(), opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer rt.Close()

	q, err := rt.engine.Query(term)
	if err != nil {
		return outputQueryError(formatter, err)
	}

	if formatter.Format == "json" {
		return formatter.Success(ExplainResult{Term: term, Kind: string(q.Kind()), Tree: q.Explain()})
	}
	_, err = fmt.Fprint(formatter.Writer, q.Explain())
	return err
}
