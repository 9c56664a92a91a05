package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wdiesveld/tinyqueries/internal/engine"
)

// GetOptions holds flags for the get command.
type GetOptions struct {
	*RootOptions
	Params    []string // name=value pairs
	Single    bool
	Run       bool
	Canonical bool
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "get <term> [value]",
		Short: "Run a term against the configured database",
		Long: `Run a term against the configured database and print the result.

A single value binds the default parameter. Named parameters are given with
--param name=value; values that parse as integers, floats or booleans are
passed typed, everything else as a string.

Examples:
  tinyq get users
  tinyq get users.get 1
  tinyq get "users(messages)" --param userID=1 --single
  tinyq get users.rename --param userID=2 --param name=bob --run`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(opts, args, cmd)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Params, "param", "p", nil, "parameter as name=value (repeatable)")
	cmd.Flags().BoolVar(&opts.Single, "single", false, "return only the first row")
	cmd.Flags().BoolVar(&opts.Run, "run", false, "execute a create, update or delete query")
	cmd.Flags().BoolVar(&opts.Canonical, "canonical", false, "print canonical JSON")
	cmd.MarkFlagsMutuallyExclusive("single", "run")

	return cmd
}

func runGet(opts *GetOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	params, err := getParams(args, opts.Params)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid parameters", err)
	}

	rt, err := openRuntime(cmd.Context(), opts.RootOptions, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer rt.Close()

	q, err := rt.engine.Query(args[0])
	if err != nil {
		return outputQueryError(formatter, err)
	}
	if err := q.Params(params); err != nil {
		return outputQueryError(formatter, err)
	}

	var out any
	switch {
	case opts.Run:
		out, err = q.Run(cmd.Context(), nil)
	case opts.Single:
		out, err = q.Select1(cmd.Context(), nil)
	default:
		out, err = q.Select(cmd.Context(), nil)
	}
	if err != nil {
		return outputQueryError(formatter, err)
	}
	return formatter.Result(out, opts.Canonical)
}

// getParams builds the parameter value for Query.Params: the positional
// value alone, the named pairs, or nil.
func getParams(args, pairs []string) (any, error) {
	if len(args) == 2 && len(pairs) > 0 {
		return nil, fmt.Errorf("a positional value and --param cannot be combined")
	}
	if len(args) == 2 {
		return parseParamValue(args[1]), nil
	}
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("parameter %q must have the form name=value", pair)
		}
		out[name] = parseParamValue(value)
	}
	return out, nil
}

func parseParamValue(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

// outputQueryError reports an engine error with its code.
func outputQueryError(formatter *OutputFormatter, err error) error {
	code := "INTERNAL"
	if c, ok := engine.CodeOf(err); ok {
		code = string(c)
	}
	_ = formatter.Error(code, err.Error(), nil)
	return WrapExitError(ExitFailure, code, err)
}
