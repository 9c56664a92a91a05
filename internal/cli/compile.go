package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wdiesveld/tinyqueries/internal/catalog"
	"github.com/wdiesveld/tinyqueries/internal/compiler"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Label string // write to the labelled set "<out-dir>-<label>"
}

// CompilationResult summarizes a compile run.
type CompilationResult struct {
	Output   string                  `json:"output,omitempty"`
	Queries  []string                `json:"queries"`
	Aliases  []string                `json:"aliases"`
	Warnings []compiler.CycleWarning `json:"warnings,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile [src-dir] [out-dir]",
		Short: "Compile CUE query sources",
		Long: `Compile CUE query sources to interface and SQL files.

The compiler loads every .cue file in the source directory, checks each
query and alias, and writes interface/<id>.json and sql/<id>.sql files
to the output directory. Stale files from earlier runs are removed.

Directories default to compiler.input and compiler.output from the config.
With --label the output goes to "<out-dir>-<label>", the query set served
when compiler.label is set.

Examples:
  tinyq compile ./queries ./compiled
  tinyq compile --label staging
  tinyq compile --format json`,
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Label, "label", "", "query set label")

	return cmd
}

func runCompile(opts *CompileOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	srcDir, outDir, err := compileDirs(opts.RootOptions, args)
	if err != nil {
		return err
	}

	loadResult, loadErrors := compiler.LoadSources(srcDir, compiler.LoadModeCollectAll)
	if loadResult == nil && len(loadErrors) > 0 {
		code, message := parseCompileError(loadErrors[0])
		return outputCompileError(formatter, code, message, nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, srcDir)
	for _, entry := range loadResult.Entries {
		formatter.VerboseLog("Compiling query: %s", entry.ID)
	}

	if len(loadErrors) > 0 {
		return outputCompileErrors(formatter, loadErrors)
	}

	if opts.Label != "" {
		if !catalog.ValidLabel(opts.Label) {
			return outputCompileError(formatter, compiler.ErrCodeGeneric, fmt.Sprintf("invalid query set label %q", opts.Label), nil)
		}
		outDir += "-" + opts.Label
	}

	result := summarize(loadResult)
	if err := compiler.WriteCompiled(outDir, loadResult.Entries); err != nil {
		return outputCompileError(formatter, compiler.ErrCodeWriteFailed, fmt.Sprintf("writing output: %v", err), nil)
	}
	result.Output = outDir

	return outputCompileSuccess(formatter, result)
}

// compileDirs resolves the source and output directories from the
// arguments, falling back to the config.
func compileDirs(opts *RootOptions, args []string) (string, string, error) {
	if len(args) == 2 {
		return args[0], args[1], nil
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		return "", "", err
	}
	src := cfg.Compiler.Input
	if len(args) == 1 {
		src = args[0]
	}
	return src, cfg.Compiler.Output, nil
}

func summarize(res *compiler.LoadResult) *CompilationResult {
	out := &CompilationResult{
		Queries:  []string{},
		Aliases:  []string{},
		Warnings: res.Warnings,
	}
	for _, e := range res.Entries {
		if e.Interface.IsAlias() {
			out.Aliases = append(out.Aliases, e.ID)
		} else {
			out.Queries = append(out.Queries, e.ID)
		}
	}
	return out
}

func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "%s Compiled %d query(s), %d alias(es)\n", markOK, len(result.Queries), len(result.Aliases))

	for _, warn := range result.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warn.Message)
	}
	if result.Output != "" {
		fmt.Fprintf(w, "Wrote compiled queries to %s\n", result.Output)
	}
	return nil
}

// outputCompileError outputs a single compilation error.
func outputCompileError(formatter *OutputFormatter, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil)
}

// outputCompileErrors outputs every collected compilation error.
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	failed := NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))

	if formatter.Format == "json" {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code, message := parseCompileError(err)
			cliErrors[i] = CLIError{Code: code, Message: message}
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors,
		}); err != nil {
			return err
		}
		return failed
	}

	fmt.Fprintf(formatter.Writer, "%s Compilation failed\n\n", markFail)
	for _, err := range errs {
		code, message := parseCompileError(err)
		var loadErr *compiler.LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
				loadErr.Pos.Filename(),
				loadErr.Pos.Line(),
				loadErr.Pos.Column())
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", code, message)
	}
	return failed
}

// parseCompileError extracts error code and message from an error.
func parseCompileError(err error) (string, string) {
	var loadErr *compiler.LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return compiler.MapFieldToErrorCode(compileErr.Field), compileErr.Message
	}
	var validationErr compiler.ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Code, fmt.Sprintf("%s %s: %s", validationErr.Query, validationErr.Field, validationErr.Message)
	}
	return compiler.ErrCodeGeneric, err.Error()
}
