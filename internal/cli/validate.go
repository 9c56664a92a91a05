package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wdiesveld/tinyqueries/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
	Warnings []compiler.CycleWarning    `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [src-dir]",
		Short: "Validate query sources without writing output",
		Long: `Validate CUE query sources without writing compiled files.

Reports every compile error, unresolvable alias reference and alias
cycle. Faster than compile for development feedback.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	srcDir, _, err := compileDirs(opts, args)
	if err != nil {
		return err
	}

	loadResult, loadErrors := compiler.LoadSources(srcDir, compiler.LoadModeCollectAll)
	if loadResult == nil && len(loadErrors) > 0 {
		code, message := parseCompileError(loadErrors[0])
		_ = formatter.Error(code, message, nil)
		return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil)
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, srcDir)

	result := ValidationResult{Valid: len(loadErrors) == 0, Warnings: loadResult.Warnings}
	for _, err := range loadErrors {
		result.Errors = append(result.Errors, toValidationError(err))
	}

	if formatter.Format == "json" {
		enc := json.NewEncoder(formatter.Writer)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
	} else {
		printValidation(formatter, result)
	}

	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
	}
	return nil
}

// toValidationError converts any loader error to the validation error
// shape so the JSON output is uniform.
func toValidationError(err error) compiler.ValidationError {
	var verr compiler.ValidationError
	if errors.As(err, &verr) {
		return verr
	}
	var loadErr *compiler.LoadError
	if errors.As(err, &loadErr) {
		out := compiler.ValidationError{Field: "load", Message: loadErr.Message, Code: loadErr.Code}
		if loadErr.Pos.IsValid() {
			out.Line = loadErr.Pos.Line()
		}
		return out
	}
	return compiler.ValidationError{Field: "load", Message: err.Error(), Code: compiler.ErrCodeGeneric}
}

func printValidation(formatter *OutputFormatter, result ValidationResult) {
	w := formatter.Writer
	if result.Valid {
		fmt.Fprintf(w, "%s All queries valid\n", markOK)
	} else {
		fmt.Fprintf(w, "%s Validation failed\n\n", markFail)
		for _, e := range result.Errors {
			fmt.Fprintf(w, "  %s\n", e.Error())
		}
	}
	for _, warn := range result.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warn.Message)
	}
}
