package compiler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
)

// LoadMode controls how errors are handled while loading sources.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// Error code constants, shared with the CLI.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error

	ErrCodeQuerySource  = "E101" // Neither or both of sql and term
	ErrCodeInvalidParam = "E102" // Unknown param type or bad split
	ErrCodeInvalidField = "E103" // Unknown output field type
	ErrCodeInvalidOp    = "E104" // Unknown operation
	ErrCodeInvalidTerm  = "E105" // Alias term does not validate
)

// LoadResult contains the queries compiled from a source directory.
type LoadResult struct {
	Entries   []Entry
	Warnings  []CycleWarning
	CUEValue  cue.Value // The raw CUE value for additional processing
	FileCount int       // Number of CUE files found
}

// LoadError represents an error that occurred while loading sources.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadSources loads the CUE package in dir and compiles every entry under
// "query". The result is nil when the directory itself could not be loaded.
// Set-level validation runs once all entries compiled.
func LoadSources(dir string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("query source directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing query source directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	result := &LoadResult{
		CUEValue:  value,
		FileCount: len(cueFiles),
	}
	errs := compileAll(value, mode, result)
	if len(errs) > 0 && mode == LoadModeFailFast {
		return result, errs
	}

	if len(result.Entries) == 0 && len(errs) == 0 {
		return result, []error{&LoadError{Code: ErrCodeGeneric, Message: "no queries found in sources"}}
	}

	for _, verr := range Validate(result.Entries) {
		errs = append(errs, verr)
		if mode == LoadModeFailFast {
			return result, errs
		}
	}
	result.Warnings = AnalyzeCycles(result.Entries)
	return result, errs
}

func compileAll(value cue.Value, mode LoadMode, result *LoadResult) []error {
	queries := value.LookupPath(cue.ParsePath("query"))
	if !queries.Exists() {
		return nil
	}
	iter, err := queries.Fields()
	if err != nil {
		return []error{&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating queries: %v", err)}}
	}

	var errs []error
	for iter.Next() {
		id := iter.Selector().Unquoted()
		iface, sql, err := CompileQuery(iter.Value())
		if err != nil {
			errs = append(errs, convertCompileError(err, "query."+id))
			if mode == LoadModeFailFast {
				return errs
			}
			continue
		}
		result.Entries = append(result.Entries, Entry{
			ID:        id,
			Interface: iface,
			SQL:       sql,
			Pos:       iter.Value().Pos(),
		})
	}
	return errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, context string) *LoadError {
	var compileErr *CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: fmt.Sprintf("%s: %s", context, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "sql":
		return ErrCodeQuerySource
	case field == "term":
		return ErrCodeInvalidTerm
	case field == "operation":
		return ErrCodeInvalidOp
	case field == "type" || strings.HasPrefix(field, "output.fields"):
		return ErrCodeInvalidField
	case strings.HasPrefix(field, "params."):
		return ErrCodeInvalidParam
	default:
		return ErrCodeGeneric
	}
}
