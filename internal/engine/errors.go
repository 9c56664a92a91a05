package engine

import (
	"errors"
	"fmt"
	"strings"
)

// Code categorizes engine errors.
type Code string

const (
	// CodeParse indicates malformed term syntax.
	CodeParse Code = "PARSE_ERROR"

	// CodeAliasResolution indicates an alias whose term cannot be resolved
	// or that refers back to itself.
	CodeAliasResolution Code = "ALIAS_RESOLUTION"

	// CodeKeyResolution indicates that nodes being combined do not share
	// exactly one key.
	CodeKeyResolution Code = "KEY_RESOLUTION"

	// CodeMissingInterface indicates a query id absent from the store.
	CodeMissingInterface Code = "MISSING_INTERFACE"

	// CodeBatchSizeExceeded indicates a filter step with too many
	// intermediate key values.
	CodeBatchSizeExceeded Code = "BATCH_SIZE_EXCEEDED"

	// CodeMergeType indicates a mapping field merged with a scalar.
	CodeMergeType Code = "MERGE_TYPE"

	// CodeRowSource wraps a failure of the database.
	CodeRowSource Code = "ROW_SOURCE"

	// CodeParamBinding indicates a parameter value that cannot be bound.
	CodeParamBinding Code = "PARAM_BINDING"

	// CodeShapeMismatch indicates results that cannot be combined, such as
	// a scalar column where rows are needed.
	CodeShapeMismatch Code = "SHAPE_MISMATCH"
)

// Error is returned for every failure detected while parsing or running a
// term.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Message is a human-readable description.
	Message string

	// QueryID identifies the compiled query involved, if any.
	QueryID string

	// Term is the term fragment being parsed, if any.
	Term string

	// Nodes names the nodes that were compared during key resolution.
	Nodes []string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)
	switch {
	case e.QueryID != "" && e.Term != "":
		fmt.Fprintf(&b, " (query=%s, term=%q)", e.QueryID, e.Term)
	case e.QueryID != "":
		fmt.Fprintf(&b, " (query=%s)", e.QueryID)
	case e.Term != "":
		fmt.Fprintf(&b, " (term=%q)", e.Term)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}

// hasCode reports whether any *Error in err's chain carries code.
func hasCode(err error, code Code) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Err
	}
	return false
}

// IsParseError returns true if err is a term syntax error.
func IsParseError(err error) bool { return hasCode(err, CodeParse) }

// IsAliasResolutionError returns true if an alias could not be resolved.
func IsAliasResolutionError(err error) bool { return hasCode(err, CodeAliasResolution) }

// IsKeyResolutionError returns true if no unique common key was found.
func IsKeyResolutionError(err error) bool { return hasCode(err, CodeKeyResolution) }

// IsMissingInterfaceError returns true if a query id is not in the store.
func IsMissingInterfaceError(err error) bool { return hasCode(err, CodeMissingInterface) }

// IsBatchSizeExceededError returns true if a filter step was too large.
func IsBatchSizeExceededError(err error) bool { return hasCode(err, CodeBatchSizeExceeded) }

// IsMergeTypeError returns true if incompatible fields were merged.
func IsMergeTypeError(err error) bool { return hasCode(err, CodeMergeType) }

// IsRowSourceError returns true if the database call failed.
func IsRowSourceError(err error) bool { return hasCode(err, CodeRowSource) }

// IsParamBindingError returns true if a parameter value could not be bound.
func IsParamBindingError(err error) bool { return hasCode(err, CodeParamBinding) }

// IsShapeMismatchError returns true if results had incompatible shapes.
func IsShapeMismatchError(err error) bool { return hasCode(err, CodeShapeMismatch) }

// NewParseError creates an Error for a malformed term.
func NewParseError(term, message string, cause error) *Error {
	return &Error{Code: CodeParse, Message: message, Term: term, Err: cause}
}

// NewAliasResolutionError creates an Error for an unresolvable alias.
func NewAliasResolutionError(id, message string, cause error) *Error {
	return &Error{Code: CodeAliasResolution, Message: message, QueryID: id, Err: cause}
}

// NewKeyResolutionError creates an Error listing the compared nodes and the
// key names they had in common.
func NewKeyResolutionError(nodes, candidates []string) *Error {
	msg := "no common key found"
	if len(candidates) > 1 {
		msg = fmt.Sprintf("ambiguous common key, candidates %s", strings.Join(candidates, ", "))
	}
	return &Error{
		Code:    CodeKeyResolution,
		Message: fmt.Sprintf("%s between %s", msg, strings.Join(nodes, ", ")),
		Nodes:   nodes,
	}
}

// NewMissingInterfaceError creates an Error for an unknown query id.
func NewMissingInterfaceError(id string, cause error) *Error {
	return &Error{Code: CodeMissingInterface, Message: "query not found", QueryID: id, Err: cause}
}

// NewBatchSizeExceededError creates an Error for an oversized filter step.
func NewBatchSizeExceededError(name string, size, limit int) *Error {
	return &Error{
		Code: CodeBatchSizeExceeded,
		Message: fmt.Sprintf("cannot apply filter query %s: %d intermediate results exceed the maximum of %d; use the split option for the parameter if possible",
			name, size, limit),
		QueryID: name,
	}
}

// NewMergeTypeError creates an Error for incompatible field shapes.
func NewMergeTypeError(name string, cause error) *Error {
	return &Error{Code: CodeMergeType, Message: "cannot merge results", QueryID: name, Err: cause}
}

// NewRowSourceError wraps a database failure with the query id.
func NewRowSourceError(id string, cause error) *Error {
	return &Error{Code: CodeRowSource, Message: "SQL error", QueryID: id, Err: cause}
}

// NewParamBindingError creates an Error for an unbindable parameter value.
func NewParamBindingError(name, message string) *Error {
	return &Error{Code: CodeParamBinding, Message: message, QueryID: name}
}

// NewShapeMismatchError creates an Error for results that cannot be
// combined.
func NewShapeMismatchError(name, message string) *Error {
	return &Error{Code: CodeShapeMismatch, Message: message, QueryID: name}
}
