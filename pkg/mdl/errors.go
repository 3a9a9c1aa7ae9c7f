package mdl

import (
	"fmt"
	"strings"
)

// ManifestValidationError reports a malformed manifest: a bad table
// reference, an invalid boolean encoding, an unknown join type or a
// structural inconsistency found by Validate.
type ManifestValidationError struct {
	Field string
	Msg   string
}

func (e *ManifestValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}

// ResolutionError reports a name that does not resolve: a dataset, a
// column, a physical field or a function.
type ResolutionError struct {
	Name string
	Msg  string
}

func (e *ResolutionError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return fmt.Sprintf("Schema error: No field named %q.", e.Name)
}

// NoFieldError reports a missing field the way schema errors are rendered.
func NoFieldError(name string) *ResolutionError {
	return &ResolutionError{Name: name}
}

// NoTableError reports a relation that is neither a dataset nor a
// registered physical table.
func NoTableError(name string) *ResolutionError {
	return &ResolutionError{Name: name, Msg: fmt.Sprintf("Schema error: table %q not found.", name)}
}

// UnresolvedError reports a manifest reference to a missing dataset,
// column or relationship.
func UnresolvedError(name string) *ResolutionError {
	return &ResolutionError{Name: name, Msg: "unresolved reference: " + name}
}

// LineageCycleError reports a dependency cycle between columns or views.
// Chain starts and ends with the same name.
type LineageCycleError struct {
	Chain []string
}

func (e *LineageCycleError) Error() string {
	return "cyclic dependency: " + strings.Join(e.Chain, " -> ")
}

// UnsupportedConstructError reports a construct that cannot be represented
// through the model yet.
type UnsupportedConstructError struct {
	Construct string
}

func (e *UnsupportedConstructError) Error() string {
	return "not implemented: " + e.Construct
}
