// Package errors provides a lightweight structured error type (BuildError)
// for category-based classification of build failures across the engine.
package errors

import (
	"fmt"
)

// Category classifies a build error for reporting and severity decisions.
type Category string

const (
	// Configuration errors are build-fatal: no valid render order or target exists.
	CategoryConfig Category = "config"
	CategoryCycle  Category = "cycle"

	// Per-node errors: the node is excluded or failed, siblings continue.
	CategoryParse      Category = "parse"
	CategoryResolve    Category = "resolve"
	CategoryRender     Category = "render"
	CategoryFileSystem Category = "filesystem"

	// Internal invariant violations (e.g. a partial missing at render time
	// that resolved at edge-building time).
	CategoryInternal Category = "internal"
)

// Fatal reports whether errors of this category abort the whole invocation.
func (c Category) Fatal() bool {
	return c == CategoryConfig || c == CategoryCycle
}

// BuildError is a structured error carrying the originating source path.
type BuildError struct {
	Category Category `json:"category"`
	Path     string   `json:"path,omitempty"`
	Message  string   `json:"message"`
	Cause    error    `json:"-"`
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	switch {
	case e.Path != "" && e.Cause != nil:
		return fmt.Sprintf("%s: %s: %s: %v", e.Category, e.Path, e.Message, e.Cause)
	case e.Path != "":
		return fmt.Sprintf("%s: %s: %s", e.Category, e.Path, e.Message)
	case e.Cause != nil:
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Message, e.Cause)
	default:
		return fmt.Sprintf("%s: %s", e.Category, e.Message)
	}
}

// Unwrap implements error unwrapping for Go 1.13+ error handling.
func (e *BuildError) Unwrap() error {
	return e.Cause
}

// WithPath attaches the originating source path.
func (e *BuildError) WithPath(path string) *BuildError {
	e.Path = path
	return e
}

// New creates a new BuildError.
func New(category Category, message string) *BuildError {
	return &BuildError{Category: category, Message: message}
}

// Newf creates a new BuildError with a formatted message.
func Newf(category Category, format string, args ...any) *BuildError {
	return &BuildError{Category: category, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a new BuildError that wraps an existing error.
func Wrap(err error, category Category, message string) *BuildError {
	return &BuildError{Category: category, Message: message, Cause: err}
}

// IsCategory checks if an error belongs to a specific category.
func IsCategory(err error, category Category) bool {
	if be, ok := err.(*BuildError); ok {
		return be.Category == category
	}
	return false
}

// GetCategory extracts the category from an error, or returns CategoryInternal
// if it is not a BuildError.
func GetCategory(err error) Category {
	if be, ok := err.(*BuildError); ok {
		return be.Category
	}
	return CategoryInternal
}

// IsFatal reports whether the error must abort the invocation before rendering.
func IsFatal(err error) bool {
	return GetCategory(err).Fatal()
}
