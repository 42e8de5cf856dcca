// Package apperr classifies load, join and render failures so the CLI can
// report them with a stable exit code.
package apperr

import (
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
)

// Kind is the failure class of an error.
type Kind string

const (
	// KindNotFound means an input path does not exist.
	KindNotFound Kind = "not_found"
	// KindParse means file content violates the expected format.
	KindParse Kind = "parse"
	// KindSchema means an expected column, identifier or property is missing.
	KindSchema Kind = "schema"
	// KindRender means styling or the rendering backend failed.
	KindRender Kind = "render"
	// KindUnknown is returned by KindOf for unclassified errors.
	KindUnknown Kind = ""
)

// Error attaches a Kind to a wrapped error.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, err error, format string, args ...any) *Error {
	msg := fmt.Sprintf(format, args...)
	if err == nil {
		return &Error{Kind: kind, Err: eris.New(msg)}
	}
	return &Error{Kind: kind, Err: eris.Wrap(err, msg)}
}

// NotFound wraps err as a NotFound failure. err may be nil.
func NotFound(err error, format string, args ...any) error {
	return newError(KindNotFound, err, format, args...)
}

// Parse wraps err as a ParseError. err may be nil.
func Parse(err error, format string, args ...any) error {
	return newError(KindParse, err, format, args...)
}

// Schema wraps err as a SchemaError. err may be nil.
func Schema(err error, format string, args ...any) error {
	return newError(KindSchema, err, format, args...)
}

// Render wraps err as a RenderError. err may be nil.
func Render(err error, format string, args ...any) error {
	return newError(KindRender, err, format, args...)
}

// KindOf returns the kind of the outermost classified error in err's chain.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// ExitCode maps an error to the process exit status used by the CLI.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch KindOf(err) {
	case KindNotFound:
		return 2
	case KindParse:
		return 3
	case KindSchema:
		return 4
	case KindRender:
		return 5
	default:
		return 1
	}
}
