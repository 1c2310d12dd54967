// Package dgerr defines the failure taxonomy for dgrun.
//
// Errors that make a test file unusable (bad quoting, malformed directives,
// bad selectors) abort the test and surface as an UNRESOLVED entry. Tool
// failures and missing artifacts never appear here; the engine turns them
// into ordinary verdicts.
package dgerr

import (
	"errors"
	"fmt"
)

// Class is a stable failure category.
type Class string

const (
	// Lex marks directive argument text the word lexer rejects.
	Lex Class = "lex"
	// Directive marks a malformed or unknown directive.
	Directive Class = "directive"
	// Selector marks a selector whose keyword is not target or xfail.
	Selector Class = "selector"
	// Pattern marks an expected-diagnostic or scan pattern that does not compile.
	Pattern Class = "pattern"
	// Tool marks a tool that could not be started at all.
	Tool Class = "tool"
	// Config marks invalid configuration or family profiles.
	Config Class = "config"
)

// Fatal reports whether errors of this class describe a broken test file
// rather than a broken environment.
func (c Class) Fatal() bool {
	switch c {
	case Lex, Directive, Selector, Pattern:
		return true
	default:
		return false
	}
}

// Error is the structured error type for dgrun failures.
type Error struct {
	Class   Class
	Line    int // 1-based source line; 0 when unknown
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = msg + ": " + e.Cause.Error()
	}
	if e.Line > 0 {
		return fmt.Sprintf("%s error at line %d: %s", e.Class, e.Line, msg)
	}
	return fmt.Sprintf("%s error: %s", e.Class, msg)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given class and message.
func New(class Class, message string) *Error {
	return &Error{Class: class, Message: message}
}

// Newf creates a new Error with a formatted message.
func Newf(class Class, format string, args ...any) *Error {
	return &Error{Class: class, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(class Class, message string, cause error) *Error {
	return &Error{Class: class, Message: message, Cause: cause}
}

// AtLine returns err with its line set when err is an *Error without one.
// Other errors are returned unchanged.
func AtLine(err error, line int) error {
	var e *Error
	if errors.As(err, &e) && e.Line == 0 {
		cp := *e
		cp.Line = line
		return &cp
	}
	return err
}

// ClassOf returns the class of the first *Error in err's chain, or "" if none.
func ClassOf(err error) Class {
	var e *Error
	if errors.As(err, &e) {
		return e.Class
	}
	return ""
}

// Is reports whether err carries the given class.
func Is(err error, class Class) bool {
	return ClassOf(err) == class
}
