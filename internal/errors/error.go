package errors

import (
	"bufio"
	"fmt"
	"os"
)

// Category represents the type of error.
type Category string

const (
	CategoryDefinition Category = "definition"
	CategoryRuntime    Category = "runtime"
	CategoryHydration  Category = "hydration"
	CategoryConfig     Category = "config"
	CategorySnapshot   Category = "snapshot"
	CategoryCLI        Category = "cli"
)

// Location represents a source location, typically inside a manifest file.
type Location struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column,omitempty"`
}

// String returns the location as a formatted string.
func (l *Location) String() string {
	if l == nil {
		return ""
	}
	if l.Column > 0 {
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// FluxError is a structured error with an optional location, suggestion and documentation.
type FluxError struct {
	// Code is a unique error identifier (e.g., "E101").
	Code string

	// Category is the error type.
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation, usually naming the module, store or action.
	Detail string

	// Location is where the error occurred, if it came from a file.
	Location *Location

	// Context contains surrounding source lines.
	Context []string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// DocURL is a link to documentation about this error.
	DocURL string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *FluxError) Error() string {
	msg := e.Message
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	if e.Code != "" {
		return e.Code + ": " + msg
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *FluxError) Unwrap() error {
	return e.Wrapped
}

// WithLocation adds a source location to the error and reads surrounding lines.
func (e *FluxError) WithLocation(file string, line, column int) *FluxError {
	e.Location = &Location{File: file, Line: line, Column: column}
	e.Context = readContextLines(file, line, 5)
	return e
}

// WithSuggestion adds a fix suggestion to the error.
func (e *FluxError) WithSuggestion(s string) *FluxError {
	e.Suggestion = s
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *FluxError) WithDetail(d string) *FluxError {
	e.Detail = d
	return e
}

// WithDetailf is WithDetail with fmt.Sprintf formatting.
func (e *FluxError) WithDetailf(format string, args ...any) *FluxError {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

// Wrap wraps another error.
func (e *FluxError) Wrap(err error) *FluxError {
	e.Wrapped = err
	return e
}

// readContextLines reads lines around the specified line number from a file.
func readContextLines(filename string, targetLine, contextSize int) []string {
	file, err := os.Open(filename)
	if err != nil {
		return nil
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	lineNum := 0
	startLine := targetLine - contextSize/2
	endLine := targetLine + contextSize/2

	for scanner.Scan() {
		lineNum++
		if lineNum >= startLine && lineNum <= endLine {
			lines = append(lines, scanner.Text())
		}
		if lineNum > endLine {
			break
		}
	}

	return lines
}

// New creates a FluxError from a registered error code.
func New(code string) *FluxError {
	template, ok := registry[code]
	if !ok {
		return &FluxError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &FluxError{
		Code:     code,
		Category: template.Category,
		Message:  template.Message,
		DocURL:   template.DocURL,
	}
}

// Newf creates a new FluxError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *FluxError {
	return &FluxError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in a FluxError.
func FromError(err error, code string) *FluxError {
	if err == nil {
		return nil
	}
	if fe, ok := err.(*FluxError); ok {
		return fe
	}
	return New(code).Wrap(err)
}

// HasCode reports whether err is, or wraps, a FluxError with the given code.
// Both single and multi-error Unwrap chains are followed.
func HasCode(err error, code string) bool {
	if err == nil {
		return false
	}
	if fe, ok := err.(*FluxError); ok && fe.Code == code {
		return true
	}
	switch u := err.(type) {
	case interface{ Unwrap() error }:
		return HasCode(u.Unwrap(), code)
	case interface{ Unwrap() []error }:
		for _, inner := range u.Unwrap() {
			if HasCode(inner, code) {
				return true
			}
		}
	}
	return false
}
