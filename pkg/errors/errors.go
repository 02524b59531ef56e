// Package errors provides structured error types for inktex.
//
// Every stage of the render-and-merge pipeline reports failures as an
// [*Error] carrying a machine-readable [Code]. This enables:
//   - Consistent handling across the CLI and the HTTP server
//   - Surfacing compiler/converter diagnostics verbatim to the user
//   - Error wrapping with context preservation
//
// # Error Codes
//
//   - DEPENDENCY_MISSING: no usable compiler/converter toolchain (fatal)
//   - COMPILER_FAILED: the LaTeX compiler exited non-zero or timed out
//   - CONVERTER_FAILED: the SVG converter exited non-zero or timed out
//   - MALFORMED_OUTPUT: converter output missing or unparseable; a variant
//     of CONVERTER_FAILED, so Is(err, ErrCodeConverter) holds for it
//   - INVALID_*: input validation failures
//
// # Usage
//
//	err := errors.Compiler(output, "latex exited with status %d", code)
//	if errors.Is(err, errors.ErrCodeCompiler) {
//	    fmt.Println(errors.UserMessage(err)) // raw compiler log
//	}
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput    Code = "INVALID_INPUT"
	ErrCodeInvalidScale    Code = "INVALID_SCALE"
	ErrCodeInvalidFilename Code = "INVALID_FILENAME"
	ErrCodeInvalidDocument Code = "INVALID_DOCUMENT"

	// Toolchain errors
	ErrCodeDependency      Code = "DEPENDENCY_MISSING"
	ErrCodeCompiler        Code = "COMPILER_FAILED"
	ErrCodeConverter       Code = "CONVERTER_FAILED"
	ErrCodeMalformedOutput Code = "MALFORMED_OUTPUT"

	// Resource errors
	ErrCodeNotFound Code = "NOT_FOUND"
	ErrCodeTimeout  Code = "TIMEOUT"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// variantOf maps a code to the broader code it is a variant of.
var variantOf = map[Code]Code{
	ErrCodeMalformedOutput: ErrCodeConverter,
}

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Output  string // Captured tool output (compiler/converter log), verbatim
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Dependency reports that no usable toolchain could be found.
func Dependency(format string, args ...any) *Error {
	return New(ErrCodeDependency, format, args...)
}

// Compiler reports a failed compiler run carrying its captured output.
func Compiler(output []byte, format string, args ...any) *Error {
	e := New(ErrCodeCompiler, format, args...)
	e.Output = string(output)
	return e
}

// Converter reports a failed converter run carrying its captured output.
func Converter(output []byte, format string, args ...any) *Error {
	e := New(ErrCodeConverter, format, args...)
	e.Output = string(output)
	return e
}

// Malformed reports converter output that is absent or cannot be parsed.
func Malformed(cause error, format string, args ...any) *Error {
	return Wrap(ErrCodeMalformedOutput, cause, format, args...)
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error whose code matches,
// either directly or as a variant (MALFORMED_OUTPUT matches CONVERTER_FAILED).
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code || variantOf[e.Code] == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// Compiler and converter failures return the captured tool output verbatim
// when there is any; other *Error values return the message without the code
// prefix; any other error returns its string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Output != "" {
			return e.Output
		}
		return e.Message
	}
	return err.Error()
}
