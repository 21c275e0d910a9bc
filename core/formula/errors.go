package formula

import (
	"fmt"

	"partquote/internal/errors"
)

// ParseError reports malformed formula text. Offset is the byte offset of the
// offending token in the source.
type ParseError struct {
	Offset  int    `json:"offset"`
	Message string `json:"message"`
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at offset %d: %s", e.Offset, e.Message)
}

// ErrorType implements errors.Typed
func (e *ParseError) ErrorType() errors.Type {
	return errors.TypeParse
}

// EvalError reports a formula that parsed but could not produce a number:
// unknown identifier or function, wrong arity, type mismatch, division by
// zero, or a non-finite result.
type EvalError struct {
	Offset  int    `json:"offset"`
	Message string `json:"message"`
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("eval error at offset %d: %s", e.Offset, e.Message)
}

// ErrorType implements errors.Typed
func (e *EvalError) ErrorType() errors.Type {
	return errors.TypeEval
}

func parseErrorf(offset int, format string, args ...interface{}) *ParseError {
	return &ParseError{Offset: offset, Message: fmt.Sprintf(format, args...)}
}

func evalErrorf(offset int, format string, args ...interface{}) *EvalError {
	return &EvalError{Offset: offset, Message: fmt.Sprintf(format, args...)}
}
