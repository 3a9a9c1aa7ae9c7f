package parser

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/semql/pkg/token"
)

// ParseError represents a parsing error with position information.
type ParseError struct {
	Pos     token.Position
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %s: %s", e.Pos, e.Message)
}

// Errors collects every error found in one parse. The first error is the
// one reported by Error.
type Errors []*ParseError

func (e Errors) Error() string {
	if len(e) == 0 {
		return "no parse errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "\n")
}

// Unwrap exposes the individual errors to errors.As.
func (e Errors) Unwrap() []error {
	out := make([]error, len(e))
	for i, err := range e {
		out[i] = err
	}
	return out
}

// Common error messages
const (
	ErrUnexpectedToken      = "unexpected token %s, expected %s"
	ErrUnexpectedInput      = "unexpected %s"
	ErrUnterminatedString   = "unterminated string literal"
	ErrUnterminatedIdent    = "unterminated quoted identifier"
	ErrUnterminatedComment  = "unterminated block comment"
	ErrIllegalCharacter     = "illegal character %q"
	ErrTooManyNameParts     = "name %q has more than %d parts"
	ErrUnsupportedConstruct = "not implemented: %s"
)
