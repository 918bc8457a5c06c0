package metar

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors matched by the typed errors below through errors.Is
var (
	ErrMalformedInput = errors.New("malformed input")
	ErrMissingElement = errors.New("missing element")
	ErrDecode         = errors.New("decode failure")
)

// MalformedInputError is returned when the report does not match the group grammar
type MalformedInputError struct {
	Pos      int         // byte offset into the raw report
	Expected []GroupKind // group kinds that would have been accepted at Pos
	Found    string      // offending token, empty at end of input
}

func (e *MalformedInputError) Error() string {
	found := "end of input"
	if e.Found != "" {
		found = fmt.Sprintf("%q", e.Found)
	}

	if len(e.Expected) == 0 {
		return fmt.Sprintf("malformed input at position %d: unexpected %s", e.Pos, found)
	}

	names := make([]string, 0, len(e.Expected))
	for _, k := range e.Expected {
		names = append(names, k.String())
	}
	return fmt.Sprintf("malformed input at position %d: expected %s, found %s",
		e.Pos, strings.Join(names, " or "), found)
}

func (e *MalformedInputError) Is(target error) bool {
	return target == ErrMalformedInput
}

// MissingElementError is returned when a mandatory field was never decoded
type MissingElementError struct {
	Field string
}

func (e *MissingElementError) Error() string {
	return fmt.Sprintf("missing element: %s", e.Field)
}

func (e *MissingElementError) Is(target error) bool {
	return target == ErrMissingElement
}

// DecodeError is returned when a matched group cannot be converted to its value
type DecodeError struct {
	Kind GroupKind
	Text string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode %s group %q: %v", e.Kind, e.Text, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

func decodeErr(g Group, err error) error {
	return &DecodeError{Kind: g.Kind, Text: g.Text, Err: err}
}
