package wgconf

import (
	"errors"
	"fmt"
)

// Kind classifies a ParseError
type Kind int

const (
	// Malformed means the text is structurally broken: content outside a
	// section, unmatched brackets, a line that is not key = value.
	Malformed Kind = iota + 1

	// Invalid means a field was read but violates a domain rule: wrong key
	// length, port out of range, bad CIDR.
	Invalid
)

func (k Kind) String() string {
	switch k {
	case Malformed:
		return "malformed"
	case Invalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Sentinels matched by errors.Is against any *ParseError of that kind.
var (
	ErrMalformed   = errors.New("malformed config")
	ErrInvalid     = errors.New("invalid config")
	ErrInvalidName = errors.New("invalid tunnel name")
)

// ParseError reports a problem with a config, with the 1-based line it was
// found on. Line is 0 when the problem is not tied to a line (for example a
// missing [Interface] section or a config validated in memory).
type ParseError struct {
	Kind Kind
	Line int
	Msg  string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s config: line %d: %s", e.Kind, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s config: %s", e.Kind, e.Msg)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrMalformed) and errors.Is(err, ErrInvalid) work
func (e *ParseError) Is(target error) bool {
	switch target {
	case ErrMalformed:
		return e.Kind == Malformed
	case ErrInvalid:
		return e.Kind == Invalid
	}
	return false
}

func malformed(line int, format string, args ...any) *ParseError {
	return &ParseError{Kind: Malformed, Line: line, Msg: fmt.Sprintf(format, args...)}
}

func invalid(line int, err error) *ParseError {
	return &ParseError{Kind: Invalid, Line: line, Msg: err.Error(), Err: err}
}
