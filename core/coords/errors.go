package coords

import "errors"

// Kind classifies parse failures.
type Kind int

const (
	KindInvalidInput Kind = iota + 1
	KindInvalidFormat
	KindInvalidRange
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrInvalidFormat = errors.New("invalid format")
	ErrInvalidRange  = errors.New("invalid range")
)

const (
	msgInvalidInput   = "invalid input: expected string"
	msgTwoParts       = "invalid format: expected two coordinates separated by comma"
	msgNotNumbers     = "invalid format: coordinates must be numbers"
	msgLatitudeRange  = "invalid latitude: must be between -90 and 90"
	msgLongitudeRange = "invalid longitude: must be between -180 and 180"
)

// String returns the snake_case name used on the wire.
func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindInvalidFormat:
		return "invalid_format"
	case KindInvalidRange:
		return "invalid_range"
	default:
		return "unknown"
	}
}

// ParseError is returned by Parse, ParseValue and Coordinate.Validate.
type ParseError struct {
	Kind    Kind
	Message string
	Input   string
}

func newParseError(kind Kind, msg, input string) *ParseError {
	return &ParseError{Kind: kind, Message: msg, Input: input}
}

func (e *ParseError) Error() string {
	return e.Message
}

func (e *ParseError) Is(target error) bool {
	switch e.Kind {
	case KindInvalidInput:
		return target == ErrInvalidInput
	case KindInvalidFormat:
		return target == ErrInvalidFormat
	case KindInvalidRange:
		return target == ErrInvalidRange
	}
	return false
}

// KindOf returns the Kind carried by err, or 0 when err is not a *ParseError.
func KindOf(err error) Kind {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return 0
}
