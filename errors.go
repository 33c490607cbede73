package descent

import (
	"errors"
	"fmt"
)

// Every message is prefixed with "descent: " so callers can grep logs and
// match with errors.Is regardless of how deeply the error was wrapped.
var (
	// ErrParse is matched by every *ParseError.
	ErrParse = errors.New("descent: invalid expression")

	// ErrDomain is matched by every *DomainError.
	ErrDomain = errors.New("descent: expression must reference x or y")

	// ErrInvalidParams reports a start point, learning rate, budget or region
	// that failed boundary validation.
	ErrInvalidParams = errors.New("descent: invalid parameters")

	// ErrUnknownPreset is returned by LookupPreset for names not in the catalog.
	ErrUnknownPreset = errors.New("descent: unknown preset")
)

// ParseError describes text that is not valid arithmetic in x and y.
type ParseError struct {
	Input string
	Pos   int
	Msg   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("descent: parse error at pos %d: %s", e.Pos, e.Msg)
}

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// DomainError reports an expression that parses but mentions neither variable.
type DomainError struct {
	Input string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("descent: expression %q must reference x or y", e.Input)
}

func (e *DomainError) Is(target error) bool { return target == ErrDomain }

func invalidParam(field, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidParams, field, fmt.Sprintf(format, args...))
}
