package common

import (
	"errors"
	"fmt"
)

// ValidationError marks malformed user input. The route layer maps it to
// a 400 with the field-level message; everything else stays a 500.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func Invalidf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
