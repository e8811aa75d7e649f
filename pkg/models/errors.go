package models

import "errors"

// ErrNotFound is returned by stores when no matching record exists
var ErrNotFound = errors.New("not found")

// ValidationError reports malformed or missing client input
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// IsValidation reports whether err is or wraps a *ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
