package custom_errors

import (
	"errors"
	"fmt"
)

// ValidationError collects every failed check of one input so callers can
// report them together. KindOf classifies it as KindValidation.
type ValidationError struct {
	Errors []error `json:"errors"`
}

// Add records err. A nil err is ignored so results of checks can be added
// without a guard.
func (c *ValidationError) Add(err error) {
	if err == nil {
		return
	}
	c.Errors = append(c.Errors, err)
}

func (c *ValidationError) HasError() bool {
	return len(c.Errors) > 0
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (c *ValidationError) Unwrap() []error {
	return c.Errors
}

func (c *ValidationError) Error() string {
	if len(c.Errors) == 0 {
		return ""
	}
	return fmt.Sprintf("%v", errors.Join(c.Errors...))
}
