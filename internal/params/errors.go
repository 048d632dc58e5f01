package params

import "fmt"

// CountError reports a parameter line with the wrong number of tokens.
type CountError struct {
	Got int
}

func (e *CountError) Error() string {
	return fmt.Sprintf("expected %d or %d parameters, got %d", MinTokens, MaxTokens, e.Got)
}

// Is makes CountError match ErrValidation.
func (e *CountError) Is(target error) bool { return target == ErrValidation }

// Code is used for err_code in handler logs.
func (e *CountError) Code() string { return "PARAMETER_COUNT" }

// FieldError reports the first field that failed to parse or violated its range.
type FieldError struct {
	Field      Field
	Value      string
	Constraint string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s %s (got %q)", e.Field, e.Constraint, e.Value)
}

// Is makes FieldError match ErrValidation.
func (e *FieldError) Is(target error) bool { return target == ErrValidation }

// Code is used for err_code in handler logs.
func (e *FieldError) Code() string { return "FIELD_VALIDATION" }
