package core

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrInvalidConfig is returned by constructors for out-of-range parameters.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrInvalidWeightVector marks a weight outside [0, 1].
	ErrInvalidWeightVector = errors.New("invalid weight vector")
	// ErrDimensionMismatch marks an example whose attribute count differs from the stream's.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrInvalidClass marks a negative class label.
	ErrInvalidClass = errors.New("invalid class label")
	// ErrInvalidAttribute marks a NaN or infinite attribute value.
	ErrInvalidAttribute = errors.New("invalid attribute")
)

var structValidator = sync.OnceValue(func() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
})

// Validate checks the `validate` struct tags of v. Failures wrap ErrInvalidConfig.
func Validate(v any) error {
	if err := structValidator().Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s must satisfy %s=%s (got %v)",
				ErrInvalidConfig, fe.Namespace(), fe.Tag(), fe.Param(), fe.Value())
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}
