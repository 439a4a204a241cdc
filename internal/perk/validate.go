package perk

import (
	"errors"
	"fmt"
	"reflect"

	playground "github.com/go-playground/validator/v10"

	"github.com/kalambet/techperks/internal/validator"
)

// ErrInvalid marks a perk or request that failed validation.
var ErrInvalid = errors.New("invalid perk")

var validate = newValidator()

func newValidator() *playground.Validate {
	v := validator.New()
	// Dates validate as their time value so "required" rejects the zero date.
	v.RegisterCustomTypeFunc(func(f reflect.Value) any {
		d, ok := f.Interface().(Date)
		if !ok || d.IsZero() {
			return nil
		}
		return d.Time()
	}, Date{})
	return v
}

// Validate checks the required fields and the status enum.
func Validate(p Perk) error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalid, validator.Describe(err))
	}
	return nil
}
