// Package validation checks requests and configuration against their
// `validate` struct tags.
package validation

import (
	stdErrors "errors"
	"fmt"

	"github.com/ast-ral/divine/domain/entities"
	"github.com/ast-ral/divine/domain/errors"
	"github.com/go-playground/validator/v10"
)

// HexChunkTag is the tag of the rule accepting one uploaded artifact chunk:
// lowercase hex of even length, at most entities.MaxChunkHexLen characters.
const HexChunkTag = "hexchunk"

// validate is a package-level singleton; building a validator caches struct
// metadata and is expensive.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation(HexChunkTag, isHexChunk); err != nil {
		panic(fmt.Sprintf("register %s: %v", HexChunkTag, err))
	}
	return v
}

func isHexChunk(fl validator.FieldLevel) bool {
	return IsHexChunk(fl.Field().String())
}

// IsHexChunk reports whether s is acceptable as one uploaded chunk.
func IsHexChunk(s string) bool {
	if len(s)%2 != 0 || len(s) > entities.MaxChunkHexLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// Struct validates v. A failed rule is reported as an *errors.ValidationError
// naming the first offending field.
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if stdErrors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &errors.ValidationError{
			Err:   fmt.Errorf("failed %q rule", fe.Tag()),
			Field: fe.Namespace(),
		}
	}
	return &errors.ValidationError{Err: err}
}

// Var validates a single value against tag.
func Var(value any, tag string) error {
	if err := validate.Var(value, tag); err != nil {
		return &errors.ValidationError{Err: err}
	}
	return nil
}
