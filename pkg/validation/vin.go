package validation

import (
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// VINs are 17 characters, digits and uppercase letters excluding I, O and Q.
var vinPattern = regexp.MustCompile(`^[A-HJ-NPR-Z0-9]{17}$`)

// ValidVIN reports whether s is a well-formed vehicle identification number
func ValidVIN(s string) bool {
	return vinPattern.MatchString(s)
}

// RegisterCustomValidators registers the `vin` binding tag with gin's validator
func RegisterCustomValidators() error {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		return v.RegisterValidation("vin", func(fl validator.FieldLevel) bool {
			return ValidVIN(fl.Field().String())
		})
	}
	return nil
}
