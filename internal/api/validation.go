package api

import (
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("vin", validVIN)
	}
}

// validVIN accepts full or partial VINs: alphanumeric, no I, O or Q. Partial
// VINs show up on early quotes where the dealer only shares the tail.
func validVIN(fl validator.FieldLevel) bool {
	vin := strings.ToUpper(fl.Field().String())
	if vin == "" {
		return false
	}
	for _, r := range vin {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'A' && r <= 'Z':
			if r == 'I' || r == 'O' || r == 'Q' {
				return false
			}
		default:
			return false
		}
	}
	return true
}
