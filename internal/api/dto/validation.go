package dto

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the struct tags of a request and returns the failing
// fields keyed by their lower-cased name.
func Validate(req any) (map[string]any, bool) {
	err := validate.Struct(req)
	if err == nil {
		return nil, true
	}
	details := map[string]any{}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			details[strings.ToLower(fe.Field())] = fe.Tag()
		}
	} else {
		details["request"] = err.Error()
	}
	return details, false
}
