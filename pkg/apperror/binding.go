package apperror

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// FromBinding turns a gin binding failure into a ValidationError listing the failed rule
// per field.
func FromBinding(err error) *Error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]any, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		return Validation("Datos inválidos", map[string]any{"fields": fields})
	}
	return Validation("Datos inválidos", nil)
}
