package handler

import (
	"github.com/go-playground/validator/v10"

	"github.com/NachoGeno/kinetix-flow-scheduler-sub001/internal/domain"
)

// RequestValidator adapts go-playground/validator to echo's Validator
// interface.
type RequestValidator struct {
	validate *validator.Validate
}

// NewRequestValidator returns a RequestValidator.
func NewRequestValidator() *RequestValidator {
	return &RequestValidator{validate: validator.New()}
}

// Validate implements echo.Validator.
func (v *RequestValidator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		return domain.Invalid("handler.validate", "Solicitud inválida: "+err.Error())
	}
	return nil
}
