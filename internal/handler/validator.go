package handler

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"primer-server/internal/model"
)

// requestValidator подключает go-playground/validator к echo.
type requestValidator struct {
	validate *validator.Validate
}

// NewRequestValidator создает валидатор тел запросов для echo.
func NewRequestValidator() *requestValidator {
	return &requestValidator{validate: validator.New()}
}

func (v *requestValidator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		return fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
	}
	return nil
}
