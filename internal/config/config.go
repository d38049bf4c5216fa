package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	govalidator "github.com/go-playground/validator/v10"

	"github.com/tuanvumaihuynh/ledger/pkg/validator"
)

// New reads configuration from environment variables, unmarshals them into a struct of
// type T and validates the result. Returns the populated configuration struct or an error.
func New[T any]() (T, error) {
	var cfg T
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	v, err := validator.NewDefaultValidator()
	if err != nil {
		return cfg, fmt.Errorf("create validator: %w", err)
	}

	if err := v.Validate(cfg); err != nil {
		return cfg, fmt.Errorf("validate config: %w", describeValidationErr(err))
	}

	return cfg, nil
}

func describeValidationErr(err error) error {
	var validationErrs govalidator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	msgs := make([]string, 0, len(validationErrs))
	for _, fe := range validationErrs {
		msgs = append(msgs, fmt.Sprintf("%s %s", fe.Namespace(), validator.ValidationErrorMessage(fe)))
	}

	return fmt.Errorf("%s: %w", strings.Join(msgs, "; "), err)
}
