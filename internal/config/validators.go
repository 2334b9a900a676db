package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/idelchi/gogen/pkg/key"
)

// XORKeySize is the byte length of an XOR key given on the command line.
const XORKeySize = 16

// Validate checks the configuration against its struct tags and custom rules.
func (c *Config) Validate() error {
	validate, err := newValidator()
	if err != nil {
		return err
	}

	if err := validate.Struct(c); err != nil {
		var invalid validator.ValidationErrors
		if errors.As(err, &invalid) {
			return fmt.Errorf("validating configuration: %w", describe(invalid))
		}

		return fmt.Errorf("validating configuration: %w", err)
	}

	return nil
}

// newValidator returns a validator with the custom "hexkey" rule and
// field names taken from the "label" tag.
func newValidator() (*validator.Validate, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())

	if err := validate.RegisterValidation("hexkey", validateHexKey); err != nil {
		return nil, fmt.Errorf("registering hexkey validation: %w", err)
	}

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		const splitSize = 2

		name := strings.SplitN(fld.Tag.Get("label"), ",", splitSize)[0]
		if name == "-" || name == "" {
			return fld.Name
		}

		return name
	})

	return validate, nil
}

// validateHexKey accepts hex strings decoding to exactly XORKeySize bytes.
func validateHexKey(fl validator.FieldLevel) bool {
	decoded, err := key.FromHex(fl.Field().String())
	if err != nil {
		return false
	}

	return len(decoded) == XORKeySize
}

// describe turns validation failures into a readable message.
func describe(errs validator.ValidationErrors) error {
	messages := make([]string, 0, len(errs))

	for _, fe := range errs {
		switch fe.Tag() {
		case "hexkey":
			messages = append(messages, fmt.Sprintf("%s must be %d hex characters", fe.Field(), 2*XORKeySize))
		case "oneof":
			messages = append(messages, fmt.Sprintf("%s must be one of [%s], got %q", fe.Field(), fe.Param(), fe.Value()))
		case "gt":
			messages = append(messages, fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param()))
		case "gte":
			messages = append(messages, fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param()))
		default:
			messages = append(messages, fmt.Sprintf("%s failed %q validation", fe.Field(), fe.Tag()))
		}
	}

	return errors.New(strings.Join(messages, "; "))
}
