package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/goclaw/sigmux/pkg/signals"
)

var validate = validator.New()

// environments the app.environment field accepts.
var environments = []string{"development", "staging", "production"}

func init() {
	for tag, fn := range map[string]validator.Func{
		"env":        validEnvironment,
		"signalkind": validSignalKind,
	} {
		if err := validate.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("config: register %q validator: %v", tag, err))
		}
	}
}

// ConfigError describes one rejected configuration field.
type ConfigError struct {
	Field   string
	Message string
	Value   interface{}
}

func (e ConfigError) Error() string {
	return fmt.Sprintf("%s: %s (have %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors aggregates every rejected field so a bad config
// file surfaces all its problems in one run.
type ValidationErrors []ConfigError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "invalid configuration"
	}
	msgs := make([]string, len(e))
	for i, fieldErr := range e {
		msgs[i] = fieldErr.Error()
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}

// ValidateWithDetails checks cfg and converts validator failures into
// per-field ConfigErrors.
func ValidateWithDetails(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	details := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		details = append(details, ConfigError{
			Field:   fe.Namespace(),
			Message: describeFailure(fe),
			Value:   fe.Value(),
		})
	}
	return details
}

func describeFailure(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "value is required"
	case "min":
		return "must be >= " + fe.Param()
	case "max":
		return "must be <= " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "env":
		return "must be one of: " + strings.Join(environments, " ")
	case "signalkind":
		return "unknown signal kind"
	default:
		return fmt.Sprintf("violates %q", fe.Tag())
	}
}

func validEnvironment(fl validator.FieldLevel) bool {
	return slices.Contains(environments, fl.Field().String())
}

// validSignalKind accepts any name the signal bridge can parse.
func validSignalKind(fl validator.FieldLevel) bool {
	_, err := signals.ParseKind(fl.Field().String())
	return err == nil
}
