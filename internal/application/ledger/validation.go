package ledger

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/lexledger/backend/internal/domain/shared"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// inputValidator returns the shared validator. Field names in errors follow the json
// tags, and decimal.Decimal fields compare as numbers so gt/gte/lte tags apply to them.
func inputValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})
		v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
			if d, ok := field.Interface().(decimal.Decimal); ok {
				return d.InexactFloat64()
			}
			return nil
		}, decimal.Decimal{})
		validate = v
	})
	return validate
}

// validateInput checks struct tags and turns failures into an INVALID_INPUT DomainError
// listing each offending field
func validateInput(input any) error {
	err := inputValidator().Struct(input)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return shared.NewDomainErrorf(shared.ErrInvalidInput.Code, "Invalid input: %v", err)
	}

	fields := make(map[string]any, len(validationErrors))
	messages := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		msg := validationMessage(fe)
		fields[fe.Namespace()] = msg
		messages = append(messages, fe.Field()+": "+msg)
	}
	domainErr := shared.NewDomainErrorf(shared.ErrInvalidInput.Code, "Validation failed: %s", strings.Join(messages, "; "))
	domainErr.Details = map[string]any{"fields": fields}
	return domainErr
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "min":
		if e.Kind() == reflect.String {
			return "Must be at least " + e.Param() + " characters"
		}
		return "Must be at least " + e.Param()
	case "max":
		if e.Kind() == reflect.String {
			return "Must be at most " + e.Param() + " characters"
		}
		return "Must be at most " + e.Param()
	case "len":
		return "Must be exactly " + e.Param() + " characters"
	case "oneof":
		return "Must be one of: " + e.Param()
	case "gte":
		return "Must be greater than or equal to " + e.Param()
	case "lte":
		return "Must be less than or equal to " + e.Param()
	case "gt":
		return "Must be greater than " + e.Param()
	case "uppercase":
		return "Must be uppercase"
	case "dive":
		return "Invalid element"
	default:
		return "Invalid value"
	}
}
