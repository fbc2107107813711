package gatewaysdk

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		// Report fields by their JSON names.
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// validateStruct runs the validate tags on v and returns a map of field
// paths to messages, or nil when v is valid.
func validateStruct(v any) map[string]string {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"_": err.Error()}
	}

	errs := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		errs[fieldPath(fe)] = reason(fe)
	}
	return errs
}

// fieldPath drops the struct name so "RegisterRequest.email" reads "email".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "email":
		return "must be a valid email address"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("at least %s required", fe.Param())
		}
		return fmt.Sprintf("too short (min %s)", fe.Param())
	case "max":
		return fmt.Sprintf("too long (max %s)", fe.Param())
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must not be negative"
	default:
		return "invalid"
	}
}

// Validate checks the signup fields. Returns a map of field names to error
// messages, or nil if all fields are valid.
func (r RegisterRequest) Validate() map[string]string {
	errs := validateStruct(r)
	if r.Role == "client" && r.DriverID != "" {
		errs = with(errs, "driverId", "not allowed for role client")
	}
	if r.Role == "driver" && r.ClientID != "" {
		errs = with(errs, "clientId", "not allowed for role driver")
	}
	return errs
}

func (r LoginRequest) Validate() map[string]string { return validateStruct(r) }

func (r CreateOrderRequest) Validate() map[string]string { return validateStruct(r) }

func (r UpdateOrderStatusRequest) Validate() map[string]string { return validateStruct(r) }

func with(errs map[string]string, field, msg string) map[string]string {
	if errs == nil {
		errs = make(map[string]string)
	}
	errs[field] = msg
	return errs
}
