package validators

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/movilpay/vendorpay-backend/pkg/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// DecodeJSONBody decodes and validates a JSON request body into dst.
// Unknown fields are rejected so client typos surface as 400s instead of
// silently dropped data.
func DecodeJSONBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "request body is required")
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return pkgerrors.New(pkgerrors.CodeValidation, "request body is required")
		}
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body")
	}

	if err := validate.Struct(dst); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "validation setup error")
		}
		return pkgerrors.New(pkgerrors.CodeValidation, "request validation failed").
			WithDetails(formatValidationErrors(err))
	}

	return nil
}

func formatValidationErrors(err error) map[string]string {
	details := map[string]string{}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		details["body"] = err.Error()
		return details
	}
	for _, fe := range fieldErrs {
		field := fe.Field()
		if field == "" {
			field = strings.ToLower(fe.StructField())
		}
		switch fe.Tag() {
		case "required":
			details[field] = "this field is required"
		case "uuid", "uuid4":
			details[field] = "must be a valid uuid"
		case "gt", "gte", "lt", "lte", "min", "max":
			details[field] = fmt.Sprintf("must satisfy %s=%s", fe.Tag(), fe.Param())
		case "oneof":
			details[field] = fmt.Sprintf("must be one of: %s", fe.Param())
		default:
			details[field] = fmt.Sprintf("failed %s validation", fe.Tag())
		}
	}
	return details
}
