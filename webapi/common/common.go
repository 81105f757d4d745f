// Package common holds the response envelopes and request binding shared by
// the HTTP handlers.
package common

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/amirasaad/giftfund/pkg/domain"
	"github.com/amirasaad/giftfund/pkg/domain/custodial"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

const problemContentType = "application/problem+json"

// Response defines the standard API response structure for success cases.
type Response struct {
	Status  int    `json:"status"`         // HTTP status code
	Message string `json:"message"`        // Human-readable explanation
	Data    any    `json:"data,omitempty"` // Response data
}

// ProblemDetails follows RFC 9457 Problem Details for HTTP APIs, extended with
// a machine-readable code and the offending field.
type ProblemDetails struct {
	Type     string `json:"type,omitempty"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	Code     string `json:"code,omitempty"`
	Field    string `json:"field,omitempty"`
	Errors   any    `json:"errors,omitempty"`
}

// FieldError is one failed validation rule.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// ProblemDetailsJSON writes err as problem details. The status is derived
// from err unless an int is passed in extras; a string in extras becomes the
// detail.
func ProblemDetailsJSON(c *fiber.Ctx, title string, err error, extras ...any) error {
	pd := ProblemDetails{
		Type:     "about:blank",
		Title:    title,
		Status:   ErrorToStatusCode(err),
		Instance: c.OriginalURL(),
	}
	if err != nil {
		pd.Detail = err.Error()
		pd.Code = ErrorCode(err)
	}
	var verr *custodial.ValidationError
	if errors.As(err, &verr) {
		pd.Field = verr.Field
	}
	for _, extra := range extras {
		switch v := extra.(type) {
		case int:
			pd.Status = v
		case string:
			pd.Detail = v
		case []FieldError:
			pd.Errors = v
		}
	}
	return c.Status(pd.Status).JSON(pd, problemContentType)
}

// SuccessResponseJSON writes the standard success envelope.
func SuccessResponseJSON(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(Response{Status: status, Message: message, Data: data})
}

// ErrorToStatusCode maps domain errors to HTTP status codes.
func ErrorToStatusCode(err error) int {
	var (
		fe   *fiber.Error
		pre  *custodial.PreconditionError
		perr *custodial.PlatformError
	)
	switch {
	case err == nil:
		return fiber.StatusInternalServerError
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, domain.ErrValidation):
		return fiber.StatusUnprocessableEntity
	case errors.As(err, &pre):
		return preconditionStatus(pre.Code)
	case errors.Is(err, custodial.ErrBusy):
		return fiber.StatusConflict
	case errors.Is(err, custodial.ErrPlatformUnavailable):
		return fiber.StatusServiceUnavailable
	case errors.As(err, &perr):
		return fiber.StatusBadGateway
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyExists):
		return fiber.StatusConflict
	case errors.Is(err, domain.ErrUnauthorized):
		return fiber.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return fiber.StatusForbidden
	default:
		return fiber.StatusInternalServerError
	}
}

func preconditionStatus(code string) int {
	switch code {
	case custodial.ErrNoAccount.Code:
		return fiber.StatusNotFound
	case custodial.ErrCardExists.Code:
		return fiber.StatusConflict
	case custodial.ErrTestModeOnly.Code:
		return fiber.StatusForbidden
	default:
		return fiber.StatusPreconditionFailed
	}
}

// ErrorCode returns the machine-readable code clients switch on.
func ErrorCode(err error) string {
	var (
		verr *custodial.ValidationError
		pre  *custodial.PreconditionError
		perr *custodial.PlatformError
	)
	switch {
	case errors.As(err, &verr):
		return verr.Code
	case errors.As(err, &pre):
		return pre.Code
	case errors.Is(err, custodial.ErrBusy):
		return "operation_in_progress"
	case errors.Is(err, custodial.ErrPlatformUnavailable):
		return "platform_unavailable"
	case errors.As(err, &perr):
		if perr.Code != "" {
			return perr.Code
		}
		return "platform_error"
	default:
		return ""
	}
}

var validate = newValidator()

// newValidator reports fields by their json names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
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
	return v
}

// BindAndValidate parses the request body and validates it using go-playground/validator.
// A nil result means the problem response is already written; return the
// error as is.
func BindAndValidate[T any](c *fiber.Ctx) (*T, error) {
	var input T
	if err := c.BodyParser(&input); err != nil {
		return nil, ProblemDetailsJSON(c, "Invalid request body", err, fiber.StatusBadRequest)
	}
	return validateInput(c, &input)
}

// BindAndValidateOptional is BindAndValidate for endpoints whose body may be
// omitted entirely.
func BindAndValidateOptional[T any](c *fiber.Ctx) (*T, error) {
	if len(c.Body()) == 0 {
		var input T
		return validateInput(c, &input)
	}
	return BindAndValidate[T](c)
}

func validateInput[T any](c *fiber.Ctx, input *T) (*T, error) {
	if err := validate.Struct(input); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, ProblemDetailsJSON(c, "Validation failed", err, fiber.StatusBadRequest)
		}
		fields := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, FieldError{Field: jsonPath(fe.Namespace()), Rule: fe.Tag(), Param: fe.Param()})
		}
		first := fields[0]
		verr := &custodial.ValidationError{
			Code:    "invalid_" + first.Rule,
			Field:   first.Field,
			Message: fmt.Sprintf("failed on %q", first.Rule),
		}
		return nil, ProblemDetailsJSON(c, "Validation failed", verr, fields)
	}
	return input, nil
}

// jsonPath drops the struct name: "CreateAccountRequest.address.zipCode"
// becomes "address.zipCode".
func jsonPath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}
