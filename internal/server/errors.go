package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/rentbill/pkg/errs"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type     string            `json:"type"`
	Code     string            `json:"code,omitempty"`
	Message  string            `json:"message"`
	Attempts int               `json:"attempts,omitempty"`
	Errors   []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

// mapError renders the error taxonomy. Internal failures never leak their
// cause to the client.
func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    string(errs.KindInternal),
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    string(errs.KindValidation),
			Code:    "invalid_request",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound, errorPayload{
			Type:    string(errs.KindNotFound),
			Code:    "not_found",
			Message: "not found",
		}
	}

	kind := errs.KindOf(err)
	status := errs.MetadataFor(kind).HTTPStatus
	payload := errorPayload{Type: string(kind)}

	var failed *errs.CreationFailedError
	if errors.As(err, &failed) {
		payload.Code = "invoice_creation_failed"
		payload.Message = "invoice creation failed, retry later"
		payload.Attempts = failed.Attempts
		return status, payload
	}

	var typed *errs.Error
	if !errors.As(err, &typed) || kind == errs.KindInternal {
		payload.Type = string(errs.KindInternal)
		payload.Message = "internal server error"
		return http.StatusInternalServerError, payload
	}

	payload.Code = typed.Code()
	payload.Message = typed.Message()
	if payload.Message == "" {
		payload.Message = string(kind)
	}
	if kind == errs.KindValidation {
		payload.Errors = []ValidationError{{
			Field:   validationField(typed.Code()),
			Code:    typed.Code(),
			Message: payload.Message,
		}}
	}
	return status, payload
}

// classifyErrorForLog feeds the access log.
func classifyErrorForLog(err error) (string, string) {
	if asValidationErrors(err) != nil {
		return string(errs.KindValidation), "invalid_request"
	}
	var typed *errs.Error
	if errors.As(err, &typed) {
		return string(typed.Kind()), typed.Code()
	}
	return string(errs.KindOf(err)), ""
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func validationField(code string) string {
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}
