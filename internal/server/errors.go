package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pyrosafe/fieldops/internal/conversion"
	customerdomain "github.com/pyrosafe/fieldops/internal/customer/domain"
	deficiencydomain "github.com/pyrosafe/fieldops/internal/deficiency/domain"
	inspectiondomain "github.com/pyrosafe/fieldops/internal/inspection/domain"
	invoicedomain "github.com/pyrosafe/fieldops/internal/invoice/domain"
	jobdomain "github.com/pyrosafe/fieldops/internal/job/domain"
	"github.com/pyrosafe/fieldops/internal/money"
	quotedomain "github.com/pyrosafe/fieldops/internal/quote/domain"
	"github.com/pyrosafe/fieldops/internal/statemachine"
	"gorm.io/gorm"
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
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal_error")
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

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrInternal):
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, money.ErrInvalidAmount),
		errors.Is(err, customerdomain.ErrInvalidName),
		errors.Is(err, customerdomain.ErrInvalidEmail),
		errors.Is(err, inspectiondomain.ErrInvalidInspectionType),
		errors.Is(err, inspectiondomain.ErrInvalidCustomer),
		errors.Is(err, deficiencydomain.ErrInvalidSeverity),
		errors.Is(err, deficiencydomain.ErrInvalidCategory),
		errors.Is(err, deficiencydomain.ErrInvalidCostRange),
		errors.Is(err, quotedomain.ErrInvalidItemType),
		errors.Is(err, quotedomain.ErrInvalidCustomer),
		errors.Is(err, jobdomain.ErrInvalidJobType),
		errors.Is(err, jobdomain.ErrInvalidPriority),
		errors.Is(err, jobdomain.ErrInvalidCustomer),
		errors.Is(err, invoicedomain.ErrInvalidCustomer):
		return true
	default:
		return false
	}
}

// isConflictError covers every rejection where the document exists but the
// requested move is not legal from its current state.
func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, statemachine.ErrIllegalTransition),
		errors.Is(err, quotedomain.ErrQuoteLocked),
		errors.Is(err, quotedomain.ErrConcurrentModification),
		errors.Is(err, deficiencydomain.ErrAlreadyQuoted),
		errors.Is(err, deficiencydomain.ErrConcurrentModification),
		errors.Is(err, inspectiondomain.ErrCompletedNotDeletable),
		errors.Is(err, inspectiondomain.ErrConcurrentModification),
		errors.Is(err, jobdomain.ErrRestrictedEvent),
		errors.Is(err, jobdomain.ErrAlreadyAssigned),
		errors.Is(err, jobdomain.ErrConcurrentModification),
		errors.Is(err, invoicedomain.ErrAlreadyTerminal),
		errors.Is(err, invoicedomain.ErrNotPayable),
		errors.Is(err, invoicedomain.ErrNotPaid),
		errors.Is(err, invoicedomain.ErrConcurrentModification),
		errors.Is(err, conversion.ErrAlreadyConverted),
		errors.Is(err, conversion.ErrQuoteNotAccepted),
		errors.Is(err, conversion.ErrJobNotCompleted):
		return true
	default:
		return false
	}
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, statemachine.ErrIllegalTransition):
		return err.Error()
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return err.Error()
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, customerdomain.ErrNotFound),
		errors.Is(err, inspectiondomain.ErrNotFound),
		errors.Is(err, deficiencydomain.ErrNotFound),
		errors.Is(err, quotedomain.ErrNotFound),
		errors.Is(err, jobdomain.ErrNotFound),
		errors.Is(err, jobdomain.ErrNotAssigned),
		errors.Is(err, invoicedomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	if errors.Is(err, ErrInvalidRequest) {
		return "invalid_request"
	}
	code := err.Error()
	if idx := strings.LastIndex(code, ": "); idx >= 0 {
		code = code[idx+2:]
	}
	return code
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	default:
		return "invalid value"
	}
}
