package apperror

import (
	"errors"
	"net/http"

	"github.com/workflowguard/workflowguard/internal/domain"
)

type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func (e *AppError) Error() string {
	return e.Message
}

var (
	ErrBadRequest      = &AppError{Code: "BAD_REQUEST", Message: "Bad request", Status: http.StatusBadRequest}
	ErrUnauthorized    = &AppError{Code: "UNAUTHORIZED", Message: "Unauthorized", Status: http.StatusUnauthorized}
	ErrForbidden       = &AppError{Code: "FORBIDDEN", Message: "Forbidden", Status: http.StatusForbidden}
	ErrPlanUpgrade     = &AppError{Code: "PLAN_UPGRADE_REQUIRED", Message: "This feature is not available on your plan", Status: http.StatusForbidden}
	ErrTooManyRequests = &AppError{Code: "RATE_LIMITED", Message: "Too many requests", Status: http.StatusTooManyRequests}
	ErrInternalServer  = &AppError{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred", Status: http.StatusInternalServerError}
)

func NewBadRequest(message string) *AppError {
	return &AppError{Code: "BAD_REQUEST", Message: message, Status: http.StatusBadRequest}
}

func NewUnauthorized(message string) *AppError {
	return &AppError{Code: "UNAUTHORIZED", Message: message, Status: http.StatusUnauthorized}
}

// kindStatus maps domain error kinds onto HTTP statuses
var kindStatus = map[domain.ErrorKind]int{
	domain.KindNotFound:     http.StatusNotFound,
	domain.KindConflict:     http.StatusConflict,
	domain.KindInvalidState: http.StatusUnprocessableEntity,
	domain.KindValidation:   http.StatusBadRequest,
}

// MapError converts any error into an AppError. Errors without a domain kind
// become a generic 500 so internal details never reach the client.
func MapError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		if status, ok := kindStatus[domainErr.Kind]; ok {
			return &AppError{Code: domainErr.Code, Message: domainErr.Message, Status: status}
		}
	}

	return ErrInternalServer
}
