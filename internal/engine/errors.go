package engine

import "fmt"

type AppError struct {
	Code    string        `json:"code"`
	Status  int           `json:"-"`
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details,omitempty"`
}

type ErrorDetail struct {
	Field   string `json:"field,omitempty"`
	Rule    string `json:"rule,omitempty"`
	Message string `json:"message"`
}

func (e *AppError) Error() string {
	return e.Message
}

type ErrorResponse struct {
	Error *AppError `json:"error"`
}

func NewAppError(code string, status int, msg string) *AppError {
	return &AppError{Code: code, Status: status, Message: msg}
}

func NotFoundError(entity, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Status:  404,
		Message: fmt.Sprintf("%s with id %s not found", entity, id),
	}
}

func UnknownEntityError(name string) *AppError {
	return &AppError{
		Code:    "UNKNOWN_ENTITY",
		Status:  404,
		Message: fmt.Sprintf("Unknown entity: %s", name),
	}
}

func ValidationError(details []ErrorDetail) *AppError {
	return &AppError{
		Code:    "VALIDATION_FAILED",
		Status:  400,
		Message: "Validation failed",
		Details: details,
	}
}

func ConflictError(msg string) *AppError {
	return &AppError{
		Code:    "CONFLICT",
		Status:  409,
		Message: msg,
	}
}

func UnauthorizedError(msg string) *AppError {
	return &AppError{
		Code:    "UNAUTHORIZED",
		Status:  401,
		Message: msg,
	}
}

func ForbiddenError(msg string) *AppError {
	return &AppError{
		Code:    "FORBIDDEN",
		Status:  403,
		Message: msg,
	}
}

// DatabaseUnavailableError covers pool exhaustion, connection failure and
// statement timeouts. The caller may retry; driver detail stays in the log.
func DatabaseUnavailableError() *AppError {
	return &AppError{
		Code:    "DATABASE_UNAVAILABLE",
		Status:  500,
		Message: "Database unavailable, please retry",
	}
}
