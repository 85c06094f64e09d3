package app

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"

	"taskboard/api/internal/auth"
	"taskboard/api/internal/comments"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

var (
	errUnauthorized = domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
	errNotFound     = domainError(http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	errForbidden    = domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	errServer       = domainError(http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil)
)

// asDomainError classifies err for the response envelope. Validation
// messages are passed through; anything unrecognized is logged and hidden.
func asDomainError(err error) *DomainError {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	switch {
	case isAuthError(err):
		return errUnauthorized
	case errors.Is(err, comments.ErrValidation):
		return domainError(http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	case errors.Is(err, comments.ErrNotFound), errors.Is(err, sql.ErrNoRows):
		return errNotFound
	case errors.Is(err, comments.ErrPermission):
		return errForbidden
	}
	log.Printf("unhandled error: %v", err)
	return errServer
}

func isAuthError(err error) bool {
	return errors.Is(err, comments.ErrAuth) || errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken)
}
