package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Stable machine-readable codes returned to clients.
const (
	CodeTicketNotFound         = "ERR_TICKET_NOT_FOUND"
	CodeUserNotFound           = "ERR_USER_NOT_FOUND"
	CodeNoRelatedTickets       = "ERR_NO_TICKET_relateds_FOUND"
	CodeMalformedFilter        = "ERR_MALFORMED_FILTER"
	CodeInvalidPagination      = "ERR_INVALID_PAGINATION"
	CodeInvalidParams          = "ERR_INVALID_PARAMS"
	CodeMalformedPartialUpdate = "ERR_MALFORMED_PARTIAL_UPDATE"
	CodeInvalidInput           = "ERR_INVALID_INPUT"
	CodeUpstreamUnavailable    = "ERR_UPSTREAM_UNAVAILABLE"
	CodePersistenceFailure     = "ERR_PERSISTENCE_FAILURE"
	CodeNotFound               = "NOT_FOUND"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeForbidden              = "FORBIDDEN"
	CodeInternal               = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewTicketNotFound(ticketID int64) error {
	return NewDomainError(CodeTicketNotFound, "ticket not found", http.StatusNotFound, map[string]any{"ticketId": ticketID})
}

func NewUserNotFound(userID int64) error {
	return NewDomainError(CodeUserNotFound, "user not found", http.StatusNotFound, map[string]any{"userId": userID})
}

func NewNoRelatedTickets(ticketID int64) error {
	return NewDomainError(CodeNoRelatedTickets, "no related tickets found", http.StatusNotFound, map[string]any{"ticketId": ticketID})
}

// NewMalformedFilter reports a listing parameter that failed to parse.
func NewMalformedFilter(field string, err error) error {
	return &DomainError{
		Code:       CodeMalformedFilter,
		Message:    fmt.Sprintf("malformed filter %q", field),
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"field": field},
		Err:        err,
	}
}

func NewInvalidPagination(value string) error {
	return NewDomainError(CodeInvalidPagination, "invalid page number", http.StatusBadRequest, map[string]any{"pageNumber": value})
}

func NewInvalidParams(message string, details map[string]any) error {
	return NewDomainError(CodeInvalidParams, message, http.StatusBadRequest, details)
}

func NewMalformedPartialUpdate(message string, err error) error {
	return &DomainError{
		Code:       CodeMalformedPartialUpdate,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
	}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeInvalidInput, message, http.StatusBadRequest, details)
}

// NewUpstreamUnavailable wraps a failure of the chat channel collaborator.
func NewUpstreamUnavailable(operation string, err error) error {
	return &DomainError{
		Code:       CodeUpstreamUnavailable,
		Message:    fmt.Sprintf("channel unavailable during %s", operation),
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

// NewPersistenceFailure wraps a storage read or write failure.
func NewPersistenceFailure(err error) error {
	return &DomainError{
		Code:       CodePersistenceFailure,
		Message:    "persistence failure",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return NewNotFound("resource", nil).(*DomainError)
	}
	return NewInternalError(err).(*DomainError)
}

// HasCode reports whether err carries the given DomainError code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		return false
	}
	return domainErr.Code == code
}
