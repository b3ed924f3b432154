// Package apierrors provides structured API error codes and responses.
// All codes are namespaced (e.g., "core:forbidden", "permits:park_in_use").
package apierrors

import "net/http"

// Core error codes.
const (
	// Authentication & authorization
	CodeUnauthorized = "core:unauthorized"
	CodeForbidden    = "core:forbidden"
	CodeInvalidToken = "core:invalid_token"
	CodeTokenExpired = "core:token_expired"

	// Request errors
	CodeInvalidRequest   = "core:invalid_request"
	CodeValidationFailed = "core:validation_failed"
	CodeInvalidID        = "core:invalid_id"

	// Resource errors
	CodeNotFound = "core:not_found"
	CodeConflict = "core:conflict"

	// Server errors
	CodeInternalError      = "core:internal_error"
	CodeServiceUnavailable = "core:service_unavailable"
	CodeWarmingUp          = "core:warming_up"
	CodeRequestTimeout     = "core:request_timeout"
)

// Permit domain error codes.
const (
	CodeParkInUse         = "permits:park_in_use"
	CodeNotPending        = "permits:application_not_pending"
	CodePaidPending       = "permits:application_paid_pending"
	CodeMissingContact    = "permits:missing_contact_channel"
	CodeInvalidStatus     = "permits:invalid_status"
	CodeInvalidMethod     = "permits:invalid_messaging_method"
	CodeDuplicateNumber   = "permits:duplicate_number"
	CodeInvoiceNotPending = "permits:invoice_not_pending"
)

var registeredErrors = []ErrorCode{
	{Code: CodeUnauthorized, Message: "Authentication required", HTTPStatus: http.StatusUnauthorized},
	{Code: CodeForbidden, Message: "Permission denied", HTTPStatus: http.StatusForbidden},
	{Code: CodeInvalidToken, Message: "Invalid or malformed token", HTTPStatus: http.StatusUnauthorized},
	{Code: CodeTokenExpired, Message: "Token has expired", HTTPStatus: http.StatusUnauthorized},

	{Code: CodeInvalidRequest, Message: "Invalid request body", HTTPStatus: http.StatusBadRequest},
	{Code: CodeValidationFailed, Message: "Request validation failed", HTTPStatus: http.StatusBadRequest},
	{Code: CodeInvalidID, Message: "Invalid ID format", HTTPStatus: http.StatusBadRequest},

	{Code: CodeNotFound, Message: "Resource not found", HTTPStatus: http.StatusNotFound},
	{Code: CodeConflict, Message: "Resource conflict", HTTPStatus: http.StatusConflict},

	{Code: CodeInternalError, Message: "Internal server error", HTTPStatus: http.StatusInternalServerError},
	{Code: CodeServiceUnavailable, Message: "Service temporarily unavailable", HTTPStatus: http.StatusServiceUnavailable},
	{Code: CodeWarmingUp, Message: "Server is warming up, retry shortly", HTTPStatus: http.StatusServiceUnavailable},
	{Code: CodeRequestTimeout, Message: "Request timed out in admission queue", HTTPStatus: http.StatusGatewayTimeout},

	{Code: CodeParkInUse, Message: "Park still owns permits and cannot be deleted", HTTPStatus: http.StatusConflict},
	{Code: CodeNotPending, Message: "Application is not pending", HTTPStatus: http.StatusConflict},
	{Code: CodePaidPending, Message: "Paid pending applications cannot be deleted", HTTPStatus: http.StatusConflict},
	{Code: CodeMissingContact, Message: "Application is missing the required contact channel", HTTPStatus: http.StatusBadRequest},
	{Code: CodeInvalidStatus, Message: "Unknown status value", HTTPStatus: http.StatusBadRequest},
	{Code: CodeInvalidMethod, Message: "Messaging method must be email, sms or both", HTTPStatus: http.StatusBadRequest},
	{Code: CodeDuplicateNumber, Message: "Sequential number collision, retry", HTTPStatus: http.StatusInternalServerError},
	{Code: CodeInvoiceNotPending, Message: "Invoice is not pending", HTTPStatus: http.StatusConflict},
}

func init() {
	for _, e := range registeredErrors {
		Registry.Register(e)
	}
}
