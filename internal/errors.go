package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound      ErrorType = "NOT_FOUND"
	ErrorTypeUnauthorized  ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden     ErrorType = "FORBIDDEN"
	ErrorTypeConflict      ErrorType = "CONFLICT"
	ErrorTypeInternal      ErrorType = "INTERNAL_ERROR"
	ErrorTypeExternal      ErrorType = "EXTERNAL_ERROR"
	ErrorTypeConfiguration ErrorType = "CONFIGURATION_ERROR"
)

type ErrorCode string

const (
	ErrCodeValidationFailed    ErrorCode = "VALIDATION_FAILED"
	ErrCodeRequired            ErrorCode = "REQUIRED"
	ErrCodeTooShort            ErrorCode = "TOO_SHORT"
	ErrCodeTooLong             ErrorCode = "TOO_LONG"
	ErrCodeInvalidFormat       ErrorCode = "INVALID_FORMAT"
	ErrCodeInvalidEmail        ErrorCode = "INVALID_EMAIL"
	ErrCodeInvalidAmount       ErrorCode = "INVALID_AMOUNT"
	ErrCodeAmountTooLow        ErrorCode = "AMOUNT_TOO_LOW"
	ErrCodeAmountTooHigh       ErrorCode = "AMOUNT_TOO_HIGH"
	ErrCodeInvalidChoice       ErrorCode = "INVALID_CHOICE"
	ErrCodeUnsupportedCurrency ErrorCode = "UNSUPPORTED_CURRENCY"

	ErrCodeDonationNotFound   ErrorCode = "DONATION_NOT_FOUND"
	ErrCodeDuplicateReference ErrorCode = "DUPLICATE_REFERENCE"
	ErrCodeStoreMisconfigured ErrorCode = "STORE_MISCONFIGURED"
	ErrCodeDataIntegrity      ErrorCode = "DATA_INTEGRITY"
	ErrCodeInvalidStatus      ErrorCode = "INVALID_STATUS"
	ErrCodePaymentNotSaved    ErrorCode = "PAYMENT_NOT_SAVED"
	ErrCodeSubmissionNotFound ErrorCode = "SUBMISSION_NOT_FOUND"

	ErrCodeGatewayScriptLoad    ErrorCode = "GATEWAY_SCRIPT_LOAD"
	ErrCodeGatewayNotConfigured ErrorCode = "GATEWAY_NOT_CONFIGURED"
	ErrCodeGatewayPopupInit     ErrorCode = "GATEWAY_POPUP_INIT"
	ErrCodeCheckoutNotFound     ErrorCode = "CHECKOUT_NOT_FOUND"
	ErrCodeInvalidSignature     ErrorCode = "INVALID_SIGNATURE"

	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeInvalidToken       ErrorCode = "INVALID_TOKEN"
	ErrCodeTokenExpired       ErrorCode = "TOKEN_EXPIRED"
	ErrCodeInsufficientAccess ErrorCode = "INSUFFICIENT_ACCESS"
)

type AppError struct {
	Type       ErrorType   `json:"type"`
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	StatusCode int         `json:"-"`
	Cause      error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok && len(validationErrors.Errors) > 0 {
			return validationErrors.Errors[0].Message
		}
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) GetDetailedMessage() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok && len(validationErrors.Errors) > 0 {
			messages := make([]string, len(validationErrors.Errors))
			for i, err := range validationErrors.Errors {
				messages[i] = err.Message
			}
			return strings.Join(messages, "; ")
		}
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches on type and code so sentinel values survive WithCause copies.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// WithCause returns a copy, sentinels are shared.
func (e *AppError) WithCause(cause error) *AppError {
	cp := *e
	cp.Cause = cause
	return &cp
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

func (e *AppError) WithMessage(message string) *AppError {
	cp := *e
	cp.Message = message
	return &cp
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

// Field returns the first message recorded for field, or "".
func (v ValidationErrors) Field(field string) string {
	for _, e := range v.Errors {
		if e.Field == field {
			return e.Message
		}
	}
	return ""
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewValidationFieldError(field, message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       ErrCodeValidationFailed,
		Message:    "Validation failed",
		StatusCode: http.StatusBadRequest,
		Details: ValidationErrors{
			Errors: []ValidationError{
				{Field: field, Message: message, Code: string(code)},
			},
		},
	}
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

func NewUnauthorizedError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func NewForbiddenError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeForbidden,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

func NewConflictError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func NewExternalError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeExternal,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadGateway,
	}
}

func NewConfigurationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeConfiguration,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusServiceUnavailable,
	}
}

var (
	ErrDonationNotFound   = NewNotFoundError("Donation not found", ErrCodeDonationNotFound)
	ErrDuplicateReference = NewConflictError("A donation with this reference already exists", ErrCodeDuplicateReference)
	ErrStoreMisconfigured = NewConfigurationError("Donation store is not configured correctly", ErrCodeStoreMisconfigured)
	ErrDataIntegrity      = NewValidationError("Invalid reference to related data", ErrCodeDataIntegrity)
	ErrInvalidStatus      = NewValidationError("Invalid donation status", ErrCodeInvalidStatus)
	ErrSubmissionNotFound = NewNotFoundError("Submission not found", ErrCodeSubmissionNotFound)
	ErrPaymentNotSaved    = &AppError{
		Type:       ErrorTypeInternal,
		Code:       ErrCodePaymentNotSaved,
		Message:    "Payment succeeded but could not be saved. Please contact support.",
		StatusCode: http.StatusInternalServerError,
	}

	ErrUnsupportedCurrency = NewConfigurationError("Unsupported currency", ErrCodeUnsupportedCurrency)

	ErrGatewayScriptLoad    = NewExternalError("Failed to load payment script. Check your internet connection or disable any ad blockers, then try again.", ErrCodeGatewayScriptLoad)
	ErrGatewayNotConfigured = NewConfigurationError("Payment is not configured. Please contact support.", ErrCodeGatewayNotConfigured)
	ErrGatewayPopupInit     = NewExternalError("Could not open the payment window. Please try again.", ErrCodeGatewayPopupInit)
	ErrCheckoutNotFound     = NewNotFoundError("No pending checkout for this reference", ErrCodeCheckoutNotFound)
	ErrInvalidSignature     = NewUnauthorizedError("Invalid webhook signature", ErrCodeInvalidSignature)

	ErrInvalidCredentials = NewUnauthorizedError("Invalid email or password", ErrCodeInvalidCredentials)
	ErrInvalidToken       = NewUnauthorizedError("Invalid token", ErrCodeInvalidToken)
	ErrTokenExpired       = NewUnauthorizedError("Token has expired", ErrCodeTokenExpired)
	ErrInsufficientAccess = NewForbiddenError("Insufficient permissions", ErrCodeInsufficientAccess)
)

// IsAppError unwraps err until it finds an *AppError.
func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

type Response struct {
	Error *AppError `json:"error"`
}

func (e *AppError) ToHTTPResponse() (int, interface{}) {
	return e.StatusCode, Response{Error: e}
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    ErrorType   `json:"type"`
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
	}{
		Type:    e.Type,
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	})
}
