package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches another *AppError by code so errors.Is works with the constructors below.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// CodeOf returns the AppError code carried by err, or "" when err is not an AppError.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

const (
	CodeNotFound            = "LED_404"
	CodeNotAuthorized       = "LED_403"
	CodeInvalidState        = "LED_409"
	CodeInsufficientBalance = "LED_001"
	CodeLimitExceeded       = "LED_002"
	CodeAmountMismatch      = "LED_003"
	CodeAlreadyPaid         = "LED_004"
	CodeValidation          = "LED_400"
	CodeGateway             = "LED_502"
	CodeAlreadyProcessed    = "LED_208"
	CodeInternal            = "SYS_001"
	CodeUnauthenticated     = "AUTH_001"
	CodeInvalidSignature    = "AUTH_002"
	CodeRateLimited         = "RATE_001"
)

// ---- Ledger (LED) ----

func ErrNotFound(entity string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrNotAuthorized() *AppError {
	return New(CodeNotAuthorized, "Not authorized for this resource", http.StatusForbidden)
}

func ErrInvalidState(message string) *AppError {
	return New(CodeInvalidState, message, http.StatusConflict)
}

func ErrInsufficientBalance() *AppError {
	return New(CodeInsufficientBalance, "Insufficient balance in wallet", http.StatusPaymentRequired)
}

func ErrLimitExceeded(period string) *AppError {
	return New(CodeLimitExceeded, fmt.Sprintf("%s limit exceeded", period), http.StatusUnprocessableEntity)
}

func ErrAmountMismatch() *AppError {
	return New(CodeAmountMismatch, "Amount does not match booking total", http.StatusUnprocessableEntity)
}

func ErrAlreadyPaid() *AppError {
	return New(CodeAlreadyPaid, "Booking is already paid", http.StatusConflict)
}

func ErrAlreadyProcessed() *AppError {
	return New(CodeAlreadyProcessed, "Already processed", http.StatusOK)
}

// Validation returns a LED_400 validation error.
func Validation(message string) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest)
}

// ErrGateway wraps a payment or payout rail failure.
func ErrGateway(err error) *AppError {
	return Wrap(CodeGateway, "Payment gateway error", http.StatusBadGateway, err)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New(CodeUnauthenticated, "Invalid or expired token", http.StatusUnauthorized)
}

func ErrInvalidSignature() *AppError {
	return New(CodeInvalidSignature, "Invalid signature", http.StatusUnauthorized)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New(CodeRateLimited, "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap(CodeInternal, "Internal database error", http.StatusInternalServerError, err)
}

func ErrEncryptionFailure(err error) *AppError {
	return Wrap("SYS_003", "Encryption service failure", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "Internal server error", http.StatusInternalServerError, err)
}
