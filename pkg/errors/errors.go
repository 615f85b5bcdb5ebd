// Package errors provides structured error handling for Coffer.
// It defines sentinel errors, exit codes, and helpers for adding
// context, details, and suggestions to errors.
//
//nolint:revive // Package name intentionally shadows stdlib for domain-specific error handling
package errors

import (
	"errors"
	"fmt"
	"sort"
)

// Exit codes returned by the coffer binary.
const (
	ExitSuccess    = 0 // Successful execution
	ExitGeneral    = 1 // General/unknown error
	ExitInput      = 2 // Invalid input
	ExitAuth       = 3 // Authentication failed
	ExitNotFound   = 4 // Resource not found
	ExitPermission = 5 // Permission denied or insufficient balance
	ExitChain      = 6 // Transaction rejected, reverted or timed out
)

// CofferError is the structured error type for Coffer.
type CofferError struct {
	Code       string            // Machine-readable error code
	Message    string            // Human-readable message
	Details    map[string]string // Additional context
	Suggestion string            // Actionable suggestion for user
	Cause      error             // Underlying error
	ExitCode   int               // Exit code for CLI
}

func (e *CofferError) Error() string {
	msg := e.Message

	// Include details in error message (sorted for deterministic output)
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			msg = fmt.Sprintf("%s (%s: %s)", msg, k, e.Details[k])
		}
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *CofferError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for CofferError.
func (e *CofferError) Is(target error) bool {
	var t *CofferError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Sentinel errors.
var (
	ErrGeneral = &CofferError{
		Code:     "GENERAL_ERROR",
		Message:  "an error occurred",
		ExitCode: ExitGeneral,
	}

	ErrInvalidInput = &CofferError{
		Code:     "INVALID_INPUT",
		Message:  "invalid input",
		ExitCode: ExitInput,
	}

	ErrAuthentication = &CofferError{
		Code:     "AUTHENTICATION_FAILED",
		Message:  "authentication failed",
		ExitCode: ExitAuth,
	}

	ErrNotFound = &CofferError{
		Code:     "NOT_FOUND",
		Message:  "resource not found",
		ExitCode: ExitNotFound,
	}

	// Amount errors.
	ErrInvalidAmount = &CofferError{
		Code:     "INVALID_AMOUNT",
		Message:  "invalid amount",
		ExitCode: ExitInput,
	}

	ErrInsufficientBalance = &CofferError{
		Code:     "INSUFFICIENT_BALANCE",
		Message:  "amount exceeds bank balance",
		ExitCode: ExitPermission,
	}

	// Transaction lifecycle errors.
	ErrPreparationFailed = &CofferError{
		Code:     "PREPARATION_FAILED",
		Message:  "transaction preparation failed",
		ExitCode: ExitChain,
	}

	ErrNotEnabled = &CofferError{
		Code:     "TX_NOT_ENABLED",
		Message:  "no prepared transaction to submit",
		ExitCode: ExitInput,
	}

	ErrTxInFlight = &CofferError{
		Code:     "TX_IN_FLIGHT",
		Message:  "a transaction of this kind is already in flight",
		ExitCode: ExitInput,
	}

	ErrTxRejected = &CofferError{
		Code:     "TX_REJECTED",
		Message:  "transaction rejected by network",
		ExitCode: ExitChain,
	}

	ErrConfirmationFailed = &CofferError{
		Code:     "CONFIRMATION_FAILED",
		Message:  "transaction failed on-chain",
		ExitCode: ExitChain,
	}

	ErrTimeout = &CofferError{
		Code:     "TIMEOUT",
		Message:  "operation timed out",
		ExitCode: ExitChain,
	}

	ErrNotConnected = &CofferError{
		Code:     "NOT_CONNECTED",
		Message:  "no account connected",
		ExitCode: ExitInput,
	}

	ErrSuperseded = &CofferError{
		Code:     "SUPERSEDED",
		Message:  "result superseded by a newer request",
		ExitCode: ExitGeneral,
	}

	// Chain-specific errors.
	ErrInvalidAddress = &CofferError{
		Code:     "INVALID_ADDRESS",
		Message:  "invalid address format",
		ExitCode: ExitInput,
	}

	ErrInvalidChecksum = &CofferError{
		Code:     "INVALID_CHECKSUM",
		Message:  "invalid address checksum",
		ExitCode: ExitInput,
	}

	ErrInvalidKind = &CofferError{
		Code:     "INVALID_KIND",
		Message:  "unknown transaction kind",
		ExitCode: ExitInput,
	}

	ErrInvalidGasSpeed = &CofferError{
		Code:     "INVALID_GAS_SPEED",
		Message:  "invalid gas speed",
		ExitCode: ExitInput,
	}

	ErrNetworkError = &CofferError{
		Code:     "NETWORK_ERROR",
		Message:  "network communication failed",
		ExitCode: ExitGeneral,
	}

	// Wallet errors.
	ErrWalletNotFound = &CofferError{
		Code:     "WALLET_NOT_FOUND",
		Message:  "keystore not found",
		ExitCode: ExitNotFound,
	}

	ErrWalletExists = &CofferError{
		Code:     "WALLET_EXISTS",
		Message:  "keystore already exists",
		ExitCode: ExitInput,
	}

	ErrInvalidMnemonic = &CofferError{
		Code:     "INVALID_MNEMONIC",
		Message:  "invalid mnemonic phrase",
		ExitCode: ExitInput,
	}

	ErrDecryptionFailed = &CofferError{
		Code:     "DECRYPTION_FAILED",
		Message:  "decryption failed - wrong password or corrupted file",
		ExitCode: ExitAuth,
	}

	// Config errors.
	ErrConfigNotFound = &CofferError{
		Code:     "CONFIG_NOT_FOUND",
		Message:  "configuration file not found",
		ExitCode: ExitNotFound,
	}

	ErrConfigInvalid = &CofferError{
		Code:     "CONFIG_INVALID",
		Message:  "configuration is invalid",
		ExitCode: ExitInput,
	}
)

// New creates a new CofferError with the given code and message.
func New(code, message string) *CofferError {
	return &CofferError{
		Code:     code,
		Message:  message,
		ExitCode: ExitGeneral,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	msg := fmt.Sprintf(format, args...)

	var ce *CofferError
	if errors.As(err, &ce) {
		return &CofferError{
			Code:       ce.Code,
			Message:    fmt.Sprintf("%s: %s", msg, ce.Message),
			Details:    ce.Details,
			Suggestion: ce.Suggestion,
			Cause:      err,
			ExitCode:   ce.ExitCode,
		}
	}

	return &CofferError{
		Code:     "GENERAL_ERROR",
		Message:  msg,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithCause returns a copy of the sentinel carrying cause as its underlying error.
// The result matches the sentinel with errors.Is and exposes cause's message.
func WithCause(sentinel *CofferError, cause error) error {
	return &CofferError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		Details:    sentinel.Details,
		Suggestion: sentinel.Suggestion,
		Cause:      cause,
		ExitCode:   sentinel.ExitCode,
	}
}

// WithDetails adds details to an error.
func WithDetails(err error, details map[string]string) error {
	if err == nil {
		return nil
	}

	var ce *CofferError
	if errors.As(err, &ce) {
		return &CofferError{
			Code:       ce.Code,
			Message:    ce.Message,
			Details:    details,
			Suggestion: ce.Suggestion,
			Cause:      ce.Cause,
			ExitCode:   ce.ExitCode,
		}
	}

	return &CofferError{
		Code:     "GENERAL_ERROR",
		Message:  err.Error(),
		Details:  details,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithSuggestion adds a suggestion to an error.
func WithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}

	var ce *CofferError
	if errors.As(err, &ce) {
		return &CofferError{
			Code:       ce.Code,
			Message:    ce.Message,
			Details:    ce.Details,
			Suggestion: suggestion,
			Cause:      ce.Cause,
			ExitCode:   ce.ExitCode,
		}
	}

	return &CofferError{
		Code:       "GENERAL_ERROR",
		Message:    err.Error(),
		Suggestion: suggestion,
		Cause:      err,
		ExitCode:   ExitGeneral,
	}
}

// ExitCode returns the appropriate exit code for an error.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var ce *CofferError
	if errors.As(err, &ce) {
		return ce.ExitCode
	}

	return ExitGeneral
}

// Code returns the error code for an error.
func Code(err error) string {
	var ce *CofferError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return "GENERAL_ERROR"
}

// Is wraps errors.Is for convenience.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience.
func As(err error, target any) bool {
	return errors.As(err, target)
}
