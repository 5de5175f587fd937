package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorType string

const (
	// Authorization
	ErrNotAdmin                 ErrorType = "NOT_ADMIN"
	ErrNotAuthorizedModule      ErrorType = "NOT_AUTHORIZED_MODULE"
	ErrCapabilityAlreadyClaimed ErrorType = "CAPABILITY_ALREADY_CLAIMED"
	ErrAuthFailed               ErrorType = "AUTH_FAILED"

	// Validation
	ErrInvalidAmount     ErrorType = "INVALID_AMOUNT"
	ErrInvalidLimits     ErrorType = "INVALID_LIMITS"
	ErrGameNotRegistered ErrorType = "GAME_NOT_REGISTERED"
	ErrAlreadyRegistered ErrorType = "ALREADY_REGISTERED"
	ErrInvalidRequest    ErrorType = "INVALID_REQUEST"

	// Liquidity
	ErrInsufficientTreasuryForPayout ErrorType = "INSUFFICIENT_TREASURY_FOR_PAYOUT"
	ErrInsufficientTreasury          ErrorType = "INSUFFICIENT_TREASURY"
	ErrInsufficientBalance           ErrorType = "INSUFFICIENT_BALANCE"

	// Consistency
	ErrBetAlreadySettled     ErrorType = "BET_ALREADY_SETTLED"
	ErrInvalidSettlement     ErrorType = "INVALID_SETTLEMENT"
	ErrPayoutExceedsExpected ErrorType = "PAYOUT_EXCEEDS_EXPECTED"
	ErrGameHasOpenBets       ErrorType = "GAME_HAS_OPEN_BETS"

	ErrReadOnly ErrorType = "READ_ONLY"
	ErrNotFound ErrorType = "NOT_FOUND"
	ErrInternal ErrorType = "INTERNAL_ERROR"
)

// Category groups error types by how a caller is expected to react.
type Category string

const (
	CategoryAuthorization Category = "authorization"
	CategoryValidation    Category = "validation"
	CategoryLiquidity     Category = "liquidity"
	CategoryConsistency   Category = "consistency"
	CategorySystem        Category = "system"
)

// AppError is the standard error struct for the application
type AppError struct {
	Type       ErrorType `json:"code"`
	Message    string    `json:"message"`
	Suggestion string    `json:"suggestion,omitempty"`
	HTTPStatus int       `json:"-"`
	Cause      error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) Category() Category {
	return CategoryOf(e.Type)
}

func New(errType ErrorType, msg string, cause error) *AppError {
	return &AppError{
		Type:       errType,
		Message:    msg,
		Cause:      cause,
		HTTPStatus: mapTypeToStatus(errType),
		Suggestion: mapTypeToSuggestion(errType),
	}
}

func Newf(errType ErrorType, format string, args ...any) *AppError {
	return New(errType, fmt.Sprintf(format, args...), nil)
}

func NewInvalidRequest(msg string) *AppError {
	return New(ErrInvalidRequest, msg, nil)
}

func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return New(ErrInternal, err.Error(), err)
}

// IsType reports whether any error in err's chain is an AppError of type t.
func IsType(err error, t ErrorType) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Type == t
}

func CategoryOf(t ErrorType) Category {
	switch t {
	case ErrNotAdmin, ErrNotAuthorizedModule, ErrCapabilityAlreadyClaimed, ErrAuthFailed:
		return CategoryAuthorization
	case ErrInvalidAmount, ErrInvalidLimits, ErrGameNotRegistered, ErrAlreadyRegistered, ErrInvalidRequest:
		return CategoryValidation
	case ErrInsufficientTreasuryForPayout, ErrInsufficientTreasury, ErrInsufficientBalance:
		return CategoryLiquidity
	case ErrBetAlreadySettled, ErrInvalidSettlement, ErrPayoutExceedsExpected, ErrGameHasOpenBets:
		return CategoryConsistency
	default:
		return CategorySystem
	}
}

func mapTypeToStatus(t ErrorType) int {
	switch t {
	case ErrInvalidAmount, ErrInvalidLimits, ErrInvalidRequest:
		return http.StatusBadRequest
	case ErrAuthFailed:
		return http.StatusUnauthorized
	case ErrNotAdmin, ErrNotAuthorizedModule:
		return http.StatusForbidden
	case ErrGameNotRegistered, ErrNotFound:
		return http.StatusNotFound
	case ErrAlreadyRegistered, ErrCapabilityAlreadyClaimed, ErrBetAlreadySettled, ErrGameHasOpenBets:
		return http.StatusConflict
	case ErrInvalidSettlement, ErrPayoutExceedsExpected:
		return http.StatusUnprocessableEntity
	case ErrInsufficientTreasuryForPayout, ErrInsufficientTreasury, ErrInsufficientBalance:
		return http.StatusPaymentRequired
	case ErrReadOnly:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func mapTypeToSuggestion(t ErrorType) string {
	switch t {
	case ErrInvalidAmount:
		return "Check the wager against the game's bet limits."
	case ErrInsufficientTreasuryForPayout:
		return "Lower the stake or the expected payout."
	case ErrBetAlreadySettled, ErrInvalidSettlement, ErrPayoutExceedsExpected:
		return "The calling game has a settlement bug; do not retry."
	case ErrAuthFailed, ErrNotAuthorizedModule:
		return "Check the capability token and module identity."
	case ErrReadOnly:
		return "Wait for the treasury to leave read-only mode."
	default:
		return ""
	}
}
