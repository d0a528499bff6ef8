package models

import (
	"errors"
	"fmt"
)

// Repository-level errors
var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicateKey = errors.New("duplicate key violation")
)

// ErrorKind names a class of failure surfaced to API clients
type ErrorKind string

const (
	KindPlayerNotFound        ErrorKind = "PlayerNotFoundError"
	KindPropNotFound          ErrorKind = "PropNotFoundError"
	KindInsufficientData      ErrorKind = "InsufficientDataError"
	KindFeatureSchemaMismatch ErrorKind = "FeatureSchemaMismatchError"
	KindModelNotLoaded        ErrorKind = "ModelNotLoadedError"
	KindInvalidDateFormat     ErrorKind = "InvalidDateFormatError"
	KindGenerationTimeout     ErrorKind = "GenerationTimeoutError"
	KindDatabase              ErrorKind = "DatabaseError"
	KindRateLimited           ErrorKind = "RateLimitedError"
	KindValidation            ErrorKind = "ValidationError"
	KindInternal              ErrorKind = "InternalError"
)

// Error is a classified domain error. Two Errors match under errors.Is when
// their kinds are equal, so the Err* sentinels below work as kind probes.
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", e.Op, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on kind
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Kind probes for errors.Is
var (
	ErrPlayerNotFound        = &Error{Kind: KindPlayerNotFound}
	ErrPropNotFound          = &Error{Kind: KindPropNotFound}
	ErrInsufficientData      = &Error{Kind: KindInsufficientData}
	ErrFeatureSchemaMismatch = &Error{Kind: KindFeatureSchemaMismatch}
	ErrModelNotLoaded        = &Error{Kind: KindModelNotLoaded}
	ErrInvalidDateFormat     = &Error{Kind: KindInvalidDateFormat}
	ErrGenerationTimeout     = &Error{Kind: KindGenerationTimeout}
	ErrDatabase              = &Error{Kind: KindDatabase}
	ErrRateLimited           = &Error{Kind: KindRateLimited}
	ErrValidation            = &Error{Kind: KindValidation}
)

// NewPlayerNotFoundError reports a lookup that matched no player
func NewPlayerNotFoundError(name string) error {
	return &Error{Kind: KindPlayerNotFound, Message: fmt.Sprintf("player not found: '%s'", name)}
}

// NewPropNotFoundError reports a missing prop line for a player and date
func NewPropNotFoundError(playerID int64, date string) error {
	return &Error{Kind: KindPropNotFound, Message: fmt.Sprintf("no prop found for player %d on %s", playerID, date)}
}

// NewInsufficientDataError reports that features cannot be built yet
func NewInsufficientDataError(playerID int64, reason string) error {
	return &Error{Kind: KindInsufficientData, Message: fmt.Sprintf("insufficient data for player %d: %s", playerID, reason)}
}

// NewFeatureSchemaMismatchError reports builder output disagreeing with the model's columns
func NewFeatureSchemaMismatchError(expected, got []string) error {
	return &Error{
		Kind:    KindFeatureSchemaMismatch,
		Message: fmt.Sprintf("feature columns mismatch: model expects %v, builder produces %v", expected, got),
	}
}

// NewModelNotLoadedError wraps a model load failure
func NewModelNotLoadedError(err error) error {
	return &Error{Kind: KindModelNotLoaded, Message: "prediction model could not be loaded", Err: err}
}

// NewInvalidDateFormatError reports a date that is not YYYY-MM-DD
func NewInvalidDateFormatError(value string) error {
	return &Error{Kind: KindInvalidDateFormat, Message: fmt.Sprintf("invalid date format: '%s', use YYYY-MM-DD", value)}
}

// NewGenerationTimeoutError reports a waiter that gave up on an in-flight generation
func NewGenerationTimeoutError(propLineID int64) error {
	return &Error{Kind: KindGenerationTimeout, Message: fmt.Sprintf("timed out waiting for prediction of prop line %d", propLineID)}
}

// NewDatabaseError wraps a persistence failure with the operation that failed
func NewDatabaseError(op string, err error) error {
	return &Error{Kind: KindDatabase, Op: op, Message: "database error", Err: err}
}

// NewRateLimitedError reports a request rejected by the route budget
func NewRateLimitedError(route string, limit int64) error {
	return &Error{Kind: KindRateLimited, Message: fmt.Sprintf("rate limit of %d requests exceeded for %s", limit, route)}
}

// NewValidationError reports a malformed request
func NewValidationError(message string) error {
	return &Error{Kind: KindValidation, Message: message}
}

// KindOf returns the kind of a classified error, KindInternal otherwise
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsRetryable reports whether a caller may retry the same request later
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindGenerationTimeout, KindRateLimited, KindDatabase:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether retrying cannot help until new data arrives
func IsTerminal(err error) bool {
	switch KindOf(err) {
	case KindPlayerNotFound, KindPropNotFound, KindInsufficientData:
		return true
	default:
		return false
	}
}
