package errors

import (
	"errors"
	"net/http"
)

// Kind groups core errors by the way the boundary has to react to them.
// Anything that is not an *Error (store failures, bugs) is internal.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindUnauthorized
	KindForbidden
	KindExpired
	KindAlreadyInState
	KindDependencyFailure
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindExpired:
		return "expired"
	case KindAlreadyInState:
		return "already_in_state"
	case KindDependencyFailure:
		return "dependency_failure"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "internal"
	}
}

// StatusCode is the HTTP status the transport layer answers with.
func (k Kind) StatusCode() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindAlreadyInState:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindExpired:
		return http.StatusGone
	case KindDependencyFailure:
		return http.StatusBadGateway
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is the only error type the core hands to the boundary.
// Code names the precise reason inside a kind, Message is safe to show to clients.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors by code so sentinel values can be compared with errors.Is
// even after WithMessage or Wrap produced a copy.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code == "" {
		return e.Kind == t.Kind
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

func (e *Error) StatusCode() int {
	return e.Kind.StatusCode()
}

// WithMessage returns a copy of e carrying a different client message.
func (e *Error) WithMessage(message string) *Error {
	c := *e
	c.Message = message
	return &c
}

// Wrap returns a copy of e with cause attached.
func (e *Error) Wrap(cause error) *Error {
	c := *e
	c.Err = cause
	return &c
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func IsNotFound(err error) bool {
	return IsKind(err, KindNotFound)
}

func Validation(message string) *Error {
	return New(KindValidation, "VALIDATION", message)
}

func NotFound(message string) *Error {
	return New(KindNotFound, "NOT_FOUND", message)
}

func Conflict(message string) *Error {
	return New(KindConflict, "CONFLICT", message)
}

var (
	ErrIdentityUnresolvable = New(KindUnauthorized, "IDENTITY_UNRESOLVABLE", "Authorization is required")
	ErrInvalidToken         = New(KindUnauthorized, "INVALID_TOKEN", "Invalid token")
	ErrExpired              = New(KindUnauthorized, "EXPIRED", "Token has expired")
	ErrNotRegistered        = New(KindUnauthorized, "NOT_REGISTERED", "Account is not registered")
	ErrAccountInactive      = New(KindForbidden, "ACCOUNT_INACTIVE", "Account is inactive or suspended")
	ErrNotLoggedIn          = New(KindUnauthorized, "NOT_LOGGED_IN", "You are not logged in")
	ErrTokenExpired         = New(KindUnauthorized, "TOKEN_EXPIRED", "Expired token, please login again")
	ErrEmailNotConfirmed    = New(KindForbidden, "EMAIL_NOT_CONFIRMED", "You must activate your email")
	ErrAccountSuspended     = New(KindForbidden, "ACCOUNT_SUSPENDED", "Your account is suspended or removed, contact support for more information")
	ErrForbidden            = New(KindForbidden, "FORBIDDEN", "You aren't authorized to take this action")

	ErrInvalidCredentials = New(KindUnauthorized, "INVALID_CREDENTIALS", "Invalid credentials")
	ErrAccountNotFound    = New(KindNotFound, "ACCOUNT_NOT_FOUND", "Account not found")
	ErrEmailTaken         = New(KindConflict, "EMAIL_TAKEN", "Email already exists")
	ErrUsernameTaken      = New(KindConflict, "USERNAME_TAKEN", "Username already exists")
	ErrAlreadyConfirmed   = New(KindConflict, "ALREADY_CONFIRMED", "Your account is already confirmed")
	ErrSamePassword       = New(KindValidation, "SAME_PASSWORD", "New password can't be old password")
	ErrInvalidOTP         = New(KindUnauthorized, "INVALID_OTP", "Invalid OTP code")
	ErrOTPExpired         = New(KindExpired, "OTP_EXPIRED", "OTP code has expired")
	ErrRecoveryExpired    = New(KindExpired, "RECOVERY_EXPIRED", "Recovery period has expired")

	ErrAlreadyBlocked    = New(KindAlreadyInState, "ALREADY_BLOCKED", "User is already blocked")
	ErrNotBlocked        = New(KindAlreadyInState, "NOT_BLOCKED", "User is already not blocked")
	ErrCannotBlockAdmin  = New(KindForbidden, "ADMIN_IMMUNE", "You can't block an admin")
	ErrAlreadyDeleted    = New(KindAlreadyInState, "ALREADY_DELETED", "User account is already deactivated")
	ErrNotDeleted        = New(KindAlreadyInState, "NOT_DELETED", "Account is already active")
	ErrNotificationFails = New(KindDependencyFailure, "NOTIFICATION_FAILED", "Failed to send notification")
	ErrRateLimited       = New(KindRateLimited, "RATE_LIMITED", "Rate limit exceeded, try again later")

	ErrSelfFollow        = New(KindValidation, "SELF_FOLLOW", "You cannot send a follow request to yourself")
	ErrDuplicateFollow   = New(KindConflict, "DUPLICATE_FOLLOW", "Follow request has already been sent to this user")
	ErrFollowRequestGone = New(KindNotFound, "FOLLOW_REQUEST_NOT_FOUND", "Follow request not found")
)
