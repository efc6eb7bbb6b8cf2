package enroll

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEngineNotReady is returned when an Engine method is called before
	// the required collaborators were wired through [Builder.Build].
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrInvalidPhoneNumber rejects a phone number that does not match the
	// configured pattern or that the network refused.
	ErrInvalidPhoneNumber = errors.New("invalid phone number")
	// ErrInvalidCode rejects a one-time code the network did not accept.
	ErrInvalidCode = errors.New("invalid login code")
	// ErrCodeExpired rejects a one-time code submitted after its validity
	// window.
	ErrCodeExpired = errors.New("login code expired")
	// ErrEmptyCode rejects an empty one-time code.
	ErrEmptyCode = errors.New("empty login code")
	// ErrSecondFactorRequired indicates the account has two-step
	// verification enabled and a password must be submitted next.
	ErrSecondFactorRequired = errors.New("second factor required")
	// ErrWrongSecondFactor rejects an incorrect two-step password. The
	// attempt survives until Login.MaxPasswordAttempts is exhausted.
	ErrWrongSecondFactor = errors.New("wrong second factor password")
	// ErrSecondFactorAttemptsExceeded terminates an attempt after too many
	// wrong two-step passwords.
	ErrSecondFactorAttemptsExceeded = errors.New("second factor attempts exceeded")
	// ErrRateLimited indicates the network or the local request budget
	// demands a wait before the next code request. Errors carrying a
	// concrete delay are of type [RateLimitError] and unwrap to this.
	ErrRateLimited = errors.New("rate limited")
	// ErrSessionExpired is returned for an event that has no in-progress
	// login attempt to act on.
	ErrSessionExpired = errors.New("login session expired")
	// ErrUnexpectedEvent is returned for an event that does not match the
	// attempt's current phase. The attempt is left untouched.
	ErrUnexpectedEvent = errors.New("unexpected event for login phase")
	// ErrTransport wraps network-level failures from the account client.
	ErrTransport = errors.New("transport error")
	// ErrCredentialUnavailable is returned when the session credential
	// cannot be exported after an otherwise successful sign-in.
	ErrCredentialUnavailable = errors.New("session credential unavailable")
	// ErrCredentialStoreUnavailable wraps durable-store failures during
	// finalization.
	ErrCredentialStoreUnavailable = errors.New("credential store unavailable")
	// ErrRateLimitBackend wraps Redis failures in the request limiter.
	ErrRateLimitBackend = errors.New("rate limit backend unavailable")
	// ErrAccountNotFound is returned when no stored credential matches the
	// requested owner and phone number.
	ErrAccountNotFound = errors.New("account not found")
	// ErrCodeNotFound is returned when no login code is present in the
	// account's recent service messages.
	ErrCodeNotFound = errors.New("no login code found")
)

// RateLimitError carries the wait demanded by the network or by the local
// request budget. It unwraps to [ErrRateLimited].
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: retry after %s", e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// RetryAfter extracts the wait from a rate-limit error chain. It returns
// zero when err carries no delay.
func RetryAfter(err error) time.Duration {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle.RetryAfter
	}
	return 0
}

// HumanMessage maps an Engine error to a message suitable for the chat UI.
// Unknown errors map to a generic failure line so internal details never
// leak to end users.
func HumanMessage(err error) string {
	switch {
	case err == nil:
		return "OK"
	case errors.Is(err, ErrInvalidPhoneNumber):
		return "Invalid phone number. Send it in international format, e.g. +15551234567."
	case errors.Is(err, ErrEmptyCode):
		return "The code was empty. Send the login code you received."
	case errors.Is(err, ErrInvalidCode):
		return "That code is not valid. Start the login again."
	case errors.Is(err, ErrCodeExpired):
		return "That code has expired. Start the login again."
	case errors.Is(err, ErrSecondFactorRequired):
		return "Two-step verification is enabled. Send the account password."
	case errors.Is(err, ErrWrongSecondFactor):
		return "Wrong password. Try again."
	case errors.Is(err, ErrSecondFactorAttemptsExceeded):
		return "Too many wrong passwords. Start the login again."
	case errors.Is(err, ErrRateLimited):
		if wait := RetryAfter(err); wait > 0 {
			return fmt.Sprintf("Too many requests. Wait %d seconds and try again.", int(wait.Seconds()))
		}
		return "Too many requests. Try again later."
	case errors.Is(err, ErrSessionExpired):
		return "Login session expired. Start again."
	case errors.Is(err, ErrUnexpectedEvent):
		return "That was not what the login expected. Follow the prompts."
	case errors.Is(err, ErrAccountNotFound):
		return "Account not found."
	case errors.Is(err, ErrCodeNotFound):
		return "No login code found in the service chat yet."
	default:
		return "Something went wrong. Try again."
	}
}
