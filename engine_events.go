package enroll

import "context"

// PhoneSubmitted starts a login attempt for UserID.
type PhoneSubmitted struct {
	UserID  string
	Phone   string
	Country string
}

// CodeSubmitted carries the one-time code for UserID's attempt.
type CodeSubmitted struct {
	UserID string
	Code   string
}

// PasswordSubmitted carries the two-step password for UserID's attempt.
type PasswordSubmitted struct {
	UserID string
	Secret string
}

// Event is one inbound login event from the UI layer.
type Event interface {
	eventUserID() string
}

func (ev PhoneSubmitted) eventUserID() string    { return ev.UserID }
func (ev CodeSubmitted) eventUserID() string     { return ev.UserID }
func (ev PasswordSubmitted) eventUserID() string { return ev.UserID }

// Handle dispatches an event to the matching Submit method. It exists for
// callers that route chat updates generically; the typed methods are the
// primary API.
func (e *Engine) Handle(ctx context.Context, ev Event) (*LoginResult, error) {
	switch ev := ev.(type) {
	case PhoneSubmitted:
		return e.SubmitPhone(ctx, ev.UserID, ev.Phone, ev.Country)
	case CodeSubmitted:
		return e.SubmitCode(ctx, ev.UserID, ev.Code)
	case PasswordSubmitted:
		return e.SubmitPassword(ctx, ev.UserID, ev.Secret)
	default:
		return nil, ErrUnexpectedEvent
	}
}
