package enroll

import (
	"context"
	"time"
)

// LoginPhase is the step an in-progress attempt is waiting on. Terminal
// outcomes are represented by removal of the attempt, not by a phase value.
type LoginPhase uint8

const (
	// PhaseAwaitingPhone is the transient phase between attempt creation
	// and a successful code request.
	PhaseAwaitingPhone LoginPhase = iota
	// PhaseAwaitingCode means a code was sent and the user must submit it.
	PhaseAwaitingCode
	// PhaseAwaitingPassword means the account has two-step verification
	// and the user must submit its password.
	PhaseAwaitingPassword
)

func (p LoginPhase) String() string {
	switch p {
	case PhaseAwaitingPhone:
		return "awaiting_phone"
	case PhaseAwaitingCode:
		return "awaiting_code"
	case PhaseAwaitingPassword:
		return "awaiting_password"
	default:
		return "unknown"
	}
}

// LoginStatus classifies the non-error outcome of an Engine login call.
type LoginStatus uint8

const (
	// StatusCodeSent means the code request succeeded and the attempt now
	// waits for the one-time code.
	StatusCodeSent LoginStatus = iota
	// StatusPasswordRequired means the code was accepted but the account
	// needs its two-step password before finalization.
	StatusPasswordRequired
	// StatusCompleted means the login finalized and the credential was
	// written to the durable store.
	StatusCompleted
)

// LoginResult is returned by [Engine.SubmitPhone], [Engine.SubmitCode], and
// [Engine.SubmitPassword] on success. Message is ready for the chat UI.
type LoginResult struct {
	Status     LoginStatus
	Message    string
	Credential *StoredCredential // set only when Status is StatusCompleted
}

// StoredCredential is the durable record written for a completed login.
// Records are immutable once written except for Status/Used transitions,
// which belong to administration tooling outside this package.
//
// SecondFactorSecret holds the two-step password exactly as the user
// supplied it, because operators re-authenticate with it later. Encrypting
// it at rest is the integrator's decision; see DESIGN.md.
type StoredCredential struct {
	ID                 string
	OwnerID            string
	Country            string
	Phone              string
	SessionCredential  string
	HasSecondFactor    bool
	SecondFactorSecret string
	Status             string
	Used               bool
	CreatedAt          time.Time
}

// CredentialStatusActive marks a stored credential as usable.
const CredentialStatusActive = "active"

// CredentialStore is the durable persistence boundary for completed logins.
// Implementations must be safe for concurrent use.
//
// FindByOwnerAndPhone returns [ErrAccountNotFound] when no record matches.
// Insert is append-only: the Engine never updates a record in place.
type CredentialStore interface {
	Insert(ctx context.Context, rec *StoredCredential) error
	FindByOwnerAndPhone(ctx context.Context, ownerID, phone string) (*StoredCredential, error)
	Delete(ctx context.Context, id string) error
}

// AccountClient is one connection-scoped session against the messaging
// network. The Engine creates one per login attempt through
// [ClientFactory], owns it exclusively, and releases it exactly once.
//
// Implementations map network failures onto the package error taxonomy:
// SendCode returns a *RateLimitError on flood control and wraps
// ErrInvalidPhoneNumber; SignIn wraps ErrSecondFactorRequired,
// ErrInvalidCode, ErrCodeExpired, or ErrEmptyCode; CheckPassword wraps
// ErrWrongSecondFactor. Anything else is treated as a transport failure.
type AccountClient interface {
	// Connect opens the session. Connecting an already-connected client
	// must be a no-op.
	Connect(ctx context.Context) error
	// Connected reports whether the session is currently open.
	Connected() bool
	// SendCode asks the network to deliver a one-time code to the phone
	// number and returns the opaque token tied to that single send.
	SendCode(ctx context.Context, phone string) (codeToken string, err error)
	// SignIn submits the one-time code for the send identified by codeToken.
	SignIn(ctx context.Context, phone, codeToken, code string) error
	// CheckPassword submits the two-step verification password.
	CheckPassword(ctx context.Context, secret string) error
	// Probe confirms the session is authenticated (an identity lookup).
	Probe(ctx context.Context) error
	// ExportCredential serializes the authenticated session into a
	// reusable opaque credential.
	ExportCredential(ctx context.Context) (string, error)
	// StopTransport stops the inner transport session, if one exists.
	// Called before Close during teardown; errors are swallowed.
	StopTransport() error
	// Close tears down the connection. Safe to call on a never-connected
	// client; errors are swallowed.
	Close() error
}

// ClientFactory mints account clients. NewClient returns a fresh,
// unauthenticated session for a login attempt; NewClientFromCredential
// restores a previously exported session for post-enrollment operations.
type ClientFactory interface {
	NewClient(ctx context.Context) (AccountClient, error)
	NewClientFromCredential(ctx context.Context, credential string) (AccountClient, error)
}

// ServiceInbox is an optional AccountClient capability: reading the most
// recent messages from the network's service chat, newest first.
// [Engine.FetchLoginCode] requires it.
type ServiceInbox interface {
	RecentServiceMessages(ctx context.Context, limit int) ([]string, error)
}

// RemoteLogout is an optional AccountClient capability: terminating the
// account's session on the network side. [Engine.RemoveAccount] uses it
// best-effort.
type RemoteLogout interface {
	LogOut(ctx context.Context) error
}
