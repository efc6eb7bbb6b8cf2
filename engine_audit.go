package enroll

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventLoginStarted       = "login_started"
	auditEventCodeSent           = "code_sent"
	auditEventCodeRejected       = "code_rejected"
	auditEventLoginRateLimited   = "login_rate_limited"
	auditEventPasswordRequired   = "password_required"
	auditEventPasswordRejected   = "password_rejected"
	auditEventPasswordExceeded   = "password_attempts_exceeded"
	auditEventLoginCompleted     = "login_completed"
	auditEventLoginFailed        = "login_failed"
	auditEventCredentialStored   = "credential_stored"
	auditEventCredentialExport   = "credential_export_failed"
	auditEventAttemptReplaced    = "attempt_replaced"
	auditEventAttemptAbandoned   = "attempt_abandoned"
	auditEventCodeFetched        = "code_fetched"
	auditEventAccountRemoved     = "account_removed"
	auditEventAccountRemoveError = "account_remove_failed"
)

// AuditErrorCode is the stable error label carried by audit events.
type AuditErrorCode string

const (
	auditErrInvalidPhone     AuditErrorCode = "invalid_phone_number"
	auditErrInvalidCode      AuditErrorCode = "invalid_code"
	auditErrCodeExpired      AuditErrorCode = "code_expired"
	auditErrEmptyCode        AuditErrorCode = "empty_code"
	auditErrWrongPassword    AuditErrorCode = "wrong_second_factor"
	auditErrAttemptsExceeded AuditErrorCode = "attempts_exceeded"
	auditErrRateLimited      AuditErrorCode = "rate_limited"
	auditErrSessionExpired   AuditErrorCode = "session_expired"
	auditErrUnexpectedEvent  AuditErrorCode = "unexpected_event"
	auditErrTransport        AuditErrorCode = "transport_error"
	auditErrExportFailed     AuditErrorCode = "credential_unavailable"
	auditErrStoreUnavailable AuditErrorCode = "store_unavailable"
	auditErrNotFound         AuditErrorCode = "account_not_found"
	auditErrInternal         AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	phone string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		Phone:     phone,
		ChatID:    chatIDFromContext(ctx),
		Source:    requestSourceFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidPhoneNumber):
		return auditErrInvalidPhone
	case errors.Is(err, ErrEmptyCode):
		return auditErrEmptyCode
	case errors.Is(err, ErrCodeExpired):
		return auditErrCodeExpired
	case errors.Is(err, ErrInvalidCode):
		return auditErrInvalidCode
	case errors.Is(err, ErrWrongSecondFactor):
		return auditErrWrongPassword
	case errors.Is(err, ErrSecondFactorAttemptsExceeded):
		return auditErrAttemptsExceeded
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrSessionExpired):
		return auditErrSessionExpired
	case errors.Is(err, ErrUnexpectedEvent):
		return auditErrUnexpectedEvent
	case errors.Is(err, ErrCredentialUnavailable):
		return auditErrExportFailed
	case errors.Is(err, ErrCredentialStoreUnavailable), errors.Is(err, ErrRateLimitBackend):
		return auditErrStoreUnavailable
	case errors.Is(err, ErrAccountNotFound), errors.Is(err, ErrCodeNotFound):
		return auditErrNotFound
	case errors.Is(err, ErrTransport):
		return auditErrTransport
	default:
		return auditErrInternal
	}
}
