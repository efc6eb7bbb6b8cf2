package enroll

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tgpanel/enroll/internal/bridge"
	"github.com/tgpanel/enroll/internal/rate"
)

const (
	stepReplaceAttempt = "replace_attempt"
	stepConnect        = "connect"
	stepRequestCode    = "request_code"
	stepLoadAttempt    = "load_attempt"
	stepSignIn         = "sign_in"
	stepCheckPassword  = "check_password"
	stepFinalize       = "finalize"
	stepAbandonAttempt = "abandon_attempt"
)

const (
	msgCodeSent         = "Code sent. Check the service chat on the account's device."
	msgPasswordRequired = "Two-step verification is enabled. Send the account password."
	msgAccountAdded     = "Account added successfully."
)

// SubmitPhone starts (or restarts) userID's login attempt: it opens a fresh
// network session and asks for a one-time code to be sent to phone. A live
// attempt for the same user is replaced after its connection is released.
//
// Rate limiting is enforced before any network call: an active flood wait
// for the phone or an exhausted per-user budget returns a [RateLimitError]
// and the engine performs no retry of its own.
func (e *Engine) SubmitPhone(ctx context.Context, userID, phone, country string) (*LoginResult, error) {
	if e == nil || e.clients == nil {
		return nil, ErrEngineNotReady
	}
	phone = strings.TrimSpace(phone)
	if userID == "" || !e.phoneRe.MatchString(phone) {
		e.emitAudit(ctx, auditEventLoginFailed, false, userID, phone, ErrInvalidPhoneNumber, nil)
		return nil, ErrInvalidPhoneNumber
	}

	if err := e.checkCodeRequestBudget(ctx, userID, phone); err != nil {
		return nil, err
	}

	var att *loginAttempt
	err := e.bridge.Run(ctx, userID,
		bridge.Step{Name: stepReplaceAttempt, Run: func(ctx context.Context) error {
			if old := e.attempts.remove(userID); old != nil {
				old.conn.disconnect()
				e.metricInc(MetricAttemptReplaced)
				e.emitAudit(ctx, auditEventAttemptReplaced, true, userID, old.Phone, nil, func() map[string]string {
					return map[string]string{"phase": old.Phase.String()}
				})
			}
			return nil
		}},
		bridge.Step{Name: stepConnect, Run: func(ctx context.Context) error {
			client, err := e.clients.NewClient(ctx)
			if err != nil {
				return wrapTransport(err)
			}
			att = &loginAttempt{
				ID:        uuid.NewString(),
				UserID:    userID,
				Phase:     PhaseAwaitingPhone,
				Phone:     phone,
				Country:   country,
				CreatedAt: time.Now(),
				conn:      newClientConn(client),
			}
			e.attempts.put(att)
			if err := att.conn.ensureConnected(ctx); err != nil {
				e.teardownAttempt(userID)
				return err
			}
			return nil
		}},
		bridge.Step{Name: stepRequestCode, Run: func(ctx context.Context) error {
			token, err := att.conn.client.SendCode(ctx, phone)
			if err != nil {
				var rle *RateLimitError
				if errors.As(err, &rle) && e.rateLimiter != nil {
					_ = e.rateLimiter.RecordFloodWait(ctx, phone, rle.RetryAfter)
				}
				e.teardownAttempt(userID)
				return wrapTransport(err)
			}

			att.CodeToken = token
			att.Phase = PhaseAwaitingCode
			e.attempts.put(att)
			if e.rateLimiter != nil {
				// Budget accounting must not fail an already-sent code.
				_ = e.rateLimiter.RecordCodeRequest(ctx, userID)
			}
			return nil
		}},
	)
	if err != nil {
		if errors.Is(err, ErrRateLimited) {
			e.metricInc(MetricLoginRateLimited)
			e.emitAudit(ctx, auditEventLoginRateLimited, false, userID, phone, err, nil)
		} else {
			e.metricInc(MetricLoginFailed)
			e.emitAudit(ctx, auditEventLoginFailed, false, userID, phone, err, nil)
		}
		return nil, err
	}

	e.metricInc(MetricLoginStarted)
	e.metricInc(MetricCodeSent)
	e.emitAudit(ctx, auditEventLoginStarted, true, userID, phone, nil, func() map[string]string {
		return map[string]string{"country": country}
	})
	e.emitAudit(ctx, auditEventCodeSent, true, userID, phone, nil, nil)

	return &LoginResult{Status: StatusCodeSent, Message: msgCodeSent}, nil
}

// SubmitCode feeds the one-time code into userID's attempt. On plain
// success it finalizes: exports the session credential, writes the durable
// record, disconnects, and removes the attempt. When the account has
// two-step verification the attempt advances to PhaseAwaitingPassword and
// keeps its connection. Any rejection of the code tears the attempt down.
func (e *Engine) SubmitCode(ctx context.Context, userID, code string) (*LoginResult, error) {
	if e == nil || e.clients == nil {
		return nil, ErrEngineNotReady
	}

	var (
		att    *loginAttempt
		result *LoginResult
	)
	err := e.bridge.Run(ctx, userID,
		bridge.Step{Name: stepLoadAttempt, Run: func(ctx context.Context) error {
			att = e.attempts.get(userID)
			if att == nil {
				return ErrSessionExpired
			}
			if att.Phase != PhaseAwaitingCode {
				att = nil
				return ErrUnexpectedEvent
			}
			return nil
		}},
		bridge.Step{Name: stepSignIn, Run: func(ctx context.Context) error {
			code := strings.TrimSpace(code)
			if code == "" {
				e.teardownAttempt(userID)
				return ErrEmptyCode
			}

			err := att.conn.client.SignIn(ctx, att.Phone, att.CodeToken, code)
			switch {
			case err == nil:
				return nil
			case errors.Is(err, ErrSecondFactorRequired):
				att.Phase = PhaseAwaitingPassword
				att.PasswordFailures = 0
				e.attempts.put(att)
				result = &LoginResult{Status: StatusPasswordRequired, Message: msgPasswordRequired}
				return nil
			default:
				e.teardownAttempt(userID)
				return wrapTransport(err)
			}
		}},
		bridge.Step{Name: stepFinalize, Run: func(ctx context.Context) error {
			if result != nil {
				return nil
			}
			rec, err := e.finalizeAttempt(ctx, att, "")
			if err != nil {
				return err
			}
			result = &LoginResult{Status: StatusCompleted, Message: msgAccountAdded, Credential: rec}
			return nil
		}},
	)
	if err != nil {
		e.recordLoginFailure(ctx, userID, att, err)
		return nil, err
	}

	if result.Status == StatusPasswordRequired {
		e.metricInc(MetricPasswordRequired)
		e.emitAudit(ctx, auditEventPasswordRequired, true, userID, att.Phone, nil, nil)
	}
	return result, nil
}

// SubmitPassword feeds the two-step password into userID's attempt. Wrong
// passwords are retryable up to Login.MaxPasswordAttempts; the final
// failure, like every other terminal outcome, disconnects and removes the
// attempt.
func (e *Engine) SubmitPassword(ctx context.Context, userID, secret string) (*LoginResult, error) {
	if e == nil || e.clients == nil {
		return nil, ErrEngineNotReady
	}

	var (
		att    *loginAttempt
		result *LoginResult
	)
	err := e.bridge.Run(ctx, userID,
		bridge.Step{Name: stepLoadAttempt, Run: func(ctx context.Context) error {
			att = e.attempts.get(userID)
			if att == nil {
				return ErrSessionExpired
			}
			if att.Phase != PhaseAwaitingPassword {
				att = nil
				return ErrUnexpectedEvent
			}
			return nil
		}},
		bridge.Step{Name: stepCheckPassword, Run: func(ctx context.Context) error {
			err := att.conn.client.CheckPassword(ctx, secret)
			switch {
			case err == nil:
				return nil
			case errors.Is(err, ErrWrongSecondFactor):
				att.PasswordFailures++
				e.metricInc(MetricPasswordFailure)
				if att.PasswordFailures >= e.config.Login.MaxPasswordAttempts {
					e.teardownAttempt(userID)
					e.metricInc(MetricPasswordAttemptsExceeded)
					return ErrSecondFactorAttemptsExceeded
				}
				e.attempts.put(att)
				return ErrWrongSecondFactor
			default:
				e.teardownAttempt(userID)
				return wrapTransport(err)
			}
		}},
		bridge.Step{Name: stepFinalize, Run: func(ctx context.Context) error {
			rec, err := e.finalizeAttempt(ctx, att, secret)
			if err != nil {
				return err
			}
			result = &LoginResult{Status: StatusCompleted, Message: msgAccountAdded, Credential: rec}
			return nil
		}},
	)
	if err != nil {
		if errors.Is(err, ErrWrongSecondFactor) {
			// Attempt survives; only the rejection is recorded.
			e.emitAudit(ctx, auditEventPasswordRejected, false, userID, att.Phone, err, func() map[string]string {
				return map[string]string{"failures": strconv.Itoa(att.PasswordFailures)}
			})
			return nil, err
		}
		if errors.Is(err, ErrSecondFactorAttemptsExceeded) {
			e.emitAudit(ctx, auditEventPasswordExceeded, false, userID, "", err, nil)
		}
		e.recordLoginFailure(ctx, userID, att, err)
		return nil, err
	}

	return result, nil
}

// Abandon releases userID's attempt: the connection is disconnected and
// the entry removed. Returns [ErrSessionExpired] when no attempt exists.
func (e *Engine) Abandon(ctx context.Context, userID string) error {
	if e == nil || e.attempts == nil {
		return ErrEngineNotReady
	}

	return e.bridge.Run(ctx, userID,
		bridge.Step{Name: stepAbandonAttempt, Run: func(ctx context.Context) error {
			att := e.attempts.remove(userID)
			if att == nil {
				return ErrSessionExpired
			}
			att.conn.disconnect()
			e.metricInc(MetricAttemptAbandoned)
			e.emitAudit(ctx, auditEventAttemptAbandoned, true, userID, att.Phone, nil, func() map[string]string {
				return map[string]string{"phase": att.Phase.String()}
			})
			return nil
		}},
	)
}

// AbandonStale sweeps attempts older than Login.AttemptTTL and reports how
// many were released. An external reaper calls this periodically so parked
// attempts cannot accumulate open connections without bound.
func (e *Engine) AbandonStale(ctx context.Context) (int, error) {
	if e == nil || e.attempts == nil {
		return 0, ErrEngineNotReady
	}

	cutoff := time.Now().Add(-e.config.Login.AttemptTTL)
	swept := 0
	for _, userID := range e.attempts.staleUserIDs(cutoff) {
		err := e.bridge.Run(ctx, userID,
			bridge.Step{Name: stepAbandonAttempt, Run: func(ctx context.Context) error {
				att := e.attempts.get(userID)
				if att == nil || !att.CreatedAt.Before(cutoff) {
					// Raced with completion or a fresh restart; skip.
					return nil
				}
				e.attempts.remove(userID)
				att.conn.disconnect()
				swept++
				e.metricInc(MetricAttemptAbandoned)
				e.emitAudit(ctx, auditEventAttemptAbandoned, true, userID, att.Phone, nil, func() map[string]string {
					return map[string]string{"phase": att.Phase.String(), "reason": "stale"}
				})
				return nil
			}},
		)
		if err != nil {
			return swept, err
		}
	}
	return swept, nil
}

// AbandonAll releases every live attempt. Intended for shutdown.
func (e *Engine) AbandonAll(ctx context.Context) int {
	if e == nil || e.attempts == nil {
		return 0
	}

	released := 0
	for _, userID := range e.attempts.staleUserIDs(time.Now().Add(time.Hour)) {
		if err := e.Abandon(ctx, userID); err == nil {
			released++
		}
	}
	return released
}

// finalizeAttempt exports the session credential, writes the durable
// record, and tears the attempt down. The record is written only with a
// non-empty credential; on any failure the attempt is torn down without a
// write, so the store never holds a partial record.
func (e *Engine) finalizeAttempt(ctx context.Context, att *loginAttempt, secondFactorSecret string) (*StoredCredential, error) {
	credential, err := att.conn.exportCredential(ctx)
	if err != nil {
		e.teardownAttempt(att.UserID)
		e.metricInc(MetricCredentialExportFailed)
		e.emitAudit(ctx, auditEventCredentialExport, false, att.UserID, att.Phone, err, nil)
		return nil, ErrCredentialUnavailable
	}

	rec := &StoredCredential{
		ID:                 uuid.NewString(),
		OwnerID:            att.UserID,
		Country:            att.Country,
		Phone:              att.Phone,
		SessionCredential:  credential,
		HasSecondFactor:    secondFactorSecret != "",
		SecondFactorSecret: secondFactorSecret,
		Status:             CredentialStatusActive,
		Used:               false,
		CreatedAt:          time.Now().UTC(),
	}
	if err := e.credentials.Insert(ctx, rec); err != nil {
		e.teardownAttempt(att.UserID)
		return nil, fmt.Errorf("%w: %v", ErrCredentialStoreUnavailable, err)
	}

	e.teardownAttempt(att.UserID)
	e.metricInc(MetricCredentialStored)
	e.metricInc(MetricLoginCompleted)
	e.metricObserve(MetricLoginLatency, time.Since(att.CreatedAt))
	e.emitAudit(ctx, auditEventCredentialStored, true, att.UserID, att.Phone, nil, func() map[string]string {
		return map[string]string{"has_second_factor": strconv.FormatBool(rec.HasSecondFactor)}
	})
	e.emitAudit(ctx, auditEventLoginCompleted, true, att.UserID, att.Phone, nil, nil)

	return rec, nil
}

// teardownAttempt is the single terminal transition: remove the entry,
// release the connection. Both halves are idempotent, so racing callers
// cannot double-disconnect.
func (e *Engine) teardownAttempt(userID string) {
	if att := e.attempts.remove(userID); att != nil {
		att.conn.disconnect()
	}
}

func (e *Engine) recordLoginFailure(ctx context.Context, userID string, att *loginAttempt, err error) {
	phone := ""
	if att != nil {
		phone = att.Phone
	}
	if errors.Is(err, ErrSessionExpired) || errors.Is(err, ErrUnexpectedEvent) {
		// No attempt was consumed; don't count a login failure.
		e.emitAudit(ctx, auditEventLoginFailed, false, userID, phone, err, nil)
		return
	}
	e.metricInc(MetricLoginFailed)
	e.emitAudit(ctx, auditEventLoginFailed, false, userID, phone, err, nil)
	if errors.Is(err, ErrInvalidCode) || errors.Is(err, ErrCodeExpired) || errors.Is(err, ErrEmptyCode) {
		e.emitAudit(ctx, auditEventCodeRejected, false, userID, phone, err, nil)
	}
}

func (e *Engine) checkCodeRequestBudget(ctx context.Context, userID, phone string) error {
	if e.rateLimiter == nil {
		return nil
	}

	wait, err := e.rateLimiter.CheckCodeRequest(ctx, userID, phone)
	if err == nil {
		return nil
	}
	if errors.Is(err, rate.ErrRateLimited) {
		e.metricInc(MetricLoginRateLimited)
		rle := &RateLimitError{RetryAfter: wait}
		e.emitAudit(ctx, auditEventLoginRateLimited, false, userID, phone, rle, nil)
		return rle
	}
	return fmt.Errorf("%w: %v", ErrRateLimitBackend, err)
}
