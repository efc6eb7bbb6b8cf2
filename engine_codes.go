package enroll

import (
	"context"
	"errors"
	"fmt"

	"github.com/tgpanel/enroll/internal/bridge"
)

// FetchLoginCode opens a session from the stored credential for ownerID's
// phone and scans the most recent service-chat messages for a login code.
// The session is released before returning, on every path. The client
// minted by [ClientFactory.NewClientFromCredential] must implement
// [ServiceInbox].
func (e *Engine) FetchLoginCode(ctx context.Context, ownerID, phone string) (string, error) {
	if e == nil || e.clients == nil || e.credentials == nil {
		return "", ErrEngineNotReady
	}

	rec, err := e.credentials.FindByOwnerAndPhone(ctx, ownerID, phone)
	if err != nil {
		return "", err
	}

	var code string
	err = e.bridge.Run(ctx, "account:"+rec.ID,
		bridge.Step{Name: "open_session", Run: func(ctx context.Context) error {
			client, err := e.clients.NewClientFromCredential(ctx, rec.SessionCredential)
			if err != nil {
				return wrapTransport(err)
			}
			conn := newClientConn(client)
			defer conn.disconnect()

			if err := conn.ensureConnected(ctx); err != nil {
				return err
			}
			inbox, ok := client.(ServiceInbox)
			if !ok {
				return fmt.Errorf("%w: client does not expose service messages", ErrTransport)
			}

			messages, err := inbox.RecentServiceMessages(ctx, e.config.Login.ServiceInboxScan)
			if err != nil {
				return wrapTransport(err)
			}
			for _, msg := range messages {
				if m := e.codeRe.FindString(msg); m != "" {
					code = m
					return nil
				}
			}
			return ErrCodeNotFound
		}},
	)
	if err != nil {
		if errors.Is(err, ErrCodeNotFound) {
			e.metricInc(MetricCodeFetchEmpty)
		}
		e.emitAudit(ctx, auditEventCodeFetched, false, ownerID, phone, err, nil)
		return "", err
	}

	e.metricInc(MetricCodeFetched)
	e.emitAudit(ctx, auditEventCodeFetched, true, ownerID, phone, nil, nil)
	return code, nil
}

// RemoveAccount deletes the stored credential for ownerID's phone. The
// remote session is logged out best-effort first, when the client exposes
// [RemoteLogout]; remote failures never block the local delete, matching
// the swallow-all teardown contract.
func (e *Engine) RemoveAccount(ctx context.Context, ownerID, phone string) error {
	if e == nil || e.clients == nil || e.credentials == nil {
		return ErrEngineNotReady
	}

	rec, err := e.credentials.FindByOwnerAndPhone(ctx, ownerID, phone)
	if err != nil {
		return err
	}

	err = e.bridge.Run(ctx, "account:"+rec.ID,
		bridge.Step{Name: "remote_logout", Run: func(ctx context.Context) error {
			client, err := e.clients.NewClientFromCredential(ctx, rec.SessionCredential)
			if err != nil {
				return nil
			}
			conn := newClientConn(client)
			defer conn.disconnect()

			if err := conn.ensureConnected(ctx); err != nil {
				return nil
			}
			if lo, ok := client.(RemoteLogout); ok {
				_ = lo.LogOut(ctx)
			}
			return nil
		}},
		bridge.Step{Name: "delete_record", Run: func(ctx context.Context) error {
			if err := e.credentials.Delete(ctx, rec.ID); err != nil {
				return fmt.Errorf("%w: %v", ErrCredentialStoreUnavailable, err)
			}
			return nil
		}},
	)
	if err != nil {
		e.emitAudit(ctx, auditEventAccountRemoveError, false, ownerID, phone, err, nil)
		return err
	}

	e.metricInc(MetricAccountRemoved)
	e.emitAudit(ctx, auditEventAccountRemoved, true, ownerID, phone, nil, nil)
	return nil
}
