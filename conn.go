package enroll

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// clientConn owns one AccountClient on behalf of a login attempt. It is
// the single place that enforces the connection contract: connect is
// idempotent, export happens only after an identity probe, and disconnect
// runs exactly once and never fails outward.
type clientConn struct {
	client         AccountClient
	disconnectOnce sync.Once
}

func newClientConn(client AccountClient) *clientConn {
	return &clientConn{client: client}
}

// ensureConnected opens the session when it is not already open.
func (c *clientConn) ensureConnected(ctx context.Context) error {
	if c == nil || c.client == nil {
		return ErrTransport
	}
	if c.client.Connected() {
		return nil
	}
	if err := c.client.Connect(ctx); err != nil {
		return wrapTransport(err)
	}
	return nil
}

// exportCredential confirms the session is authenticated before exporting.
// A failed probe yields ErrCredentialUnavailable, never a raw error: a
// half-authenticated session must not produce a stored record.
func (c *clientConn) exportCredential(ctx context.Context) (string, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return "", ErrCredentialUnavailable
	}
	if err := c.client.Probe(ctx); err != nil {
		return "", ErrCredentialUnavailable
	}

	credential, err := c.client.ExportCredential(ctx)
	if err != nil || credential == "" {
		return "", ErrCredentialUnavailable
	}
	return credential, nil
}

// disconnect tears the connection down: inner transport first, then the
// connection itself. Every error, including panics from a misbehaving
// client, is swallowed so cleanup always completes. Safe to call multiple
// times and on a never-connected client; only the first call acts.
func (c *clientConn) disconnect() {
	if c == nil || c.client == nil {
		return
	}
	c.disconnectOnce.Do(func() {
		defer func() {
			_ = recover()
		}()
		_ = c.client.StopTransport()
		_ = c.client.Close()
	})
}

// wrapTransport folds unknown client errors into the transport bucket
// while letting taxonomy errors pass through untouched.
func wrapTransport(err error) error {
	if err == nil {
		return nil
	}
	if isTaxonomyError(err) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrTransport, err)
}

func isTaxonomyError(err error) bool {
	for _, known := range []error{
		ErrInvalidPhoneNumber,
		ErrInvalidCode,
		ErrCodeExpired,
		ErrEmptyCode,
		ErrSecondFactorRequired,
		ErrWrongSecondFactor,
		ErrRateLimited,
		ErrTransport,
	} {
		if errors.Is(err, known) {
			return true
		}
	}
	return false
}
