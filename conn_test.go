package enroll

import (
	"context"
	"errors"
	"testing"
)

func TestConnEnsureConnectedIdempotent(t *testing.T) {
	client := &mockClient{}
	conn := newClientConn(client)

	ctx := context.Background()
	if err := conn.ensureConnected(ctx); err != nil {
		t.Fatalf("ensureConnected failed: %v", err)
	}
	if err := conn.ensureConnected(ctx); err != nil {
		t.Fatalf("second ensureConnected failed: %v", err)
	}
	if client.connectCalls != 1 {
		t.Fatalf("expected 1 connect, got %d", client.connectCalls)
	}
}

func TestConnConnectFailureWrapped(t *testing.T) {
	client := &mockClient{connectErr: errors.New("dial refused")}
	conn := newClientConn(client)

	err := conn.ensureConnected(context.Background())
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}

func TestConnDisconnectExactlyOnce(t *testing.T) {
	client := &mockClient{}
	conn := newClientConn(client)

	_ = conn.ensureConnected(context.Background())
	conn.disconnect()
	conn.disconnect()
	conn.disconnect()

	stops, closes := client.releaseCount()
	if stops != 1 || closes != 1 {
		t.Fatalf("expected single release, stops=%d closes=%d", stops, closes)
	}
}

func TestConnDisconnectNeverConnected(t *testing.T) {
	conn := newClientConn(&mockClient{})
	conn.disconnect()

	var nilConn *clientConn
	nilConn.disconnect()
}

type panickyClient struct {
	mockClient
}

func (c *panickyClient) StopTransport() error {
	panic("transport already gone")
}

func TestConnDisconnectSwallowsPanics(t *testing.T) {
	conn := newClientConn(&panickyClient{})
	conn.disconnect()
}

func TestConnExportRequiresProbe(t *testing.T) {
	client := &mockClient{credential: "cred"} // signedIn false, probe fails
	conn := newClientConn(client)

	if _, err := conn.exportCredential(context.Background()); !errors.Is(err, ErrCredentialUnavailable) {
		t.Fatalf("expected ErrCredentialUnavailable, got %v", err)
	}
}

func TestConnExportHappyPath(t *testing.T) {
	client := &mockClient{credential: "cred", signedIn: true}
	conn := newClientConn(client)

	got, err := conn.exportCredential(context.Background())
	if err != nil {
		t.Fatalf("exportCredential failed: %v", err)
	}
	if got != "cred" {
		t.Fatalf("expected cred, got %q", got)
	}
}

func TestWrapTransportPassesTaxonomyThrough(t *testing.T) {
	wrapped := wrapTransport(ErrInvalidCode)
	if !errors.Is(wrapped, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got %v", wrapped)
	}
	if errors.Is(wrapped, ErrTransport) {
		t.Fatal("taxonomy error must not gain the transport wrapper")
	}

	raw := errors.New("socket reset")
	wrapped = wrapTransport(raw)
	if !errors.Is(wrapped, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", wrapped)
	}

	if wrapTransport(nil) != nil {
		t.Fatal("expected nil passthrough")
	}
}
