package enroll

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

func (s *countingSink) Count() int64 {
	return s.count.Load()
}

type gateSink struct {
	gate chan struct{}
}

func newGateSink() *gateSink {
	return &gateSink{gate: make(chan struct{})}
}

func (s *gateSink) Emit(context.Context, AuditEvent) {
	<-s.gate
}

func newAuditEngine(t *testing.T, cfg Config, sink AuditSink) (*Engine, func()) {
	t.Helper()

	mr, rdb := newTestRedis(t)

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithClientFactory(newMockFactory(nil)).
		WithCredentialStore(NewMemoryCredentialStore()).
		WithAuditSink(sink).
		Build()
	if err != nil {
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}

	return engine, func() {
		engine.Close()
		mr.Close()
	}
}

func waitForEvent(t *testing.T, sink *ChannelSink, eventType string) AuditEvent {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-sink.Events():
			if ev.EventType == eventType {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", eventType)
		}
	}
}

func TestAuditDisabledEmitsNothing(t *testing.T) {
	cfg := enrollTestConfig()
	cfg.Audit.Enabled = false

	sink := &countingSink{}
	engine, done := newAuditEngine(t, cfg, sink)
	defer done()

	if engine.audit != nil {
		t.Fatal("expected no dispatcher while audit is disabled")
	}
	if _, err := engine.SubmitPhone(context.Background(), testUser, testPhone, "US"); err != nil {
		t.Fatalf("SubmitPhone failed: %v", err)
	}
	if sink.Count() != 0 {
		t.Fatalf("expected 0 events, got %d", sink.Count())
	}
}

func TestAuditLoginFlowEvents(t *testing.T) {
	cfg := enrollTestConfig()
	cfg.Audit.Enabled = true

	sink := NewChannelSink(64)
	engine, done := newAuditEngine(t, cfg, sink)
	defer done()

	ctx := WithChatID(WithRequestSource(context.Background(), "webhook"), 777)
	if _, err := engine.SubmitPhone(ctx, testUser, testPhone, "US"); err != nil {
		t.Fatalf("SubmitPhone failed: %v", err)
	}

	started := waitForEvent(t, sink, auditEventLoginStarted)
	if started.UserID != testUser || started.Phone != testPhone || !started.Success {
		t.Fatalf("unexpected login_started event: %+v", started)
	}
	if started.ChatID != 777 || started.Source != "webhook" {
		t.Fatalf("expected context fields carried, got chat=%d source=%q", started.ChatID, started.Source)
	}
	if started.Metadata["country"] != "US" {
		t.Fatalf("expected country metadata, got %v", started.Metadata)
	}
	waitForEvent(t, sink, auditEventCodeSent)

	if _, err := engine.SubmitCode(ctx, testUser, "12345"); err != nil {
		t.Fatalf("SubmitCode failed: %v", err)
	}
	stored := waitForEvent(t, sink, auditEventCredentialStored)
	if stored.Metadata["has_second_factor"] != "false" {
		t.Fatalf("unexpected metadata %v", stored.Metadata)
	}
	waitForEvent(t, sink, auditEventLoginCompleted)
}

func TestAuditFailureCarriesErrorCode(t *testing.T) {
	cfg := enrollTestConfig()
	cfg.Audit.Enabled = true

	sink := NewChannelSink(64)
	engine, done := newAuditEngine(t, cfg, sink)
	defer done()

	ctx := context.Background()
	if _, err := engine.SubmitPhone(ctx, testUser, "bogus", "US"); err == nil {
		t.Fatal("expected SubmitPhone to fail")
	}

	failed := waitForEvent(t, sink, auditEventLoginFailed)
	if failed.Success {
		t.Fatal("expected failure event")
	}
	if failed.Error != string(auditErrInvalidPhone) {
		t.Fatalf("expected %s, got %s", auditErrInvalidPhone, failed.Error)
	}
}

func TestAuditDropsUnderBackpressure(t *testing.T) {
	cfg := enrollTestConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 1
	cfg.Audit.DropIfFull = true

	sink := newGateSink()
	engine, done := newAuditEngine(t, cfg, sink)

	// The sink never drains, so everything past the worker's in-flight
	// event and the single buffer slot is dropped.
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		_, _ = engine.SubmitPhone(ctx, testUser, "bogus", "US")
	}

	if engine.AuditDropped() == 0 {
		t.Fatal("expected dropped events under backpressure")
	}

	close(sink.gate)
	done()
}

func TestAuditCloseFlushesQueued(t *testing.T) {
	cfg := enrollTestConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 64

	sink := &countingSink{}
	engine, done := newAuditEngine(t, cfg, sink)
	defer done()

	if _, err := engine.SubmitPhone(context.Background(), testUser, testPhone, "US"); err != nil {
		t.Fatalf("SubmitPhone failed: %v", err)
	}

	engine.Close()
	if sink.Count() == 0 {
		t.Fatal("expected queued events flushed on Close")
	}
}

func TestDispatcherEmitAfterCloseIsNoOp(t *testing.T) {
	sink := &countingSink{}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 4, DropIfFull: true}, sink)

	d.Emit(context.Background(), AuditEvent{EventType: "before"})
	d.Close()
	before := sink.Count()

	d.Emit(context.Background(), AuditEvent{EventType: "after"})
	d.Close()

	if sink.Count() != before {
		t.Fatal("expected no delivery after Close")
	}
	if before != 1 {
		t.Fatalf("expected the pre-close event flushed, got %d", before)
	}
}
