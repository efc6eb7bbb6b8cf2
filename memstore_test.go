package enroll

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryCredentialStore()
	ctx := context.Background()

	rec := &StoredCredential{
		ID:                "r1",
		OwnerID:           "u1",
		Phone:             "+15551234567",
		SessionCredential: "cred",
		Status:            CredentialStatusActive,
	}
	if err := s.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := s.FindByOwnerAndPhone(ctx, "u1", "+15551234567")
	if err != nil {
		t.Fatalf("FindByOwnerAndPhone failed: %v", err)
	}
	if got.ID != "r1" || got.SessionCredential != "cred" {
		t.Fatalf("unexpected record %+v", got)
	}

	// Callers get copies, not shared state.
	got.SessionCredential = "mutated"
	again, _ := s.FindByOwnerAndPhone(ctx, "u1", "+15551234567")
	if again.SessionCredential != "cred" {
		t.Fatal("expected store to be isolated from caller mutation")
	}
}

func TestMemoryStoreFiltersInactive(t *testing.T) {
	s := NewMemoryCredentialStore()
	ctx := context.Background()

	if err := s.Insert(ctx, &StoredCredential{
		ID:      "r1",
		OwnerID: "u1",
		Phone:   "+15551234567",
		Status:  "revoked",
	}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if _, err := s.FindByOwnerAndPhone(ctx, "u1", "+15551234567"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound for inactive record, got %v", err)
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	s := NewMemoryCredentialStore()
	ctx := context.Background()

	_ = s.Insert(ctx, &StoredCredential{ID: "r1", OwnerID: "u1", Phone: "+1", Status: CredentialStatusActive})
	if err := s.Delete(ctx, "r1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("expected empty store, got %d", s.Len())
	}

	// Deleting a missing id is a no-op.
	if err := s.Delete(ctx, "r1"); err != nil {
		t.Fatalf("second Delete failed: %v", err)
	}
}
