// Package credstore provides the Postgres-backed [enroll.CredentialStore]
// built on pgx. One row per completed enrollment; rows are append-only
// except for the status/used transitions owned by administration tooling.
package credstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tgpanel/enroll"
)

// Schema is the table the store expects. Shipped as a constant so
// deployments without a migration tool can apply it directly.
const Schema = `
CREATE TABLE IF NOT EXISTS enrolled_accounts (
	id                   UUID PRIMARY KEY,
	owner_id             TEXT        NOT NULL,
	country              TEXT        NOT NULL DEFAULT '',
	phone                TEXT        NOT NULL,
	session_credential   TEXT        NOT NULL,
	has_second_factor    BOOLEAN     NOT NULL DEFAULT FALSE,
	second_factor_secret TEXT        NOT NULL DEFAULT '',
	status               TEXT        NOT NULL DEFAULT 'active',
	used                 BOOLEAN     NOT NULL DEFAULT FALSE,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_enrolled_accounts_owner_phone
	ON enrolled_accounts (owner_id, phone);
`

// Store implements [enroll.CredentialStore] over a pgx pool.
type Store struct {
	db *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Insert(ctx context.Context, rec *enroll.StoredCredential) error {
	query := `
		INSERT INTO enrolled_accounts (
			id, owner_id, country, phone, session_credential,
			has_second_factor, second_factor_secret, status, used, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.db.Exec(ctx, query,
		rec.ID,
		rec.OwnerID,
		rec.Country,
		rec.Phone,
		rec.SessionCredential,
		rec.HasSecondFactor,
		rec.SecondFactorSecret,
		rec.Status,
		rec.Used,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert credential for phone %s: %w", rec.Phone, err)
	}
	return nil
}

func (s *Store) FindByOwnerAndPhone(ctx context.Context, ownerID, phone string) (*enroll.StoredCredential, error) {
	query := `
		SELECT id, owner_id, country, phone, session_credential,
		       has_second_factor, second_factor_secret, status, used, created_at
		FROM enrolled_accounts
		WHERE owner_id = $1
		  AND phone = $2
		  AND status = 'active'
		ORDER BY created_at DESC
		LIMIT 1
	`

	var rec enroll.StoredCredential
	err := s.db.QueryRow(ctx, query, ownerID, phone).Scan(
		&rec.ID,
		&rec.OwnerID,
		&rec.Country,
		&rec.Phone,
		&rec.SessionCredential,
		&rec.HasSecondFactor,
		&rec.SecondFactorSecret,
		&rec.Status,
		&rec.Used,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, enroll.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to fetch credential for owner %s: %w", ownerID, err)
	}
	return &rec, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM enrolled_accounts WHERE id = $1`

	if _, err := s.db.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete credential %s: %w", id, err)
	}
	return nil
}
