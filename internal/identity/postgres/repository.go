// Package postgres provides PostgreSQL implementations of the identity
// account and token stores.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lakeridepros/ticketwatch/internal/identity"
)

// AccessStore implements identity.AccountStore over the user_access table,
// the fast access-record store keyed by account key.
type AccessStore struct {
	db *pgxpool.Pool
}

// NewAccessStore creates an access-record store.
func NewAccessStore(db *pgxpool.Pool) *AccessStore {
	return &AccessStore{db: db}
}

// GetAccount retrieves an access record by key.
func (s *AccessStore) GetAccount(ctx context.Context, key string) (*identity.Account, error) {
	query := `
		SELECT COALESCE(email, ''), COALESCE(phone, '')
		FROM user_access
		WHERE key = $1
	`
	var account identity.Account
	err := s.db.QueryRow(ctx, query, key).Scan(&account.Email, &account.Phone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrAccountNotFound
		}
		return nil, fmt.Errorf("get access record: %w", err)
	}
	return &account, nil
}

// ProfileStore implements identity.AccountStore over the users table, the
// general user-profile store.
type ProfileStore struct {
	db *pgxpool.Pool
}

// NewProfileStore creates a user-profile store.
func NewProfileStore(db *pgxpool.Pool) *ProfileStore {
	return &ProfileStore{db: db}
}

// GetAccount retrieves a user profile by id. Profiles carry a primary and a
// contact email; the primary one wins when both are present.
func (s *ProfileStore) GetAccount(ctx context.Context, key string) (*identity.Account, error) {
	query := `
		SELECT COALESCE(NULLIF(email, ''), contact_email, ''),
		       COALESCE(NULLIF(phone, ''), phone_number, '')
		FROM users
		WHERE id = $1
	`
	var account identity.Account
	err := s.db.QueryRow(ctx, query, key).Scan(&account.Email, &account.Phone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrAccountNotFound
		}
		return nil, fmt.Errorf("get user profile: %w", err)
	}
	return &account, nil
}

// TokenStore implements identity.TokenStore over the fcm_tokens table.
type TokenStore struct {
	db *pgxpool.Pool
}

// NewTokenStore creates a push-token store.
func NewTokenStore(db *pgxpool.Pool) *TokenStore {
	return &TokenStore{db: db}
}

// TokensByEmails returns tokens registered for any of the given emails.
func (s *TokenStore) TokensByEmails(ctx context.Context, emails []string) ([]string, error) {
	return s.queryTokens(ctx, `SELECT token FROM fcm_tokens WHERE email = ANY($1)`, emails)
}

// TokensByUserIDs returns tokens registered for any of the given user ids.
func (s *TokenStore) TokensByUserIDs(ctx context.Context, userIDs []string) ([]string, error) {
	return s.queryTokens(ctx, `SELECT token FROM fcm_tokens WHERE user_id = ANY($1)`, userIDs)
}

func (s *TokenStore) queryTokens(ctx context.Context, query string, values []string) ([]string, error) {
	if len(values) == 0 {
		return nil, nil
	}

	rows, err := s.db.Query(ctx, query, values)
	if err != nil {
		return nil, fmt.Errorf("query tokens: %w", err)
	}
	defer rows.Close()

	tokens := make([]string, 0)
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		if token != "" {
			tokens = append(tokens, token)
		}
	}
	return tokens, rows.Err()
}
