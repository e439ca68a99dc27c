package keystore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mentionflow/harness/internal/storage"
)

const ctxTimeout = 5 * time.Second

// PostgresStore implements Store against the operator_keys table, using the
// shared storage.Connection the way the teacher's PersistentKeyStore does.
type PostgresStore struct {
	conn *storage.Connection
}

// NewPostgresStore returns a PostgreSQL-backed operator key store.
func NewPostgresStore(conn *storage.Connection) *PostgresStore {
	return &PostgresStore{conn: conn}
}

// FindByKey looks up an operator key by its SHA-256 lookup hash, then
// verifies the plaintext against the stored bcrypt hash.
func (s *PostgresStore) FindByKey(ctx context.Context, plaintext string) (*OperatorKey, bool) {
	if plaintext == "" {
		return nil, false
	}

	ctx, cancel := context.WithTimeout(ctx, ctxTimeout)
	defer cancel()

	lookupHash := LookupHash(plaintext)

	var (
		key       OperatorKey
		revokedAt sql.NullTime
	)

	err := s.conn.QueryRowContext(ctx,
		`SELECT id, key_hash, label, created_at, revoked_at FROM operator_keys WHERE lookup_hash = $1 LIMIT 1`,
		lookupHash,
	).Scan(&key.ID, &key.Key, &key.Label, &key.CreatedAt, &revokedAt)
	if err != nil {
		return nil, false
	}

	if revokedAt.Valid {
		key.RevokedAt = &revokedAt.Time
	}

	if !CompareKeyHash(key.Key, plaintext) {
		return nil, false
	}

	key.Key = MaskKey(plaintext)

	return &key, true
}

// Add stores a new operator key, hashing plaintext with bcrypt and indexing
// it with a SHA-256 lookup hash.
func (s *PostgresStore) Add(ctx context.Context, label, plaintext string) (*OperatorKey, error) {
	ctx, cancel := context.WithTimeout(ctx, ctxTimeout)
	defer cancel()

	if _, found := s.FindByKey(ctx, plaintext); found {
		return nil, ErrKeyAlreadyExists
	}

	keyHash, err := HashKey(plaintext)
	if err != nil {
		return nil, err
	}

	lookupHash := LookupHash(plaintext)

	var key OperatorKey

	err = s.conn.QueryRowContext(ctx,
		`INSERT INTO operator_keys (lookup_hash, key_hash, label) VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		lookupHash, keyHash, label,
	).Scan(&key.ID, &key.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("keystore: insert operator key: %w", err)
	}

	key.Key = MaskKey(plaintext)
	key.Label = label

	return &key, nil
}

// Revoke marks an operator key as revoked; it is kept, not deleted, for
// audit purposes.
func (s *PostgresStore) Revoke(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, ctxTimeout)
	defer cancel()

	result, err := s.conn.ExecContext(ctx,
		`UPDATE operator_keys SET revoked_at = now() WHERE id = $1 AND revoked_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("keystore: revoke operator key: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("keystore: revoke operator key: %w", err)
	}

	if affected == 0 {
		return ErrKeyNotFound
	}

	return nil
}

// HealthCheck delegates to the underlying connection.
func (s *PostgresStore) HealthCheck(ctx context.Context) error {
	return s.conn.HealthCheck(ctx)
}
