package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

const (
	ctxTimeout = 5 * time.Second

	insertActiveSQL = `
INSERT INTO active (occurred_at, attempts, visible_at, claimed_at, kind, payload)
VALUES ($1, 0, $2, '{}', $3, $4)
`

	claimActiveSQL = `
SELECT id, occurred_at, attempts, visible_at, claimed_at, kind, payload
FROM active
WHERE attempts < $1 AND visible_at <= $2
ORDER BY random()
LIMIT 1
FOR UPDATE SKIP LOCKED
`

	updateClaimedSQL = `
UPDATE active
SET attempts = $2, visible_at = $3, claimed_at = $4
WHERE id = $1
`

	deleteActiveSQL = `
DELETE FROM active WHERE id = $1
`

	insertHistorySQL = `
INSERT INTO history (id, occurred_at, attempts, visible_at, claimed_at, kind, payload, processed)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

	selectForCompleteSQL = `
SELECT id, occurred_at, attempts, visible_at, claimed_at, kind, payload
FROM active
WHERE id = $1
FOR UPDATE
`

	selectSweepCandidatesSQL = `
SELECT id, occurred_at, attempts, visible_at, claimed_at, kind, payload
FROM active
WHERE attempts >= $1 OR visible_at <= $2
FOR UPDATE SKIP LOCKED
`
)

// PostgresStore is the PostgreSQL-backed Queue Store. It holds a *sql.DB the
// way the harness's storage.Connection does, and takes an injected Clock so
// tests can advance lease and max-age boundaries deterministically.
type PostgresStore struct {
	db    *sql.DB
	clock Clock
}

// NewPostgresStore returns a Queue Store backed by db, using clock for every
// visible_at/claimed_at computation. Pass queue.RealClock() in production.
func NewPostgresStore(db *sql.DB, clock Clock) *PostgresStore {
	if clock == nil {
		clock = RealClock()
	}

	return &PostgresStore{db: db, clock: clock}
}

// occurredAtPayload is the subset of a mention payload the store inspects to
// derive occurred_at. Everything else in payload is opaque and stored as-is.
type occurredAtPayload struct {
	OccurredAt interface{} `json:"occurred_at"`
}

// Enqueue inserts a new active row with attempts=0, visible_at=clock.Now(),
// and an empty claimed_at array. occurred_at is derived from the payload's
// "occurred_at" field via ToAbsoluteTime.
func (s *PostgresStore) Enqueue(ctx context.Context, kind string, payload json.RawMessage) error {
	ctx, cancel := context.WithTimeout(ctx, ctxTimeout)
	defer cancel()

	var parsed occurredAtPayload
	if err := json.Unmarshal(payload, &parsed); err != nil || parsed.OccurredAt == nil {
		return ErrMissingOccurredAt
	}

	occurredAt, err := ToAbsoluteTime(parsed.OccurredAt)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMissingOccurredAt, err)
	}

	if _, err := s.db.ExecContext(ctx, insertActiveSQL, occurredAt, s.clock.Now(), kind, []byte(payload)); err != nil {
		return fmt.Errorf("%w: enqueue: %w", ErrStoreUnavailable, err)
	}

	return nil
}

// Claim selects one eligible active row at random among ties, acquiring a
// row-level lock that skips rows already locked by concurrent claimants, and
// advances its attempts/visible_at/claimed_at inside the same transaction. It
// returns (nil, nil) when no eligible row exists.
func (s *PostgresStore) Claim(ctx context.Context, maxAttempts int, leaseDuration time.Duration) (*Event, error) {
	ctx, cancel := context.WithTimeout(ctx, ctxTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: claim: begin: %w", ErrStoreUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	event, err := scanEvent(tx.QueryRowContext(ctx, claimActiveSQL, maxAttempts, s.clock.Now()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("%w: claim: select: %w", ErrStoreUnavailable, err)
	}

	now := s.clock.Now()
	event.Attempts++
	event.VisibleAt = now.Add(leaseDuration)
	event.ClaimedAt = append(event.ClaimedAt, now)

	if _, err := tx.ExecContext(ctx, updateClaimedSQL, event.ID, event.Attempts, event.VisibleAt, pq.Array(event.ClaimedAt)); err != nil {
		return nil, fmt.Errorf("%w: claim: update: %w", ErrStoreUnavailable, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: claim: commit: %w", ErrStoreUnavailable, err)
	}

	return event, nil
}

// Complete atomically moves the active row identified by id into history,
// marking processed as given. It returns ErrEventNotFound if the row's lease
// already expired and a concurrent sweep or worker moved it first.
func (s *PostgresStore) Complete(ctx context.Context, id EventID, processed bool) error {
	ctx, cancel := context.WithTimeout(ctx, ctxTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: complete: begin: %w", ErrStoreUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	event, err := scanEvent(tx.QueryRowContext(ctx, selectForCompleteSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return ErrEventNotFound
	}

	if err != nil {
		return fmt.Errorf("%w: complete: select: %w", ErrStoreUnavailable, err)
	}

	if err := archiveLocked(ctx, tx, event, processed); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: complete: commit: %w", ErrStoreUnavailable, err)
	}

	return nil
}

// Sweep archives every active row whose attempts have reached maxAttempts
// (poison-pill exhaustion) or whose visible_at has aged past maxAge (expiry),
// marking each processed=false. Sweep is idempotent: rows it does not find
// (already archived by another caller) are simply absent from the result.
func (s *PostgresStore) Sweep(ctx context.Context, maxAttempts int, maxAge time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, ctxTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: sweep: begin: %w", ErrStoreUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	cutoff := s.clock.Now().Add(-maxAge)

	rows, err := tx.QueryContext(ctx, selectSweepCandidatesSQL, maxAttempts, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%w: sweep: select: %w", ErrStoreUnavailable, err)
	}

	var candidates []*Event

	for rows.Next() {
		event, err := scanEventRow(rows)
		if err != nil {
			_ = rows.Close()

			return 0, fmt.Errorf("%w: sweep: scan: %w", ErrStoreUnavailable, err)
		}

		candidates = append(candidates, event)
	}

	if err := rows.Err(); err != nil {
		_ = rows.Close()

		return 0, fmt.Errorf("%w: sweep: rows: %w", ErrStoreUnavailable, err)
	}

	_ = rows.Close()

	for _, event := range candidates {
		if err := archiveLocked(ctx, tx, event, false); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: sweep: commit: %w", ErrStoreUnavailable, err)
	}

	return len(candidates), nil
}

// Depth returns the number of rows currently in active, for the admin stats
// endpoint.
func (s *PostgresStore) Depth(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, ctxTimeout)
	defer cancel()

	var depth int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM active`).Scan(&depth); err != nil {
		return 0, fmt.Errorf("%w: depth: %w", ErrStoreUnavailable, err)
	}

	return depth, nil
}

// HealthCheck pings the underlying database pool.
func (s *PostgresStore) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func archiveLocked(ctx context.Context, tx *sql.Tx, event *Event, processed bool) error {
	if _, err := tx.ExecContext(ctx, insertHistorySQL,
		event.ID, event.OccurredAt, event.Attempts, event.VisibleAt, pq.Array(event.ClaimedAt), event.Kind, []byte(event.Payload), processed,
	); err != nil {
		return fmt.Errorf("%w: archive: insert history: %w", ErrStoreUnavailable, err)
	}

	if _, err := tx.ExecContext(ctx, deleteActiveSQL, event.ID); err != nil {
		return fmt.Errorf("%w: archive: delete active: %w", ErrStoreUnavailable, err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (*Event, error) {
	return scanEventRow(row)
}

func scanEventRow(row rowScanner) (*Event, error) {
	var (
		event     Event
		claimedAt []time.Time
		payload   []byte
	)

	if err := row.Scan(&event.ID, &event.OccurredAt, &event.Attempts, &event.VisibleAt, pq.Array(&claimedAt), &event.Kind, &payload); err != nil {
		return nil, err
	}

	event.ClaimedAt = claimedAt
	event.Payload = payload

	return &event, nil
}
