package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a guild is not stored.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when creating a guild that is already stored.
	ErrAlreadyExists = errors.New("already exists")
)

// uniqueViolation is the Postgres error code for a duplicate key.
const uniqueViolation = "23505"

// GuildRecord is a stored guild.
type GuildRecord struct {
	ID        snowflake.ID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RefreshCounts reports what a refresh changed.
type RefreshCounts struct {
	Created int
	Updated int
	Deleted int
}

// GuildStore persists the guilds the bot is a member of.
type GuildStore struct{ db *sql.DB }

// NewGuildStore creates a GuildStore over db.
func NewGuildStore(db *sql.DB) *GuildStore { return &GuildStore{db: db} }

// Get returns the stored guild with the given id.
func (s *GuildStore) Get(ctx context.Context, id snowflake.ID) (GuildRecord, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT snowflake, created_at, updated_at
  FROM guilds
 WHERE snowflake = $1
`, int64(id))

	var (
		rec GuildRecord
		raw int64
	)
	err := row.Scan(&raw, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return GuildRecord{}, ErrNotFound
	}
	if err != nil {
		return GuildRecord{}, fmt.Errorf("failed to get guild %s: %w", id, err)
	}
	rec.ID = snowflake.ID(raw)
	return rec, nil
}

// Create stores a new guild.
func (s *GuildStore) Create(ctx context.Context, id snowflake.ID) (GuildRecord, error) {
	row := s.db.QueryRowContext(ctx, `
INSERT INTO guilds (snowflake)
VALUES ($1)
RETURNING created_at, updated_at
`, int64(id))

	rec := GuildRecord{ID: id}
	if err := row.Scan(&rec.CreatedAt, &rec.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return GuildRecord{}, ErrAlreadyExists
		}
		return GuildRecord{}, fmt.Errorf("failed to create guild %s: %w", id, err)
	}
	return rec, nil
}

// Delete removes a guild. Deleting a guild that is not stored returns ErrNotFound.
func (s *GuildStore) Delete(ctx context.Context, id snowflake.ID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM guilds WHERE snowflake = $1`, int64(id))
	if err != nil {
		return fmt.Errorf("failed to delete guild %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Refresh makes the stored set equal to ids in one transaction: guilds not
// in ids are deleted, missing ones created and the rest touched.
func (s *GuildStore) Refresh(ctx context.Context, ids []snowflake.ID) (RefreshCounts, error) {
	raw := make([]int64, len(ids))
	for i, id := range ids {
		raw[i] = int64(id)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return RefreshCounts{}, fmt.Errorf("failed to begin refresh: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var counts RefreshCounts

	res, err := tx.ExecContext(ctx, `DELETE FROM guilds WHERE NOT (snowflake = ANY($1))`, raw)
	if err != nil {
		return RefreshCounts{}, fmt.Errorf("failed to delete stale guilds: %w", err)
	}
	counts.Deleted = rowsAffected(res)

	res, err = tx.ExecContext(ctx, `UPDATE guilds SET updated_at = now() WHERE snowflake = ANY($1)`, raw)
	if err != nil {
		return RefreshCounts{}, fmt.Errorf("failed to touch guilds: %w", err)
	}
	counts.Updated = rowsAffected(res)

	res, err = tx.ExecContext(ctx, `
INSERT INTO guilds (snowflake)
SELECT unnest($1::BIGINT[])
ON CONFLICT (snowflake) DO NOTHING
`, raw)
	if err != nil {
		return RefreshCounts{}, fmt.Errorf("failed to create guilds: %w", err)
	}
	counts.Created = rowsAffected(res)

	if err := tx.Commit(); err != nil {
		return RefreshCounts{}, fmt.Errorf("failed to commit refresh: %w", err)
	}
	return counts, nil
}

// Count returns the number of stored guilds.
func (s *GuildStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM guilds`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count guilds: %w", err)
	}
	return n, nil
}

// PingContext checks that the database is reachable.
func (s *GuildStore) PingContext(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func rowsAffected(res sql.Result) int {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return int(n)
}
