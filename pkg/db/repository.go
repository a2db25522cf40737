package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const repoLogPrefix = "db:repository"

// Repository provides database access for the launch journal.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// RecordLaunch inserts a launch in the sent state and returns its id. A token
// of zero is stored as NULL.
func (r *Repository) RecordLaunch(ctx context.Context, kind, command string, token int) (string, error) {
	id := uuid.NewString()
	slog.Debug(fmt.Sprintf("%s - RecordLaunch id=%s kind=%s token=%d", repoLogPrefix, id, kind, token))

	var tok *int
	if token != 0 {
		tok = &token
	}
	now := time.Now().UTC()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO launch_journal (id, kind, token, command, status, created, modified)
		 VALUES ($1, $2, $3, $4, $5, $6, $6)`,
		id, kind, tok, command, "sent", now)
	if err != nil {
		return "", fmt.Errorf("%s - insert launch failed: %w", repoLogPrefix, err)
	}
	return id, nil
}

// UpdateLaunchStatus sets the final status of a launch. An empty detail is stored as NULL.
func (r *Repository) UpdateLaunchStatus(ctx context.Context, id, status, detail string) error {
	var d *string
	if detail != "" {
		d = &detail
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE launch_journal SET status = $2, detail = $3, modified = $4 WHERE id = $1`,
		id, status, d, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("%s - update launch %s failed: %w", repoLogPrefix, id, err)
	}
	if tag.RowsAffected() == 0 {
		slog.Warn(fmt.Sprintf("%s - UpdateLaunchStatus: no launch with id %s", repoLogPrefix, id))
	}
	return nil
}

// GetLaunch finds a launch by id. Returns nil, nil when it does not exist.
func (r *Repository) GetLaunch(ctx context.Context, id string) (*LaunchRecord, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, kind, token, command, status, detail, created, modified
		 FROM launch_journal WHERE id = $1`, id)
	rec, err := scanLaunch(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

// ListRecent returns the newest launches first.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]LaunchRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, kind, token, command, status, detail, created, modified
		 FROM launch_journal ORDER BY created DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("%s - list launches failed: %w", repoLogPrefix, err)
	}
	defer rows.Close()

	var out []LaunchRecord
	for rows.Next() {
		rec, err := scanLaunch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func scanLaunch(row pgx.Row) (*LaunchRecord, error) {
	var rec LaunchRecord
	err := row.Scan(&rec.ID, &rec.Kind, &rec.Token, &rec.Command, &rec.Status, &rec.Detail, &rec.Created, &rec.Modified)
	if err == pgx.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%s - scan launch failed: %w", repoLogPrefix, err)
	}
	return &rec, nil
}
