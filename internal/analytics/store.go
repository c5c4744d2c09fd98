package analytics

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// SnapshotStore persists aggregated stats as JSON rows in
// analytics_snapshots, in either PostgreSQL or SQLite.
type SnapshotStore struct {
	db       *sql.DB
	postgres bool
	logger   *slog.Logger
}

// NewSnapshotStore wraps db. driver is the database/sql driver name the
// handle was opened with.
func NewSnapshotStore(db *sql.DB, driver string) *SnapshotStore {
	return &SnapshotStore{
		db:       db,
		postgres: driver == "postgres",
		logger:   slog.Default().With("component", "analytics-store"),
	}
}

func (s *SnapshotStore) EnsureSchema(ctx context.Context) error {
	ddl := `CREATE TABLE IF NOT EXISTS analytics_snapshots (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	data        TEXT NOT NULL,
	captured_at TIMESTAMP NOT NULL
)`
	if s.postgres {
		ddl = `CREATE TABLE IF NOT EXISTS analytics_snapshots (
	id          BIGSERIAL PRIMARY KEY,
	data        TEXT NOT NULL,
	captured_at TIMESTAMPTZ NOT NULL
)`
	}
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("creating analytics_snapshots: %w", err)
	}
	return nil
}

func (s *SnapshotStore) Save(ctx context.Context, stats Stats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshaling stats: %w", err)
	}
	q := `INSERT INTO analytics_snapshots (data, captured_at) VALUES (?, ?)`
	if s.postgres {
		q = `INSERT INTO analytics_snapshots (data, captured_at) VALUES ($1, $2)`
	}
	if _, err := s.db.ExecContext(ctx, q, string(data), time.Now().UTC()); err != nil {
		return fmt.Errorf("saving analytics snapshot: %w", err)
	}
	s.logger.Debug("analytics snapshot saved", "total_searches", stats.TotalSearches)
	return nil
}

// Latest returns the newest snapshot, or nil when none exists.
func (s *SnapshotStore) Latest(ctx context.Context) (*Stats, error) {
	snaps, err := s.List(ctx, 1)
	if err != nil || len(snaps) == 0 {
		return nil, err
	}
	return &snaps[0], nil
}

// List returns up to limit snapshots, newest first. Rows that no longer
// decode are skipped.
func (s *SnapshotStore) List(ctx context.Context, limit int) ([]Stats, error) {
	q := `SELECT data FROM analytics_snapshots ORDER BY id DESC LIMIT ?`
	if s.postgres {
		q = `SELECT data FROM analytics_snapshots ORDER BY id DESC LIMIT $1`
	}
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var out []Stats
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		var stats Stats
		if err := json.Unmarshal([]byte(data), &stats); err != nil {
			s.logger.Warn("skipping corrupt snapshot", "error", err)
			continue
		}
		out = append(out, stats)
	}
	if err := rows.Err(); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reading snapshots: %w", err)
	}
	return out, nil
}

// Run saves agg's stats every interval and once more on shutdown.
func (s *SnapshotStore) Run(ctx context.Context, agg *Aggregator, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	s.logger.Info("periodic analytics snapshots started", "interval", interval)
	for {
		select {
		case <-ticker.C:
			if err := s.Save(ctx, agg.Stats()); err != nil {
				s.logger.Error("periodic snapshot failed", "error", err)
			}
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.Save(shutdownCtx, agg.Stats()); err != nil {
				s.logger.Error("final snapshot failed", "error", err)
			}
			cancel()
			return
		}
	}
}
