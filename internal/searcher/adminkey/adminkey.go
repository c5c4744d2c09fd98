// Package adminkey guards the mutating admin endpoints (corpus reload and
// cache invalidation) with SHA-256 hashed keys. Keys come from the config
// file or from the admin_keys table of the SQL corpus backend. Raw keys are
// generated with crypto/rand and only their hash is stored.
package adminkey

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var (
	ErrInvalidKey = errors.New("invalid admin key")
	ErrExpiredKey = errors.New("admin key expired")
)

// KeyInfo holds metadata about a validated admin key.
type KeyInfo struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// configKeyName labels keys that come from configuration.
const configKeyName = "config"

// Store validates admin keys. db may be nil, in which case only configured
// keys are accepted.
type Store struct {
	db       *sql.DB
	postgres bool
	static   map[string]struct{}
	now      func() time.Time
	logger   *slog.Logger
}

// NewStore builds a Store over db, opened with the named database/sql
// driver, accepting the raw keys in static as well.
func NewStore(db *sql.DB, driver string, static []string) *Store {
	s := &Store{
		db:       db,
		postgres: driver == "postgres",
		static:   make(map[string]struct{}, len(static)),
		now:      time.Now,
		logger:   slog.Default().With("component", "adminkey"),
	}
	for _, k := range static {
		if k != "" {
			s.static[HashKey(k)] = struct{}{}
		}
	}
	return s
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	ddl := `CREATE TABLE IF NOT EXISTS admin_keys (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	key_hash   TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL,
	is_active  BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMP NOT NULL,
	expires_at TIMESTAMP
)`
	if s.postgres {
		ddl = `CREATE TABLE IF NOT EXISTS admin_keys (
	id         BIGSERIAL PRIMARY KEY,
	key_hash   TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL,
	is_active  BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ
)`
	}
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("creating admin_keys: %w", err)
	}
	return nil
}

// Validate checks a raw key. Returns ErrInvalidKey or ErrExpiredKey on
// rejection.
func (s *Store) Validate(ctx context.Context, rawKey string) (*KeyInfo, error) {
	hash := HashKey(rawKey)
	if _, ok := s.static[hash]; ok {
		return &KeyInfo{Name: configKeyName}, nil
	}
	if s.db == nil {
		return nil, ErrInvalidKey
	}

	var info KeyInfo
	var expiresAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		s.bind(`SELECT id, name, created_at, expires_at FROM admin_keys WHERE key_hash = ? AND is_active = TRUE`),
		hash,
	).Scan(&info.ID, &info.Name, &info.CreatedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidKey
	}
	if err != nil {
		return nil, fmt.Errorf("querying admin key: %w", err)
	}
	if expiresAt.Valid {
		if expiresAt.Time.Before(s.now()) {
			return nil, ErrExpiredKey
		}
		info.ExpiresAt = &expiresAt.Time
	}
	return &info, nil
}

// CreateKey generates a key, stores its hash and returns the raw key. The
// raw key cannot be retrieved again.
func (s *Store) CreateKey(ctx context.Context, name string, expiresAt *time.Time) (string, error) {
	if s.db == nil {
		return "", errors.New("admin keys need a SQL corpus backend")
	}
	rawKey := generateRawKey()

	var expiry sql.NullTime
	if expiresAt != nil {
		expiry = sql.NullTime{Time: expiresAt.UTC(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		s.bind(`INSERT INTO admin_keys (key_hash, name, created_at, expires_at) VALUES (?, ?, ?, ?)`),
		HashKey(rawKey), name, s.now().UTC(), expiry,
	)
	if err != nil {
		return "", fmt.Errorf("creating admin key: %w", err)
	}
	s.logger.Info("admin key created", "name", name)
	return rawKey, nil
}

// RevokeKey deactivates the key with the given id.
func (s *Store) RevokeKey(ctx context.Context, id int64) error {
	if s.db == nil {
		return ErrInvalidKey
	}
	result, err := s.db.ExecContext(ctx,
		s.bind(`UPDATE admin_keys SET is_active = FALSE WHERE id = ? AND is_active = TRUE`), id)
	if err != nil {
		return fmt.Errorf("revoking admin key: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrInvalidKey
	}
	s.logger.Info("admin key revoked", "id", id)
	return nil
}

// ListKeys returns active stored keys, newest first.
func (s *Store) ListKeys(ctx context.Context) ([]KeyInfo, error) {
	if s.db == nil {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, created_at, expires_at FROM admin_keys WHERE is_active = TRUE ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing admin keys: %w", err)
	}
	defer rows.Close()

	var keys []KeyInfo
	for rows.Next() {
		var k KeyInfo
		var expiresAt sql.NullTime
		if err := rows.Scan(&k.ID, &k.Name, &k.CreatedAt, &expiresAt); err != nil {
			return nil, fmt.Errorf("scanning admin key row: %w", err)
		}
		if expiresAt.Valid {
			k.ExpiresAt = &expiresAt.Time
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// bind rewrites ? placeholders to $n for PostgreSQL.
func (s *Store) bind(q string) string {
	if !s.postgres {
		return q
	}
	out := make([]byte, 0, len(q)+8)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			out = fmt.Appendf(out, "$%d", n)
			continue
		}
		out = append(out, q[i])
	}
	return string(out)
}

// HashKey returns the SHA-256 hex digest of a raw key.
func HashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func generateRawKey() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
