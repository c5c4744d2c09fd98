package adminkey

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/lawsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/lawsearch/pkg/sqlite"
)

func newSQLStore(t *testing.T, static ...string) *Store {
	t.Helper()
	client, err := sqlite.New(config.SQLiteConfig{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	s := NewStore(client.DB, sqlite.DriverName, static)
	require.NoError(t, s.EnsureSchema(context.Background()))
	return s
}

func TestStaticKeys(t *testing.T) {
	s := NewStore(nil, "", []string{"s3cret", ""})
	info, err := s.Validate(context.Background(), "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "config", info.Name)

	_, err = s.Validate(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidKey)
	_, err = s.CreateKey(context.Background(), "ops", nil)
	assert.Error(t, err)
}

func TestCreateValidateRevoke(t *testing.T) {
	ctx := context.Background()
	s := newSQLStore(t)

	raw, err := s.CreateKey(ctx, "ops", nil)
	require.NoError(t, err)
	assert.Len(t, raw, 64)

	info, err := s.Validate(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, "ops", info.Name)

	keys, err := s.ListKeys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, info.ID, keys[0].ID)

	require.NoError(t, s.RevokeKey(ctx, info.ID))
	_, err = s.Validate(ctx, raw)
	assert.ErrorIs(t, err, ErrInvalidKey)
	assert.ErrorIs(t, s.RevokeKey(ctx, info.ID), ErrInvalidKey)
}

func TestExpiredKey(t *testing.T) {
	ctx := context.Background()
	s := newSQLStore(t)
	expiry := time.Now().Add(time.Hour)
	raw, err := s.CreateKey(ctx, "temp", &expiry)
	require.NoError(t, err)

	_, err = s.Validate(ctx, raw)
	require.NoError(t, err)

	s.now = func() time.Time { return expiry.Add(time.Minute) }
	_, err = s.Validate(ctx, raw)
	assert.ErrorIs(t, err, ErrExpiredKey)
}

func TestBind(t *testing.T) {
	pg := NewStore(nil, "postgres", nil)
	assert.Equal(t, "a = $1 AND b = $2", pg.bind("a = ? AND b = ?"))
	lite := NewStore(nil, sqlite.DriverName, nil)
	assert.Equal(t, "a = ?", lite.bind("a = ?"))
}

func TestMiddleware(t *testing.T) {
	s := NewStore(nil, "", []string{"s3cret"})
	var seen *KeyInfo
	h := Middleware(s)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
		w.WriteHeader(http.StatusAccepted)
	}))

	tests := []struct {
		name   string
		header string
		value  string
		want   int
		body   string
	}{
		{"missing", "", "", http.StatusUnauthorized, `{"error":"missing admin key"}`},
		{"wrong", "X-Admin-Key", "nope", http.StatusUnauthorized, `{"error":"invalid admin key"}`},
		{"header", "X-Admin-Key", "s3cret", http.StatusAccepted, ""},
		{"bearer", "Authorization", "Bearer s3cret", http.StatusAccepted, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/corpus/reload", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.body != "" {
				assert.JSONEq(t, tt.body, rec.Body.String())
			}
		})
	}
	require.NotNil(t, seen)
	assert.Equal(t, "config", seen.Name)
}
