package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/lawsearch/internal/retrieval/corpus"
)

const actJSON = `[
	{"title": "Labor Code", "text": "Article 1. Scope\nThis Code governs the employment contract.\nArticle 2. Principles\nAn employee may terminate the contract.", "source": "https://adilet.example/1"},
	{"title": "Empty", "text": ""}
]`

func runApp(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &errOut
	err := app.Run(append([]string{"lawctl"}, args...))
	return out.String(), errOut.String(), err
}

func writeConfig(t *testing.T, dir, corpusPath string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("corpus:\n  source: file\n  path: "+corpusPath+"\n"), 0o644))
	return path
}

func TestPrepareSplitsArticles(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "acts.json")
	out := filepath.Join(dir, "laws.jsonl")
	require.NoError(t, os.WriteFile(in, []byte(actJSON), 0o644))

	_, stderr, err := runApp(t, "prepare", "--in", in, "--out", out)
	require.NoError(t, err)
	assert.Contains(t, stderr, "skipped record 1")
	assert.Contains(t, stderr, "prepared 2 records")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	records, err := corpus.ParseJSONL(data)
	require.NoError(t, err)
	require.Len(t, records.Items, 2)
	assert.Equal(t, "Labor Code, Article 1. Scope", records.Items[0].Title)
	assert.Equal(t, "https://adilet.example/1", records.Items[1].Source)
}

func TestSearchAndStatsCommands(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	in := filepath.Join(dir, "laws.jsonl")
	require.NoError(t, os.WriteFile(in, []byte(
		`{"title": "Labor Code Art. 1", "text": "An employee may terminate the employment contract."}`+"\n"+
			`{"title": "Tax Code Art. 5", "text": "A sole proprietor must register."}`+"\n"), 0o644))
	cfg := writeConfig(t, dir, in)

	out, _, err := runApp(t, "--config", cfg, "search", "--json", "employee", "contract")
	require.NoError(t, err)
	assert.Contains(t, out, `"title": "Labor Code Art. 1"`)
	assert.Contains(t, out, "<mark>employee</mark>")

	out, _, err = runApp(t, "--config", cfg, "search", "--context", "employee")
	require.NoError(t, err)
	assert.Contains(t, out, `<section class="law-fragment">`)

	out, _, err = runApp(t, "--config", cfg, "search", "employee")
	require.NoError(t, err)
	assert.Contains(t, out, "Labor Code Art. 1")
	assert.NotContains(t, out, "<mark>")

	out, _, err = runApp(t, "--config", cfg, "stats", "--top", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "fragments   2")

	_, _, err = runApp(t, "--config", cfg, "search")
	assert.ErrorContains(t, err, "usage")
}

func TestImportIntoSQLite(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	in := filepath.Join(dir, "acts.json")
	require.NoError(t, os.WriteFile(in, []byte(actJSON), 0o644))
	db := filepath.Join(dir, "laws.db")
	cfg := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("corpus:\n  source: sqlite\n  splitArticles: true\nsqlite:\n  path: "+db+"\n"), 0o644))

	out, _, err := runApp(t, "--config", cfg, "import", "--in", in, "--to", "sqlite")
	require.NoError(t, err)
	assert.Contains(t, out, "imported 2 records into sqlite")

	out, _, err = runApp(t, "--config", cfg, "search", "--json", "terminate")
	require.NoError(t, err)
	assert.Contains(t, out, "Article 2. Principles")

	_, _, err = runApp(t, "--config", cfg, "import", "--in", in, "--to", "mongo")
	assert.ErrorContains(t, err, "unknown target")
}

func TestPlainSnippet(t *testing.T) {
	got := plainSnippet("a &lt;b&gt; <mark>employee</mark> c")
	assert.True(t, strings.HasPrefix(got, "a <b> "))
	assert.Contains(t, got, "employee")
	assert.NotContains(t, got, "<mark>")
	assert.Equal(t, "tail", plainSnippet("tail"))
}

func TestAdminKeyCommands(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	cfg := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("corpus:\n  source: sqlite\nsqlite:\n  path: "+filepath.Join(dir, "laws.db")+"\n"), 0o644))

	out, _, err := runApp(t, "--config", cfg, "admin-key", "create", "--name", "ops")
	require.NoError(t, err)
	assert.Len(t, strings.TrimSpace(out), 64)

	out, _, err = runApp(t, "--config", cfg, "admin-key", "list")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "1\tops\t"))
	assert.Contains(t, out, "expires never")

	out, _, err = runApp(t, "--config", cfg, "admin-key", "revoke", "1")
	require.NoError(t, err)
	assert.Equal(t, "revoked key 1\n", out)

	_, _, err = runApp(t, "--config", cfg, "admin-key", "revoke", "x")
	assert.ErrorContains(t, err, "usage")
}
