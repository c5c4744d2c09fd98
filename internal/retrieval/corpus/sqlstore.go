package corpus

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema creates the table read by DefaultQuery. It is valid for both
// PostgreSQL and SQLite.
const Schema = `CREATE TABLE IF NOT EXISTS law_fragments (
	id     INTEGER PRIMARY KEY,
	title  TEXT NOT NULL DEFAULT '',
	text   TEXT NOT NULL,
	source TEXT NOT NULL DEFAULT ''
)`

// WriteRecords replaces the contents of law_fragments with items inside
// tx. Row ids follow slice order so DefaultQuery returns them unchanged.
func WriteRecords(ctx context.Context, tx *sql.Tx, driver string, items []RawRecord) error {
	if _, err := tx.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("creating law_fragments: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM law_fragments`); err != nil {
		return fmt.Errorf("clearing law_fragments: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, insertStatement(driver))
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()
	for i, r := range items {
		if _, err := stmt.ExecContext(ctx, i+1, r.Title, r.Text, r.Source); err != nil {
			return fmt.Errorf("inserting record %d: %w", r.Index, err)
		}
	}
	return nil
}

func insertStatement(driver string) string {
	if driver == "postgres" {
		return `INSERT INTO law_fragments (id, title, text, source) VALUES ($1, $2, $3, $4)`
	}
	return `INSERT INTO law_fragments (id, title, text, source) VALUES (?, ?, ?, ?)`
}
