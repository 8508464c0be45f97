// Package export writes a decrypted snapshot of the projected state into a
// SQLite file for offline inspection and ad-hoc querying.
//
// The snapshot is derived data: the encrypted log stays the source of
// truth, and re-running the export replaces the previous snapshot in
// place.
package export

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/pb-/lgtd-suite/pkg/model"

	_ "modernc.org/sqlite"
)

// Snapshot replays nothing itself; it takes an already-projected state and
// the reference date used for schedule resolution, and writes the tags and
// items tables.
func Snapshot(path string, st *model.State, today string) error {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(60000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("open snapshot db: %w", err)
	}
	defer db.Close()

	if err := migrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	for _, stmt := range []string{`DELETE FROM items`, `DELETE FROM tags`, `DELETE FROM meta`} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("clear snapshot: %w", err)
		}
	}

	view := model.Render(st, "inbox", today)
	for pos, tc := range view.Tags {
		if _, err := tx.Exec(
			`INSERT INTO tags (position, name, item_count) VALUES (?, ?, ?)`,
			pos, tc.Name, tc.Count,
		); err != nil {
			return fmt.Errorf("insert tag %s: %w", tc.Name, err)
		}
	}

	for pos, item := range st.Items() {
		var scheduled sql.NullString
		if strings.HasPrefix(item.Tag, "$") {
			scheduled = sql.NullString{String: item.Tag[1:], Valid: true}
		}
		if _, err := tx.Exec(
			`INSERT INTO items (id, position, title, tag, display_tag, scheduled)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			item.ID, pos, item.Title, item.Tag, model.DisplayTag(item.Tag, today), scheduled,
		); err != nil {
			return fmt.Errorf("insert item %s: %w", item.ID, err)
		}
	}

	if _, err := tx.Exec(
		`INSERT INTO meta (exported_at, ref_date) VALUES (?, ?)`,
		time.Now().UTC().Format(time.RFC3339Nano), today,
	); err != nil {
		return fmt.Errorf("insert meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

func migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS items (
		id          TEXT PRIMARY KEY,
		position    INTEGER NOT NULL,
		title       TEXT NOT NULL,
		tag         TEXT NOT NULL,
		display_tag TEXT NOT NULL,
		scheduled   TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_items_display_tag ON items(display_tag);

	CREATE TABLE IF NOT EXISTS tags (
		position   INTEGER PRIMARY KEY,
		name       TEXT NOT NULL,
		item_count INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meta (
		exported_at TEXT NOT NULL,
		ref_date    TEXT NOT NULL
	);
	`
	_, err := db.Exec(schema)
	return err
}
