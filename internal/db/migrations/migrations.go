package migrations

import (
	"database/sql"
	_ "embed"
	"fmt"
)

//go:embed 001_initial_schema.sql
var initialSchemaSQL string

//go:embed 002_indexes.sql
var indexesSQL string

// All contains all migrations in order. Each migration's index+1 is its version number.
var All = []string{
	initialSchemaSQL, // version 1
	indexesSQL,       // version 2
}

// Column is a column that must exist on a table. Missing columns are added
// with their definition; columns are never dropped or renamed.
type Column struct {
	Table      string
	Name       string
	Definition string
}

// Columns lists every column added after the first release of each table.
var Columns = []Column{
	{"commands", "masked_command", "TEXT DEFAULT ''"},
	{"commands", "query_summary", "TEXT DEFAULT ''"},
	{"commands", "explanation", "TEXT DEFAULT ''"},
	{"commands", "category", "TEXT DEFAULT 'Other'"},
	{"commands", "favorite", "INTEGER DEFAULT 0"},
	{"commands", "usage_count", "INTEGER DEFAULT 1"},
	{"commands", "created_at", "INTEGER DEFAULT 0"},
	{"profile_reports", "last_processed_id", "INTEGER DEFAULT 0"},
}

// LegacyCategoryRenames maps labels written by older releases to current ones.
var LegacyCategoryRenames = map[string]string{
	"History": "Shell History",
}

// AddColumnSQL returns the ALTER statement for c
func AddColumnSQL(c Column) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", c.Table, c.Name, c.Definition)
}

// TableInfoSQL returns the PRAGMA listing the columns of table
func TableInfoSQL(table string) string {
	return fmt.Sprintf("PRAGMA table_info(%s)", table)
}

type execQueryer interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
}

// Migrate runs all pending migrations on the database.
// It reads the current version from PRAGMA user_version and runs any
// migrations with index >= current version. Each migration runs in its
// own transaction. If a migration fails, it rolls back and stops.
// Afterwards it adds any missing columns and renames legacy categories, which
// also repairs databases whose version is current but whose tables predate a
// column.
func Migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for i := version; i < len(All); i++ {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", i+1, err)
		}

		if _, err := tx.Exec(All[i]); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}

		// Tables created by older releases survive CREATE TABLE IF NOT EXISTS
		// untouched; later migrations index columns they may lack.
		if i == 0 {
			if err := EnsureColumns(tx); err != nil {
				tx.Rollback()
				return fmt.Errorf("migration %d failed: %w", i+1, err)
			}
		}

		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to set schema version to %d: %w", i+1, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", i+1, err)
		}
	}

	if err := EnsureColumns(db); err != nil {
		return err
	}

	for from, to := range LegacyCategoryRenames {
		if _, err := db.Exec("UPDATE commands SET category = ? WHERE category = ?", to, from); err != nil {
			return fmt.Errorf("failed to rename legacy category %q: %w", from, err)
		}
	}

	return nil
}

// EnsureColumns adds every column in Columns that its table is missing.
func EnsureColumns(db execQueryer) error {
	existing := make(map[string]map[string]bool)

	for _, col := range Columns {
		if _, ok := existing[col.Table]; !ok {
			names, err := columnNames(db, col.Table)
			if err != nil {
				return err
			}
			existing[col.Table] = names
		}
		if existing[col.Table][col.Name] {
			continue
		}
		if _, err := db.Exec(AddColumnSQL(col)); err != nil {
			return fmt.Errorf("failed to add column %s.%s: %w", col.Table, col.Name, err)
		}
		existing[col.Table][col.Name] = true
	}

	return nil
}

func columnNames(db execQueryer, table string) (map[string]bool, error) {
	rows, err := db.Query(TableInfoSQL(table))
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	defer rows.Close()

	names := make(map[string]bool)
	for rows.Next() {
		var (
			cid        int
			name       string
			colType    string
			notNull    int
			dfltValue  any
			primaryKey int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &primaryKey); err != nil {
			return nil, fmt.Errorf("failed to scan column of %s: %w", table, err)
		}
		names[name] = true
	}

	return names, rows.Err()
}
