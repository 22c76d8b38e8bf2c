package db

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/chris/mergen/internal/db/migrations"
	"github.com/chris/mergen/pkg/models"
)

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
	path string
	now  func() time.Time
	log  *slog.Logger

	beforeInsert func()
}

// New opens the database and brings its schema up to date
func New(dbPath string) (*DB, error) {
	return NewWithOptions(dbPath, Options{})
}

// NewWithOptions creates a new database connection with configurable options
func NewWithOptions(dbPath string, opts Options) (*DB, error) {
	opts = opts.withDefaults()

	dbPath, err := ResolvePath(dbPath)
	if err != nil {
		return nil, err
	}
	if err := prepareDir(dbPath); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection per handle keeps PRAGMAs and the insert race semantics
	// scoped to this handle.
	conn.SetMaxOpenConns(1)

	// Set busy timeout first, before any other operations that might need write locks
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if !opts.SkipMigrations {
		if err := migrations.Migrate(conn); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	return &DB{
		conn: conn,
		path: dbPath,
		now:  opts.Now,
		log:  opts.Logger,

		beforeInsert: opts.beforeInsert,
	}, nil
}

// NewForTesting creates a new database with schema initialized.
// This is a convenience function for tests.
func NewForTesting(dbPath string) (*DB, error) {
	return NewWithOptions(dbPath, Options{})
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the database file path
func (db *DB) Path() string {
	return db.path
}

// Conn exposes the underlying connection for migrations tooling and tests
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// SchemaVersion returns PRAGMA user_version
func (db *DB) SchemaVersion() (int, error) {
	var version int
	if err := db.conn.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

// InsertCommand records one use of rec.RawCommand. An existing row gets its
// usage count bumped and created_at refreshed; otherwise a new row is created.
func (db *DB) InsertCommand(rec *models.CommandRecord) (InsertResult, error) {
	now := db.now().Unix()

	id, err := db.bumpUsage(rec.RawCommand, now)
	if err == nil {
		rec.ID = id
		return InsertResult{ID: id}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		db.log.Error("insert lookup failed", "error", err)
		return InsertResult{}, err
	}

	if db.beforeInsert != nil {
		db.beforeInsert()
	}

	result, err := db.conn.Exec(`
		INSERT INTO commands (raw_command, masked_command, query_summary, explanation, category, favorite, usage_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?)`,
		rec.RawCommand,
		rec.MaskedCommand,
		rec.QuerySummary,
		rec.Explanation,
		insertCategory(rec.Category),
		boolToInt(rec.Favorite),
		now,
	)
	if err != nil {
		// Another handle inserted the same command between lookup and insert
		if isUniqueViolation(err) {
			id, err2 := db.bumpUsage(rec.RawCommand, now)
			if err2 == nil {
				rec.ID = id
				return InsertResult{ID: id}, nil
			}
		}
		db.log.Error("insert failed", "error", err)
		return InsertResult{}, fmt.Errorf("failed to insert command: %w", err)
	}

	id, err = result.LastInsertId()
	if err != nil {
		return InsertResult{}, fmt.Errorf("failed to get last insert ID: %w", err)
	}

	rec.ID = id
	return InsertResult{ID: id, Created: true}, nil
}

// bumpUsage increments the counter of an existing command and returns its id.
// It returns sql.ErrNoRows when the command is unknown.
func (db *DB) bumpUsage(raw string, now int64) (int64, error) {
	var id int64
	err := db.conn.QueryRow(`
		UPDATE commands SET usage_count = COALESCE(usage_count, 0) + 1, created_at = ?
		WHERE raw_command = ?
		RETURNING id`,
		now, raw,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, err
		}
		return 0, fmt.Errorf("failed to update usage count: %w", err)
	}
	return id, nil
}

// BulkImport reads shell history lines from r and records each command
func (db *DB) BulkImport(r io.Reader, masker Masker) (ImportStats, error) {
	return importHistory(r, masker, db.InsertCommand, db.log)
}

// scanRecord scans a row selected with recordColumns
func scanRecord(scanner interface {
	Scan(dest ...any) error
}) (*models.CommandRecord, error) {
	var (
		rec      models.CommandRecord
		favorite int
	)

	err := scanner.Scan(
		&rec.ID,
		&rec.RawCommand,
		&rec.MaskedCommand,
		&rec.QuerySummary,
		&rec.Explanation,
		&rec.Category,
		&favorite,
		&rec.UsageCount,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Favorite = favorite != 0
	return &rec, nil
}

func (db *DB) queryRecords(query string, args ...any) ([]models.CommandRecord, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query commands: %w", err)
	}
	defer rows.Close()

	records := []models.CommandRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan command: %w", err)
		}
		records = append(records, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating commands: %w", err)
	}

	return records, nil
}

// Retrieve returns the commands matching opts
func (db *DB) Retrieve(opts RetrieveOptions) ([]models.CommandRecord, error) {
	query, args := retrieveQuery(opts)
	return db.queryRecords(query, args...)
}

// GetCommand retrieves a command by ID
func (db *DB) GetCommand(id int64) (*models.CommandRecord, error) {
	row := db.conn.QueryRow("SELECT "+recordColumns+" FROM commands WHERE id = ?", id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get command: %w", err)
	}
	return rec, nil
}

// UpdateField sets one editable column of a command
func (db *DB) UpdateField(id int64, field string, value any) error {
	v, err := fieldValue(field, value)
	if err != nil {
		return err
	}

	result, err := db.conn.Exec("UPDATE commands SET "+field+" = ? WHERE id = ?", v, id)
	if err != nil {
		db.log.Error("update failed", "id", id, "field", field, "error", err)
		return fmt.Errorf("failed to update %s: %w", field, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	return nil
}

// SetFavorite stars or unstars a command
func (db *DB) SetFavorite(id int64, favorite bool) error {
	return db.UpdateField(id, "favorite", favorite)
}

// DeleteCommand removes a command. Deleting an unknown id is not an error.
func (db *DB) DeleteCommand(id int64) error {
	if _, err := db.conn.Exec("DELETE FROM commands WHERE id = ?", id); err != nil {
		db.log.Error("delete failed", "id", id, "error", err)
		return fmt.Errorf("failed to delete command: %w", err)
	}
	return nil
}

// ListCategories returns the categories present in the data, canonical ones first
func (db *DB) ListCategories() ([]string, error) {
	rows, err := db.conn.Query("SELECT DISTINCT COALESCE(category, 'Other') FROM commands")
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var present []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		present = append(present, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	return orderCategories(present), nil
}

// Reset deletes every command and profile report and restarts both id sequences
func (db *DB) Reset() error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin reset: %w", err)
	}

	for _, stmt := range resetStatements {
		if _, err := tx.Exec(stmt); err != nil {
			tx.Rollback()
			db.log.Error("reset failed", "error", err)
			return fmt.Errorf("failed to reset database: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reset: %w", err)
	}
	return nil
}

var resetStatements = []string{
	"DELETE FROM commands",
	"DELETE FROM profile_reports",
	"DELETE FROM sqlite_sequence WHERE name IN ('commands', 'profile_reports')",
}

// CountCommands returns the total number of commands in the database
func (db *DB) CountCommands() (int, error) {
	var count int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM commands").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count commands: %w", err)
	}
	return count, nil
}

func scanProfile(scanner interface {
	Scan(dest ...any) error
}) (*models.ProfileReport, error) {
	var p models.ProfileReport
	if err := scanner.Scan(&p.ID, &p.ReportText, &p.LastProcessedID, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// LatestProfile returns the newest profile report, or nil when none exists
func (db *DB) LatestProfile() (*models.ProfileReport, error) {
	row := db.conn.QueryRow("SELECT " + profileColumns + " FROM profile_reports ORDER BY id DESC LIMIT 1")
	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest profile: %w", err)
	}
	return p, nil
}

// CommandsAfter returns commands with id greater than id, oldest first
func (db *DB) CommandsAfter(id int64) ([]models.CommandRecord, error) {
	return db.queryRecords("SELECT "+recordColumns+" FROM commands WHERE id > ? ORDER BY id ASC", id)
}

// SaveProfile appends a profile report with its watermark
func (db *DB) SaveProfile(text string, lastID int64) (int64, error) {
	result, err := db.conn.Exec(
		"INSERT INTO profile_reports (report_text, last_processed_id, created_at) VALUES (?, ?, ?)",
		text, lastID, db.now().Unix(),
	)
	if err != nil {
		db.log.Error("saving profile failed", "error", err)
		return 0, fmt.Errorf("failed to save profile: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}
	return id, nil
}

// ListProfiles returns profile reports newest first. A limit of zero returns all.
func (db *DB) ListProfiles(limit int) ([]models.ProfileReport, error) {
	query := "SELECT " + profileColumns + " FROM profile_reports ORDER BY id DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	profiles := []models.ProfileReport{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating profiles: %w", err)
	}

	return profiles, nil
}

// TableExists reports whether the commands table exists
func (db *DB) TableExists() (bool, error) {
	var name string
	err := db.conn.QueryRow(
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'commands'",
	).Scan(&name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check table: %w", err)
	}
	return true, nil
}
