package db

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/chris/mergen/internal/db/migrations"
	"github.com/chris/mergen/pkg/models"
)

// ZDB wraps the zombiezen SQLite database connection
type ZDB struct {
	conn *sqlite.Conn
	path string
	now  func() time.Time
	log  *slog.Logger

	beforeInsert func()
}

// NewZ opens the database using zombiezen.com/go/sqlite and brings its schema up to date
func NewZ(dbPath string) (*ZDB, error) {
	return NewZWithOptions(dbPath, Options{})
}

// NewZWithOptions is NewZ with explicit options
func NewZWithOptions(dbPath string, opts Options) (*ZDB, error) {
	opts = opts.withDefaults()

	dbPath, err := ResolvePath(dbPath)
	if err != nil {
		return nil, err
	}
	if err := prepareDir(dbPath); err != nil {
		return nil, err
	}

	conn, err := sqlite.OpenConn(dbPath, sqlite.OpenReadWrite|sqlite.OpenCreate|sqlite.OpenWAL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := sqlitex.ExecuteTransient(conn, "PRAGMA busy_timeout=5000", nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := sqlitex.ExecuteTransient(conn, "PRAGMA journal_mode=WAL", nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	zdb := &ZDB{
		conn: conn,
		path: dbPath,
		now:  opts.Now,
		log:  opts.Logger,

		beforeInsert: opts.beforeInsert,
	}

	if !opts.SkipMigrations {
		if err := zdb.migrate(); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	return zdb, nil
}

// SchemaVersion returns PRAGMA user_version
func (zdb *ZDB) SchemaVersion() (int, error) {
	var version int
	err := sqlitex.ExecuteTransient(zdb.conn, "PRAGMA user_version", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			version = stmt.ColumnInt(0)
			return nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

// migrate applies the same versioned scripts and additive columns as Migrate
func (zdb *ZDB) migrate() error {
	version, err := zdb.SchemaVersion()
	if err != nil {
		return err
	}

	for i := version; i < len(migrations.All); i++ {
		if err := zdb.runMigration(i); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	if err := zdb.ensureColumns(); err != nil {
		return err
	}

	for from, to := range migrations.LegacyCategoryRenames {
		err := sqlitex.Execute(zdb.conn, "UPDATE commands SET category = ? WHERE category = ?", &sqlitex.ExecOptions{
			Args: []any{to, from},
		})
		if err != nil {
			return fmt.Errorf("failed to rename legacy category %q: %w", from, err)
		}
	}

	return nil
}

func (zdb *ZDB) runMigration(i int) (err error) {
	defer sqlitex.Save(zdb.conn)(&err)

	if err := sqlitex.ExecuteScript(zdb.conn, migrations.All[i], nil); err != nil {
		return err
	}
	if i == 0 {
		if err := zdb.ensureColumns(); err != nil {
			return err
		}
	}
	return sqlitex.ExecuteTransient(zdb.conn, fmt.Sprintf("PRAGMA user_version = %d", i+1), nil)
}

func (zdb *ZDB) ensureColumns() error {
	existing := make(map[string]map[string]bool)

	for _, col := range migrations.Columns {
		names, ok := existing[col.Table]
		if !ok {
			names = make(map[string]bool)
			err := sqlitex.ExecuteTransient(zdb.conn, migrations.TableInfoSQL(col.Table), &sqlitex.ExecOptions{
				ResultFunc: func(stmt *sqlite.Stmt) error {
					names[stmt.ColumnText(1)] = true
					return nil
				},
			})
			if err != nil {
				return fmt.Errorf("failed to read columns of %s: %w", col.Table, err)
			}
			existing[col.Table] = names
		}

		if names[col.Name] {
			continue
		}
		if err := sqlitex.ExecuteTransient(zdb.conn, migrations.AddColumnSQL(col), nil); err != nil {
			return fmt.Errorf("failed to add column %s.%s: %w", col.Table, col.Name, err)
		}
		names[col.Name] = true
	}

	return nil
}

// Close closes the database connection
func (zdb *ZDB) Close() error {
	return zdb.conn.Close()
}

// Path returns the database file path
func (zdb *ZDB) Path() string {
	return zdb.path
}

// InsertCommand records one use of rec.RawCommand
func (zdb *ZDB) InsertCommand(rec *models.CommandRecord) (InsertResult, error) {
	now := zdb.now().Unix()

	id, found, err := zdb.bumpUsage(rec.RawCommand, now)
	if err != nil {
		zdb.log.Error("insert lookup failed", "error", err)
		return InsertResult{}, err
	}
	if found {
		rec.ID = id
		return InsertResult{ID: id}, nil
	}

	if zdb.beforeInsert != nil {
		zdb.beforeInsert()
	}

	err = sqlitex.Execute(zdb.conn, `
		INSERT INTO commands (raw_command, masked_command, query_summary, explanation, category, favorite, usage_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				rec.RawCommand,
				rec.MaskedCommand,
				rec.QuerySummary,
				rec.Explanation,
				insertCategory(rec.Category),
				boolToInt(rec.Favorite),
				now,
			},
		})
	if err != nil {
		// Another handle inserted the same command between lookup and insert
		if sqlite.ErrCode(err) == sqlite.ResultConstraintUnique {
			id, found, err2 := zdb.bumpUsage(rec.RawCommand, now)
			if err2 == nil && found {
				rec.ID = id
				return InsertResult{ID: id}, nil
			}
		}
		zdb.log.Error("insert failed", "error", err)
		return InsertResult{}, fmt.Errorf("failed to insert command: %w", err)
	}

	rec.ID = zdb.conn.LastInsertRowID()
	return InsertResult{ID: rec.ID, Created: true}, nil
}

func (zdb *ZDB) bumpUsage(raw string, now int64) (int64, bool, error) {
	var (
		id    int64
		found bool
	)
	err := sqlitex.Execute(zdb.conn, `
		UPDATE commands SET usage_count = COALESCE(usage_count, 0) + 1, created_at = ?
		WHERE raw_command = ?
		RETURNING id`,
		&sqlitex.ExecOptions{
			Args: []any{now, raw},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				id = stmt.ColumnInt64(0)
				found = true
				return nil
			},
		})
	if err != nil {
		return 0, false, fmt.Errorf("failed to update usage count: %w", err)
	}
	return id, found, nil
}

// BulkImport reads shell history lines from r and records each command
func (zdb *ZDB) BulkImport(r io.Reader, masker Masker) (ImportStats, error) {
	return importHistory(r, masker, zdb.InsertCommand, zdb.log)
}

func (zdb *ZDB) scanRecord(stmt *sqlite.Stmt) models.CommandRecord {
	return models.CommandRecord{
		ID:            stmt.ColumnInt64(0),
		RawCommand:    stmt.ColumnText(1),
		MaskedCommand: stmt.ColumnText(2),
		QuerySummary:  stmt.ColumnText(3),
		Explanation:   stmt.ColumnText(4),
		Category:      stmt.ColumnText(5),
		Favorite:      stmt.ColumnInt64(6) != 0,
		UsageCount:    stmt.ColumnInt64(7),
		CreatedAt:     stmt.ColumnInt64(8),
	}
}

func (zdb *ZDB) queryRecords(query string, args ...any) ([]models.CommandRecord, error) {
	records := []models.CommandRecord{}
	err := sqlitex.Execute(zdb.conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			records = append(records, zdb.scanRecord(stmt))
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query commands: %w", err)
	}
	return records, nil
}

// Retrieve returns the commands matching opts
func (zdb *ZDB) Retrieve(opts RetrieveOptions) ([]models.CommandRecord, error) {
	query, args := retrieveQuery(opts)
	return zdb.queryRecords(query, args...)
}

// GetCommand retrieves a command by ID
func (zdb *ZDB) GetCommand(id int64) (*models.CommandRecord, error) {
	records, err := zdb.queryRecords("SELECT "+recordColumns+" FROM commands WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get command: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return &records[0], nil
}

// UpdateField sets one editable column of a command
func (zdb *ZDB) UpdateField(id int64, field string, value any) error {
	v, err := fieldValue(field, value)
	if err != nil {
		return err
	}

	err = sqlitex.Execute(zdb.conn, "UPDATE commands SET "+field+" = ? WHERE id = ?", &sqlitex.ExecOptions{
		Args: []any{v, id},
	})
	if err != nil {
		zdb.log.Error("update failed", "id", id, "field", field, "error", err)
		return fmt.Errorf("failed to update %s: %w", field, err)
	}
	if zdb.conn.Changes() == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return nil
}

// SetFavorite stars or unstars a command
func (zdb *ZDB) SetFavorite(id int64, favorite bool) error {
	return zdb.UpdateField(id, "favorite", favorite)
}

// DeleteCommand removes a command. Deleting an unknown id is not an error.
func (zdb *ZDB) DeleteCommand(id int64) error {
	err := sqlitex.Execute(zdb.conn, "DELETE FROM commands WHERE id = ?", &sqlitex.ExecOptions{
		Args: []any{id},
	})
	if err != nil {
		zdb.log.Error("delete failed", "id", id, "error", err)
		return fmt.Errorf("failed to delete command: %w", err)
	}
	return nil
}

// ListCategories returns the categories present in the data, canonical ones first
func (zdb *ZDB) ListCategories() ([]string, error) {
	var present []string
	err := sqlitex.Execute(zdb.conn, "SELECT DISTINCT COALESCE(category, 'Other') FROM commands", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			present = append(present, stmt.ColumnText(0))
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return orderCategories(present), nil
}

// Reset deletes every command and profile report and restarts both id sequences
func (zdb *ZDB) Reset() (err error) {
	defer func() {
		if err != nil {
			zdb.log.Error("reset failed", "error", err)
		}
	}()
	defer sqlitex.Save(zdb.conn)(&err)

	for _, stmt := range resetStatements {
		if err := sqlitex.ExecuteTransient(zdb.conn, stmt, nil); err != nil {
			return fmt.Errorf("failed to reset database: %w", err)
		}
	}
	return nil
}

// CountCommands returns the total number of commands
func (zdb *ZDB) CountCommands() (int, error) {
	var count int
	err := sqlitex.Execute(zdb.conn, "SELECT COUNT(*) FROM commands", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			count = stmt.ColumnInt(0)
			return nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count commands: %w", err)
	}
	return count, nil
}

func (zdb *ZDB) queryProfiles(query string, args ...any) ([]models.ProfileReport, error) {
	profiles := []models.ProfileReport{}
	err := sqlitex.Execute(zdb.conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			profiles = append(profiles, models.ProfileReport{
				ID:              stmt.ColumnInt64(0),
				ReportText:      stmt.ColumnText(1),
				LastProcessedID: stmt.ColumnInt64(2),
				CreatedAt:       stmt.ColumnInt64(3),
			})
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	return profiles, nil
}

// LatestProfile returns the newest profile report, or nil when none exists
func (zdb *ZDB) LatestProfile() (*models.ProfileReport, error) {
	profiles, err := zdb.queryProfiles("SELECT " + profileColumns + " FROM profile_reports ORDER BY id DESC LIMIT 1")
	if err != nil {
		return nil, err
	}
	if len(profiles) == 0 {
		return nil, nil
	}
	return &profiles[0], nil
}

// CommandsAfter returns commands with id greater than id, oldest first
func (zdb *ZDB) CommandsAfter(id int64) ([]models.CommandRecord, error) {
	return zdb.queryRecords("SELECT "+recordColumns+" FROM commands WHERE id > ? ORDER BY id ASC", id)
}

// SaveProfile appends a profile report with its watermark
func (zdb *ZDB) SaveProfile(text string, lastID int64) (int64, error) {
	err := sqlitex.Execute(zdb.conn,
		"INSERT INTO profile_reports (report_text, last_processed_id, created_at) VALUES (?, ?, ?)",
		&sqlitex.ExecOptions{
			Args: []any{text, lastID, zdb.now().Unix()},
		})
	if err != nil {
		zdb.log.Error("saving profile failed", "error", err)
		return 0, fmt.Errorf("failed to save profile: %w", err)
	}
	return zdb.conn.LastInsertRowID(), nil
}

// ListProfiles returns profile reports newest first. A limit of zero returns all.
func (zdb *ZDB) ListProfiles(limit int) ([]models.ProfileReport, error) {
	query := "SELECT " + profileColumns + " FROM profile_reports ORDER BY id DESC"
	if limit > 0 {
		return zdb.queryProfiles(query+" LIMIT ?", limit)
	}
	return zdb.queryProfiles(query)
}
