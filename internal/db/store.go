package db

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/chris/mergen/internal/histfile"
	"github.com/chris/mergen/pkg/models"
)

const (
	defaultDBPath = "~/.local/share/mergen/history.db"

	// EnvImpl selects the storage engine: "zombiezen" for ZDB, anything else for DB
	EnvImpl = "MERGEN_DB_IMPL"

	// ImportQuerySummary tags rows created by a shell history import
	ImportQuerySummary = "External Source"
)

var (
	// ErrFieldNotAllowed is returned by UpdateField for columns outside the edit allow-list
	ErrFieldNotAllowed = errors.New("field cannot be updated")

	// ErrNotFound is returned when no command has the requested id
	ErrNotFound = errors.New("command not found")
)

// Masker redacts sensitive values from command text
type Masker interface {
	Mask(text string) string
}

// InsertResult reports the outcome of InsertCommand
type InsertResult struct {
	ID      int64
	Created bool
}

// ImportStats counts lines seen by BulkImport. Processed counts lines stored,
// including those that only bumped the usage count of an existing command;
// Skipped counts lines that failed or were too long, so the two never overlap.
type ImportStats struct {
	Processed int
	Created   int
	Skipped   int
}

// RetrieveOptions filters and orders Retrieve results
type RetrieveOptions struct {
	// Filter is a case-insensitive substring matched against the masked
	// command, query summary or explanation.
	Filter string
	// Category restricts results to one label. Empty or "All" disables it.
	Category      string
	FavoritesOnly bool
	SortByUsage   bool
	// Limit caps the number of rows. Zero returns everything.
	Limit int
}

// Store is the history store contract shared by DB and ZDB
type Store interface {
	Close() error
	Path() string
	InsertCommand(rec *models.CommandRecord) (InsertResult, error)
	BulkImport(r io.Reader, masker Masker) (ImportStats, error)
	Retrieve(opts RetrieveOptions) ([]models.CommandRecord, error)
	GetCommand(id int64) (*models.CommandRecord, error)
	UpdateField(id int64, field string, value any) error
	SetFavorite(id int64, favorite bool) error
	DeleteCommand(id int64) error
	ListCategories() ([]string, error)
	Reset() error
	CountCommands() (int, error)
	LatestProfile() (*models.ProfileReport, error)
	CommandsAfter(id int64) ([]models.CommandRecord, error)
	SaveProfile(text string, lastID int64) (int64, error)
	ListProfiles(limit int) ([]models.ProfileReport, error)
}

var (
	_ Store = (*DB)(nil)
	_ Store = (*ZDB)(nil)
)

// Options configures database connection behavior
type Options struct {
	// SkipMigrations opens the database without bringing the schema up to date.
	SkipMigrations bool
	// Now overrides the clock used for created_at. Defaults to time.Now.
	Now func() time.Time
	// Logger receives storage warnings. Defaults to slog.Default().
	Logger *slog.Logger

	// beforeInsert runs between the usage lookup and the INSERT
	beforeInsert func()
}

func (o Options) withDefaults() Options {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Open opens the database at dbPath with the engine selected by MERGEN_DB_IMPL
func Open(dbPath string) (Store, error) {
	return OpenWithOptions(dbPath, Options{})
}

// OpenWithOptions is Open with explicit options
func OpenWithOptions(dbPath string, opts Options) (Store, error) {
	if os.Getenv(EnvImpl) == "zombiezen" {
		return NewZWithOptions(dbPath, opts)
	}
	return NewWithOptions(dbPath, opts)
}

// ResolvePath expands "~" and substitutes the default location for an empty path.
// The default lives under XDG_DATA_HOME, falling back to ~/.local/share.
func ResolvePath(dbPath string) (string, error) {
	if dbPath == "" || dbPath == defaultDBPath {
		dataDir := os.Getenv("XDG_DATA_HOME")
		if dataDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get user home directory: %w", err)
			}
			dataDir = filepath.Join(home, ".local/share")
		}
		return filepath.Join(dataDir, "mergen/history.db"), nil
	}

	if dbPath[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		return filepath.Join(home, dbPath[1:]), nil
	}

	return dbPath, nil
}

func prepareDir(dbPath string) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	return nil
}

// editableFields is interpolated into UPDATE statements, so nothing outside it
// may reach the query text.
var editableFields = map[string]bool{
	"masked_command": true,
	"query_summary":  true,
	"category":       true,
	"favorite":       true,
}

// fieldValue checks field against the allow-list and converts value to what
// the column stores.
func fieldValue(field string, value any) (any, error) {
	if !editableFields[field] {
		return nil, fmt.Errorf("%w: %q", ErrFieldNotAllowed, field)
	}

	switch field {
	case "favorite":
		fav, err := parseBool(value)
		if err != nil {
			return nil, err
		}
		return boolToInt(fav), nil
	case "category":
		return models.NormalizeCategory(fmt.Sprint(value)), nil
	default:
		return fmt.Sprint(value), nil
	}
}

func parseBool(value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case int:
		return v != 0, nil
	case int64:
		return v != 0, nil
	case float64:
		return v != 0, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, fmt.Errorf("invalid favorite value %q", v)
		}
		return b, nil
	default:
		return false, fmt.Errorf("invalid favorite value %v", value)
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// insertCategory maps the caller's label onto the taxonomy
func insertCategory(label string) string {
	if strings.TrimSpace(label) == "" {
		return models.CategoryOther
	}
	return models.NormalizeCategory(label)
}

// escapeLike escapes LIKE wildcards so the filter matches literally.
// Queries pair it with ESCAPE '\'.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// retrieveQuery builds the WHERE/ORDER BY clauses shared by both engines
func retrieveQuery(opts RetrieveOptions) (string, []any) {
	var (
		where []string
		args  []any
	)

	if opts.FavoritesOnly {
		where = append(where, "favorite = 1")
	}
	if opts.Category != "" && opts.Category != models.CategoryAll {
		where = append(where, "category = ?")
		args = append(args, opts.Category)
	}
	if opts.Filter != "" {
		pattern := "%" + escapeLike(opts.Filter) + "%"
		where = append(where, `(masked_command LIKE ? ESCAPE '\' OR query_summary LIKE ? ESCAPE '\' OR explanation LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern, pattern)
	}

	query := "SELECT " + recordColumns + " FROM commands"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if opts.SortByUsage {
		query += " ORDER BY usage_count DESC, id DESC"
	} else {
		query += " ORDER BY id DESC"
	}
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	return query, args
}

// recordColumns tolerates NULLs left in columns added by the additive migration
const recordColumns = `id, raw_command, COALESCE(masked_command, ''), COALESCE(query_summary, ''),
	COALESCE(explanation, ''), COALESCE(category, 'Other'), COALESCE(favorite, 0),
	COALESCE(usage_count, 1), COALESCE(created_at, 0)`

const profileColumns = `id, COALESCE(report_text, ''), COALESCE(last_processed_id, 0), COALESCE(created_at, 0)`

// orderCategories puts canonical labels first in taxonomy order, then the
// remaining labels alphabetically.
func orderCategories(present []string) []string {
	seen := make(map[string]bool, len(present))
	for _, c := range present {
		seen[c] = true
	}

	result := make([]string, 0, len(present))
	for _, c := range models.Categories {
		if seen[c] {
			result = append(result, c)
		}
	}

	var extra []string
	for c := range seen {
		if !models.IsCanonical(c) {
			extra = append(extra, c)
		}
	}
	sort.Strings(extra)

	return append(result, extra...)
}

// importHistory streams shell history lines into insert. Lines that fail are
// logged and counted as skipped.
func importHistory(r io.Reader, masker Masker, insert func(*models.CommandRecord) (InsertResult, error), log *slog.Logger) (ImportStats, error) {
	var stats ImportStats

	hr := histfile.NewReader(r)
	for hr.Next() {
		text, kind := histfile.ParseLine(hr.Line())
		if kind != histfile.Command {
			continue
		}

		rec := models.NewCommandRecord(text, masker.Mask(text))
		rec.QuerySummary = ImportQuerySummary
		rec.Explanation = ""

		res, err := insert(rec)
		if err != nil {
			stats.Skipped++
			log.Warn("skipping history line", "error", err)
			continue
		}
		stats.Processed++
		if res.Created {
			stats.Created++
		}
	}

	if n := hr.Oversized(); n > 0 {
		stats.Skipped += n
		log.Warn("skipped oversized history lines", "count", n, "limit", histfile.MaxLineSize)
	}

	if err := hr.Err(); err != nil {
		return stats, fmt.Errorf("failed to read history: %w", err)
	}

	return stats, nil
}
