package db

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chris/mergen/pkg/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// upperMasker makes masking visible in assertions without depending on redact
type upperMasker struct{}

func (upperMasker) Mask(text string) string { return strings.ToUpper(text) }

type engine struct {
	name string
	open func(path string, opts Options) (Store, error)
}

var engines = []engine{
	{"modernc", func(path string, opts Options) (Store, error) { return NewWithOptions(path, opts) }},
	{"zombiezen", func(path string, opts Options) (Store, error) { return NewZWithOptions(path, opts) }},
}

// forEachEngine runs fn once per storage engine against a fresh database
func forEachEngine(t *testing.T, fn func(t *testing.T, store Store, clock *fakeClock)) {
	for _, e := range engines {
		t.Run(e.name, func(t *testing.T) {
			clock := &fakeClock{now: time.Unix(1700000000, 0)}
			store, err := e.open(filepath.Join(t.TempDir(), "history.db"), Options{Now: clock.Now})
			require.NoError(t, err, "failed to open database")
			t.Cleanup(func() { store.Close() })
			fn(t, store, clock)
		})
	}
}

func insert(t *testing.T, store Store, raw, summary, explanation, category string) int64 {
	t.Helper()
	rec := &models.CommandRecord{
		RawCommand:    raw,
		MaskedCommand: raw,
		QuerySummary:  summary,
		Explanation:   explanation,
		Category:      category,
	}
	res, err := store.InsertCommand(rec)
	require.NoError(t, err, "failed to insert %q", raw)
	return res.ID
}

func rawCommands(records []models.CommandRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.RawCommand)
	}
	return out
}

// TestScenario1_DatabaseCreatedOnOpen tests that opening a missing database
// creates the file and both tables
func TestScenario1_DatabaseCreatedOnOpen(t *testing.T) {
	// Given: no database exists
	dbPath := filepath.Join(t.TempDir(), "nested", "history.db")
	_, err := os.Stat(dbPath)
	require.True(t, os.IsNotExist(err), "database should not exist yet")

	// When: the database is opened
	database, err := NewForTesting(dbPath)
	require.NoError(t, err, "failed to create database")
	defer database.Close()

	// Then: the file exists and the schema is current
	_, err = os.Stat(dbPath)
	require.NoError(t, err, "database file should exist")
	assert.Equal(t, dbPath, database.Path())

	exists, err := database.TableExists()
	require.NoError(t, err)
	assert.True(t, exists, "commands table should exist")

	count, err := database.CountCommands()
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

// TestScenario2_RepeatedInsertCountsUsage tests that the same raw command
// inserted N times yields one row with usage_count N
func TestScenario2_RepeatedInsertCountsUsage(t *testing.T) {
	forEachEngine(t, func(t *testing.T, store Store, clock *fakeClock) {
		// Given: a command inserted for the first time
		first, err := store.InsertCommand(models.NewCommandRecord("git status", "git status"))
		require.NoError(t, err)
		assert.True(t, first.Created, "first insert should create a row")

		// When: the same command is inserted four more times, later each time
		for i := 0; i < 4; i++ {
			clock.Advance(time.Minute)
			res, err := store.InsertCommand(models.NewCommandRecord("git status", "git status"))
			require.NoError(t, err)
			assert.False(t, res.Created, "repeat insert should not create a row")
			assert.Equal(t, first.ID, res.ID, "repeat insert should return the existing id")
		}

		// Then: there is exactly one row with usage_count 5
		count, err := store.CountCommands()
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		rec, err := store.GetCommand(first.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(5), rec.UsageCount)

		// And: created_at is the time of the last insertion
		assert.Equal(t, clock.Now().Unix(), rec.CreatedAt)
	})
}

// TestScenario3_InsertNormalizesCategory tests the category fallback
func TestScenario3_InsertNormalizesCategory(t *testing.T) {
	forEachEngine(t, func(t *testing.T, store Store, _ *fakeClock) {
		tests := []struct {
			raw      string
			category string
			want     string
		}{
			{"docker ps", "[container]", models.CategoryContainer},
			{"nmap host", "Hacking", models.CategoryOther},
			{"ls", "", models.CategoryOther},
			{"ssh box", " Network ", models.CategoryNetwork},
		}

		for _, tt := range tests {
			id := insert(t, store, tt.raw, "q", "", tt.category)
			rec, err := store.GetCommand(id)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.Category, "category for %q", tt.raw)
		}
	})
}

// TestScenario4_ConcurrentHandlesNeverDuplicate tests that separate handles
// racing on the same raw command end up with one row and an exact count
func TestScenario4_ConcurrentHandlesNeverDuplicate(t *testing.T) {
	for _, e := range engines {
		t.Run(e.name, func(t *testing.T) {
			dbPath := filepath.Join(t.TempDir(), "history.db")
			setup, err := e.open(dbPath, Options{})
			require.NoError(t, err)
			setup.Close()

			const workers = 4
			const perWorker = 10

			var wg sync.WaitGroup
			errs := make(chan error, workers)
			for w := 0; w < workers; w++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					store, err := e.open(dbPath, Options{})
					if err != nil {
						errs <- err
						return
					}
					defer store.Close()
					for i := 0; i < perWorker; i++ {
						if _, err := store.InsertCommand(models.NewCommandRecord("make test", "make test")); err != nil {
							errs <- err
							return
						}
					}
				}()
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				require.NoError(t, err)
			}

			store, err := e.open(dbPath, Options{})
			require.NoError(t, err)
			defer store.Close()

			records, err := store.Retrieve(RetrieveOptions{})
			require.NoError(t, err)
			require.Len(t, records, 1)
			assert.Equal(t, int64(workers*perWorker), records[0].UsageCount)
		})
	}
}

// TestInsertCommand_LostRaceBumpsUsage tests that an insert losing the race to
// another handle falls back to the usage bump instead of failing
func TestInsertCommand_LostRaceBumpsUsage(t *testing.T) {
	for _, e := range engines {
		t.Run(e.name, func(t *testing.T) {
			// Given: a second handle that records the same command between
			// the first handle's lookup and its insert
			dbPath := filepath.Join(t.TempDir(), "history.db")
			rival, err := e.open(dbPath, Options{})
			require.NoError(t, err)
			defer rival.Close()

			hookCalls := 0
			store, err := e.open(dbPath, Options{beforeInsert: func() {
				hookCalls++
				res, err := rival.InsertCommand(models.NewCommandRecord("make test", "make test"))
				require.NoError(t, err)
				require.True(t, res.Created)
			}})
			require.NoError(t, err)
			defer store.Close()

			// When: the first handle inserts
			res, err := store.InsertCommand(models.NewCommandRecord("make test", "make test"))

			// Then: the unique violation was absorbed into a usage bump
			require.NoError(t, err)
			assert.Equal(t, 1, hookCalls)
			assert.False(t, res.Created)

			records, err := store.Retrieve(RetrieveOptions{})
			require.NoError(t, err)
			require.Len(t, records, 1)
			assert.Equal(t, res.ID, records[0].ID)
			assert.Equal(t, int64(2), records[0].UsageCount)
		})
	}
}

// TestScenario5_BulkImportThreeLines tests the zsh/bash prefix handling
func TestScenario5_BulkImportThreeLines(t *testing.T) {
	forEachEngine(t, func(t *testing.T, store Store, _ *fakeClock) {
		// Given: a history file with an extended-history line, a marker and a plain line
		input := ": 1690000000:0;ls -la\n#1690000001\necho hi\n"

		// When: it is imported
		stats, err := store.BulkImport(strings.NewReader(input), upperMasker{})
		require.NoError(t, err)

		// Then: exactly two rows exist and the marker was skipped
		assert.Equal(t, ImportStats{Processed: 2, Created: 2}, stats)

		records, err := store.Retrieve(RetrieveOptions{})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"ls -la", "echo hi"}, rawCommands(records))

		// And: rows are tagged as imported history and masked
		for _, r := range records {
			assert.Equal(t, models.CategoryShellHistory, r.Category)
			assert.Equal(t, ImportQuerySummary, r.QuerySummary)
			assert.Equal(t, strings.ToUpper(r.RawCommand), r.MaskedCommand)
		}
	})
}

// TestScenario6_BulkImportReplayIncrementsUsage tests that a replayed file
// counts as processed but creates nothing new
func TestScenario6_BulkImportReplayIncrementsUsage(t *testing.T) {
	forEachEngine(t, func(t *testing.T, store Store, _ *fakeClock) {
		input := "ls\r\n\n   \nls\ncd /tmp\n"

		stats, err := store.BulkImport(strings.NewReader(input), upperMasker{})
		require.NoError(t, err)
		assert.Equal(t, ImportStats{Processed: 3, Created: 2}, stats)

		stats, err = store.BulkImport(strings.NewReader(input), upperMasker{})
		require.NoError(t, err)
		assert.Equal(t, ImportStats{Processed: 3, Created: 0}, stats)

		records, err := store.Retrieve(RetrieveOptions{SortByUsage: true})
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "ls", records[0].RawCommand)
		assert.Equal(t, int64(4), records[0].UsageCount)
	})
}

// TestScenario7_BulkImportDropsInvalidBytes tests that undecodable bytes are
// dropped instead of failing the import
func TestScenario7_BulkImportDropsInvalidBytes(t *testing.T) {
	forEachEngine(t, func(t *testing.T, store Store, _ *fakeClock) {
		input := "echo caf\xff\xfee\nls\n"

		stats, err := store.BulkImport(strings.NewReader(input), upperMasker{})
		require.NoError(t, err)
		assert.Equal(t, 2, stats.Processed)

		records, err := store.Retrieve(RetrieveOptions{Filter: "cafe"})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "echo cafe", records[0].RawCommand)
	})
}

// TestImportHistory_FailedLinesAreOnlySkipped tests that a line the store
// rejects counts as skipped and not as processed
func TestImportHistory_FailedLinesAreOnlySkipped(t *testing.T) {
	// Given: a store that rejects one of three commands
	insert := func(rec *models.CommandRecord) (InsertResult, error) {
		if rec.RawCommand == "bad" {
			return InsertResult{}, errors.New("disk I/O error")
		}
		return InsertResult{ID: 1, Created: true}, nil
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	// When: importing
	stats, err := importHistory(strings.NewReader("ls\nbad\npwd\n"), upperMasker{}, insert, log)

	// Then: the counts do not overlap
	require.NoError(t, err)
	assert.Equal(t, ImportStats{Processed: 2, Created: 2, Skipped: 1}, stats)
}

// TestScenario8_RetrieveFilterUsesOrSemantics tests that the filter matches
// any of masked command, query summary or explanation regardless of category
func TestScenario8_RetrieveFilterUsesOrSemantics(t *testing.T) {
	forEachEngine(t, func(t *testing.T, store Store, _ *fakeClock) {
		// Given: records that mention git in different fields
		inCommand := insert(t, store, "git log", "history", "", models.CategoryGit)
		inSummary := insert(t, store, "tig", "how do I browse git history", "", models.CategoryOther)
		inExplanation := insert(t, store, "lazygit", "ui", "terminal UI for GIT", models.CategoryFile)
		insert(t, store, "ls -la", "list files", "long listing", models.CategoryFile)

		// When: retrieving with filter "git" across all categories
		records, err := store.Retrieve(RetrieveOptions{Filter: "git", Category: models.CategoryAll})
		require.NoError(t, err)

		// Then: exactly the three git records come back, newest first
		require.Len(t, records, 3)
		assert.Equal(t, []int64{inExplanation, inSummary, inCommand},
			[]int64{records[0].ID, records[1].ID, records[2].ID})
	})
}

// TestScenario9_RetrieveFiltersAndOrdering tests category, favorites, usage
// ordering and literal wildcard matching
func TestScenario9_RetrieveFiltersAndOrdering(t *testing.T) {
	forEachEngine(t, func(t *testing.T, store Store, _ *fakeClock) {
		a := insert(t, store, "ping 1.1.1.1", "", "", models.CategoryNetwork)
		b := insert(t, store, "curl example.com", "", "", models.CategoryNetwork)
		c := insert(t, store, "echo 100%_done", "", "", models.CategorySystem)
		insert(t, store, "curl example.com", "", "", models.CategoryNetwork)
		insert(t, store, "curl example.com", "", "", models.CategoryNetwork)

		require.NoError(t, store.SetFavorite(a, true))

		network, err := store.Retrieve(RetrieveOptions{Category: models.CategoryNetwork})
		require.NoError(t, err)
		assert.Equal(t, []string{"curl example.com", "ping 1.1.1.1"}, rawCommands(network))

		favorites, err := store.Retrieve(RetrieveOptions{FavoritesOnly: true})
		require.NoError(t, err)
		require.Len(t, favorites, 1)
		assert.Equal(t, a, favorites[0].ID)
		assert.True(t, favorites[0].Favorite)

		byUsage, err := store.Retrieve(RetrieveOptions{SortByUsage: true})
		require.NoError(t, err)
		assert.Equal(t, b, byUsage[0].ID, "most used first")
		assert.Equal(t, c, byUsage[1].ID, "ties broken by newest id")

		literal, err := store.Retrieve(RetrieveOptions{Filter: "0%_d"})
		require.NoError(t, err)
		require.Len(t, literal, 1)
		assert.Equal(t, c, literal[0].ID)

		noWildcard, err := store.Retrieve(RetrieveOptions{Filter: "%"})
		require.NoError(t, err)
		assert.Len(t, noWildcard, 1, "percent sign should match literally")

		upper, err := store.Retrieve(RetrieveOptions{Filter: "CURL"})
		require.NoError(t, err)
		assert.Len(t, upper, 1, "filter should be case-insensitive")

		limited, err := store.Retrieve(RetrieveOptions{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, limited, 2)
	})
}

// TestScenario10_UpdateFieldAllowList tests that only editable columns change
func TestScenario10_UpdateFieldAllowList(t *testing.T) {
	forEachEngine(t, func(t *testing.T, store Store, _ *fakeClock) {
		id := insert(t, store, "rm -rf build", "clean", "", models.CategoryFile)

		// When: a column outside the allow-list is targeted
		err := store.UpdateField(id, "raw_command", "rm -rf /")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrFieldNotAllowed))

		err = store.UpdateField(id, "usage_count = 99, raw_command", "x")
		assert.True(t, errors.Is(err, ErrFieldNotAllowed))

		// Then: nothing changed
		rec, err := store.GetCommand(id)
		require.NoError(t, err)
		assert.Equal(t, "rm -rf build", rec.RawCommand)
		assert.Equal(t, int64(1), rec.UsageCount)

		// And: allowed fields update, with category normalized
		require.NoError(t, store.UpdateField(id, "query_summary", "remove build output"))
		require.NoError(t, store.UpdateField(id, "masked_command", "rm -rf <dir>"))
		require.NoError(t, store.UpdateField(id, "category", "security"))
		require.NoError(t, store.UpdateField(id, "favorite", "1"))

		rec, err = store.GetCommand(id)
		require.NoError(t, err)
		assert.Equal(t, "remove build output", rec.QuerySummary)
		assert.Equal(t, "rm -rf <dir>", rec.MaskedCommand)
		assert.Equal(t, models.CategorySecurity, rec.Category)
		assert.True(t, rec.Favorite)

		require.NoError(t, store.UpdateField(id, "favorite", false))
		rec, err = store.GetCommand(id)
		require.NoError(t, err)
		assert.False(t, rec.Favorite)

		assert.Error(t, store.UpdateField(id, "favorite", "maybe"))
		assert.True(t, errors.Is(store.UpdateField(id+100, "query_summary", "x"), ErrNotFound))
	})
}

// TestScenario11_DeleteIsIdempotent tests deleting present and missing ids
func TestScenario11_DeleteIsIdempotent(t *testing.T) {
	forEachEngine(t, func(t *testing.T, store Store, _ *fakeClock) {
		id := insert(t, store, "whoami", "", "", models.CategoryUser)

		require.NoError(t, store.DeleteCommand(id))
		require.NoError(t, store.DeleteCommand(id))
		require.NoError(t, store.DeleteCommand(9999))

		_, err := store.GetCommand(id)
		assert.True(t, errors.Is(err, ErrNotFound))
	})
}

// TestScenario12_ListCategoriesOrdering tests canonical-first ordering with
// ad-hoc labels after
func TestScenario12_ListCategoriesOrdering(t *testing.T) {
	database, err := NewForTesting(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer database.Close()

	insert(t, database, "psql", "", "", models.CategoryDatabase)
	insert(t, database, "ls", "", "", models.CategoryShellHistory)
	insert(t, database, "git log", "", "", models.CategoryGit)

	// Ad-hoc labels only come from older data, so write them directly
	_, err = database.Conn().Exec(`INSERT INTO commands (raw_command, category) VALUES ('a', 'Zeta'), ('b', 'Alpha')`)
	require.NoError(t, err)

	categories, err := database.ListCategories()
	require.NoError(t, err)
	assert.Equal(t, []string{
		models.CategoryShellHistory,
		models.CategoryDatabase,
		models.CategoryGit,
		"Alpha",
		"Zeta",
	}, categories)

	zdb, err := NewZ(database.Path())
	require.NoError(t, err)
	defer zdb.Close()

	zCategories, err := zdb.ListCategories()
	require.NoError(t, err)
	assert.Equal(t, categories, zCategories, "both engines should agree")
}

// TestScenario13_ResetRestartsIDs tests that reset empties both tables and the
// next insert receives id 1
func TestScenario13_ResetRestartsIDs(t *testing.T) {
	forEachEngine(t, func(t *testing.T, store Store, _ *fakeClock) {
		insert(t, store, "one", "", "", "")
		insert(t, store, "two", "", "", "")
		_, err := store.SaveProfile("report", 2)
		require.NoError(t, err)

		require.NoError(t, store.Reset())

		records, err := store.Retrieve(RetrieveOptions{})
		require.NoError(t, err)
		assert.Empty(t, records)

		profile, err := store.LatestProfile()
		require.NoError(t, err)
		assert.Nil(t, profile)

		id := insert(t, store, "three", "", "", "")
		assert.Equal(t, int64(1), id)

		profileID, err := store.SaveProfile("fresh", 1)
		require.NoError(t, err)
		assert.Equal(t, int64(1), profileID)
	})
}

// TestScenario14_ProfileWatermarkHelpers tests the analysis-facing queries
func TestScenario14_ProfileWatermarkHelpers(t *testing.T) {
	forEachEngine(t, func(t *testing.T, store Store, clock *fakeClock) {
		latest, err := store.LatestProfile()
		require.NoError(t, err)
		assert.Nil(t, latest, "no profile yet")

		first := insert(t, store, "a", "", "", "")
		second := insert(t, store, "b", "", "", "")
		third := insert(t, store, "c", "", "", "")

		after, err := store.CommandsAfter(first)
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "c"}, rawCommands(after), "ascending by id")

		_, err = store.SaveProfile("first report", second)
		require.NoError(t, err)
		clock.Advance(time.Hour)
		_, err = store.SaveProfile("second report", third)
		require.NoError(t, err)

		latest, err = store.LatestProfile()
		require.NoError(t, err)
		require.NotNil(t, latest)
		assert.Equal(t, "second report", latest.ReportText)
		assert.Equal(t, third, latest.LastProcessedID)
		assert.Equal(t, clock.Now().Unix(), latest.CreatedAt)

		all, err := store.ListProfiles(0)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "first report", all[1].ReportText)

		one, err := store.ListProfiles(1)
		require.NoError(t, err)
		assert.Len(t, one, 1)

		none, err := store.CommandsAfter(third)
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

// TestOpen_SelectsEngine tests the MERGEN_DB_IMPL switch
func TestOpen_SelectsEngine(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")

	t.Setenv(EnvImpl, "zombiezen")
	store, err := Open(dbPath)
	require.NoError(t, err)
	_, ok := store.(*ZDB)
	assert.True(t, ok, "expected ZDB")
	store.Close()

	t.Setenv(EnvImpl, "")
	store, err = Open(dbPath)
	require.NoError(t, err)
	_, ok = store.(*DB)
	assert.True(t, ok, "expected DB")
	store.Close()
}

// TestResolvePath tests default and tilde expansion
func TestResolvePath(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")
	path, err := ResolvePath("")
	require.NoError(t, err)
	assert.Equal(t, "/data/mergen/history.db", path)

	t.Setenv("HOME", "/home/me")
	path, err = ResolvePath("~/x/h.db")
	require.NoError(t, err)
	assert.Equal(t, "/home/me/x/h.db", path)

	path, err = ResolvePath("/abs/h.db")
	require.NoError(t, err)
	assert.Equal(t, "/abs/h.db", path)
}
