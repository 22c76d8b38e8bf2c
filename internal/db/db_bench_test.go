package db

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chris/mergen/pkg/models"
)

// benchSizes are distinct command counts seeded before each benchmark
var benchSizes = []int{1000, 10000}

func seedStore(b *testing.B, e engine, size int) Store {
	b.Helper()
	store, err := e.open(filepath.Join(b.TempDir(), "history.db"), Options{})
	if err != nil {
		b.Fatalf("failed to open database: %v", err)
	}

	var sb strings.Builder
	for i := 0; i < size; i++ {
		fmt.Fprintf(&sb, ": 1690000000:0;git commit -m 'change %d'\n", i)
	}
	if _, err := store.BulkImport(strings.NewReader(sb.String()), upperMasker{}); err != nil {
		b.Fatalf("failed to seed database: %v", err)
	}
	return store
}

// BenchmarkInsertCommand measures the dedup path on an existing command
func BenchmarkInsertCommand(b *testing.B) {
	for _, e := range engines {
		for _, size := range benchSizes {
			b.Run(fmt.Sprintf("%s/%d", e.name, size), func(b *testing.B) {
				store := seedStore(b, e, size)
				defer store.Close()

				b.ResetTimer()
				for i := 0; i < b.N; i++ {
					rec := models.NewCommandRecord("git commit -m 'change 1'", "GIT COMMIT")
					if _, err := store.InsertCommand(rec); err != nil {
						b.Fatalf("failed to insert: %v", err)
					}
				}
			})
		}
	}
}

// BenchmarkRetrieve measures filtered retrieval ordered by usage
func BenchmarkRetrieve(b *testing.B) {
	for _, e := range engines {
		for _, size := range benchSizes {
			b.Run(fmt.Sprintf("%s/%d", e.name, size), func(b *testing.B) {
				store := seedStore(b, e, size)
				defer store.Close()

				b.ResetTimer()
				for i := 0; i < b.N; i++ {
					_, err := store.Retrieve(RetrieveOptions{Filter: "change 99", SortByUsage: true})
					if err != nil {
						b.Fatalf("failed to retrieve: %v", err)
					}
				}
			})
		}
	}
}

// BenchmarkCommandsAfter measures the analysis window query
func BenchmarkCommandsAfter(b *testing.B) {
	for _, e := range engines {
		for _, size := range benchSizes {
			b.Run(fmt.Sprintf("%s/%d", e.name, size), func(b *testing.B) {
				store := seedStore(b, e, size)
				defer store.Close()

				b.ResetTimer()
				for i := 0; i < b.N; i++ {
					if _, err := store.CommandsAfter(int64(size - 50)); err != nil {
						b.Fatalf("failed to query: %v", err)
					}
				}
			})
		}
	}
}
