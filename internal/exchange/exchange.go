// Package exchange reads and writes the JSON backup format for command records.
package exchange

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chris/mergen/internal/db"
	"github.com/chris/mergen/pkg/models"
)

// Record is one exported command. UnmarshalJSON also accepts the short keys
// written by earlier releases (cmd, msk, q, desc, cat, fv, cnt).
type Record struct {
	ID            int64  `json:"id,omitempty"`
	RawCommand    string `json:"raw_command"`
	MaskedCommand string `json:"masked_command"`
	QuerySummary  string `json:"query_summary"`
	Explanation   string `json:"explanation"`
	Category      string `json:"category"`
	Favorite      bool   `json:"favorite"`
	UsageCount    int64  `json:"usage_count"`
}

// aliases lists accepted keys per field, current name first
var aliases = map[string][]string{
	"id":             {"id"},
	"raw_command":    {"raw_command", "cmd"},
	"masked_command": {"masked_command", "msk"},
	"query_summary":  {"query_summary", "q"},
	"explanation":    {"explanation", "desc"},
	"category":       {"category", "cat"},
	"favorite":       {"favorite", "fv"},
	"usage_count":    {"usage_count", "cnt"},
}

// UnmarshalJSON decodes either key convention
func (r *Record) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	lookup := func(field string) (json.RawMessage, bool) {
		for _, key := range aliases[field] {
			if v, ok := fields[key]; ok && !bytes.Equal(v, []byte("null")) {
				return v, true
			}
		}
		return nil, false
	}

	strField := func(field string, dst *string) error {
		if v, ok := lookup(field); ok {
			if err := json.Unmarshal(v, dst); err != nil {
				return fmt.Errorf("invalid %s: %w", field, err)
			}
		}
		return nil
	}

	*r = Record{}
	for field, dst := range map[string]*string{
		"raw_command":    &r.RawCommand,
		"masked_command": &r.MaskedCommand,
		"query_summary":  &r.QuerySummary,
		"explanation":    &r.Explanation,
		"category":       &r.Category,
	} {
		if err := strField(field, dst); err != nil {
			return err
		}
	}

	if v, ok := lookup("id"); ok {
		if err := json.Unmarshal(v, &r.ID); err != nil {
			return fmt.Errorf("invalid id: %w", err)
		}
	}
	if v, ok := lookup("usage_count"); ok {
		if err := json.Unmarshal(v, &r.UsageCount); err != nil {
			return fmt.Errorf("invalid usage_count: %w", err)
		}
	}
	if v, ok := lookup("favorite"); ok {
		fav, err := parseFavorite(v)
		if err != nil {
			return err
		}
		r.Favorite = fav
	}

	return nil
}

// parseFavorite accepts true/false, 0/1 and their quoted forms
func parseFavorite(v json.RawMessage) (bool, error) {
	s := strings.Trim(strings.TrimSpace(string(v)), `"`)
	if b, err := strconv.ParseBool(s); err == nil {
		return b, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f != 0, nil
	}
	return false, fmt.Errorf("invalid favorite: %s", v)
}

// FromModel converts a stored record
func FromModel(rec models.CommandRecord) Record {
	return Record{
		ID:            rec.ID,
		RawCommand:    rec.RawCommand,
		MaskedCommand: rec.MaskedCommand,
		QuerySummary:  rec.QuerySummary,
		Explanation:   rec.Explanation,
		Category:      rec.Category,
		Favorite:      rec.Favorite,
		UsageCount:    rec.UsageCount,
	}
}

// Retriever is the read side of the store used by Export
type Retriever interface {
	Retrieve(opts db.RetrieveOptions) ([]models.CommandRecord, error)
}

// Writer is the write side of the store used by Import
type Writer interface {
	InsertCommand(rec *models.CommandRecord) (db.InsertResult, error)
	SetFavorite(id int64, favorite bool) error
}

// Export writes the records selected by opts as an indented JSON array and
// returns how many were written.
func Export(w io.Writer, store Retriever, opts db.RetrieveOptions) (int, error) {
	records, err := store.Retrieve(opts)
	if err != nil {
		return 0, fmt.Errorf("failed to read commands: %w", err)
	}

	if _, err := io.WriteString(w, "["); err != nil {
		return 0, fmt.Errorf("failed to write export: %w", err)
	}

	for i, rec := range records {
		data, err := json.MarshalIndent(FromModel(rec), "  ", "  ")
		if err != nil {
			return i, fmt.Errorf("failed to encode command %d: %w", rec.ID, err)
		}

		sep := ",\n  "
		if i == 0 {
			sep = "\n  "
		}
		if _, err := io.WriteString(w, sep); err != nil {
			return i, fmt.Errorf("failed to write export: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			return i, fmt.Errorf("failed to write export: %w", err)
		}
	}

	closing := "]\n"
	if len(records) > 0 {
		closing = "\n]\n"
	}
	if _, err := io.WriteString(w, closing); err != nil {
		return len(records), fmt.Errorf("failed to write export: %w", err)
	}

	return len(records), nil
}

// ImportStats counts the outcome of Import
type ImportStats struct {
	Created int
	Updated int
	Skipped int
}

// Import reads a JSON array of records and routes each one through the
// store's insert path. Commands already present get their usage bumped.
// Records without a raw command, that fail to decode or whose favorite flag
// cannot be restored are skipped.
func Import(r io.Reader, store Writer, masker db.Masker) (ImportStats, error) {
	var stats ImportStats

	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil {
		return stats, fmt.Errorf("failed to read import: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return stats, fmt.Errorf("failed to read import: expected a JSON array")
	}

	for dec.More() {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return stats, fmt.Errorf("failed to read import: %w", err)
		}

		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			stats.Skipped++
			continue
		}

		rec.RawCommand = strings.TrimSpace(rec.RawCommand)
		if rec.RawCommand == "" {
			stats.Skipped++
			continue
		}
		if rec.MaskedCommand == "" {
			rec.MaskedCommand = masker.Mask(rec.RawCommand)
		}

		res, err := store.InsertCommand(&models.CommandRecord{
			RawCommand:    rec.RawCommand,
			MaskedCommand: rec.MaskedCommand,
			QuerySummary:  rec.QuerySummary,
			Explanation:   rec.Explanation,
			Category:      rec.Category,
			Favorite:      rec.Favorite,
		})
		if err != nil {
			stats.Skipped++
			continue
		}

		if res.Created {
			stats.Created++
			continue
		}
		if rec.Favorite {
			if err := store.SetFavorite(res.ID, true); err != nil {
				stats.Skipped++
				continue
			}
		}
		stats.Updated++
	}

	if _, err := dec.Token(); err != nil {
		return stats, fmt.Errorf("failed to read import: %w", err)
	}

	return stats, nil
}
