package summary

import (
	"fmt"
	"sort"
	"time"

	"github.com/chris/mergen/pkg/models"
)

// Bucket holds the records last used within one day or week
type Bucket struct {
	BucketSize BucketSize
	BucketID   int64 // Unix timestamp of the bucket start
	Records    []models.CommandRecord
	FirstTime  int64
	LastTime   int64
	Uses       int64
}

type BucketSize int

const (
	Daily BucketSize = iota
	Weekly
)

// ParseBucketSize maps "day" and "week" to a BucketSize
func ParseBucketSize(s string) (BucketSize, error) {
	switch s {
	case "day", "daily", "":
		return Daily, nil
	case "week", "weekly":
		return Weekly, nil
	default:
		return Daily, fmt.Errorf("unknown bucket size %q (use day or week)", s)
	}
}

func bucketStart(ts int64, size BucketSize) int64 {
	t := time.Unix(ts, 0)
	year, month, day := t.Date()
	midnight := time.Date(year, month, day, 0, 0, 0, 0, t.Location())
	if size == Weekly {
		// Weeks start on Monday
		offset := (int(midnight.Weekday()) + 6) % 7
		midnight = midnight.AddDate(0, 0, -offset)
	}
	return midnight.Unix()
}

// BucketBy groups records by the local day or week of their last use
func BucketBy(records []models.CommandRecord, size BucketSize) map[int64]*Bucket {
	buckets := make(map[int64]*Bucket)

	for _, rec := range records {
		id := bucketStart(rec.CreatedAt, size)

		b := buckets[id]
		if b == nil {
			b = &Bucket{
				BucketSize: size,
				BucketID:   id,
				FirstTime:  rec.CreatedAt,
				LastTime:   rec.CreatedAt,
			}
			buckets[id] = b
		}

		b.Records = append(b.Records, rec)
		b.Uses += rec.UsageCount
		if rec.CreatedAt < b.FirstTime {
			b.FirstTime = rec.CreatedAt
		}
		if rec.CreatedAt > b.LastTime {
			b.LastTime = rec.CreatedAt
		}
	}

	for _, b := range buckets {
		sort.SliceStable(b.Records, func(i, j int) bool {
			return b.Records[i].CreatedAt < b.Records[j].CreatedAt
		})
	}

	return buckets
}

// GetOrderedBuckets returns bucket ids sorted chronologically
func GetOrderedBuckets(buckets map[int64]*Bucket) []int64 {
	ids := make([]int64, 0, len(buckets))
	for id := range buckets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// FormatLabel renders the bucket start, e.g. "Mon Jan 2" or "Week of Jan 2"
func (b *Bucket) FormatLabel() string {
	t := time.Unix(b.BucketID, 0)
	if b.BucketSize == Weekly {
		return "Week of " + t.Format("Jan 2, 2006")
	}
	return t.Format("Mon Jan 2, 2006")
}
