package lock

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
)

var ErrNotObtained = errors.New("lock: not obtained")

// Release frees every key acquired by one Acquire call.
type Release func()

// Locker serializes work on named keys. Acquire takes a whole batch in sorted
// key order; callers never request a second batch while holding one, which
// keeps lock order global and rules out deadlock between batches.
type Locker interface {
	Acquire(ctx context.Context, keys ...string) (Release, error)
}

func ItemKey(id uuid.UUID) string { return "item:" + id.String() }

func LotKey(id uuid.UUID) string { return "lot:" + id.String() }

// normalize sorts keys and drops duplicates.
func normalize(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
