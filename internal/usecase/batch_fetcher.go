package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/powderchaser/backend/internal/domain"
)

// sharedFetchTimeout bounds a shared request whose first caller had no deadline.
const sharedFetchTimeout = 30 * time.Second

// BatchFetchFunc performs one upstream call for a canonical id set.
type BatchFetchFunc[T any] func(ctx context.Context, ids []string) (map[string]T, error)

// BatchResult is the demultiplexed answer to one batch request.
type BatchResult[T any] struct {
	// Key is the canonical form of the requested id set.
	Key   string
	Found map[string]T
	// Missing lists requested ids the backend did not return, sorted.
	Missing []string
}

// BatchFetcher turns N per-resort lookups into a single upstream request.
// Concurrent calls for the same id set share one in-flight request.
// It does not cache.
type BatchFetcher[T any] struct {
	name  string
	fetch BatchFetchFunc[T]
	group singleflight.Group
}

// NewBatchFetcher creates a fetcher around one batch endpoint
func NewBatchFetcher[T any](name string, fetch BatchFetchFunc[T]) *BatchFetcher[T] {
	return &BatchFetcher[T]{name: name, fetch: fetch}
}

// CanonicalizeKeys trims, drops empty and duplicate ids and sorts the rest.
func CanonicalizeKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// CanonicalKey is the cache key of an id set: canonical ids joined by commas.
// Equal sets in any order map to the same key.
func CanonicalKey(keys []string) string {
	return strings.Join(CanonicalizeKeys(keys), ",")
}

// Fetch issues exactly one upstream request for keys. Ids absent from the
// response are reported in Missing rather than failing the batch.
func (b *BatchFetcher[T]) Fetch(ctx context.Context, keys []string) (*BatchResult[T], error) {
	ids := CanonicalizeKeys(keys)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: %s batch needs at least one resort id", domain.ErrInvalidRequest, b.name)
	}
	key := strings.Join(ids, ",")
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrNetwork, err)
	}

	// Other callers may join this request, so one caller giving up must not
	// cancel it. Each caller still stops waiting on its own ctx below.
	ch := b.group.DoChan(key, func() (interface{}, error) {
		fetchCtx, cancel := detach(ctx)
		defer cancel()
		return b.fetch(fetchCtx, ids)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", domain.ErrNetwork, ctx.Err())
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}

	// The shared map is never handed out; each caller gets its own view.
	shared, _ := res.Val.(map[string]T)
	result := &BatchResult[T]{
		Key:   key,
		Found: make(map[string]T, len(ids)),
	}
	for _, id := range ids {
		if v, ok := shared[id]; ok {
			result.Found[id] = v
		} else {
			result.Missing = append(result.Missing, id)
		}
	}
	return result, nil
}

// detach drops ctx's cancellation but keeps its values and deadline.
func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	base := context.WithoutCancel(ctx)
	if deadline, ok := ctx.Deadline(); ok {
		return context.WithDeadline(base, deadline)
	}
	return context.WithTimeout(base, sharedFetchTimeout)
}
