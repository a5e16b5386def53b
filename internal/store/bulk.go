package store

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// maxParallelDeletes bounds concurrent remote deletes in DeleteMany.
const maxParallelDeletes = 4

// DeleteMany removes every id concurrently and returns how many succeeded.
// Each id is flagged busy independently; one failure does not stop the
// others. The collection is refreshed once, after all deletes settle, if any
// succeeded.
func (s *Store) DeleteMany(ctx context.Context, ids []string) int {
	var (
		g       errgroup.Group
		removed atomic.Int64
	)
	g.SetLimit(maxParallelDeletes)

	for _, id := range dedupe(ids) {
		g.Go(func() error {
			if err := s.remove(ctx, id); err == nil {
				removed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	n := int(removed.Load())
	if n > 0 {
		_ = s.Refresh(ctx)
	}
	return n
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
