package timeoff

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentLookups bounds the fan-out of requester name resolution.
const maxConcurrentLookups = 8

// ResolveNames attaches the owner's display name to each request. Distinct
// owner ids are looked up concurrently. Ids the lookup cannot resolve keep an
// empty RequesterName; lookup failures are logged and never returned.
func ResolveNames(ctx context.Context, lookup UserLookup, requests []Request, logger *zap.Logger) []Request {
	if lookup == nil || len(requests) == 0 {
		return requests
	}
	if logger == nil {
		logger = zap.L()
	}

	seen := make(map[string]struct{})
	var ids []string
	for _, r := range requests {
		if _, ok := seen[r.OwnerID]; ok {
			continue
		}
		seen[r.OwnerID] = struct{}{}
		ids = append(ids, r.OwnerID)
	}

	var (
		mu    sync.Mutex
		names = make(map[string]string, len(ids))
	)
	var g errgroup.Group
	g.SetLimit(maxConcurrentLookups)
	for _, id := range ids {
		g.Go(func() error {
			u, err := lookup.GetUser(ctx, id)
			if err != nil {
				logger.Warn("requester lookup failed", zap.String("user_id", id), zap.Error(err))
				return nil
			}
			if u == nil {
				logger.Debug("requester not found", zap.String("user_id", id))
				return nil
			}
			if name := u.DisplayName(); name != "" {
				mu.Lock()
				names[id] = name
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait() // always nil: a failed lookup only leaves the name empty

	out := make([]Request, len(requests))
	for i, r := range requests {
		r.RequesterName = names[r.OwnerID]
		out[i] = r
	}
	return out
}
