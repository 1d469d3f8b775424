package timeoff

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// CachedUsers wraps a UserLookup with a TTL cache. Misses (unknown ids) are
// cached too, so a burst of requests from a deleted user costs one lookup.
// Errors are never cached.
type CachedUsers struct {
	next  UserLookup
	cache *cache.Cache
}

var _ UserLookup = (*CachedUsers)(nil)

func NewCachedUsers(next UserLookup, ttl time.Duration) *CachedUsers {
	return &CachedUsers{next: next, cache: cache.New(ttl, 2*ttl)}
}

type cachedUser struct {
	user  User
	found bool
}

func (c *CachedUsers) GetUser(ctx context.Context, id string) (*User, error) {
	if v, ok := c.cache.Get(id); ok {
		entry := v.(cachedUser)
		if !entry.found {
			return nil, nil
		}
		u := entry.user
		return &u, nil
	}

	u, err := c.next.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		c.cache.SetDefault(id, cachedUser{})
		return nil, nil
	}
	c.cache.SetDefault(id, cachedUser{user: *u, found: true})
	out := *u
	return &out, nil
}

// Forget drops a cached entry, e.g., after a role change.
func (c *CachedUsers) Forget(id string) { c.cache.Delete(id) }
