package access

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DecisionCache holds recent decisions per user. It owns its TTL; callers
// invalidate an entry whenever they change the inputs for that user.
type DecisionCache interface {
	Get(userID string) (Decision, bool)
	Set(userID string, d Decision)
	Invalidate(userID string)
}

type lruDecisionCache struct {
	entries *expirable.LRU[string, Decision]
}

// NewDecisionCache returns a size-bounded TTL cache, or a no-op cache when
// size or ttl is not positive.
func NewDecisionCache(size int, ttl time.Duration) DecisionCache {
	if size <= 0 || ttl <= 0 {
		return NopDecisionCache{}
	}
	return &lruDecisionCache{
		entries: expirable.NewLRU[string, Decision](size, nil, ttl),
	}
}

func (c *lruDecisionCache) Get(userID string) (Decision, bool) {
	return c.entries.Get(userID)
}

func (c *lruDecisionCache) Set(userID string, d Decision) {
	c.entries.Add(userID, d)
}

func (c *lruDecisionCache) Invalidate(userID string) {
	c.entries.Remove(userID)
}

type NopDecisionCache struct{}

func (NopDecisionCache) Get(string) (Decision, bool) { return Decision{}, false }
func (NopDecisionCache) Set(string, Decision)        {}
func (NopDecisionCache) Invalidate(string)           {}
