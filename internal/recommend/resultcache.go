package recommend

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/kaede-app/signpost/internal/match"
)

const (
	// DefaultResultCacheSize bounds the match-result cache.
	DefaultResultCacheSize = 256

	// DefaultResultCacheTTL is how long a cached candidate set stays valid.
	// Needs profiles change between conversation turns, so entries are
	// deliberately short-lived.
	DefaultResultCacheTTL = 30 * time.Minute
)

// resultCache memoizes scored candidate sets per (user, needs text). Entries
// hold candidates BEFORE the cooldown filter and before recording — both of
// those are per-call effects that must re-run on every request, cached
// scoring or not. Last-write-wins under concurrency is fine; recommendations
// are advisory.
type resultCache struct {
	lru *expirable.LRU[string, []match.Result]
}

func newResultCache(size int, ttl time.Duration) *resultCache {
	if size <= 0 {
		size = DefaultResultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultResultCacheTTL
	}
	return &resultCache{
		lru: expirable.NewLRU[string, []match.Result](size, nil, ttl),
	}
}

func resultKey(userID, needsText string) string {
	sum := sha256.Sum256([]byte(userID + "\x00" + needsText))
	return hex.EncodeToString(sum[:])
}

func (c *resultCache) get(userID, needsText string) ([]match.Result, bool) {
	return c.lru.Get(resultKey(userID, needsText))
}

func (c *resultCache) put(userID, needsText string, results []match.Result) {
	c.lru.Add(resultKey(userID, needsText), results)
}
