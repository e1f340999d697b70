package core

import (
	"TokenLedger/internal/observability"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultDedupCapacity bounds the in-memory tier.
const DefaultDedupCapacity = 1_000_000

// DBIdempotencyChecker is the interface for the Postgres dedup lookup.
type DBIdempotencyChecker interface {
	IsDuplicate(requestID string) (bool, error)
}

// IdempotencyChecker implements two-tier deduplication on request ids:
// an LRU of recently applied ids in front of the event log.
type IdempotencyChecker struct {
	cache     *lru.Cache[string, struct{}]
	dbChecker DBIdempotencyChecker
	metrics   *observability.Metrics
}

func NewIdempotencyChecker(capacity int, dbChecker DBIdempotencyChecker, metrics *observability.Metrics) *IdempotencyChecker {
	if capacity <= 0 {
		capacity = DefaultDedupCapacity
	}
	cache, err := lru.NewWithEvict[string, struct{}](capacity, func(string, struct{}) {
		if metrics != nil {
			metrics.DedupLRUEvictions.Inc()
		}
	})
	if err != nil {
		// only returned for a non-positive size
		panic(err)
	}
	return &IdempotencyChecker{
		cache:     cache,
		dbChecker: dbChecker,
		metrics:   metrics,
	}
}

// IsDuplicate reports whether requestID was already applied and which tier
// answered ("lru" or "postgres").
func (ic *IdempotencyChecker) IsDuplicate(requestID string) (bool, string) {
	if ic.cache.Contains(requestID) {
		return true, "lru"
	}

	if ic.dbChecker == nil {
		return false, ""
	}

	start := time.Now()
	isDup, err := ic.dbChecker.IsDuplicate(requestID)
	if ic.metrics != nil {
		ic.metrics.DedupTier2Duration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		// A DB outage must not block processing; the unique constraint on
		// event_log.events(request_id) still rejects the write.
		if ic.metrics != nil {
			ic.metrics.DedupTier2Errors.Inc()
		}
		return false, ""
	}
	if isDup {
		ic.cache.Add(requestID, struct{}{})
		return true, "postgres"
	}
	return false, ""
}

// MarkProcessed records requestID after a successful apply.
func (ic *IdempotencyChecker) MarkProcessed(requestID string) {
	ic.cache.Add(requestID, struct{}{})
	if ic.metrics != nil {
		ic.metrics.DedupLRUSize.Set(float64(ic.cache.Len()))
	}
}

// Warm loads recent request ids, oldest first, after a restart.
func (ic *IdempotencyChecker) Warm(keys []string) {
	for _, k := range keys {
		ic.cache.Add(k, struct{}{})
	}
	if ic.metrics != nil {
		ic.metrics.DedupLRUSize.Set(float64(ic.cache.Len()))
	}
}

// Keys returns cached ids from oldest to newest.
func (ic *IdempotencyChecker) Keys() []string {
	return ic.cache.Keys()
}

func (ic *IdempotencyChecker) Len() int {
	return ic.cache.Len()
}
