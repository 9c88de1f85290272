package execution

import (
	"fmt"
	"hash/fnv"
	"sync"
	"time"
)

// ErrDuplicateInFlight is returned when a decision_id is already in flight
// (or still inside its TTL window), guarding against a strategy re-firing
// the same Decision before its first execution has settled (§4.5 idempotent
// decision_id, §8 invariant 2).
var ErrDuplicateInFlight = fmt.Errorf("duplicate in-flight")

// InFlightDeduper gives Executor deterministic, short-window deduplication
// on decision_id: no false negatives (a hash collision must never let a
// duplicate order through), bounded memory via sharding, and lazy
// expiry so the hot path never pays for a background sweep.
type InFlightDeduper struct {
	ttl    time.Duration
	shards []inFlightShard
}

type inFlightShard struct {
	mu sync.Mutex
	m  map[string]time.Time // decision_id -> expiresAt
}

// NewInFlightDeduper builds a deduper. ttl should span one signal-to-fill
// cycle, typically 500ms-5s; shardCount trades lock contention for memory.
func NewInFlightDeduper(ttl time.Duration, shardCount int) *InFlightDeduper {
	if ttl <= 0 {
		ttl = 2 * time.Second
	}
	if shardCount <= 0 {
		shardCount = 64
	}
	shards := make([]inFlightShard, shardCount)
	for i := range shards {
		shards[i].m = make(map[string]time.Time)
	}
	return &InFlightDeduper{ttl: ttl, shards: shards}
}

// TryAcquire claims decisionID for the deduper's TTL. It returns
// ErrDuplicateInFlight if that decision is already in flight, so the
// executor's caller can drop the duplicate fire without a second
// PlaceOrder call reaching the exchange.
func (d *InFlightDeduper) TryAcquire(decisionID string) error {
	if d == nil {
		return nil
	}
	if decisionID == "" {
		return nil
	}
	now := time.Now()
	sh := d.shard(decisionID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	// lazy sweep: only this shard, only on access.
	for id, exp := range sh.m {
		if !exp.After(now) {
			delete(sh.m, id)
		}
	}

	if exp, ok := sh.m[decisionID]; ok && exp.After(now) {
		return ErrDuplicateInFlight
	}
	sh.m[decisionID] = now.Add(d.ttl)
	return nil
}

// Release frees decisionID early, once its outcome (filled, rejected, or
// erred) is known, so a legitimate retry with the same decision_id doesn't
// have to wait out the TTL.
func (d *InFlightDeduper) Release(decisionID string) {
	if d == nil || decisionID == "" {
		return
	}
	sh := d.shard(decisionID)
	sh.mu.Lock()
	delete(sh.m, decisionID)
	sh.mu.Unlock()
}

func (d *InFlightDeduper) shard(decisionID string) *inFlightShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(decisionID))
	idx := int(h.Sum32()) % len(d.shards)
	return &d.shards[idx]
}
