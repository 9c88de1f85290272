// Package settings holds the two process-wide mutable objects (§5):
// GlobalSettings, under read-copy-update, and the killswitch, a single
// atomic boolean. Both are process singletons injected by reference into
// every component that needs to read them.
package settings

import (
	"sync/atomic"

	"github.com/betbot/gobet/internal/domain"
)

// Store is the RCU holder for GlobalSettings. Readers call Load and hold
// the returned snapshot for the lifetime of one decision; writers call
// Store to atomically install a new snapshot (§5).
type Store struct {
	ptr atomic.Pointer[domain.GlobalSettings]
}

func NewStore(initial domain.GlobalSettings) *Store {
	s := &Store{}
	s.ptr.Store(&initial)
	return s
}

func (s *Store) Load() domain.GlobalSettings {
	return *s.ptr.Load()
}

func (s *Store) Update(next domain.GlobalSettings) {
	s.ptr.Store(&next)
}

// Killswitch is the process-wide atomic trading halt (§4.6 rule 1, §9).
// When set, the validator rejects every new opening decision.
type Killswitch struct {
	on atomic.Bool
}

func NewKillswitch() *Killswitch { return &Killswitch{} }

func (k *Killswitch) On() bool   { return k.on.Load() }
func (k *Killswitch) Set(v bool) { k.on.Store(v) }
