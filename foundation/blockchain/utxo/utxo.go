// Package utxo maintains the set of unspent transaction outputs: a
// versioned map from outpoint key to spendable output. Mutations are
// batched and all or nothing, guarded by an in flight marker set so two
// concurrent spenders of the same output cannot both commit. Validation
// runs against point in time snapshots that are allowed to go stale; the
// conflict check at commit time resolves the race.
package utxo

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/atomic"
)

// ErrConflict is returned when an atomic update loses a race with a
// concurrent writer. The caller must retry with a fresh snapshot; no
// partial effect has been applied.
var ErrConflict = errors.New("utxo update conflict, retry with a fresh snapshot")

// Entry is a spendable output, keyed in the set by "txID:index". Entries
// are created and destroyed, never mutated in place.
type Entry struct {
	Amount  uint64 `json:"amount"`
	Address string `json:"address"`
}

// KeyedEntry pairs an entry with its outpoint key for query responses.
type KeyedEntry struct {
	Key     string `json:"key"`
	Amount  uint64 `json:"amount"`
	Address string `json:"address"`
}

// Snapshot is a validation time consistent view of the set.
type Snapshot struct {
	Version uint64
	Entries map[string]Entry
}

// =============================================================================

// Config holds the tunables for the set.
type Config struct {
	SnapshotCacheSize uint64        // Bounded count of cached snapshots, oldest evicted.
	SnapshotTTL       time.Duration // How long a cached snapshot stays useful.
}

// Set manages the unspent output map.
type Set struct {
	mu       sync.RWMutex
	entries  map[string]Entry
	inflight map[string]struct{}
	version  *atomic.Uint64

	snapshots *ttlcache.Cache[uint64, Snapshot]
}

// New constructs an empty set.
func New(cfg Config) *Set {
	if cfg.SnapshotCacheSize == 0 {
		cfg.SnapshotCacheSize = 8
	}
	if cfg.SnapshotTTL == 0 {
		cfg.SnapshotTTL = time.Minute
	}

	snapshots := ttlcache.New[uint64, Snapshot](
		ttlcache.WithCapacity[uint64, Snapshot](cfg.SnapshotCacheSize),
		ttlcache.WithTTL[uint64, Snapshot](cfg.SnapshotTTL),
	)
	go snapshots.Start()

	return &Set{
		entries:   make(map[string]Entry),
		inflight:  make(map[string]struct{}),
		version:   atomic.NewUint64(0),
		snapshots: snapshots,
	}
}

// Shutdown stops the snapshot cache janitor.
func (s *Set) Shutdown() {
	s.snapshots.Stop()
}

// =============================================================================

// Get returns the entry for the outpoint key.
func (s *Set) Get(key string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, found := s.entries[key]
	return entry, found
}

// Contains reports whether the outpoint key is currently spendable.
func (s *Set) Contains(key string) bool {
	_, found := s.Get(key)
	return found
}

// Balance sums the entries paying the specified address. A linear scan is
// deliberate; the set is the authority and indexes can lie.
func (s *Set) Balance(address string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total uint64
	for _, entry := range s.entries {
		if entry.Address == address {
			total += entry.Amount
		}
	}

	return total
}

// UTXOsFor returns the spendable outputs belonging to the address.
func (s *Set) UTXOsFor(address string) []KeyedEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var utxos []KeyedEntry
	for key, entry := range s.entries {
		if entry.Address == address {
			utxos = append(utxos, KeyedEntry{Key: key, Amount: entry.Amount, Address: entry.Address})
		}
	}

	return utxos
}

// Version returns the monotonic version counter. It bumps on every
// successful atomic update and on every rebuild.
func (s *Set) Version() uint64 {
	return s.version.Load()
}

// Count returns the number of unspent outputs.
func (s *Set) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}

// =============================================================================

// Reserve marks the outpoint keys as mid update for the calling operation.
// Any other caller touching these keys conflicts until Unreserve. This is
// the double spend in flight guard for work that spans validation.
func (s *Set) Reserve(keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		if _, busy := s.inflight[key]; busy {
			return fmt.Errorf("outpoint %s: %w", key, ErrConflict)
		}
	}

	for _, key := range keys {
		s.inflight[key] = struct{}{}
	}

	return nil
}

// Unreserve releases previously reserved keys.
func (s *Set) Unreserve(keys []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.inflight, key)
	}
}

// AtomicUpdate applies the batch all or nothing. A nil entry deletes the
// key; a non nil entry creates it. The update refuses with ErrConflict,
// touching nothing, if any key is reserved by a concurrent caller or if a
// delete references a key that is not in the set. On success the version
// counter bumps once for the whole batch.
func (s *Set) AtomicUpdate(updates map[string]*Entry) error {
	if len(updates) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, entry := range updates {
		if _, busy := s.inflight[key]; busy {
			return fmt.Errorf("outpoint %s is mid update: %w", key, ErrConflict)
		}
		if entry == nil {
			if _, exists := s.entries[key]; !exists {
				return fmt.Errorf("outpoint %s is already spent: %w", key, ErrConflict)
			}
		}
	}

	for key, entry := range updates {
		if entry == nil {
			delete(s.entries, key)
			continue
		}
		s.entries[key] = *entry
	}

	s.version.Inc()

	return nil
}

// Rebuild replaces the whole set, used when a fork switch recomputes the
// unspent outputs for the adopted chain from scratch.
func (s *Set) Rebuild(entries map[string]Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]Entry, len(entries))
	for key, entry := range entries {
		s.entries[key] = entry
	}

	s.version.Inc()
}

// =============================================================================

// Snapshot returns a validation time consistent deep copy of the set along
// with the version it was taken at. Snapshots for the same version are
// cached so repeated validations don't re-copy; callers must treat the
// returned map as read only.
func (s *Set) Snapshot() Snapshot {
	s.mu.RLock()
	version := s.version.Load()

	if item := s.snapshots.Get(version); item != nil {
		s.mu.RUnlock()
		return item.Value()
	}

	entries := make(map[string]Entry, len(s.entries))
	for key, entry := range s.entries {
		entries[key] = entry
	}
	s.mu.RUnlock()

	snapshot := Snapshot{
		Version: version,
		Entries: entries,
	}
	s.snapshots.Set(version, snapshot, ttlcache.DefaultTTL)

	return snapshot
}

// Resolve adapts a snapshot into an output lookup keyed by transaction id
// and output index.
func (sn Snapshot) Resolve(key string) (Entry, bool) {
	entry, found := sn.Entries[key]
	return entry, found
}
