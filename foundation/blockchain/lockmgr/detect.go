package lockmgr

import "fmt"

// wouldDeadlock walks the wait for graph before the caller is allowed to
// block on the lock: caller -> lock -> owning callers -> the locks those
// owners are themselves blocked on, and so on. If the walk reaches the
// caller again the wait edge would close a cycle and the acquisition is
// refused with ErrDeadlock instead of queueing. Must be called with the
// manager mutex held.
func (m *Manager) wouldDeadlock(c *Caller, target *rwLock, write bool) error {
	visited := make(map[*rwLock]struct{})

	var walk func(l *rwLock) bool
	walk = func(l *rwLock) bool {
		if _, seen := visited[l]; seen {
			return false
		}
		visited[l] = struct{}{}

		// A waiter is blocked behind the current holders in the
		// conflicting mode. Writers conflict with everyone.
		for _, owner := range l.owners(true) {
			if owner == c {
				return true
			}
			if owner.waitingOn != nil && walk(owner.waitingOn) {
				return true
			}
		}

		return false
	}

	// Only the edges this wait actually creates matter: a reader is
	// blocked by the writer side, a writer by both sides.
	for _, owner := range target.owners(write) {
		if owner == c {
			m.deadlocks.Inc()
			m.ev("lockmgr: deadlock: caller %d already holds %s", c.id, target.name)
			return fmt.Errorf("waiting on %s held by self: %w", target.name, ErrDeadlock)
		}
		if owner.waitingOn != nil && walk(owner.waitingOn) {
			m.deadlocks.Inc()
			m.ev("lockmgr: deadlock: caller %d waiting on %s closes a cycle", c.id, target.name)
			return fmt.Errorf("waiting on %s closes a wait cycle: %w", target.name, ErrDeadlock)
		}
	}

	return nil
}
