package lockmgr

import "sync"

// rwLock is a named reader writer lock with two fairness rules at
// contention boundaries: a waiting writer blocks newly arriving readers,
// and when a writer releases, the readers queued behind it are drained
// before the next writer proceeds. All state is guarded by the manager's
// single mutex so the deadlock detector sees a consistent graph.
type rwLock struct {
	name Resource

	readers        map[*Caller]struct{}
	writer         *Caller
	readersWaiting int
	writersWaiting int
	drainTickets   int // readers to admit before the next writer

	readCond  *sync.Cond
	writeCond *sync.Cond
}

func newRWLock(name Resource, mu *sync.Mutex) *rwLock {
	return &rwLock{
		name:      name,
		readers:   make(map[*Caller]struct{}),
		readCond:  sync.NewCond(mu),
		writeCond: sync.NewCond(mu),
	}
}

// acquire takes the lock in the requested mode. Before any blocking wait
// the wait for graph is checked; a wait that would close a cycle returns
// ErrDeadlock instead of queueing.
func (l *rwLock) acquire(c *Caller, write bool) error {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()

	if write {
		return l.acquireWrite(c)
	}
	return l.acquireRead(c)
}

func (l *rwLock) acquireRead(c *Caller) error {
	blocked := false
	for !l.readAdmissible() {
		if err := c.m.wouldDeadlock(c, l, false); err != nil {
			return err
		}

		if !blocked {
			blocked = true
			c.m.contentions.Inc()
		}

		l.readersWaiting++
		c.waitingOn = l
		l.readCond.Wait()
		c.waitingOn = nil
		l.readersWaiting--
	}

	if l.drainTickets > 0 {
		l.drainTickets--
	}
	l.readers[c] = struct{}{}

	return nil
}

// readAdmissible reports whether a reader may proceed right now: no
// active writer, and either no writer is waiting or this reader is part
// of the drain after a writer released.
func (l *rwLock) readAdmissible() bool {
	if l.writer != nil {
		return false
	}
	if l.writersWaiting == 0 {
		return true
	}
	return l.drainTickets > 0
}

func (l *rwLock) acquireWrite(c *Caller) error {
	blocked := false
	for l.writer != nil || len(l.readers) > 0 || l.drainTickets > 0 {
		if err := c.m.wouldDeadlock(c, l, true); err != nil {
			return err
		}

		if !blocked {
			blocked = true
			c.m.contentions.Inc()
		}

		l.writersWaiting++
		c.waitingOn = l
		l.writeCond.Wait()
		c.waitingOn = nil
		l.writersWaiting--
	}

	l.writer = c

	return nil
}

// release drops the caller's hold and wakes the next party according to
// the alternation rules.
func (l *rwLock) release(c *Caller, write bool) {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()

	if write {
		l.writer = nil

		// Queued readers are drained before the next writer proceeds.
		if l.readersWaiting > 0 {
			l.drainTickets = l.readersWaiting
			l.readCond.Broadcast()
			return
		}

		if l.writersWaiting > 0 {
			l.writeCond.Signal()
		}
		return
	}

	delete(l.readers, c)

	if len(l.readers) == 0 && l.drainTickets == 0 && l.writersWaiting > 0 {
		l.writeCond.Signal()
	}
}

// owners returns the callers a new waiter in the given mode would be
// blocked behind, for the wait for graph.
func (l *rwLock) owners(write bool) []*Caller {
	var owners []*Caller

	if l.writer != nil {
		owners = append(owners, l.writer)
	}

	if write {
		for reader := range l.readers {
			owners = append(owners, reader)
		}
	}

	return owners
}
