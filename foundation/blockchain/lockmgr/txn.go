package lockmgr

import "fmt"

// Op is one staged step of a transaction: an execute function paired with
// the rollback that undoes it.
type Op struct {
	Name     string
	Execute  func() error
	Rollback func()
}

// Txn is an all or nothing multi step mutation. Commit acquires the
// declared locks sorted by resource order, runs the staged operations in
// order, and on any failure invokes the rollbacks of the already executed
// operations in reverse order before releasing the locks. Readers never
// observe a partially applied state.
type Txn struct {
	m         *Manager
	resources []Resource
	ops       []Op
}

// BeginTxn constructs a transaction that will write lock the specified
// resources. Duplicates are collapsed; order is normalized at commit.
func (m *Manager) BeginTxn(resources ...Resource) *Txn {
	seen := make(map[Resource]struct{}, len(resources))
	var unique []Resource
	for _, r := range resources {
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		unique = append(unique, r)
	}

	return &Txn{
		m:         m,
		resources: unique,
	}
}

// Stage appends an operation with its rollback. A nil rollback is allowed
// for steps with no side effects worth undoing.
func (t *Txn) Stage(name string, execute func() error, rollback func()) {
	t.ops = append(t.ops, Op{Name: name, Execute: execute, Rollback: rollback})
}

// Commit runs the two phases: lock everything in resource order, then
// execute the staged operations. The first failure rolls back everything
// executed so far, in reverse order, and is returned to the caller.
func (t *Txn) Commit() error {
	sortResources(t.resources)

	c := t.m.Begin()
	for _, r := range t.resources {
		if err := c.Lock(r); err != nil {
			c.ReleaseAll()
			return fmt.Errorf("txn lock %s: %w", r, err)
		}
	}
	defer c.ReleaseAll()

	for i, op := range t.ops {
		if err := op.Execute(); err != nil {
			t.m.ev("lockmgr: txn: op[%s] failed, rolling back %d ops", op.Name, i)

			for j := i - 1; j >= 0; j-- {
				if t.ops[j].Rollback != nil {
					t.ops[j].Rollback()
				}
			}

			return fmt.Errorf("txn op %s: %w", op.Name, err)
		}
	}

	return nil
}

// sortResources orders ascending by the global resource order. The set is
// tiny so insertion sort is plenty.
func sortResources(rs []Resource) {
	for i := 1; i < len(rs); i++ {
		for j := i; j > 0 && rs[j] < rs[j-1]; j-- {
			rs[j], rs[j-1] = rs[j-1], rs[j]
		}
	}
}
