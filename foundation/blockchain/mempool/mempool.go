// Package mempool maintains the pool of validated transactions waiting to
// be included in a block. Admission is guarded against in pool double
// spends: no two pooled transactions may reference the same outpoint.
package mempool

import (
	"sync"

	"github.com/calderaledger/caldera/foundation/blockchain/ledger"
)

// PoolTx wraps a pooled transaction with the fee it was admitted with, so
// block template selection doesn't need to resolve inputs again.
type PoolTx struct {
	Tx  ledger.Tx
	Fee uint64
}

// Mempool represents a cache of pending transactions keyed by id with a
// second index on the outpoints they spend.
type Mempool struct {
	mu        sync.RWMutex
	pool      map[string]PoolTx
	outpoints map[string]string // outpoint key -> pooled tx id
}

// New constructs a new mempool.
func New() *Mempool {
	return &Mempool{
		pool:      make(map[string]PoolTx),
		outpoints: make(map[string]string),
	}
}

// Count returns the current number of transactions in the pool.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.pool)
}

// Contains reports whether the transaction id is pooled.
func (mp *Mempool) Contains(txID string) bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	_, exists := mp.pool[txID]
	return exists
}

// Upsert adds or replaces a transaction. It refuses any transaction whose
// input references an outpoint already claimed by a different pooled
// transaction; that is the mempool half of the double spend guard.
func (mp *Mempool) Upsert(tx ledger.Tx, fee uint64) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	for _, in := range tx.Inputs {
		key := ledger.OutpointKey(in.TxID, in.Index)
		if claimer, claimed := mp.outpoints[key]; claimed && claimer != tx.ID {
			return ledger.NewValidationError(ledger.ReasonDoubleSpend, "outpoint %s already referenced by pooled tx %s", key, claimer)
		}
	}

	mp.pool[tx.ID] = PoolTx{Tx: tx, Fee: fee}
	for _, in := range tx.Inputs {
		mp.outpoints[ledger.OutpointKey(in.TxID, in.Index)] = tx.ID
	}

	return nil
}

// Delete removes a transaction and releases its outpoint claims.
func (mp *Mempool) Delete(tx ledger.Tx) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.remove(tx)
}

// DeleteConfirmed removes every pooled transaction that appears in the
// specified set of confirmed transactions, plus any pooled transaction
// that became unspendable because a confirmed transaction consumed one of
// its inputs. It returns the removed transactions for possible restore.
func (mp *Mempool) DeleteConfirmed(confirmed []ledger.Tx) []PoolTx {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	var removed []PoolTx

	for _, tx := range confirmed {
		if ptx, exists := mp.pool[tx.ID]; exists {
			removed = append(removed, ptx)
			mp.remove(ptx.Tx)
		}

		// A confirmed spend invalidates any pooled tx racing for the
		// same outpoint.
		for _, in := range tx.Inputs {
			key := ledger.OutpointKey(in.TxID, in.Index)
			if claimer, claimed := mp.outpoints[key]; claimed {
				if ptx, exists := mp.pool[claimer]; exists {
					removed = append(removed, ptx)
					mp.remove(ptx.Tx)
				}
			}
		}
	}

	return removed
}

// Restore puts previously removed transactions back, skipping any that
// now conflict. Used when a staged block commit rolls back.
func (mp *Mempool) Restore(txs []PoolTx) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	for _, ptx := range txs {
		conflict := false
		for _, in := range ptx.Tx.Inputs {
			key := ledger.OutpointKey(in.TxID, in.Index)
			if claimer, claimed := mp.outpoints[key]; claimed && claimer != ptx.Tx.ID {
				conflict = true
				break
			}
		}
		if conflict {
			continue
		}

		mp.pool[ptx.Tx.ID] = ptx
		for _, in := range ptx.Tx.Inputs {
			mp.outpoints[ledger.OutpointKey(in.TxID, in.Index)] = ptx.Tx.ID
		}
	}
}

// Reconcile drops every pooled transaction with an input the resolve
// function no longer recognizes. Used after a chain switch, when the
// unspent output set the pool was admitted against has been replaced.
// The dropped transactions are returned for possible restore.
func (mp *Mempool) Reconcile(resolve func(outpointKey string) bool) []PoolTx {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	var removed []PoolTx

	for _, ptx := range mp.pool {
		for _, in := range ptx.Tx.Inputs {
			if !resolve(ledger.OutpointKey(in.TxID, in.Index)) {
				removed = append(removed, ptx)
				mp.remove(ptx.Tx)
				break
			}
		}
	}

	return removed
}

// Truncate clears all the transactions from the pool.
func (mp *Mempool) Truncate() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool = make(map[string]PoolTx)
	mp.outpoints = make(map[string]string)
}

// Copy returns a list of the pooled transactions.
func (mp *Mempool) Copy() []ledger.Tx {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	txs := make([]ledger.Tx, 0, len(mp.pool))
	for _, ptx := range mp.pool {
		txs = append(txs, ptx.Tx)
	}

	return txs
}

// PickBest returns up to howMany transactions ordered by fee, highest
// first. Pass -1 for the whole pool.
func (mp *Mempool) PickBest(howMany int) []ledger.Tx {
	mp.mu.RLock()
	all := make([]PoolTx, 0, len(mp.pool))
	for _, ptx := range mp.pool {
		all = append(all, ptx)
	}
	mp.mu.RUnlock()

	sortByFee(all)

	if howMany == -1 || howMany > len(all) {
		howMany = len(all)
	}

	txs := make([]ledger.Tx, 0, howMany)
	for _, ptx := range all[:howMany] {
		txs = append(txs, ptx.Tx)
	}

	return txs
}

// remove must be called with the write lock held.
func (mp *Mempool) remove(tx ledger.Tx) {
	delete(mp.pool, tx.ID)

	for _, in := range tx.Inputs {
		key := ledger.OutpointKey(in.TxID, in.Index)
		if mp.outpoints[key] == tx.ID {
			delete(mp.outpoints, key)
		}
	}
}
