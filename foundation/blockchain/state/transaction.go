package state

import (
	"fmt"

	"github.com/calderaledger/caldera/foundation/blockchain/ledger"
	"github.com/calderaledger/caldera/foundation/blockchain/lockmgr"
)

// AddTransaction validates a signed transaction against the current
// unspent output set and admits it to the mempool. Validation runs
// against a snapshot; the in flight markers on the referenced outpoints
// close the race with a concurrent block commit spending the same
// outputs. On success the transaction is shared with peers and mining is
// signaled.
func (s *State) AddTransaction(tx ledger.Tx) error {
	return s.addTransaction(tx, true)
}

// AddPeerTransaction admits a transaction that arrived from a peer. The
// validation is identical but the transaction is not re-shared, which
// would echo it around the network forever.
func (s *State) AddPeerTransaction(tx ledger.Tx) error {
	return s.addTransaction(tx, false)
}

func (s *State) addTransaction(tx ledger.Tx, share bool) error {
	s.evHandler("state: add transaction: check tx[%s]", tx.ID)

	if tx.ID != tx.HashID() {
		return ledger.NewValidationError(ledger.ReasonInvalidBlockData, "tx id does not match its content")
	}

	if len(tx.Outputs) == 0 {
		return ledger.NewValidationError(ledger.ReasonInvalidBlockData, "tx %s has no outputs", tx.ID)
	}

	// The coinbase shape validates trivially. One arrives here only inside
	// a shared block, never as a wallet submission, and block validation
	// re-checks the reward amount in context.
	if tx.IsCoinbase() {
		return s.mempool.Upsert(tx, 0)
	}

	c := s.locks.Begin()
	if err := c.Lock(lockmgr.Mempool); err != nil {
		return fmt.Errorf("add transaction: %w", err)
	}
	defer c.ReleaseAll()

	keys := make([]string, len(tx.Inputs))
	for i, in := range tx.Inputs {
		keys[i] = ledger.OutpointKey(in.TxID, in.Index)
	}

	if err := s.utxo.Reserve(keys); err != nil {
		return ledger.NewValidationError(ledger.ReasonDoubleSpend, "tx %s: %s", tx.ID, err)
	}
	defer s.utxo.Unreserve(keys)

	fee, err := s.validateSpend(tx)
	if err != nil {
		return err
	}

	if err := s.mempool.Upsert(tx, fee); err != nil {
		return err
	}

	s.evHandler("state: add transaction: accepted tx[%s] fee[%d]", tx.ID, fee)

	if s.Worker != nil {
		if share {
			s.Worker.SignalShareTx(tx)
		}
		s.Worker.SignalStartMining()
	}

	return nil
}

// validateSpend checks every input of a non coinbase transaction against
// a snapshot of the unspent output set: the reference must resolve, the
// signature must verify, and the signer must own the referenced output.
// Total inputs must cover total outputs; the surplus is the fee.
func (s *State) validateSpend(tx ledger.Tx) (fee uint64, err error) {
	snapshot := s.utxo.Snapshot()

	var totalIn uint64
	for i, in := range tx.Inputs {
		key := ledger.OutpointKey(in.TxID, in.Index)

		entry, found := snapshot.Resolve(key)
		if !found {
			return 0, ledger.NewValidationError(ledger.ReasonDoubleSpend, "tx %s input %s does not resolve to an unspent output", tx.ID, key)
		}

		if err := tx.VerifyInput(i, entry.Address); err != nil {
			return 0, err
		}

		totalIn += entry.Amount
	}

	totalOut := tx.TotalOutput()
	if totalOut > totalIn {
		return 0, ledger.NewValidationError(ledger.ReasonInvalidBlockData, "tx %s outputs %d exceed inputs %d", tx.ID, totalOut, totalIn)
	}

	return totalIn - totalOut, nil
}
