package state

import (
	"github.com/calderaledger/caldera/foundation/blockchain/ledger"
	"github.com/calderaledger/caldera/foundation/blockchain/lockmgr"
	"github.com/calderaledger/caldera/foundation/blockchain/mempool"
	"github.com/calderaledger/caldera/foundation/blockchain/utxo"
)

// AddBlock takes a block received from a peer or a local miner, validates
// it, and attaches it to the chain. The block number against the current
// chain length decides the path:
//
//	number == length: the next slot, validate fully and commit.
//	number >  length: the chain is behind, signal that a sync is needed.
//	number <  length: a side block, park it and, when allowReorg is set,
//	                  consider it as a fork candidate on cumulative work.
func (s *State) AddBlock(block ledger.Block, allowReorg bool) error {
	s.evHandler("state: add block: check block[%d] %s", block.Header.Number, block.Hash)

	length := s.ChainLength()

	switch {
	case block.Header.Number == length:
		if err := s.acceptNextBlock(block); err != nil {
			return err
		}
		s.reattachOrphans()
		return nil

	case block.Header.Number > length:

		// Park the block if it holds up on its own so the sync that
		// follows can reattach it without a re-download.
		if err := block.ValidateStructure(); err == nil {
			if err := block.ValidateProofOfWork(); err == nil {
				s.orphans.add(block)
			}
		}

		// The wrap carries the missing_blocks reason across the API
		// boundary while IsFutureBlock still finds the signal inside.
		return ledger.NewValidationError(ledger.ReasonMissingBlocks, "%w", &FutureBlockError{Number: block.Header.Number, ChainLength: length})

	default:
		return s.considerSideBlock(block, allowReorg)
	}
}

// =============================================================================

// acceptNextBlock validates the block as the next link of the active
// chain and commits the chain append, the unspent output mutations, the
// mempool eviction, and the difficulty retarget as one staged
// transaction. Any failure rolls the executed steps back in reverse.
func (s *State) acceptNextBlock(block ledger.Block) error {
	tip := s.LatestBlock()
	difficulty := s.CurrentDifficulty()

	if err := block.Validate(&tip); err != nil {
		return err
	}

	if block.Header.Difficulty != difficulty {
		return ledger.NewValidationError(ledger.ReasonInvalidBlockData, "block %d difficulty %d does not match the scheduled target %d", block.Header.Number, block.Header.Difficulty, difficulty)
	}

	snapshot := s.utxo.Snapshot()

	updates, inverse, err := blockUTXOUpdates(block, snapshot, s.genesis.BlockReward)
	if err != nil {
		return err
	}

	var evicted []mempool.PoolTx
	prevDifficulty := difficulty

	txn := s.locks.BeginTxn(lockmgr.Chain, lockmgr.UTXOSet, lockmgr.Mempool)

	txn.Stage("linkage",
		func() error {
			current := s.chain[len(s.chain)-1]
			if current.Hash != tip.Hash {
				return ledger.NewValidationError(ledger.ReasonStaleBlock, "chain advanced past %s during validation", tip.Hash)
			}
			return nil
		},
		nil,
	)

	txn.Stage("utxo",
		func() error {
			return s.utxo.AtomicUpdate(updates)
		},
		func() {
			if err := s.utxo.AtomicUpdate(inverse); err != nil {
				s.evHandler("state: accept block: utxo rollback: ERROR: %s", err)
			}
		},
	)

	txn.Stage("chain",
		func() error {
			s.chain = append(s.chain, block)
			s.difficulty = retargetAfter(s.genesis, s.chain, s.difficulty)
			return nil
		},
		func() {
			s.chain = s.chain[:len(s.chain)-1]
			s.difficulty = prevDifficulty
		},
	)

	txn.Stage("mempool",
		func() error {
			evicted = s.mempool.DeleteConfirmed(block.Trans)
			return nil
		},
		func() {
			s.mempool.Restore(evicted)
		},
	)

	if err := txn.Commit(); err != nil {
		return err
	}

	if s.archive != nil {
		s.archive.Write(block)
	}

	s.evHandler("state: accept block: block[%d] %s joined the chain, %d trans", block.Header.Number, block.Hash, len(block.Trans))

	return nil
}

// considerSideBlock handles a block whose number falls inside the active
// chain. Duplicates are no-ops. Anything else that holds up on its own is
// parked as an orphan, and when allowReorg is set, weighed as a one block
// fork candidate on cumulative work.
func (s *State) considerSideBlock(block ledger.Block, allowReorg bool) error {
	if existing, found := s.BlockByNumber(block.Header.Number); found && existing.Hash == block.Hash {
		return nil
	}

	if err := block.ValidateStructure(); err != nil {
		return err
	}
	if err := block.ValidateProofOfWork(); err != nil {
		return err
	}

	s.orphans.add(block)
	s.evHandler("state: side block: parked block[%d] %s mined by %s", block.Header.Number, block.Hash, block.Origin.Miner)

	if allowReorg {
		chain := s.ChainCopy()
		d := int(block.Header.Number)

		if d >= 1 && chain[d-1].Hash == block.Header.PrevBlockHash {
			if block.Work() > cumulativeWork(chain[d:]) {
				candidate := append(append([]ledger.Block{}, chain[:d]...), block)
				displaced := make([]ledger.Block, len(chain[d:]))
				copy(displaced, chain[d:])

				if err := s.switchToChain(candidate, d, chain[len(chain)-1].Hash, displaced); err != nil {
					return err
				}

				s.orphans.remove(block.Hash)
				s.evHandler("state: side block: block[%d] %s won on work, displaced %d blocks", block.Header.Number, block.Hash, len(displaced))
				s.reattachOrphans()
				return nil
			}
		}
	}

	return ledger.NewValidationError(ledger.ReasonStaleBlock, "block %d is behind the chain tip", block.Header.Number)
}

// =============================================================================

// blockUTXOUpdates validates the block's transactions in context and
// produces the batch of unspent output mutations the block implies, plus
// the inverse batch for rollback. Outputs created and spent within the
// same block never touch the set.
func blockUTXOUpdates(block ledger.Block, snapshot utxo.Snapshot, blockReward uint64) (updates, inverse map[string]*utxo.Entry, err error) {
	updates = make(map[string]*utxo.Entry)
	inverse = make(map[string]*utxo.Entry)

	// Outputs created earlier in this block, spendable by later
	// transactions in the same block.
	created := make(map[string]utxo.Entry)
	spent := make(map[string]struct{})

	var fees uint64

	for _, tx := range block.Trans[1:] {
		if tx.ID != tx.HashID() {
			return nil, nil, ledger.NewValidationError(ledger.ReasonInvalidBlockData, "tx %s id does not match its content", tx.ID)
		}

		var totalIn uint64
		for i, in := range tx.Inputs {
			key := ledger.OutpointKey(in.TxID, in.Index)

			if _, dup := spent[key]; dup {
				return nil, nil, ledger.NewValidationError(ledger.ReasonDoubleSpend, "outpoint %s spent twice in block %d", key, block.Header.Number)
			}

			entry, found := created[key]
			if !found {
				entry, found = snapshot.Resolve(key)
			}
			if !found {
				return nil, nil, ledger.NewValidationError(ledger.ReasonDoubleSpend, "tx %s input %s does not resolve to an unspent output", tx.ID, key)
			}

			if err := tx.VerifyInput(i, entry.Address); err != nil {
				return nil, nil, err
			}

			spent[key] = struct{}{}
			if _, inBlock := created[key]; inBlock {
				delete(created, key)
			} else {
				updates[key] = nil
				prior := entry
				inverse[key] = &prior
			}

			totalIn += entry.Amount
		}

		totalOut := tx.TotalOutput()
		if totalOut > totalIn {
			return nil, nil, ledger.NewValidationError(ledger.ReasonInvalidBlockData, "tx %s outputs %d exceed inputs %d", tx.ID, totalOut, totalIn)
		}
		fees += totalIn - totalOut

		for i, out := range tx.Outputs {
			created[ledger.OutpointKey(tx.ID, uint32(i))] = utxo.Entry{Amount: out.Amount, Address: out.Address}
		}
	}

	coinbase := block.Trans[0]
	if coinbase.TotalOutput() > blockReward+fees {
		return nil, nil, ledger.NewValidationError(ledger.ReasonInvalidBlockData, "block %d coinbase pays %d, limit is reward %d plus fees %d", block.Header.Number, coinbase.TotalOutput(), blockReward, fees)
	}
	for i, out := range coinbase.Outputs {
		created[ledger.OutpointKey(coinbase.ID, uint32(i))] = utxo.Entry{Amount: out.Amount, Address: out.Address}
	}

	for key, entry := range created {
		e := entry
		updates[key] = &e
		inverse[key] = nil
	}

	return updates, inverse, nil
}
