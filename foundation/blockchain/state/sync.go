package state

import (
	"github.com/calderaledger/caldera/foundation/blockchain/genesis"
	"github.com/calderaledger/caldera/foundation/blockchain/ledger"
	"github.com/calderaledger/caldera/foundation/blockchain/lockmgr"
	"github.com/calderaledger/caldera/foundation/blockchain/mempool"
	"github.com/calderaledger/caldera/foundation/blockchain/utxo"
)

// Sync outcome kinds.
const (
	SyncNoChange     = "no_change"
	SyncExtended     = "extended"
	SyncForkResolved = "fork_resolved"
)

// SyncOutcome reports what a peer chain comparison did to the local
// chain.
type SyncOutcome struct {
	Kind     string
	Extended int // blocks appended on the extended path
	Adopted  int // peer blocks adopted on the fork path
	Orphaned int // local blocks displaced on the fork path
}

// =============================================================================

// SyncWithPeerChain compares a peer's chain against the local one and
// converges on the heavier history. Three outcomes are possible: no
// change, a pure extension when the peer chain is a superset of ours, or
// a fork resolution when the chains diverge and the peer's branch carries
// strictly more cumulative work. A fork switch commits completely or not
// at all; displaced local blocks are parked in the orphan pool with their
// attribution intact.
func (s *State) SyncWithPeerChain(peerChain []ledger.Block, from string) (SyncOutcome, error) {
	outcome := SyncOutcome{Kind: SyncNoChange}

	if len(peerChain) == 0 {
		return outcome, ledger.NewValidationError(ledger.ReasonInvalidBlockData, "peer %s sent an empty chain", from)
	}

	if peerChain[0].Hash != genesis.Hash() {
		return outcome, ledger.NewValidationError(ledger.ReasonInvalidBlockData, "peer %s is on a different network, genesis %s", from, peerChain[0].Hash)
	}

	local := s.ChainCopy()

	d := firstDivergence(local, peerChain)

	// No divergence over the common prefix: the peer chain either extends
	// ours or is a subset of it.
	if d == -1 {
		if len(peerChain) <= len(local) {
			return outcome, nil
		}

		for _, block := range peerChain[len(local):] {
			if err := s.acceptNextBlock(block); err != nil {
				return outcome, err
			}
			outcome.Kind = SyncExtended
			outcome.Extended++
		}

		s.evHandler("state: sync: extended by %d blocks from %s", outcome.Extended, from)
		s.reattachOrphans()

		return outcome, nil
	}

	// The chains diverge at height d. Cumulative work over the competing
	// suffixes decides; ties keep the local chain.
	workLocal := cumulativeWork(local[d:])
	workPeer := cumulativeWork(peerChain[d:])

	if workPeer <= workLocal {
		s.evHandler("state: sync: kept local chain, work %d vs %d from %s", workLocal, workPeer, from)
		return outcome, nil
	}

	candidate := make([]ledger.Block, 0, d+len(peerChain[d:]))
	candidate = append(candidate, local[:d]...)
	candidate = append(candidate, peerChain[d:]...)

	displaced := make([]ledger.Block, len(local[d:]))
	copy(displaced, local[d:])

	if err := s.switchToChain(candidate, d, local[len(local)-1].Hash, displaced); err != nil {
		return outcome, err
	}

	outcome.Kind = SyncForkResolved
	outcome.Adopted = len(peerChain[d:])
	outcome.Orphaned = len(displaced)

	s.evHandler("state: sync: fork resolved from %s, adopted %d, orphaned %d", from, outcome.Adopted, outcome.Orphaned)
	s.reattachOrphans()

	return outcome, nil
}

// =============================================================================

// switchToChain replaces the active chain with a fully validated
// candidate as one staged transaction: chain, unspent output set, orphan
// pool, and mempool move together or not at all.
func (s *State) switchToChain(candidate []ledger.Block, divergence int, expectTipHash string, displaced []ledger.Block) error {
	entries, difficulty, err := s.replayChain(candidate)
	if err != nil {
		return err
	}

	var oldChain []ledger.Block
	var oldDifficulty int
	var oldEntries map[string]utxo.Entry
	var dropped []mempool.PoolTx

	txn := s.locks.BeginTxn(lockmgr.Chain, lockmgr.UTXOSet, lockmgr.Mempool)

	txn.Stage("verify",
		func() error {
			if s.chain[len(s.chain)-1].Hash != expectTipHash {
				return ledger.NewValidationError(ledger.ReasonStaleBlock, "chain advanced past %s during fork validation", expectTipHash)
			}
			return nil
		},
		nil,
	)

	txn.Stage("chain",
		func() error {
			oldChain = s.chain
			oldDifficulty = s.difficulty
			s.chain = candidate
			s.difficulty = difficulty
			return nil
		},
		func() {
			s.chain = oldChain
			s.difficulty = oldDifficulty
		},
	)

	txn.Stage("utxo",
		func() error {
			oldEntries = s.utxo.Snapshot().Entries
			s.utxo.Rebuild(entries)
			return nil
		},
		func() {
			s.utxo.Rebuild(oldEntries)
		},
	)

	txn.Stage("orphans",
		func() error {
			for _, block := range displaced {
				s.orphans.add(block)
			}
			return nil
		},
		func() {
			for _, block := range displaced {
				s.orphans.remove(block.Hash)
			}
		},
	)

	txn.Stage("mempool",
		func() error {
			dropped = s.mempool.Reconcile(func(key string) bool {
				_, ok := entries[key]
				return ok
			})
			return nil
		},
		func() {
			s.mempool.Restore(dropped)
		},
	)

	if err := txn.Commit(); err != nil {
		return err
	}

	if s.archive != nil {
		for _, block := range candidate[divergence:] {
			s.archive.Write(block)
		}
	}

	return nil
}

// replayChain validates the candidate chain from genesis forward and
// rebuilds the unspent output set it implies. Every block is held to the
// full rules: linkage, proof of work, the scheduled difficulty, and
// transaction validity in context. It returns the rebuilt entries and the
// difficulty in force after the tip.
func (s *State) replayChain(chain []ledger.Block) (map[string]utxo.Entry, int, error) {
	gen := s.genesis

	entries := make(map[string]utxo.Entry)
	for _, tx := range chain[0].Trans {
		for i, out := range tx.Outputs {
			entries[ledger.OutpointKey(tx.ID, uint32(i))] = utxo.Entry{Amount: out.Amount, Address: out.Address}
		}
	}

	difficulty := gen.Difficulty

	for i := 1; i < len(chain); i++ {
		block := chain[i]
		prev := chain[i-1]

		if err := block.Validate(&prev); err != nil {
			return nil, 0, err
		}

		if block.Header.Difficulty != difficulty {
			return nil, 0, ledger.NewValidationError(ledger.ReasonInvalidBlockData, "block %d difficulty %d does not match the scheduled target %d", block.Header.Number, block.Header.Difficulty, difficulty)
		}

		updates, _, err := blockUTXOUpdates(block, utxo.Snapshot{Entries: entries}, gen.BlockReward)
		if err != nil {
			return nil, 0, err
		}

		for key, entry := range updates {
			if entry == nil {
				delete(entries, key)
				continue
			}
			entries[key] = *entry
		}

		difficulty = retargetAfter(gen, chain[:i+1], difficulty)
	}

	return entries, difficulty, nil
}

// firstDivergence returns the first height where the two chains disagree,
// or -1 when they agree over their common prefix.
func firstDivergence(local, peer []ledger.Block) int {
	n := len(local)
	if len(peer) < n {
		n = len(peer)
	}

	for i := 0; i < n; i++ {
		if local[i].Hash != peer[i].Hash {
			return i
		}
	}

	return -1
}
