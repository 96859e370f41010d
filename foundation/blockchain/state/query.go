package state

import (
	"github.com/calderaledger/caldera/foundation/blockchain/ledger"
	"github.com/calderaledger/caldera/foundation/blockchain/lockmgr"
	"github.com/calderaledger/caldera/foundation/blockchain/peer"
	"github.com/calderaledger/caldera/foundation/blockchain/utxo"
)

// ChainInfo summarizes the active chain for peer status exchanges.
type ChainInfo struct {
	GenesisHash    string
	TipHash        string
	TipNumber      uint64
	ChainLength    uint64
	CumulativeWork uint64
}

// HistoryTx pairs a transaction with the block that confirmed it.
type HistoryTx struct {
	BlockNumber uint64
	BlockHash   string
	Tx          ledger.Tx
}

// =============================================================================

// withChainRead runs fn under a read lock on the chain resource. A fresh
// caller holding nothing cannot participate in a wait cycle, so the
// acquire cannot fail with a deadlock.
func (s *State) withChainRead(fn func()) {
	c := s.locks.Begin()
	if err := c.RLock(lockmgr.Chain); err == nil {
		fn()
	}
	c.ReleaseAll()
}

// LatestBlock returns the current tip of the active chain.
func (s *State) LatestBlock() ledger.Block {
	var tip ledger.Block
	s.withChainRead(func() {
		tip = s.chain[len(s.chain)-1]
	})

	return tip
}

// ChainLength returns the number of blocks in the active chain, genesis
// included.
func (s *State) ChainLength() uint64 {
	var length uint64
	s.withChainRead(func() {
		length = uint64(len(s.chain))
	})

	return length
}

// ChainCopy returns a copy of the active chain from genesis to tip.
func (s *State) ChainCopy() []ledger.Block {
	var blocks []ledger.Block
	s.withChainRead(func() {
		blocks = make([]ledger.Block, len(s.chain))
		copy(blocks, s.chain)
	})

	return blocks
}

// BlockByNumber returns the active chain block at the specified height.
func (s *State) BlockByNumber(number uint64) (ledger.Block, bool) {
	var block ledger.Block
	var found bool
	s.withChainRead(func() {
		if number < uint64(len(s.chain)) {
			block = s.chain[number]
			found = true
		}
	})

	return block, found
}

// BlocksFrom returns the active chain blocks starting at the specified
// height, used to serve peer catch up requests.
func (s *State) BlocksFrom(number uint64) []ledger.Block {
	var blocks []ledger.Block
	s.withChainRead(func() {
		if number >= uint64(len(s.chain)) {
			return
		}
		blocks = make([]ledger.Block, len(s.chain[number:]))
		copy(blocks, s.chain[number:])
	})

	return blocks
}

// CurrentDifficulty returns the difficulty the next block must meet.
func (s *State) CurrentDifficulty() int {
	var difficulty int
	s.withChainRead(func() {
		difficulty = s.difficulty
	})

	return difficulty
}

// Info returns the chain summary exchanged with peers.
func (s *State) Info() ChainInfo {
	var info ChainInfo
	s.withChainRead(func() {
		tip := s.chain[len(s.chain)-1]
		info = ChainInfo{
			GenesisHash:    s.chain[0].Hash,
			TipHash:        tip.Hash,
			TipNumber:      tip.Header.Number,
			ChainLength:    uint64(len(s.chain)),
			CumulativeWork: cumulativeWork(s.chain),
		}
	})

	return info
}

// TransactionHistory returns the confirmed transactions touching the
// specified address, either as a payer or a payee, oldest first.
func (s *State) TransactionHistory(address string) []HistoryTx {
	chain := s.ChainCopy()

	// The outputs a transaction spends live in earlier transactions, so
	// index every output's address as the chain is walked.
	outputAddr := make(map[string]string)

	var history []HistoryTx
	for _, block := range chain {
		for _, tx := range block.Trans {
			touches := false

			for _, out := range tx.Outputs {
				if out.Address == address {
					touches = true
				}
			}
			for i, out := range tx.Outputs {
				outputAddr[ledger.OutpointKey(tx.ID, uint32(i))] = out.Address
			}

			if !touches && !tx.IsCoinbase() {
				for _, in := range tx.Inputs {
					if outputAddr[ledger.OutpointKey(in.TxID, in.Index)] == address {
						touches = true
						break
					}
				}
			}

			if touches {
				history = append(history, HistoryTx{
					BlockNumber: block.Header.Number,
					BlockHash:   block.Hash,
					Tx:          tx,
				})
			}
		}
	}

	return history
}

// =============================================================================

// Balance returns the total unspent value locked to the address.
func (s *State) Balance(address string) uint64 {
	return s.utxo.Balance(address)
}

// UTXOs returns the spendable outputs locked to the address.
func (s *State) UTXOs(address string) []utxo.KeyedEntry {
	return s.utxo.UTXOsFor(address)
}

// UTXOVersion returns the version counter of the unspent output set.
func (s *State) UTXOVersion() uint64 {
	return s.utxo.Version()
}

// MempoolCopy returns the pending transactions.
func (s *State) MempoolCopy() []ledger.Tx {
	return s.mempool.Copy()
}

// MempoolCount returns the number of pending transactions.
func (s *State) MempoolCount() int {
	return s.mempool.Count()
}

// =============================================================================

// KnownPeers returns the known peers, excluding this node.
func (s *State) KnownPeers() []peer.Peer {
	return s.knownPeers.Copy(s.host)
}

// AddKnownPeer adds a peer to the known set. It reports whether the peer
// was new.
func (s *State) AddKnownPeer(p peer.Peer) bool {
	return s.knownPeers.Add(p)
}

// RemoveKnownPeer removes a peer from the known set.
func (s *State) RemoveKnownPeer(p peer.Peer) {
	s.knownPeers.Remove(p)
}

// =============================================================================

// cumulativeWork sums each block's work contribution over the specified
// blocks. Work, not length, decides between competing chains.
func cumulativeWork(blocks []ledger.Block) uint64 {
	var total uint64
	for _, b := range blocks {
		total += b.Work()
	}

	return total
}
