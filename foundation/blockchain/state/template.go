package state

import (
	"fmt"
	"time"

	"github.com/calderaledger/caldera/foundation/blockchain/ledger"
)

// BlockTemplate is an unsealed candidate block handed to the miner along
// with the unspent output set version it was built against. The miner is
// expected to abandon the template when the version moves on.
type BlockTemplate struct {
	Block        ledger.Block
	StateVersion uint64
}

// CreateBlockTemplate assembles the next block candidate: the best
// pending transactions by fee, still valid against a fresh snapshot,
// under a coinbase paying the reward plus the collected fees. The
// returned block carries a zero nonce; solving it is the miner's job.
func (s *State) CreateBlockTemplate() (BlockTemplate, error) {
	tip := s.LatestBlock()
	difficulty := s.CurrentDifficulty()
	snapshot := s.utxo.Snapshot()

	picked := s.mempool.PickBest(s.genesis.TransPerBlock)

	// A pooled transaction can go stale between admission and selection
	// when a peer block confirms a competing spend first. Skip those.
	var trans []ledger.Tx
	var fees uint64
	spent := make(map[string]struct{})

pick:
	for _, tx := range picked {
		var totalIn uint64
		for _, in := range tx.Inputs {
			key := ledger.OutpointKey(in.TxID, in.Index)

			if _, dup := spent[key]; dup {
				continue pick
			}
			entry, found := snapshot.Resolve(key)
			if !found {
				continue pick
			}
			totalIn += entry.Amount
		}

		for _, in := range tx.Inputs {
			spent[ledger.OutpointKey(in.TxID, in.Index)] = struct{}{}
		}

		trans = append(trans, tx)
		fees += totalIn - tx.TotalOutput()
	}

	timestamp := uint64(time.Now().UTC().Unix())
	number := tip.Header.Number + 1

	unlock := fmt.Sprintf("height %d mined by %s", number, s.nodeID)
	coinbase := ledger.NewCoinbaseTx(s.minerAddress, s.genesis.BlockReward+fees, timestamp, unlock)

	block := ledger.Block{
		Header: ledger.BlockHeader{
			Number:        number,
			PrevBlockHash: tip.Hash,
			TimeStamp:     timestamp,
			Nonce:         0,
			Difficulty:    difficulty,
		},
		Trans: append([]ledger.Tx{coinbase}, trans...),
		Origin: ledger.Origin{
			NodeID: s.nodeID,
			Miner:  s.minerAddress,
			Reward: s.genesis.BlockReward + fees,
		},
	}

	if err := block.Seal(); err != nil {
		return BlockTemplate{}, fmt.Errorf("seal template: %w", err)
	}

	return BlockTemplate{
		Block:        block,
		StateVersion: snapshot.Version,
	}, nil
}

// IsStateStale reports whether the unspent output set has moved past the
// version a template was built against. Mining a stale template wastes
// work on a block that can no longer attach.
func (s *State) IsStateStale(version uint64) bool {
	return s.utxo.Version() != version
}
