// Package genesis maintains the hard coded genesis block and the network
// policy constants every node is built with. Block 0 is identical across
// all nodes and acts as the network identity checkpoint: any chain whose
// first block hashes differently is not this network.
package genesis

import (
	"sync"
	"time"

	"github.com/calderaledger/caldera/foundation/blockchain/ledger"
	"github.com/calderaledger/caldera/foundation/blockchain/signature"
)

// Genesis represents the network policy constants.
type Genesis struct {
	ChainID         uint16        // Unique id for this network.
	TransPerBlock   int           // Maximum transactions drained into a block template.
	Difficulty      int           // Starting difficulty.
	MinDifficulty   int           // Difficulty adjustment floor.
	MaxDifficulty   int           // Difficulty adjustment ceiling.
	MaxAdjustStep   int           // Largest single difficulty jump.
	AdjustEvery     int           // Blocks between difficulty adjustments.
	TargetBlockTime time.Duration // Desired spacing between blocks.
	BlockReward     uint64        // Coinbase reward per block.
	TimeStamp       uint64        // Fixed timestamp of block 0.
}

// genesisTime is 2025-01-01T00:00:00Z.
const genesisTime = uint64(1735689600)

// Network returns the policy constants for the caldera network.
func Network() Genesis {
	return Genesis{
		ChainID:         29,
		TransPerBlock:   100,
		Difficulty:      1,
		MinDifficulty:   1,
		MaxDifficulty:   8,
		MaxAdjustStep:   2,
		AdjustEvery:     10,
		TargetBlockTime: 10 * time.Second,
		BlockReward:     50_000_000,
		TimeStamp:       genesisTime,
	}
}

// =============================================================================

var (
	once     sync.Once
	genBlock ledger.Block
)

// Block returns the fixed genesis block. It is constructed exactly once
// from constants, so every call and every node produces the same block
// with the same hash.
func Block() ledger.Block {
	once.Do(func() {
		gen := Network()

		coinbase := ledger.NewCoinbaseTx(Treasury(), gen.BlockReward, gen.TimeStamp, "caldera genesis 2025-01-01")

		genBlock = ledger.Block{
			Header: ledger.BlockHeader{
				Number:        0,
				PrevBlockHash: signature.ZeroHash,
				TimeStamp:     gen.TimeStamp,
				Nonce:         0,
				Difficulty:    gen.Difficulty,
			},
			Trans: []ledger.Tx{coinbase},
			Origin: ledger.Origin{
				NodeID: "genesis",
				Miner:  Treasury(),
				Reward: gen.BlockReward,
			},
		}

		if err := genBlock.Seal(); err != nil {
			panic("sealing genesis block: " + err.Error())
		}
	})

	return genBlock
}

// Hash returns the network identity checkpoint, the hash of block 0.
func Hash() string {
	return Block().Hash
}

// Treasury returns the address the genesis coinbase pays. The address is
// derived from a fixed preimage so it checksums like any other address.
func Treasury() string {
	return signature.BytesToAddress([]byte("caldera network treasury v1"))
}
