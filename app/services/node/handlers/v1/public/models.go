package public

import (
	"github.com/calderaledger/caldera/foundation/blockchain/genesis"
	"github.com/calderaledger/caldera/foundation/blockchain/ledger"
)

// Genesis is the API view of the network's fixed starting point.
type Genesis struct {
	Policy genesis.Genesis `json:"policy"`
	Block  Block           `json:"block"`
}

// Balance is the API view of an address balance.
type Balance struct {
	Address string `json:"address"`
	Balance uint64 `json:"balance"`
}

// Block is the API view of a block, flattened for client convenience.
type Block struct {
	Number        uint64      `json:"number"`
	Hash          string      `json:"hash"`
	PrevBlockHash string      `json:"prev_block_hash"`
	TransRoot     string      `json:"trans_root"`
	TimeStamp     uint64      `json:"timestamp"`
	Nonce         uint64      `json:"nonce"`
	Difficulty    int         `json:"difficulty"`
	Miner         string      `json:"miner"`
	NodeID        string      `json:"node_id"`
	Reward        uint64      `json:"reward"`
	Trans         []ledger.Tx `json:"trans"`
}

// toBlockModel flattens a ledger block into the API view.
func toBlockModel(block ledger.Block) Block {
	return Block{
		Number:        block.Header.Number,
		Hash:          block.Hash,
		PrevBlockHash: block.Header.PrevBlockHash,
		TransRoot:     block.Header.TransRoot,
		TimeStamp:     block.Header.TimeStamp,
		Nonce:         block.Header.Nonce,
		Difficulty:    block.Header.Difficulty,
		Miner:         block.Origin.Miner,
		NodeID:        block.Origin.NodeID,
		Reward:        block.Origin.Reward,
		Trans:         block.Trans,
	}
}
