package ledger

import (
	"encoding/json"

	"github.com/calderaledger/caldera/foundation/blockchain/merkle"
	"github.com/calderaledger/caldera/foundation/blockchain/signature"
)

// maxTargetZeros bounds how many leading zero hex digits a block can
// require. Anything above this is an absurd difficulty and is rejected
// outright during proof of work validation.
const maxTargetZeros = 32

// BlockHeader carries the consensus fields of a block. The field order is
// the canonical serialization order; reordering breaks cross node hash
// agreement.
type BlockHeader struct {
	Number        uint64 `json:"number"`
	PrevBlockHash string `json:"prev_block_hash"`
	TransRoot     string `json:"trans_root"`
	TimeStamp     uint64 `json:"timestamp"`
	Nonce         uint64 `json:"nonce"`
	Difficulty    int    `json:"difficulty"`
}

// Origin is the non-authoritative mining attribution sidecar. It survives
// serialization but is never part of the hash preimage, so two blocks that
// differ only in attribution have the same hash.
type Origin struct {
	NodeID string `json:"node_id"`
	Miner  string `json:"miner"`
	Reward uint64 `json:"reward"`
}

// Block represents a group of transactions bound together by a header
// whose hash satisfies the proof of work target. The first transaction is
// always the coinbase.
type Block struct {
	Header BlockHeader `json:"header"`
	Trans  []Tx        `json:"trans"`
	Origin Origin      `json:"origin"`
	Hash   string      `json:"hash"`
}

// =============================================================================

// CalcHash computes the block hash over the canonical header
// serialization. Only the header is hashed; the transactions are committed
// to through the merkle root.
func (b Block) CalcHash() string {
	data, err := json.Marshal(b.Header)
	if err != nil {
		return signature.ZeroHash
	}

	return signature.DoubleHash(data)
}

// MerkleRoot computes the merkle root over the transaction ids.
func (b Block) MerkleRoot() (string, error) {
	ids := make([]string, len(b.Trans))
	for i, tx := range b.Trans {
		ids[i] = tx.ID
	}

	return merkle.RootFromIDs(ids)
}

// Seal recomputes the merkle root and hash after the block's fields have
// been finalized.
func (b *Block) Seal() error {
	root, err := b.MerkleRoot()
	if err != nil {
		return err
	}

	b.Header.TransRoot = root
	b.Hash = b.CalcHash()

	return nil
}

// IsValidHash reports whether the stored hash meets the difficulty target:
// its hex representation starts with Difficulty literal '0' characters.
func (b Block) IsValidHash() bool {
	return isHashSolved(b.Header.Difficulty, b.Hash)
}

// Work returns this block's contribution to cumulative chain work,
// 2^difficulty. Cumulative work, not length, decides between forks.
func (b Block) Work() uint64 {
	return uint64(1) << uint(b.Header.Difficulty)
}

// =============================================================================

// ValidateStructure checks the self-consistency of the block: a positive
// timestamp, a non-empty transaction list led by exactly one coinbase,
// full width digests, and a merkle root that matches the transactions.
func (b Block) ValidateStructure() error {
	if b.Header.TimeStamp == 0 {
		return NewValidationError(ReasonInvalidBlockData, "block %d has no timestamp", b.Header.Number)
	}

	if len(b.Trans) == 0 {
		return NewValidationError(ReasonInvalidBlockData, "block %d has no transactions", b.Header.Number)
	}

	if !b.Trans[0].IsCoinbase() {
		return NewValidationError(ReasonInvalidBlockData, "block %d first transaction is not the coinbase", b.Header.Number)
	}

	for i, tx := range b.Trans[1:] {
		if tx.IsCoinbase() {
			return NewValidationError(ReasonInvalidBlockData, "block %d has an extra coinbase at position %d", b.Header.Number, i+1)
		}
	}

	if len(b.Hash) != signature.HashLen {
		return NewValidationError(ReasonInvalidBlockData, "block %d hash is not a full width digest", b.Header.Number)
	}

	if len(b.Header.PrevBlockHash) != signature.HashLen {
		return NewValidationError(ReasonInvalidBlockData, "block %d previous hash is not a full width digest", b.Header.Number)
	}

	root, err := b.MerkleRoot()
	if err != nil {
		return err
	}
	if root != b.Header.TransRoot {
		return NewValidationError(ReasonInvalidBlockData, "block %d merkle root does not match transactions, got %s, exp %s", b.Header.Number, root, b.Header.TransRoot)
	}

	return nil
}

// ValidateProofOfWork checks the hash was honestly earned: the stored hash
// matches a recomputation of the header, it meets the difficulty target,
// and the difficulty itself is within the sane policy bound.
func (b Block) ValidateProofOfWork() error {
	if b.Header.Difficulty < 1 || b.Header.Difficulty > maxTargetZeros {
		return NewValidationError(ReasonInvalidBlockData, "block %d difficulty %d is outside the sane bound", b.Header.Number, b.Header.Difficulty)
	}

	if hash := b.CalcHash(); hash != b.Hash {
		return NewValidationError(ReasonInvalidBlockData, "block %d stored hash does not match recomputation, got %s, exp %s", b.Header.Number, b.Hash, hash)
	}

	if !b.IsValidHash() {
		return NewValidationError(ReasonInvalidBlockData, "block %d hash %s does not meet difficulty %d", b.Header.Number, b.Hash, b.Header.Difficulty)
	}

	return nil
}

// Validate runs the full gauntlet: structure, proof of work, and, when a
// previous block is supplied, linkage to it.
func (b Block) Validate(prev *Block) error {
	if err := b.ValidateStructure(); err != nil {
		return err
	}

	if err := b.ValidateProofOfWork(); err != nil {
		return err
	}

	if prev != nil {
		if b.Header.PrevBlockHash != prev.Hash {
			return NewValidationError(ReasonInvalidBlockData, "block %d does not link to parent, got %s, exp %s", b.Header.Number, b.Header.PrevBlockHash, prev.Hash)
		}

		if b.Header.Number != prev.Header.Number+1 {
			return NewValidationError(ReasonStaleBlock, "block is not the next number, got %d, exp %d", b.Header.Number, prev.Header.Number+1)
		}
	}

	return nil
}

// =============================================================================

// isHashSolved checks the hash complies with the POW rules. We need to
// match a difficulty number of 0's.
func isHashSolved(difficulty int, hash string) bool {
	const match = "00000000000000000000000000000000"

	if len(hash) != signature.HashLen {
		return false
	}
	if difficulty < 0 || difficulty > len(match) {
		return false
	}

	return hash[:difficulty] == match[:difficulty]
}
