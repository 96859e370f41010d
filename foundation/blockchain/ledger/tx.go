// Package ledger declares the value types that make up the chain: the
// transaction with its inputs and outputs, and the block. Both hash their
// canonical serialization with the two-stage digest and are treated as
// immutable once hashed.
package ledger

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/calderaledger/caldera/foundation/blockchain/signature"
)

// CoinbaseIndex is the reserved output index sentinel that marks the single
// input of a coinbase transaction.
const CoinbaseIndex = uint32(0xFFFFFFFF)

// TxInput references a prior transaction's output and carries the material
// proving the spender owns it. Unlock is an opaque string that is part of
// the id preimage; coinbase transactions use it to keep their ids unique.
type TxInput struct {
	TxID   string `json:"tx_id"`
	Index  uint32 `json:"index"`
	Sig    string `json:"sig,omitempty"`
	PubKey string `json:"pub_key,omitempty"`
	Unlock string `json:"unlock,omitempty"`
}

// TxOutput is a spendable chunk of value locked to an address.
type TxOutput struct {
	Amount  uint64 `json:"amount"`
	Address string `json:"address"`
	Lock    string `json:"lock,omitempty"`
}

// Tx represents a transfer of value between addresses. ID is the double
// digest of the canonical serialization of every other field except the
// per-input signing material, and must be recomputed after any mutation.
type Tx struct {
	Version   int        `json:"version"`
	Inputs    []TxInput  `json:"inputs"`
	Outputs   []TxOutput `json:"outputs"`
	LockTime  int        `json:"lock_time"`
	TimeStamp uint64     `json:"timestamp"`
	ID        string     `json:"id"`
}

// OutputResolver looks up the output referenced by an input. It reports
// false when the reference does not resolve against the caller's view.
type OutputResolver func(txID string, index uint32) (TxOutput, bool)

// =============================================================================

// NewTx constructs an unsigned transaction and computes its id.
func NewTx(version int, inputs []TxInput, outputs []TxOutput, lockTime int) Tx {
	tx := Tx{
		Version:   version,
		Inputs:    inputs,
		Outputs:   outputs,
		LockTime:  lockTime,
		TimeStamp: uint64(time.Now().UTC().Unix()),
	}
	tx.ID = tx.HashID()

	return tx
}

// NewCoinbaseTx constructs the reward minting transaction that must be the
// first transaction of every block. The unlock string keeps coinbase ids
// unique across blocks paying the same miner.
func NewCoinbaseTx(minerAddress string, amount uint64, timestamp uint64, unlock string) Tx {
	tx := Tx{
		Version: 1,
		Inputs: []TxInput{
			{
				TxID:   signature.ZeroHash,
				Index:  CoinbaseIndex,
				Unlock: unlock,
			},
		},
		Outputs: []TxOutput{
			{
				Amount:  amount,
				Address: minerAddress,
			},
		},
		TimeStamp: timestamp,
	}
	tx.ID = tx.HashID()

	return tx
}

// IsCoinbase reports whether this is the reward minting transaction:
// exactly one input whose reference is the zero digest with the reserved
// index sentinel. This is the sole permitted out of thin air value creation.
func (tx Tx) IsCoinbase() bool {
	if len(tx.Inputs) != 1 {
		return false
	}

	in := tx.Inputs[0]
	return in.TxID == signature.ZeroHash && in.Index == CoinbaseIndex
}

// HashID computes the transaction id over the canonical unsigned
// serialization. The id itself and the signing material are excluded from
// the preimage.
func (tx Tx) HashID() string {
	data, err := json.Marshal(tx.unsigned())
	if err != nil {
		return signature.ZeroHash
	}

	return signature.DoubleHash(data)
}

// unsigned returns a copy with the id and the per-input signing material
// cleared so the preimage is stable regardless of signing state. Unlock is
// kept: it is identity, not signing material, and dropping it would let
// coinbase transactions that differ only by unlock collide on the same id.
func (tx Tx) unsigned() Tx {
	tmp := tx
	tmp.ID = ""

	tmp.Inputs = make([]TxInput, len(tx.Inputs))
	for i, in := range tx.Inputs {
		tmp.Inputs[i] = TxInput{
			TxID:   in.TxID,
			Index:  in.Index,
			Unlock: in.Unlock,
		}
	}

	return tmp
}

// SigningBytes returns the canonical bytes every input signature commits to.
func (tx Tx) SigningBytes() ([]byte, error) {
	data, err := json.Marshal(tx.unsigned())
	if err != nil {
		return nil, fmt.Errorf("marshal unsigned tx: %w", err)
	}

	return data, nil
}

// Sign signs every input with the specified private key and stamps the
// signer's public key into each input. Coinbase transactions are not signed.
func (tx *Tx) Sign(privateKey *btcec.PrivateKey) error {
	if tx.IsCoinbase() {
		return nil
	}

	data, err := tx.SigningBytes()
	if err != nil {
		return err
	}

	pubKey := signature.PublicKeyHex(privateKey)

	for i := range tx.Inputs {
		sig, err := signature.Sign(data, privateKey)
		if err != nil {
			return fmt.Errorf("sign input %d: %w", i, err)
		}

		tx.Inputs[i].Sig = sig
		tx.Inputs[i].PubKey = pubKey
	}

	return nil
}

// VerifyInput checks the signature on input i and that the signer owns the
// referenced output's address.
func (tx Tx) VerifyInput(i int, ownerAddress string) error {
	if i < 0 || i >= len(tx.Inputs) {
		return NewValidationError(ReasonInvalidBlockData, "input %d out of range", i)
	}

	in := tx.Inputs[i]
	if in.Sig == "" || in.PubKey == "" {
		return NewValidationError(ReasonInvalidBlockData, "input %d is unsigned", i)
	}

	data, err := tx.SigningBytes()
	if err != nil {
		return err
	}

	if !signature.Verify(in.Sig, data, in.PubKey) {
		return NewValidationError(ReasonInvalidBlockData, "input %d signature does not verify", i)
	}

	pubBytes, err := hex.DecodeString(in.PubKey)
	if err != nil {
		return NewValidationError(ReasonInvalidBlockData, "input %d public key malformed", i)
	}

	if signature.BytesToAddress(pubBytes) != ownerAddress {
		return NewValidationError(ReasonInvalidBlockData, "input %d signer does not own the referenced output", i)
	}

	return nil
}

// =============================================================================

// TotalInput sums the amounts of the referenced outputs. Coinbase
// transactions have no real inputs and sum to zero.
func (tx Tx) TotalInput(resolve OutputResolver) (uint64, error) {
	if tx.IsCoinbase() {
		return 0, nil
	}

	var total uint64
	for _, in := range tx.Inputs {
		out, found := resolve(in.TxID, in.Index)
		if !found {
			return 0, NewValidationError(ReasonDoubleSpend, "input %s:%d does not resolve to an unspent output", in.TxID, in.Index)
		}
		total += out.Amount
	}

	return total, nil
}

// TotalOutput sums the amounts of the outputs.
func (tx Tx) TotalOutput() uint64 {
	var total uint64
	for _, out := range tx.Outputs {
		total += out.Amount
	}

	return total
}

// Fee returns the difference between inputs and outputs, never negative,
// and zero for coinbase transactions.
func (tx Tx) Fee(resolve OutputResolver) uint64 {
	if tx.IsCoinbase() {
		return 0
	}

	in, err := tx.TotalInput(resolve)
	if err != nil {
		return 0
	}

	out := tx.TotalOutput()
	if out >= in {
		return 0
	}

	return in - out
}

// OutpointKey formats the key a transaction output is known by in the
// unspent output set.
func OutpointKey(txID string, index uint32) string {
	return fmt.Sprintf("%s:%d", txID, index)
}
