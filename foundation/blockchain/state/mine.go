package state

import (
	"context"
	"errors"
	"math/rand"

	"github.com/calderaledger/caldera/foundation/blockchain/ledger"
)

// Mining error variables.
var (
	ErrNoTransactions = errors.New("no transactions in mempool")
	ErrStaleTemplate  = errors.New("block template went stale during mining")
)

// ctxCheckEvery is how many nonce attempts run between context and
// staleness checks.
const ctxCheckEvery = 1000

// MineNewBlock builds a block template from the mempool and performs the
// proof of work over it. The search honors the context and abandons the
// template when the ledger moves on underneath it. The solved block is
// committed to the local chain before being returned for broadcast.
func (s *State) MineNewBlock(ctx context.Context) (ledger.Block, error) {
	if s.mempool.Count() == 0 {
		return ledger.Block{}, ErrNoTransactions
	}

	template, err := s.CreateBlockTemplate()
	if err != nil {
		return ledger.Block{}, err
	}

	block, err := s.performPOW(ctx, template)
	if err != nil {
		return ledger.Block{}, err
	}

	if err := s.AddBlock(block, false); err != nil {
		return ledger.Block{}, err
	}

	return block, nil
}

// performPOW searches for a nonce whose header hash meets the difficulty
// target. Starting from a random nonce keeps competing miners from
// walking the same path.
func (s *State) performPOW(ctx context.Context, template BlockTemplate) (ledger.Block, error) {
	s.evHandler("state: performPOW: MINING: block[%d] difficulty[%d] trans[%d]", template.Block.Header.Number, template.Block.Header.Difficulty, len(template.Block.Trans))

	block := template.Block
	block.Header.Nonce = rand.Uint64()

	var attempts uint64
	for {
		attempts++

		if attempts%ctxCheckEvery == 0 {
			if ctx.Err() != nil {
				return ledger.Block{}, ctx.Err()
			}
			if s.IsStateStale(template.StateVersion) {
				return ledger.Block{}, ErrStaleTemplate
			}
		}

		block.Hash = block.CalcHash()
		if block.IsValidHash() {
			break
		}

		block.Header.Nonce++
	}

	s.evHandler("state: performPOW: MINING: SOLVED: block[%d] %s attempts[%d]", block.Header.Number, block.Hash, attempts)

	return block, nil
}
