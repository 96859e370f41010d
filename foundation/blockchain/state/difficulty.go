package state

import (
	"github.com/calderaledger/caldera/foundation/blockchain/genesis"
	"github.com/calderaledger/caldera/foundation/blockchain/ledger"
)

// nextDifficulty computes the target for the upcoming window from the
// observed production rate of the window just closed. The ratio is
// actual elapsed time over expected time: fast production (small ratio)
// raises difficulty, slow production lowers it, and every move is
// clamped to the policy step and bounds.
func nextDifficulty(gen genesis.Genesis, current int, actual, expected uint64) int {
	if expected == 0 {
		return current
	}

	ratio := float64(actual) / float64(expected)

	next := current
	switch {
	case ratio < 0.5:
		next = current + gen.MaxAdjustStep
	case ratio < 0.75:
		next = current + 1
	case ratio > 2.0:
		next = current - gen.MaxAdjustStep
	case ratio > 1.5:
		next = current - 1
	}

	if next < gen.MinDifficulty {
		next = gen.MinDifficulty
	}
	if next > gen.MaxDifficulty {
		next = gen.MaxDifficulty
	}

	return next
}

// retargetAfter returns the difficulty in force after the specified chain,
// retargeting when the tip closes an adjustment window. The chain must
// include block 0.
func retargetAfter(gen genesis.Genesis, chain []ledger.Block, current int) int {
	tip := chain[len(chain)-1]

	if tip.Header.Number == 0 || tip.Header.Number%uint64(gen.AdjustEvery) != 0 {
		return current
	}

	window := uint64(gen.AdjustEvery)
	if tip.Header.Number < window {
		return current
	}

	first := chain[len(chain)-1-int(window)]

	var actual uint64
	if tip.Header.TimeStamp > first.Header.TimeStamp {
		actual = tip.Header.TimeStamp - first.Header.TimeStamp
	}
	expected := window * uint64(gen.TargetBlockTime.Seconds())

	return nextDifficulty(gen, current, actual, expected)
}
