package state

import (
	"testing"

	"github.com/calderaledger/caldera/foundation/blockchain/genesis"
	"github.com/calderaledger/caldera/foundation/blockchain/ledger"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

// =============================================================================

func Test_NextDifficulty(t *testing.T) {
	gen := genesis.Network()

	tests := []struct {
		name     string
		current  int
		actual   uint64
		expected uint64
		want     int
	}{
		{"very fast window", 4, 40, 100, 4 + gen.MaxAdjustStep},
		{"fast window", 4, 60, 100, 5},
		{"on target", 4, 100, 100, 4},
		{"slow window", 4, 180, 100, 3},
		{"very slow window", 4, 300, 100, 4 - gen.MaxAdjustStep},
		{"clamped at floor", gen.MinDifficulty, 300, 100, gen.MinDifficulty},
		{"clamped at ceiling", gen.MaxDifficulty, 10, 100, gen.MaxDifficulty},
		{"zero expected window", 4, 50, 0, 4},
	}

	t.Log("Given the need to retarget difficulty from observed block times.")
	{
		for testID, tt := range tests {
			tf := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen the window is %s.", testID, tt.name)
				{
					got := nextDifficulty(gen, tt.current, tt.actual, tt.expected)
					if got != tt.want {
						t.Errorf("\t%s\tTest %d:\tShould compute the next target. got %d, exp %d", failed, testID, got, tt.want)
					} else {
						t.Logf("\t%s\tTest %d:\tShould compute the next target.", success, testID)
					}
				}
			}
			t.Run(tt.name, tf)
		}
	}
}

func Test_RetargetAfter(t *testing.T) {
	gen := genesis.Network()

	// headerChain fabricates a chain of bare headers spaced the given
	// seconds apart. Only numbers and timestamps matter to the retarget.
	headerChain := func(length int, spacing uint64) []ledger.Block {
		chain := make([]ledger.Block, length)
		for i := range chain {
			chain[i] = ledger.Block{
				Header: ledger.BlockHeader{
					Number:    uint64(i),
					TimeStamp: gen.TimeStamp + uint64(i)*spacing,
				},
			}
		}
		return chain
	}

	t.Log("Given the need to retarget only at window boundaries.")
	{
		t.Logf("\tTest 0:\tWhen the tip does not close a window.")
		{
			chain := headerChain(gen.AdjustEvery, 2)

			if got := retargetAfter(gen, chain, 3); got != 3 {
				t.Errorf("\t%s\tTest 0:\tShould keep the current target. got %d, exp 3", failed, got)
			} else {
				t.Logf("\t%s\tTest 0:\tShould keep the current target.", success)
			}
		}

		t.Logf("\tTest 1:\tWhen a fast window closes.")
		{
			// Blocks every 2s against a 10s target is a 0.2 ratio.
			chain := headerChain(gen.AdjustEvery+1, 2)

			if got := retargetAfter(gen, chain, 3); got != 3+gen.MaxAdjustStep {
				t.Errorf("\t%s\tTest 1:\tShould raise by the full step. got %d, exp %d", failed, got, 3+gen.MaxAdjustStep)
			} else {
				t.Logf("\t%s\tTest 1:\tShould raise by the full step.", success)
			}
		}

		t.Logf("\tTest 2:\tWhen a slow window closes.")
		{
			// Blocks every 25s against a 10s target is a 2.5 ratio.
			chain := headerChain(gen.AdjustEvery+1, 25)

			if got := retargetAfter(gen, chain, 3); got != 3-gen.MaxAdjustStep {
				t.Errorf("\t%s\tTest 2:\tShould lower by the full step. got %d, exp %d", failed, got, 3-gen.MaxAdjustStep)
			} else {
				t.Logf("\t%s\tTest 2:\tShould lower by the full step.", success)
			}
		}

		t.Logf("\tTest 3:\tWhen the chain is only the genesis block.")
		{
			chain := headerChain(1, 0)

			if got := retargetAfter(gen, chain, gen.Difficulty); got != gen.Difficulty {
				t.Errorf("\t%s\tTest 3:\tShould never retarget on block 0. got %d", failed, got)
			} else {
				t.Logf("\t%s\tTest 3:\tShould never retarget on block 0.", success)
			}
		}
	}
}
