package mempool_test

import (
	"testing"

	"github.com/calderaledger/caldera/foundation/blockchain/ledger"
	"github.com/calderaledger/caldera/foundation/blockchain/mempool"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

// =============================================================================

// poolTx builds a distinct transaction spending the specified outpoints.
// The timestamp keeps selection ordering deterministic in the tests.
func poolTx(timestamp uint64, outpoints ...string) ledger.Tx {
	var inputs []ledger.TxInput
	for _, op := range outpoints {
		inputs = append(inputs, ledger.TxInput{TxID: op, Index: 0})
	}

	tx := ledger.Tx{
		Version:   1,
		Inputs:    inputs,
		Outputs:   []ledger.TxOutput{{Amount: 10, Address: "addr"}},
		TimeStamp: timestamp,
	}
	tx.ID = tx.HashID()

	return tx
}

func Test_Admission(t *testing.T) {
	t.Log("Given the need to guard the pool against double spends.")
	{
		t.Logf("\tTest 0:\tWhen two transactions spend the same outpoint.")
		{
			mp := mempool.New()

			tx1 := poolTx(100, "aa")
			if err := mp.Upsert(tx1, 5); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould admit the first spender: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould admit the first spender.", success)

			tx2 := poolTx(101, "aa")
			if err := mp.Upsert(tx2, 9); err == nil {
				t.Errorf("\t%s\tTest 0:\tShould refuse the second spender.", failed)
			} else {
				t.Logf("\t%s\tTest 0:\tShould refuse the second spender.", success)
			}

			if mp.Count() != 1 {
				t.Errorf("\t%s\tTest 0:\tShould hold a single transaction. got %d", failed, mp.Count())
			} else {
				t.Logf("\t%s\tTest 0:\tShould hold a single transaction.", success)
			}

			// Re-upserting the same transaction is not a conflict.
			if err := mp.Upsert(tx1, 5); err != nil {
				t.Errorf("\t%s\tTest 0:\tShould allow re-upserting the claimer: %v", failed, err)
			} else {
				t.Logf("\t%s\tTest 0:\tShould allow re-upserting the claimer.", success)
			}
		}

		t.Logf("\tTest 1:\tWhen deleting a transaction.")
		{
			mp := mempool.New()

			tx1 := poolTx(100, "aa")
			if err := mp.Upsert(tx1, 5); err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould admit the transaction: %v", failed, err)
			}

			mp.Delete(tx1)

			if mp.Contains(tx1.ID) {
				t.Errorf("\t%s\tTest 1:\tShould remove the transaction.", failed)
			} else {
				t.Logf("\t%s\tTest 1:\tShould remove the transaction.", success)
			}

			if err := mp.Upsert(poolTx(101, "aa"), 5); err != nil {
				t.Errorf("\t%s\tTest 1:\tShould release the outpoint claim: %v", failed, err)
			} else {
				t.Logf("\t%s\tTest 1:\tShould release the outpoint claim.", success)
			}
		}
	}
}

func Test_Confirmation(t *testing.T) {
	t.Log("Given the need to drain the pool as blocks confirm.")
	{
		t.Logf("\tTest 0:\tWhen a block confirms pooled and competing transactions.")
		{
			mp := mempool.New()

			pooled := poolTx(100, "aa")
			racer := poolTx(101, "bb")
			unrelated := poolTx(102, "cc")

			for _, tx := range []ledger.Tx{pooled, racer, unrelated} {
				if err := mp.Upsert(tx, 5); err != nil {
					t.Fatalf("\t%s\tTest 0:\tShould admit the transaction: %v", failed, err)
				}
			}

			// The confirmed block includes pooled itself and a different
			// transaction that consumed racer's input.
			competitor := poolTx(103, "bb")
			removed := mp.DeleteConfirmed([]ledger.Tx{pooled, competitor})

			if len(removed) != 2 {
				t.Errorf("\t%s\tTest 0:\tShould remove the confirmed and invalidated txs. got %d, exp 2", failed, len(removed))
			} else {
				t.Logf("\t%s\tTest 0:\tShould remove the confirmed and invalidated txs.", success)
			}

			if mp.Contains(pooled.ID) || mp.Contains(racer.ID) {
				t.Errorf("\t%s\tTest 0:\tShould drop both affected transactions.", failed)
			} else {
				t.Logf("\t%s\tTest 0:\tShould drop both affected transactions.", success)
			}

			if !mp.Contains(unrelated.ID) {
				t.Errorf("\t%s\tTest 0:\tShould keep the unrelated transaction.", failed)
			} else {
				t.Logf("\t%s\tTest 0:\tShould keep the unrelated transaction.", success)
			}

			mp.Restore(removed)

			if !mp.Contains(pooled.ID) || !mp.Contains(racer.ID) {
				t.Errorf("\t%s\tTest 0:\tShould restore the removed transactions on rollback.", failed)
			} else {
				t.Logf("\t%s\tTest 0:\tShould restore the removed transactions on rollback.", success)
			}
		}

		t.Logf("\tTest 1:\tWhen reconciling after a chain switch.")
		{
			mp := mempool.New()

			spendable := poolTx(100, "aa")
			orphanedSpend := poolTx(101, "bb")

			for _, tx := range []ledger.Tx{spendable, orphanedSpend} {
				if err := mp.Upsert(tx, 5); err != nil {
					t.Fatalf("\t%s\tTest 1:\tShould admit the transaction: %v", failed, err)
				}
			}

			// Only aa:0 exists on the adopted chain.
			removed := mp.Reconcile(func(key string) bool {
				return key == ledger.OutpointKey("aa", 0)
			})

			if len(removed) != 1 || removed[0].Tx.ID != orphanedSpend.ID {
				t.Errorf("\t%s\tTest 1:\tShould drop only the unresolvable spend.", failed)
			} else {
				t.Logf("\t%s\tTest 1:\tShould drop only the unresolvable spend.", success)
			}

			if !mp.Contains(spendable.ID) {
				t.Errorf("\t%s\tTest 1:\tShould keep the still valid transaction.", failed)
			} else {
				t.Logf("\t%s\tTest 1:\tShould keep the still valid transaction.", success)
			}
		}
	}
}

func Test_Selection(t *testing.T) {
	t.Log("Given the need to select the best transactions for a block.")
	{
		t.Logf("\tTest 0:\tWhen picking by fee with ties.")
		{
			mp := mempool.New()

			low := poolTx(100, "aa")
			high := poolTx(101, "bb")
			tieOld := poolTx(50, "cc")
			tieNew := poolTx(60, "dd")

			upserts := []struct {
				tx  ledger.Tx
				fee uint64
			}{
				{low, 1},
				{high, 9},
				{tieOld, 5},
				{tieNew, 5},
			}
			for _, u := range upserts {
				if err := mp.Upsert(u.tx, u.fee); err != nil {
					t.Fatalf("\t%s\tTest 0:\tShould admit the transaction: %v", failed, err)
				}
			}

			picked := mp.PickBest(3)
			if len(picked) != 3 {
				t.Fatalf("\t%s\tTest 0:\tShould pick the requested count. got %d, exp 3", failed, len(picked))
			}
			t.Logf("\t%s\tTest 0:\tShould pick the requested count.", success)

			if picked[0].ID != high.ID {
				t.Errorf("\t%s\tTest 0:\tShould put the highest fee first.", failed)
			} else {
				t.Logf("\t%s\tTest 0:\tShould put the highest fee first.", success)
			}

			if picked[1].ID != tieOld.ID || picked[2].ID != tieNew.ID {
				t.Errorf("\t%s\tTest 0:\tShould break fee ties by age.", failed)
			} else {
				t.Logf("\t%s\tTest 0:\tShould break fee ties by age.", success)
			}
		}

		t.Logf("\tTest 1:\tWhen asking for more than the pool holds.")
		{
			mp := mempool.New()

			if err := mp.Upsert(poolTx(100, "aa"), 1); err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould admit the transaction: %v", failed, err)
			}

			if picked := mp.PickBest(100); len(picked) != 1 {
				t.Errorf("\t%s\tTest 1:\tShould cap at the pool size. got %d, exp 1", failed, len(picked))
			} else {
				t.Logf("\t%s\tTest 1:\tShould cap at the pool size.", success)
			}

			if picked := mp.PickBest(-1); len(picked) != 1 {
				t.Errorf("\t%s\tTest 1:\tShould return the whole pool for -1. got %d, exp 1", failed, len(picked))
			} else {
				t.Logf("\t%s\tTest 1:\tShould return the whole pool for -1.", success)
			}

			mp.Truncate()
			if mp.Count() != 0 {
				t.Errorf("\t%s\tTest 1:\tShould clear the pool on truncate. got %d", failed, mp.Count())
			} else {
				t.Logf("\t%s\tTest 1:\tShould clear the pool on truncate.", success)
			}
		}
	}
}
