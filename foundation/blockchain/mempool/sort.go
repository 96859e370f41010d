package mempool

import "sort"

// sortByFee orders the pool highest fee first. Ties go to the older
// transaction, then to the lexicographically smaller id so selection is
// deterministic across nodes.
func sortByFee(txs []PoolTx) {
	sort.Slice(txs, func(i, j int) bool {
		if txs[i].Fee != txs[j].Fee {
			return txs[i].Fee > txs[j].Fee
		}
		if txs[i].Tx.TimeStamp != txs[j].Tx.TimeStamp {
			return txs[i].Tx.TimeStamp < txs[j].Tx.TimeStamp
		}
		return txs[i].Tx.ID < txs[j].Tx.ID
	})
}
