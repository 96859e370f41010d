package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/calderaledger/caldera/foundation/blockchain/ledger"
	"github.com/calderaledger/caldera/foundation/blockchain/signature"
)

var (
	to     string
	amount uint64
	fee    uint64
)

type keyedUTXO struct {
	Key     string `json:"key"`
	Amount  uint64 `json:"amount"`
	Address string `json:"address"`
}

// sendCmd represents the send command.
var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a transaction",
	Run:   sendRun,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&to, "to", "t", "", "Address to pay.")
	sendCmd.Flags().Uint64VarP(&amount, "amount", "v", 0, "Amount to send.")
	sendCmd.Flags().Uint64VarP(&fee, "fee", "c", 0, "Fee for the miner.")
}

func sendRun(cmd *cobra.Command, args []string) {
	privateKey, err := loadPrivateKey()
	if err != nil {
		log.Fatal(err)
	}

	from := signature.PublicKeyToAddress(privateKey.PubKey())

	if !signature.ValidateAddress(to) {
		log.Fatalf("address %q does not checksum", to)
	}

	utxos, err := fetchUTXOs(from)
	if err != nil {
		log.Fatal(err)
	}

	tx, err := buildTx(utxos, from, to, amount, fee)
	if err != nil {
		log.Fatal(err)
	}

	if err := tx.Sign(privateKey); err != nil {
		log.Fatal(err)
	}

	data, err := json.Marshal(tx)
	if err != nil {
		log.Fatal(err)
	}
	resp, err := http.Post(fmt.Sprintf("%s/v1/tx/submit", url), "application/json", bytes.NewBuffer(data))
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	var result map[string]any
	json.NewDecoder(resp.Body).Decode(&result)
	fmt.Println(result)
}

func fetchUTXOs(address string) ([]keyedUTXO, error) {
	resp, err := http.Get(fmt.Sprintf("%s/v1/utxos/list/%s", url, address))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	var utxos []keyedUTXO
	if err := json.NewDecoder(resp.Body).Decode(&utxos); err != nil {
		return nil, err
	}

	return utxos, nil
}

// buildTx selects unspent outputs until the amount plus the fee is
// covered and pays any surplus back to the sender as change.
func buildTx(utxos []keyedUTXO, from string, to string, amount uint64, fee uint64) (ledger.Tx, error) {
	need := amount + fee

	var inputs []ledger.TxInput
	var total uint64
	for _, u := range utxos {
		txID, index, err := parseOutpoint(u.Key)
		if err != nil {
			return ledger.Tx{}, err
		}

		inputs = append(inputs, ledger.TxInput{TxID: txID, Index: index})
		total += u.Amount
		if total >= need {
			break
		}
	}

	if total < need {
		return ledger.Tx{}, fmt.Errorf("insufficient funds: have %d, need %d", total, need)
	}

	outputs := []ledger.TxOutput{
		{Amount: amount, Address: to},
	}
	if change := total - need; change > 0 {
		outputs = append(outputs, ledger.TxOutput{Amount: change, Address: from})
	}

	return ledger.NewTx(1, inputs, outputs, 0), nil
}

func parseOutpoint(key string) (string, uint32, error) {
	i := strings.LastIndex(key, ":")
	if i < 0 {
		return "", 0, fmt.Errorf("malformed outpoint %q", key)
	}

	index, err := strconv.ParseUint(key[i+1:], 10, 32)
	if err != nil {
		return "", 0, fmt.Errorf("malformed outpoint %q: %w", key, err)
	}

	return key[:i], uint32(index), nil
}
