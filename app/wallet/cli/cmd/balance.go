package cmd

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/calderaledger/caldera/foundation/blockchain/signature"
)

type balance struct {
	Address string `json:"address"`
	Balance uint64 `json:"balance"`
}

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print your balance.",
	Run:   balanceRun,
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}

func balanceRun(cmd *cobra.Command, args []string) {
	privateKey, err := loadPrivateKey()
	if err != nil {
		log.Fatal(err)
	}

	address := signature.PublicKeyToAddress(privateKey.PubKey())
	fmt.Println("For Address:", address)

	resp, err := http.Get(fmt.Sprintf("%s/v1/balances/list/%s", url, address))
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	var b balance
	if err := json.NewDecoder(resp.Body).Decode(&b); err != nil {
		log.Fatal(err)
	}

	fmt.Println(b.Balance)
}
