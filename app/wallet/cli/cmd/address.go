package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/calderaledger/caldera/foundation/blockchain/signature"
)

var addressCmd = &cobra.Command{
	Use:   "address",
	Short: "Print the address for this wallet",
	Run:   addressRun,
}

func init() {
	rootCmd.AddCommand(addressCmd)
}

func addressRun(cmd *cobra.Command, args []string) {
	privateKey, err := loadPrivateKey()
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(signature.PublicKeyToAddress(privateKey.PubKey()))
}
