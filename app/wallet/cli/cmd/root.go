// Package cmd contains the wallet app commands.
package cmd

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/calderaledger/caldera/foundation/blockchain/signature"
)

var (
	keyName string
	keyPath string
	url     string
)

const keyExtension = ".key"

func init() {
	rootCmd.PersistentFlags().StringVarP(&keyName, "key", "k", "private.key", "Name of the private key file.")
	rootCmd.PersistentFlags().StringVarP(&keyPath, "key-path", "p", "zblock/keys/", "Path to the directory with private keys.")
	rootCmd.PersistentFlags().StringVarP(&url, "url", "u", "http://localhost:8080", "Url of the node.")
}

var rootCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Your simple wallet",
}

// Execute runs the wallet command tree.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func getPrivateKeyPath() string {
	if !strings.HasSuffix(keyName, keyExtension) {
		keyName += keyExtension
	}

	return filepath.Join(keyPath, keyName)
}

func loadPrivateKey() (*btcec.PrivateKey, error) {
	data, err := os.ReadFile(getPrivateKeyPath())
	if err != nil {
		return nil, err
	}

	return signature.PrivateKeyFromHex(strings.TrimSpace(string(data)))
}
