package main

import "github.com/calderaledger/caldera/app/wallet/cli/cmd"

func main() {
	cmd.Execute()
}
