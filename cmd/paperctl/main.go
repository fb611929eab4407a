package main

import (
	"os"

	"github.com/atmx/paper-ledger/cmd/paperctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
