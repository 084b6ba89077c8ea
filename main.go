package main

import (
	"os"

	"github.com/uomi-testnet/uomi-bot/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
