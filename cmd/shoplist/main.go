package main

import (
	"os"

	"github.com/homefleet/shoplist/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
