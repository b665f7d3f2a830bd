package main

import (
	"os"

	"github.com/rustyeddy/investor/cmd/investor/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
