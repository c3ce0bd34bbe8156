package main

import (
	"os"

	"github.com/trainbox/trainbox/cmd/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
