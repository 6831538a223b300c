package main

import (
	"os"

	"github.com/msto63/firedoc/cmd/firedoc/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
