package main

import (
	"os"

	"github.com/ojamals/mcpregd/cmd"
)

func main() {
	// Execute the root command.
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
