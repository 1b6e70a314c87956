// Package main provides the entry point for the bananaindex CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/bananaindex/cmd/bananaindex/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
