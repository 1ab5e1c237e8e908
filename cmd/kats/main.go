package main

import (
	"os"

	"github.com/wonny/kats/cmd/kats/commands"
)

// main is the entry point for the kats CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/kats [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
