// Package main provides the entry point for the llamafarm-core server.
package main

import (
	"fmt"
	"os"

	"github.com/llamafarm/llamafarm-core/cmd/llamafarm-core/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
