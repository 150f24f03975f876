// Package main provides the entry point for the attachmcp CLI.
package main

import (
	"os"

	"github.com/attachmcp/attachmcp/cmd/attachmcp/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
