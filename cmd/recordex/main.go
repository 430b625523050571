// Package main provides the entry point for the recordex CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/recordex/cmd/recordex/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
