// Package main provides the entry point for the tutor CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/tutor/cmd/tutor/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
