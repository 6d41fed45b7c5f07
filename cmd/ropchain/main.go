// ropchain runs image blur chains from the command line.
//
// Usage:
//
//	ropchain apply --image=<file:///path|res://name> [--level=1..3] [--config=<file>]
//	ropchain history [--limit=N] [--config=<file>]
//	ropchain version
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
