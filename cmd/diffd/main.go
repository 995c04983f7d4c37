// Package main is the entry point for the diffd binary.
package main

import (
	"os"

	cli "arcdiff/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
