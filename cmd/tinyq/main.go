// Package main is the entry point for the tinyq CLI binary.
package main

import (
	"os"

	"github.com/wdiesveld/tinyqueries/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
