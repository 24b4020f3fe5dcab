// Package main is the reportdsl command.
package main

import (
	"os"

	"github.com/leapstack-labs/reportdsl/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
