// Package main is the semql command.
package main

import (
	"os"

	"github.com/leapstack-labs/semql/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
