// Package main provides the talkgen CLI, a launcher for the MultiTalk
// talking-avatar video generator.
package main

import (
	"os"

	"github.com/leapstack-labs/talkgen/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(cli.ExitCode(err))
	}
}
