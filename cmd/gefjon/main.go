// Package main is the entrypoint of the gefjon command line tool.
package main

import (
	"os"

	"github.com/rafaeljc/gefjon/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(cli.GetExitCode(err))
	}
}
