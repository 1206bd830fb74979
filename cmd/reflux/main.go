// Package main is the entry point for the reflux CLI.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/reflux/internal/cli"
)

func main() {
	os.Exit(run())
}

func run() int {
	root := cli.NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return cli.GetExitCode(err)
	}
	return cli.ExitSuccess
}
