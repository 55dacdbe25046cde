// Package main is the entry point for the appforge CLI.
//
// The binary packages a desktop application into a distributable disk
// image. All functionality lives in the internal/cli package, which defines
// the cobra commands.
package main

import (
	"github.com/pthtracker/appforge/internal/cli"
)

// version, commit, and date are set by the release tooling at build time
// via ldflags. They provide binary identification for --version output.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.Version = version
	cli.Commit = commit
	cli.Date = date

	rootCmd := cli.NewRootCommand()
	cli.Execute(rootCmd)
}
