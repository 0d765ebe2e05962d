package main

import (
	"fmt"
	"os"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	cmd := newRootCommand(fmt.Sprintf("%s (built %s, commit %s)", Version, BuildDate, GitCommit))
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
