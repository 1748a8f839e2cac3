package main

import (
	"fmt"
	"os"

	"github.com/fetchgraph/pagedb/internal/cmd"
)

// Version information set by build flags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	cmd.SetVersionInfo(Version, BuildTime)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
