package main

import (
	"fmt"
	"os"

	"github.com/ethertulip/tulip-deployer/internal/cli"
	"github.com/ethertulip/tulip-deployer/internal/config"
)

// Set through ldflags
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	config.SetBuildFlags(version, commit, date)
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
