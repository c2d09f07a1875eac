package main

import (
	"os"
)

// Version information - set at build time via ldflags
var (
	version   = "1.0.4"
	buildDate = "unknown"
	gitCommit = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
