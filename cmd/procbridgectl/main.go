// Copyright (c) 2026 ProcBridge. All rights reserved.
// Author: JorgeMataSaucedo

// Command procbridgectl is the ProcBridge operator tool.
package main

import (
	"fmt"
	"os"

	"github.com/JorgeMataSaucedo/ProcBridge/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
