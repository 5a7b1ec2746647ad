// Package main is the entry point for wfmon, the workflow status monitor.
// It watches a planned workflow's event database and live queue and keeps
// a terminal status view current until the workflow terminates.
package main

import (
	"fmt"
	"os"

	"github.com/mjstealey/workflow-monitor/cmd/wfmon/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "wfmon:", err)
		os.Exit(1)
	}
}
