// Package main provides the docshelf CLI, a local documentation project
// registry with schema versioning and recreation-based migration.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitUserError)
	}
}
