// Version command for the docshelf CLI.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/docshelf/internal/schema"
	"github.com/mesh-intelligence/docshelf/pkg/docshelf"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the docshelf version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("docshelf", docshelf.Version)
		fmt.Printf("schema v%d\n", schema.CurrentVersion)
	},
}
