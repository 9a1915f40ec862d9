// Export command for the docshelf CLI.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export <project>",
	Short: "Write a JSON snapshot of a project's configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, svc, err := openService()
		if err != nil {
			fail("export", err)
		}
		defer store.Close()

		snapshot, err := svc.Export(args[0])
		if err != nil {
			fail("export", err)
		}

		if exportOutput == "" {
			return printJSON(snapshot)
		}

		blob, err := json.MarshalIndent(snapshot, "", "  ")
		if err != nil {
			fail("export", err)
		}
		if err := os.WriteFile(exportOutput, blob, 0o644); err != nil {
			fail("export", err)
		}
		fmt.Println("Exported", args[0], "to", exportOutput)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default: stdout)")
}
