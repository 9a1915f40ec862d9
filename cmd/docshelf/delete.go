// Delete command for the docshelf CLI.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <project>",
	Short: "Remove a project and its stored documents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, svc, err := openService()
		if err != nil {
			fail("delete", err)
		}
		defer store.Close()

		if err := svc.Delete(args[0]); err != nil {
			fail("delete", err)
		}

		fmt.Printf("Deleted %s\n", args[0])
		return nil
	},
}
