// Get command for the docshelf CLI.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get <project>",
	Short: "Show a project by ID or name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, svc, err := openService()
		if err != nil {
			fail("get", err)
		}
		defer store.Close()

		p, err := svc.Get(args[0])
		if err != nil {
			fail("get", err)
		}

		if flagJSON {
			return printJSON(p)
		}

		fmt.Println("Name:         ", p.Name)
		fmt.Println("ID:           ", p.ProjectID)
		fmt.Println("Type:         ", p.Type)
		fmt.Println("Status:       ", p.Status)
		fmt.Printf("Schema:        v%d\n", p.SchemaVersion)
		fmt.Println("Compatibility:", p.Compatibility)
		if p.SourceURL != "" {
			fmt.Println("Source URL:   ", p.SourceURL)
		}
		fmt.Println("Created:      ", formatTime(p.CreatedAt))
		fmt.Println("Updated:      ", formatTime(p.UpdatedAt))
		if !p.Statistics.IsZero() {
			fmt.Printf("Pages:         %d total, %d ok, %d failed\n",
				p.Statistics.PagesTotal, p.Statistics.PagesSuccessful, p.Statistics.PagesFailed)
		}
		return nil
	},
}
