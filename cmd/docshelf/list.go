// List command for the docshelf CLI.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/docshelf/internal/project"
)

var (
	listStatus string
	listType   string
	listLimit  int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List documentation projects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, svc, err := openService()
		if err != nil {
			fail("list", err)
		}
		defer store.Close()

		projects, err := svc.List(project.ListFilter{
			Status: listStatus,
			Type:   listType,
			Limit:  listLimit,
		})
		if err != nil {
			fail("list", err)
		}

		if flagJSON {
			return printJSON(projects)
		}

		w := newTabWriter()
		fmt.Fprintln(w, "NAME\tTYPE\tSTATUS\tSCHEMA\tCOMPAT\tUPDATED")
		for _, p := range projects {
			fmt.Fprintf(w, "%s\t%s\t%s\tv%d\t%s\t%s\n",
				p.Name, p.Type, p.Status, p.SchemaVersion, p.Compatibility, formatTime(p.UpdatedAt))
		}
		return w.Flush()
	},
}

func init() {
	listCmd.Flags().StringVar(&listStatus, "status", "", "filter by status (active, processing, ready, failed, archived)")
	listCmd.Flags().StringVar(&listType, "type", "", "filter by type (crawling, data, storage)")
	listCmd.Flags().IntVar(&listLimit, "limit", 0, "maximum number of results (0 = all)")
}
