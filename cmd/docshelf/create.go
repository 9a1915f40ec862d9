// Create command for the docshelf CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/docshelf/internal/project"
)

var (
	createType      string
	createSourceURL string
	createSettings  []string
	createMetadata  []string
)

var createCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new documentation project",
	Long: `Create registers a new documentation project under the current schema
version. Settings and metadata are given as key=value pairs; values that
parse as JSON keep their types.

Example:
  docshelf create api-docs --type crawling --source-url https://docs.example.com
  docshelf create notes --type data --set chunk_size=1024 --meta team=platform`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := parsePairs(createSettings)
		if err != nil {
			fmt.Fprintln(os.Stderr, "create:", err)
			os.Exit(exitUserError)
		}
		metadata, err := parsePairs(createMetadata)
		if err != nil {
			fmt.Fprintln(os.Stderr, "create:", err)
			os.Exit(exitUserError)
		}

		store, svc, err := openService()
		if err != nil {
			fail("create", err)
		}
		defer store.Close()

		p, err := svc.Create(project.CreateParams{
			Name:      args[0],
			Type:      createType,
			Settings:  settings,
			Metadata:  metadata,
			SourceURL: createSourceURL,
		})
		if err != nil {
			fail("create", err)
		}

		if flagJSON {
			return printJSON(p)
		}
		fmt.Printf("Created %s project: %s (%s)\n", p.Type, p.Name, p.ProjectID)
		return nil
	},
}

func init() {
	createCmd.Flags().StringVar(&createType, "type", "", "project type (crawling, data, storage)")
	createCmd.Flags().StringVar(&createSourceURL, "source-url", "", "source URL (required for crawling projects)")
	createCmd.Flags().StringArrayVar(&createSettings, "set", nil, "settings override as key=value (repeatable)")
	createCmd.Flags().StringArrayVar(&createMetadata, "meta", nil, "metadata entry as key=value (repeatable)")

	createCmd.MarkFlagRequired("type")
}
