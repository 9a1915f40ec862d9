// Update command for the docshelf CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/docshelf/internal/project"
)

var (
	updateSettings  []string
	updateMetadata  []string
	updateSourceURL string
)

var updateCmd = &cobra.Command{
	Use:   "update <project>",
	Short: "Modify a project's settings or metadata",
	Long: `Update merges the given settings and metadata over the project's
current values. Only compatible projects can be updated; a project
stored under an older schema version must be recreated first.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := parsePairs(updateSettings)
		if err != nil {
			fmt.Fprintln(os.Stderr, "update:", err)
			os.Exit(exitUserError)
		}
		metadata, err := parsePairs(updateMetadata)
		if err != nil {
			fmt.Fprintln(os.Stderr, "update:", err)
			os.Exit(exitUserError)
		}

		params := project.UpdateParams{
			Settings: settings,
			Metadata: metadata,
		}
		if cmd.Flags().Changed("source-url") {
			params.SourceURL = &updateSourceURL
		}

		store, svc, err := openService()
		if err != nil {
			fail("update", err)
		}
		defer store.Close()

		p, err := svc.Update(args[0], params)
		if err != nil {
			fail("update", err)
		}

		if flagJSON {
			return printJSON(p)
		}
		fmt.Printf("Updated %s\n", p.Name)
		return nil
	},
}

func init() {
	updateCmd.Flags().StringArrayVar(&updateSettings, "set", nil, "settings override as key=value (repeatable)")
	updateCmd.Flags().StringArrayVar(&updateMetadata, "meta", nil, "metadata entry as key=value (repeatable)")
	updateCmd.Flags().StringVar(&updateSourceURL, "source-url", "", "replace the source URL")
}
