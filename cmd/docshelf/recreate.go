// Recreate command for the docshelf CLI.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/docshelf/internal/project"
)

var (
	recreateYes             bool
	recreateDiscardSettings bool
	recreateExportPath      string
)

var recreateCmd = &cobra.Command{
	Use:   "recreate <project>",
	Short: "Rebuild an incompatible project under the current schema",
	Long: `Recreate replaces a project stored under an older schema version with a
fresh record at the current version. The project's identity, settings,
and metadata are preserved; its crawled documents and statistics are
discarded and must be rebuilt.

This is destructive, so --yes is required. Use --export-to to write a
snapshot of the old configuration before recreating.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, svc, err := openService()
		if err != nil {
			fail("recreate", err)
		}
		defer store.Close()

		if recreateExportPath != "" {
			snapshot, err := svc.Export(args[0])
			if err != nil {
				fail("recreate", err)
			}
			blob, err := json.MarshalIndent(snapshot, "", "  ")
			if err != nil {
				fail("recreate", err)
			}
			if err := os.WriteFile(recreateExportPath, blob, 0o644); err != nil {
				fail("recreate", err)
			}
			fmt.Println("Exported snapshot to", recreateExportPath)
		}

		p, err := svc.Recreate(args[0], project.RecreateOptions{
			Confirmed:       recreateYes,
			DiscardSettings: recreateDiscardSettings,
			InitiatedBy:     "recreate",
		})
		if err != nil {
			fail("recreate", err)
		}

		if flagJSON {
			return printJSON(p)
		}
		fmt.Printf("Recreated %s at schema v%d\n", p.Name, p.SchemaVersion)
		return nil
	},
}

func init() {
	recreateCmd.Flags().BoolVar(&recreateYes, "yes", false, "confirm the recreation (required)")
	recreateCmd.Flags().BoolVar(&recreateDiscardSettings, "discard-settings", false, "start from default settings instead of preserving the old ones")
	recreateCmd.Flags().StringVar(&recreateExportPath, "export-to", "", "write a JSON snapshot of the old configuration before recreating")
}
