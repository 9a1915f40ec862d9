// Migrate command for the docshelf CLI.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/docshelf/internal/project"
	"github.com/mesh-intelligence/docshelf/internal/schema"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Bring the registry file to the current schema version",
	Long: `Migrate opens the registry and applies any pending structural
migrations. Opening the store performs the migration, so this command
only reports what happened; it is safe to run repeatedly.

Structural migrations change the registry's table layout, not the
records themselves: projects stored under an older schema version stay
at that version and must be recreated individually.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, svc, err := openService()
		if err != nil {
			fail("migrate", err)
		}
		defer store.Close()

		result := store.MigrationResult()
		if result.Applied == 0 {
			fmt.Printf("Registry already at schema v%d\n", result.FinalVersion)
		} else {
			fmt.Printf("Applied %d migration(s); registry now at schema v%d\n",
				result.Applied, result.FinalVersion)
		}

		// Surface records that still need individual recreation.
		projects, err := svc.List(project.ListFilter{})
		if err != nil {
			fail("migrate", err)
		}
		incompatible := 0
		for _, p := range projects {
			if p.SchemaVersion != schema.CurrentVersion {
				incompatible++
			}
		}
		if incompatible > 0 {
			fmt.Printf("%d project(s) remain at an older schema version; run 'docshelf check <project>' for details\n", incompatible)
		}
		return nil
	},
}
