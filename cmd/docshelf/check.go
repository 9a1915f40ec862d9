// Check command for the docshelf CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check <project>",
	Short: "Check a project's schema compatibility",
	Long: `Check inspects the project's stored record against the current schema
version and reports missing fields, unknown fields, and integrity
problems. Every check is recorded in the migration history.

Exit code is 0 for a compatible project and 1 for an incompatible one.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, svc, err := openService()
		if err != nil {
			fail("check", err)
		}
		defer store.Close()

		report, err := svc.CheckCompatibility(args[0], "check")
		if err != nil {
			fail("check", err)
		}

		if flagJSON {
			if err := printJSON(report); err != nil {
				return err
			}
		} else {
			fmt.Printf("Project:  %s\n", args[0])
			fmt.Printf("Status:   %s\n", report.Status)
			fmt.Printf("Schema:   v%d (current v%d)\n", report.ProjectVersion, report.CurrentVersion)
			if len(report.MissingFields) > 0 {
				fmt.Println("Missing fields:")
				for _, f := range report.MissingFields {
					fmt.Println("  -", f)
				}
			}
			if len(report.ExtraFields) > 0 {
				fmt.Println("Unknown fields:")
				for _, f := range report.ExtraFields {
					fmt.Println("  -", f)
				}
			}
			if len(report.Issues) > 0 {
				fmt.Println("Issues:")
				for _, issue := range report.Issues {
					fmt.Println("  -", issue)
				}
			}
			if report.NeedsRecreation() {
				fmt.Printf("\nRun 'docshelf recreate %s' to rebuild this project.\n", args[0])
			}
		}

		if !report.IsCompatible {
			os.Exit(exitUserError)
		}
		return nil
	},
}
