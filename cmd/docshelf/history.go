// History command for the docshelf CLI.
package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	historyLimit int
	historyStuck bool
)

var historyCmd = &cobra.Command{
	Use:   "history [project]",
	Short: "Show the migration history",
	Long: `History lists migration, recreation, and validation attempts, newest
first. Without a project argument it lists records across all projects.

With --stuck it instead lists records opened more than an hour ago that
were never completed, which indicates an interrupted process.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, svc, err := openService()
		if err != nil {
			fail("history", err)
		}
		defer store.Close()

		ref := ""
		if len(args) == 1 {
			ref = args[0]
		}

		if historyStuck {
			records, err := svc.StuckRecords(time.Now().Add(-time.Hour))
			if err != nil {
				fail("history", err)
			}
			if flagJSON {
				return printJSON(records)
			}
			if len(records) == 0 {
				fmt.Println("No stuck migration records")
				return nil
			}
			for _, rec := range records {
				fmt.Printf("%s  %s  %s  started %s (never completed)\n",
					rec.MigrationID, rec.ProjectName, rec.Operation, formatTime(rec.StartedAt))
			}
			return nil
		}

		records, err := svc.History(ref, historyLimit)
		if err != nil {
			fail("history", err)
		}
		if flagJSON {
			return printJSON(records)
		}

		w := newTabWriter()
		fmt.Fprintln(w, "PROJECT\tOPERATION\tFROM\tTO\tSTARTED\tRESULT")
		for _, rec := range records {
			result := "in progress"
			if rec.Sealed() {
				if rec.Success {
					result = "ok"
				} else {
					result = "failed: " + rec.ErrorMessage
				}
			}
			fmt.Fprintf(w, "%s\t%s\tv%d\tv%d\t%s\t%s\n",
				rec.ProjectName, rec.Operation, rec.FromSchemaVersion, rec.ToSchemaVersion,
				formatTime(rec.StartedAt), result)
		}
		return w.Flush()
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of records (0 = all)")
	historyCmd.Flags().BoolVar(&historyStuck, "stuck", false, "list records that were started but never completed")
}
