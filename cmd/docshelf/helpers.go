// Shared helpers for docshelf CLI commands.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/mesh-intelligence/docshelf/internal/project"
	"github.com/mesh-intelligence/docshelf/internal/sqlite"
	"github.com/mesh-intelligence/docshelf/pkg/types"
)

// openService resolves the data directory and opens the registry store.
// Opening brings the registry file to the current structural version.
// The caller must defer store.Close().
func openService() (*sqlite.Store, *project.Service, error) {
	dataDir, err := resolveDataDir()
	if err != nil {
		return nil, nil, fmt.Errorf("resolve data dir: %w", err)
	}

	store, err := sqlite.Open(types.Config{DataDir: dataDir})
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	return store, project.NewService(store), nil
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

// newTabWriter returns a tabwriter for aligned human-readable tables.
func newTabWriter() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
}

// isUserError classifies errors caused by caller input rather than the
// system: missing records, name collisions, validation failures, and
// refused operations.
func isUserError(err error) bool {
	return errors.Is(err, types.ErrNotFound) ||
		errors.Is(err, types.ErrAlreadyExists) ||
		errors.Is(err, types.ErrValidation) ||
		errors.Is(err, types.ErrInvalidType) ||
		errors.Is(err, types.ErrInvalidStatus) ||
		errors.Is(err, types.ErrIncompatible) ||
		errors.Is(err, types.ErrProtected) ||
		errors.Is(err, types.ErrConfirmationRequired) ||
		errors.Is(err, types.ErrRecreationNotRequired) ||
		errors.Is(err, types.ErrRecreationInFlight)
}

// fail prints the error and exits with the appropriate code.
func fail(context string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %s\n", context, err)
	if isUserError(err) {
		os.Exit(exitUserError)
	}
	os.Exit(exitSysError)
}

// parsePairs parses key=value arguments into a map, JSON-decoding values
// where possible so numbers and booleans keep their types.
func parsePairs(args []string) (map[string]any, error) {
	if len(args) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(args))
	for _, arg := range args {
		parts := strings.SplitN(arg, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid pair %q (expected key=value)", arg)
		}
		var parsed any
		if err := json.Unmarshal([]byte(parts[1]), &parsed); err != nil {
			parsed = parts[1]
		}
		out[parts[0]] = parsed
	}
	return out, nil
}

// formatTime renders a timestamp for table output.
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}
