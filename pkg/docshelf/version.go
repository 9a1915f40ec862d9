// Package docshelf holds module-level metadata.
package docshelf

// Version is the docshelf release version.
const Version = "v0.3.0"
