// Package types defines the project record, schema compatibility states,
// typed settings variants, migration audit records, and standard errors for
// the docshelf storage system.
package types
