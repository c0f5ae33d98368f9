// Package vault provides access to an Obsidian vault through the Obsidian
// Local REST API plugin: reading, writing, listing and searching notes.
//
// Backend failures are mapped onto a closed set of error kinds (NotFound,
// AccessDenied, Transient) so callers never have to pattern-match on raw
// HTTP or transport errors.
package vault
