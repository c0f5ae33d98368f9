// Package vault_tools provides MCP tools for working with notes in an
// Obsidian vault through the Local REST API.
//
// # Available Tools
//
// Reading:
//   - vault_read_note: Read the full content of a note
//   - vault_note_exists: Check whether a note exists
//   - vault_list_notes: List notes and sub-folders under a folder
//   - vault_search_notes: Full-text search with excerpts
//
// Writing (omitted in read-only mode):
//   - vault_upsert_note: Create a note or replace its content
//
// All paths are relative to the vault root. Arguments that could escape the
// vault (absolute paths, parent directory segments) are rejected before any
// backend request is made.
//
// Backend failures surface as tool errors in the result envelope, with the
// error kind reflected in the message: missing notes say so, credential
// problems point at the API key, and transient backend failures carry a
// retry hint.
package vault_tools
