package vault_tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/premachb/obsidian-remote-mcp/internal/instrumentation"
	"github.com/premachb/obsidian-remote-mcp/internal/server"
	"github.com/premachb/obsidian-remote-mcp/internal/tools/common"
	"github.com/premachb/obsidian-remote-mcp/internal/vault"
)

// getPathFromArgs extracts and validates the note path argument
func getPathFromArgs(args map[string]interface{}) (string, error) {
	path, ok := args["path"].(string)
	if !ok || path == "" {
		return "", fmt.Errorf("path is required")
	}
	if err := common.ValidateNotePath(path); err != nil {
		return "", err
	}
	return path, nil
}

// getLimitFromArgs extracts the optional limit argument, defaulting to 0 (no limit).
// JSON numbers arrive as float64.
func getLimitFromArgs(args map[string]interface{}) int {
	if limitVal, ok := args["limit"].(float64); ok && limitVal > 0 {
		return int(limitVal)
	}
	return 0
}

// vaultErrorMessage turns a vault error into a tool error message. Backend
// failures are tool errors, not transport faults, so the caller sees them in
// the result envelope.
func vaultErrorMessage(action string, err error) string {
	var verr *vault.Error
	if errors.As(err, &verr) {
		switch verr.Kind {
		case vault.KindNotFound:
			return fmt.Sprintf("Note not found: %s", verr.Path)
		case vault.KindAccessDenied:
			return "Vault access denied: verify the configured API key"
		case vault.KindTransient:
			return fmt.Sprintf("Vault temporarily unavailable, retry later: %v", err)
		}
	}
	return fmt.Sprintf("Failed to %s: %v", action, err)
}

// RegisterVaultTools registers all vault note tools with the MCP server.
// Write operations are omitted in read-only mode.
func RegisterVaultTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	if sc.Vault() == nil {
		return fmt.Errorf("vault client is not configured")
	}

	registerReadTools(s, sc)
	registerSearchTools(s, sc)

	if !readOnly {
		registerWriteTools(s, sc)
	}

	return nil
}

// registerReadTools registers the read-only note access tools
func registerReadTools(s *mcpserver.MCPServer, sc *server.ServerContext) {
	// Read note tool
	readNoteTool := mcp.NewTool("vault_read_note",
		mcp.WithDescription("Read the full Markdown content of a note from the vault"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Vault-relative path of the note, e.g. 'projects/plan.md'"),
		),
	)

	s.AddTool(readNoteTool, common.InstrumentedVaultToolHandler("vault_read_note", instrumentation.OperationRead, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args, _ := request.Params.Arguments.(map[string]interface{})

			path, err := getPathFromArgs(args)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}

			content, err := sc.Vault().Read(ctx, path)
			if err != nil {
				return mcp.NewToolResultError(vaultErrorMessage("read note", err)), nil
			}

			return mcp.NewToolResultText(content), nil
		}))

	// Note existence tool
	noteExistsTool := mcp.NewTool("vault_note_exists",
		mcp.WithDescription("Check whether a note exists in the vault"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Vault-relative path of the note to check"),
		),
	)

	s.AddTool(noteExistsTool, common.InstrumentedVaultToolHandler("vault_note_exists", instrumentation.OperationExists, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args, _ := request.Params.Arguments.(map[string]interface{})

			path, err := getPathFromArgs(args)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}

			exists, err := sc.Vault().Exists(ctx, path)
			if err != nil {
				return mcp.NewToolResultError(vaultErrorMessage("check note", err)), nil
			}

			result, _ := json.MarshalIndent(map[string]interface{}{
				"path":   path,
				"exists": exists,
			}, "", "  ")
			return mcp.NewToolResultText(string(result)), nil
		}))

	// List notes tool
	listNotesTool := mcp.NewTool("vault_list_notes",
		mcp.WithDescription("List notes and sub-folders directly under a vault folder"),
		mcp.WithString("prefix",
			mcp.Description("Folder to list, relative to the vault root. Empty lists the root."),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of entries to return (default: no limit)"),
		),
	)

	s.AddTool(listNotesTool, common.InstrumentedVaultToolHandler("vault_list_notes", instrumentation.OperationList, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args, _ := request.Params.Arguments.(map[string]interface{})

			prefix, _ := args["prefix"].(string)
			if prefix != "" {
				if err := common.ValidateNotePath(prefix); err != nil {
					return mcp.NewToolResultError(err.Error()), nil
				}
			}
			limit := getLimitFromArgs(args)

			listing, err := sc.Vault().List(ctx, prefix, limit)
			if err != nil {
				return mcp.NewToolResultError(vaultErrorMessage("list notes", err)), nil
			}

			result, _ := json.MarshalIndent(listing, "", "  ")
			return mcp.NewToolResultText(string(result)), nil
		}))
}

// registerSearchTools registers the full-text search tool
func registerSearchTools(s *mcpserver.MCPServer, sc *server.ServerContext) {
	searchNotesTool := mcp.NewTool("vault_search_notes",
		mcp.WithDescription("Search note contents across the vault and return matching locations with excerpts"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Text to search for"),
		),
		mcp.WithString("prefix",
			mcp.Description("Restrict the search to notes under this folder"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results to return (default: no limit)"),
		),
	)

	s.AddTool(searchNotesTool, common.InstrumentedVaultToolHandler("vault_search_notes", instrumentation.OperationSearch, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args, _ := request.Params.Arguments.(map[string]interface{})

			query, ok := args["query"].(string)
			if !ok || query == "" {
				return mcp.NewToolResultError("query is required"), nil
			}

			prefix, _ := args["prefix"].(string)
			if prefix != "" {
				if err := common.ValidateNotePath(prefix); err != nil {
					return mcp.NewToolResultError(err.Error()), nil
				}
			}
			limit := getLimitFromArgs(args)

			results, err := sc.Vault().Search(ctx, query, prefix, limit)
			if err != nil {
				return mcp.NewToolResultError(vaultErrorMessage("search notes", err)), nil
			}

			if len(results) == 0 {
				return mcp.NewToolResultText(fmt.Sprintf("No matches found for %q", query)), nil
			}

			result, _ := json.MarshalIndent(results, "", "  ")
			return mcp.NewToolResultText(string(result)), nil
		}))
}

// registerWriteTools registers tools that modify the vault
func registerWriteTools(s *mcpserver.MCPServer, sc *server.ServerContext) {
	upsertNoteTool := mcp.NewTool("vault_upsert_note",
		mcp.WithDescription("Create a note or replace its content if it already exists"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Vault-relative path of the note to write"),
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("Full Markdown content for the note"),
		),
	)

	s.AddTool(upsertNoteTool, common.InstrumentedVaultToolHandler("vault_upsert_note", instrumentation.OperationWrite, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args, _ := request.Params.Arguments.(map[string]interface{})

			path, err := getPathFromArgs(args)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}

			content, ok := args["content"].(string)
			if !ok {
				return mcp.NewToolResultError("content is required"), nil
			}

			if err := sc.Vault().Write(ctx, path, content); err != nil {
				return mcp.NewToolResultError(vaultErrorMessage("write note", err)), nil
			}

			return mcp.NewToolResultText(fmt.Sprintf("Note written successfully: %s", path)), nil
		}))
}
