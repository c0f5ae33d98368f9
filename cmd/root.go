package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the obsidian-remote-mcp application
var rootCmd = &cobra.Command{
	Use:   "obsidian-remote-mcp",
	Short: "MCP server for a remote Obsidian vault",
	Long: `obsidian-remote-mcp exposes an Obsidian vault to AI assistants over the
Model Context Protocol, talking to the vault through the Obsidian Local
REST API plugin.

It can run as:
  - A local MCP server on stdio (default)
  - A remote HTTP server with its own embedded OAuth 2.1 authorization
    server protecting the MCP endpoint`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "obsidian-remote-mcp version %s\n" .Version}}`)

	// If no subcommand is provided, run the serve command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("obsidian-remote-mcp version %s\n", version)
		},
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
}
