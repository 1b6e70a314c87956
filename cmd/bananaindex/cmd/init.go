package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/bananaindex/internal/config"
	"github.com/Aman-CERP/bananaindex/internal/errors"
)

// MCPServerConfig is one server entry in .mcp.json.
type MCPServerConfig struct {
	Type    string   `json:"type,omitempty"`
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
	Cwd     string   `json:"cwd,omitempty"`
}

// MCPConfig is the root .mcp.json structure.
type MCPConfig struct {
	MCPServers map[string]MCPServerConfig `json:"mcpServers"`
}

func newInitCmd() *cobra.Command {
	var (
		force   bool
		backend string
		noMCP   bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a .bananaindex.yaml template and register the MCP server",
		Long: `Write a .bananaindex.yaml with the default settings into the root and
add a bananaindex entry to .mcp.json so MCP clients can start it.`,
		Example: `  bananaindex init
  bananaindex init --backend bleve
  bananaindex init --force --no-mcp`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			root, err := filepath.Abs(rootDir)
			if err != nil {
				return err
			}

			cfg := config.NewConfig()
			if backend != "" {
				cfg.Engine.Backend = backend
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			path := filepath.Join(root, config.ProjectConfigName)
			if _, err := os.Stat(path); err == nil && !force {
				return errors.ConfigError(path+" already exists", nil).
					WithSuggestion("use --force to overwrite it")
			}
			if err := cfg.WriteYAML(path); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)

			if noMCP {
				return nil
			}
			mcpPath := filepath.Join(root, ".mcp.json")
			if err := registerMCPServer(mcpPath, root); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Registered bananaindex in %s\n", mcpPath)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config")
	cmd.Flags().StringVar(&backend, "backend", "", "Engine backend: meilisearch or bleve")
	cmd.Flags().BoolVar(&noMCP, "no-mcp", false, "Do not touch .mcp.json")

	return cmd
}

// registerMCPServer adds or replaces the bananaindex entry in the .mcp.json
// at path, keeping other servers.
func registerMCPServer(path, root string) error {
	cfg := MCPConfig{MCPServers: map[string]MCPServerConfig{}}
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return errors.ConfigError("invalid "+path, err)
		}
		if cfg.MCPServers == nil {
			cfg.MCPServers = map[string]MCPServerConfig{}
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	cfg.MCPServers["bananaindex"] = MCPServerConfig{
		Type:    "stdio",
		Command: "bananaindex",
		Args:    []string{"mcp", "--root", root},
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
