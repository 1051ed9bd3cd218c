package cmd

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/gokturkhatay/smartinbox/internal/server"
	"github.com/gokturkhatay/smartinbox/internal/tools/classify_tools"
	"github.com/gokturkhatay/smartinbox/internal/tools/google_tools"
	"github.com/gokturkhatay/smartinbox/internal/tools/inbox_tools"
)

// docSections fixes the grouping and order of the generated reference.
// Tools registered but not listed here land in a trailing Other section,
// which keeps the generator honest when a new tool is added.
var docSections = []struct {
	title string
	tools []string
}{
	{"Classification Tools", []string{"classify_email", "classify_batch", "list_categories"}},
	{"Inbox Tools", []string{"sync_inbox", "record_feedback", "feedback_stats"}},
	{"Google OAuth Tools", []string{"google_get_auth_url", "google_save_auth_code"}},
}

func newGenerateDocsCmd() *cobra.Command {
	var outputFile string

	cmd := &cobra.Command{
		Use:   "generate-docs",
		Short: "Generate MCP tool documentation",
		Long: `Generate markdown documentation for all available MCP tools.
The registered tools are introspected directly, so the generated reference
cannot drift from the schemas the server actually exposes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerateDocs(outputFile)
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

func runGenerateDocs(outputFile string) error {
	// Tools only report their schemas here, so the server context needs
	// neither an engine, a store nor Gmail credentials.
	serverContext, err := server.NewServerContextWithProvider(context.Background(), nil, nil, nil)
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}
	defer func() {
		_ = serverContext.Shutdown()
	}()

	mcpSrv := mcpserver.NewMCPServer("smartinbox", version,
		mcpserver.WithToolCapabilities(true),
	)

	if err := classify_tools.RegisterClassifyTools(mcpSrv, serverContext); err != nil {
		return fmt.Errorf("failed to register classification tools: %w", err)
	}
	if err := inbox_tools.RegisterInboxTools(mcpSrv, serverContext); err != nil {
		return fmt.Errorf("failed to register inbox tools: %w", err)
	}
	if err := google_tools.RegisterGoogleTools(mcpSrv, serverContext); err != nil {
		return fmt.Errorf("failed to register Google OAuth tools: %w", err)
	}

	tools := make([]mcp.Tool, 0)
	for _, serverTool := range mcpSrv.ListTools() {
		tools = append(tools, serverTool.Tool)
	}

	markdown := generateToolsMarkdown(tools)

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(markdown), 0644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Documentation written to: %s\n", outputFile)
	} else {
		fmt.Print(markdown)
	}

	return nil
}

func generateToolsMarkdown(tools []mcp.Tool) string {
	byName := make(map[string]mcp.Tool, len(tools))
	for _, tool := range tools {
		byName[tool.Name] = tool
	}

	// Tools that belong to no declared section, sorted for stable output.
	var leftover []string
	for name := range byName {
		assigned := false
		for _, section := range docSections {
			if slices.Contains(section.tools, name) {
				assigned = true
				break
			}
		}
		if !assigned {
			leftover = append(leftover, name)
		}
	}
	slices.Sort(leftover)

	var sb strings.Builder
	sb.WriteString("# MCP Tools Reference\n\n")
	sb.WriteString("This document lists every tool available when running smartinbox as an MCP server.\n\n")
	sb.WriteString("**Note:** This documentation is generated with `smartinbox generate-docs`; edit the tool definitions, not this file.\n\n")

	sb.WriteString("## Table of Contents\n\n")
	for _, section := range docSections {
		fmt.Fprintf(&sb, "- [%s](#%s)\n", section.title, markdownAnchor(section.title))
	}
	if len(leftover) > 0 {
		sb.WriteString("- [Other](#other)\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Multi-Account Support\n\n")
	sb.WriteString("Gmail-related tools accept an optional `account` argument selecting which stored Google credentials to use:\n\n")
	sb.WriteString("- **Default behavior:** without `account` the `default` credentials are used\n")
	sb.WriteString("- **OAuth sessions:** over the HTTP transport the authenticated user's own mailbox is always used\n")
	sb.WriteString("- **Multiple accounts:** any number of named credentials (e.g. `work`, `personal`) can be stored via the auth command\n\n")

	for _, section := range docSections {
		fmt.Fprintf(&sb, "## %s\n\n", section.title)
		for _, name := range section.tools {
			if tool, ok := byName[name]; ok {
				sb.WriteString(toolMarkdown(tool))
				sb.WriteString("\n")
			}
		}
	}

	if len(leftover) > 0 {
		sb.WriteString("## Other\n\n")
		for _, name := range leftover {
			sb.WriteString(toolMarkdown(byName[name]))
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

func markdownAnchor(title string) string {
	return strings.ToLower(strings.ReplaceAll(title, " ", "-"))
}

func toolMarkdown(tool mcp.Tool) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "### %s\n\n", tool.Name)
	if tool.Description != "" {
		fmt.Fprintf(&sb, "%s\n\n", tool.Description)
	}

	if len(tool.InputSchema.Properties) > 0 {
		sb.WriteString("**Arguments:**\n")

		names := make([]string, 0, len(tool.InputSchema.Properties))
		for name := range tool.InputSchema.Properties {
			names = append(names, name)
		}
		slices.Sort(names)

		for _, name := range names {
			prop, ok := tool.InputSchema.Properties[name].(map[string]any)
			if !ok {
				continue
			}

			kind := "optional"
			if slices.Contains(tool.InputSchema.Required, name) {
				kind = "required"
			}

			desc, _ := prop["description"].(string)
			if desc == "" {
				if propType, ok := prop["type"].(string); ok {
					desc = propType + " parameter"
				} else {
					desc = "parameter"
				}
			}

			fmt.Fprintf(&sb, "- `%s` (%s): %s\n", name, kind, desc)
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
