package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the smartinbox application
var rootCmd = &cobra.Command{
	Use:   "smartinbox",
	Short: "Classifies Gmail messages into inbox categories by semantic similarity",
	Long: `smartinbox routes email into a fixed set of inbox categories (work,
personal, social, promotions, updates, finance, newsletters, primary)
by comparing message text against category exemplars in embedding
space. No per-user rules are involved.

It can run as:
  - A standalone CLI tool (classify, sync, categories)
  - An MCP (Model Context Protocol) server for AI assistants (serve)`,
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
	rootCmd.SetVersionTemplate(`{{printf "smartinbox version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newClassifyCmd())
	rootCmd.AddCommand(newCategoriesCmd())
	rootCmd.AddCommand(newSyncCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the smartinbox version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("smartinbox version %s\n", version)
		},
	}
}
