package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/docqa/internal/cli"
	"github.com/cloo-solutions/docqa/internal/cli/client"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "docqa",
		Short: "docqa CLI - ask questions about your PDFs",
		Long: `docqa uploads PDF documents and answers questions about a selection of them.

Environment variables:
  DOCQA_API_URL   API base URL (default: http://localhost:8080)`,
		Version:      version,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.UploadCmd())
	rootCmd.AddCommand(client.ListCmd())
	rootCmd.AddCommand(client.SelectCmd())
	rootCmd.AddCommand(client.SelectionCmd())
	rootCmd.AddCommand(client.AskCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
