package client

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// SelectCmd creates the select command.
func SelectCmd() *cobra.Command {
	var clearAll bool

	cmd := &cobra.Command{
		Use:   "select <id>...",
		Short: "Choose the documents questions are answered from",
		Long: `Replaces the active selection with the given document IDs.

Examples:
  docqa select 3f1c... 9a2b...
  docqa select --clear`,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runSelect(cmd.OutOrStdout(), NewAPIClientWithCmd(cmd), args, clearAll, outputJSON)
		},
	}

	cmd.Flags().BoolVar(&clearAll, "clear", false, "Clear the selection")

	return cmd
}

func runSelect(w io.Writer, api *APIClient, ids []string, clearAll, outputJSON bool) error {
	if clearAll {
		if len(ids) > 0 {
			return errors.New("--clear takes no document IDs")
		}
		if err := api.ClearSelection(); err != nil {
			return fmt.Errorf("clear failed: %w", err)
		}
		if outputJSON {
			return writeJSON(w, Selection{DocumentIDs: []string{}})
		}
		fmt.Fprintln(w, "Selection cleared.")
		return nil
	}

	if len(ids) == 0 {
		return errors.New("at least one document ID is required (or --clear)")
	}

	sel, err := api.Select(ids)
	if err != nil {
		return fmt.Errorf("select failed: %w", err)
	}

	if outputJSON {
		return writeJSON(w, sel)
	}
	fmt.Fprintf(w, "Selected %d documents.\n", sel.Total)
	return nil
}

// SelectionCmd creates the selection command.
func SelectionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "selection",
		Short: "Show the selected documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runSelection(cmd.OutOrStdout(), NewAPIClientWithCmd(cmd), outputJSON)
		},
	}
}

func runSelection(w io.Writer, api *APIClient, outputJSON bool) error {
	list, err := api.Selection()
	if err != nil {
		return fmt.Errorf("selection failed: %w", err)
	}

	if outputJSON {
		return writeJSON(w, list)
	}
	printDocuments(w, list.Documents, "No documents selected.")
	return nil
}

// AskCmd creates the ask command.
func AskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about the selected documents",
		Long:  "Asks a question. Multiple arguments are joined with spaces.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runAsk(cmd.OutOrStdout(), NewAPIClientWithCmd(cmd), strings.Join(args, " "), outputJSON)
		},
	}
}

func runAsk(w io.Writer, api *APIClient, question string, outputJSON bool) error {
	answer, err := api.Ask(question)
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	if outputJSON {
		return writeJSON(w, answer)
	}
	fmt.Fprintln(w, answer.Answer)
	return nil
}
