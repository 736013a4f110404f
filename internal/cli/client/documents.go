package client

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// UploadCmd creates the upload command.
func UploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file.pdf>",
		Short: "Upload a PDF document",
		Long:  "Uploads a PDF to the server, which extracts, chunks and embeds its text.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runUpload(cmd.OutOrStdout(), NewAPIClientWithCmd(cmd), args[0], outputJSON)
		},
	}
}

func runUpload(w io.Writer, api *APIClient, path string, outputJSON bool) error {
	doc, err := api.Upload(path)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}

	if outputJSON {
		return writeJSON(w, doc)
	}
	fmt.Fprintf(w, "Uploaded %s\n", doc.Filename)
	fmt.Fprintf(w, "ID: %s\n", doc.ID)
	return nil
}

// ListCmd creates the list command.
func ListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List uploaded documents",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runList(cmd.OutOrStdout(), NewAPIClientWithCmd(cmd), outputJSON)
		},
	}
}

func runList(w io.Writer, api *APIClient, outputJSON bool) error {
	list, err := api.ListDocuments()
	if err != nil {
		return fmt.Errorf("list failed: %w", err)
	}

	if outputJSON {
		return writeJSON(w, list)
	}
	printDocuments(w, list.Documents, "No documents found.")
	return nil
}

func printDocuments(w io.Writer, docs []Document, empty string) {
	if len(docs) == 0 {
		fmt.Fprintln(w, empty)
		return
	}

	fmt.Fprintf(w, "Found %d documents:\n\n", len(docs))
	for i, doc := range docs {
		fmt.Fprintf(w, "%d. %s [%s]\n", i+1, doc.Filename, doc.FileType)
		fmt.Fprintf(w, "   Created: %s\n", doc.CreatedAt)
		fmt.Fprintf(w, "   ID: %s\n", doc.ID)
		if i < len(docs)-1 {
			fmt.Fprintln(w, strings.Repeat("-", 40))
		}
	}
}

func writeJSON(w io.Writer, v any) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(output))
	return err
}
