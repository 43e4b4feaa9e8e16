package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/joestump/docmerge/internal/document"
	"github.com/joestump/docmerge/internal/placeholder"
)

func newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan FILE",
		Short: "List the placeholders of a document in order of first appearance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(args[0])
			if err != nil {
				return err
			}
			text, err := document.Extract(cmd.Context(), doc)
			if err != nil {
				return err
			}
			for _, name := range placeholder.Scan(text) {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

// readDocument loads a file and types it by its extension.
func readDocument(path string) (document.Document, error) {
	name := filepath.Base(path)
	f, err := document.DetectFormat(name, "")
	if err != nil {
		return document.Document{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return document.Document{}, err
	}
	return document.Document{Name: name, ContentType: document.ContentTypeFor(f), Data: data}, nil
}
