package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joestump/docmerge/internal/build"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "docmerge",
		Short: "Template questionnaires and document merge",
		Long:  "docmerge turns ${placeholder} documents into question sets and merges the answers back.",
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newScanCmd())
	rootCmd.AddCommand(newMergeCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newImportCmd())
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), build.String())
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
