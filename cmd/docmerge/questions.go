package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/joestump/docmerge/internal/config"
	"github.com/joestump/docmerge/internal/db"
	"github.com/joestump/docmerge/internal/engine"
	"github.com/joestump/docmerge/internal/logging"
)

func newExportCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export TEMPLATE_ID",
		Short: "Write a template's questions, options and sections as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStores(func(stores *engine.Stores, _ *zap.Logger) error {
				set, err := engine.NewQuestions(stores).Export(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if output == "" {
					return engine.EncodeQuestionSet(cmd.OutOrStdout(), set)
				}
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				if err := engine.EncodeQuestionSet(f, set); err != nil {
					_ = f.Close()
					return err
				}
				return f.Close()
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import TEMPLATE_ID FILE",
		Short: "Apply a YAML question set to a template's placeholders",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()
			set, err := engine.DecodeQuestionSet(f)
			if err != nil {
				return err
			}
			return withStores(func(stores *engine.Stores, log *zap.Logger) error {
				res, err := engine.NewQuestions(stores).Import(cmd.Context(), args[0], set)
				if err != nil {
					return err
				}
				log.Info("question set imported",
					zap.String("template_id", args[0]),
					zap.Strings("applied", res.Applied),
					zap.Strings("skipped", res.Skipped),
					zap.Strings("sections_created", res.SectionsCreated))
				return nil
			})
		},
	}
}

// withStores opens and migrates the configured database for a one-shot command.
func withStores(fn func(*engine.Stores, *zap.Logger) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	database, err := db.New(cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close() }()
	if err := db.Migrate(database, cfg.DB.Driver); err != nil {
		return err
	}
	return fn(engine.NewStores(database), log)
}
