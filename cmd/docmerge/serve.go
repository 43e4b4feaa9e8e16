package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/joestump/docmerge/internal/api"
	"github.com/joestump/docmerge/internal/build"
	"github.com/joestump/docmerge/internal/config"
	"github.com/joestump/docmerge/internal/db"
	"github.com/joestump/docmerge/internal/engine"
	"github.com/joestump/docmerge/internal/logging"
	"github.com/joestump/docmerge/internal/render"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
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

			mode, err := engine.ParseMode(cfg.Reconcile.Mode)
			if err != nil {
				return err
			}
			stores := engine.NewStores(database)

			backend := render.NewChromeBackend(render.ChromeConfig{
				DebuggerURL: cfg.Render.DebuggerURL,
				Bin:         cfg.Render.BrowserBin,
			}, log.Named("chrome"))
			defer func() {
				if err := backend.Close(); err != nil {
					log.Warn("close browser", zap.Error(err))
				}
			}()

			router := api.NewRouter(api.Deps{
				Stores:         stores,
				Reconciler:     engine.NewReconciler(stores, mode, cfg.Extract.Timeout, log.Named("reconcile")),
				Answers:        engine.NewAnswers(stores, log.Named("answers")),
				Questions:      engine.NewQuestions(stores),
				Merger:         engine.NewMerger(stores, cfg.Render.BlankFiller),
				Renderer:       render.NewCoordinator(backend, cfg.Render.Timeout, log.Named("render")),
				Log:            log,
				UserHeader:     cfg.Auth.UserHeader,
				MaxUploadBytes: cfg.Upload.MaxBytes,
			})

			srv := &http.Server{
				Addr:              cfg.HTTP.Addr,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				log.Info("listening",
					zap.String("addr", cfg.HTTP.Addr),
					zap.String("version", build.Version),
					zap.String("reconcile_mode", cfg.Reconcile.Mode))
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}
