// Package api exposes templates, questions, instances and rendering over a
// JSON HTTP API.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"

	_ "github.com/joestump/docmerge/docs/swagger"
	"github.com/joestump/docmerge/internal/build"
	"github.com/joestump/docmerge/internal/document"
	"github.com/joestump/docmerge/internal/engine"
	"github.com/joestump/docmerge/internal/render"
)

// Renderer produces a deliverable artifact from a substituted document.
type Renderer interface {
	Render(ctx context.Context, mode string, doc document.Document) (render.Artifact, error)
}

// Deps holds all dependencies required to build the API router.
type Deps struct {
	Stores     *engine.Stores
	Reconciler *engine.Reconciler
	Answers    *engine.Answers
	Questions  *engine.Questions
	Merger     *engine.Merger
	Renderer   Renderer
	Log        *zap.Logger

	// UserHeader names the trusted header carrying the caller's identity.
	UserHeader string
	// MaxUploadBytes bounds template uploads.
	MaxUploadBytes int64
}

// NewRouter assembles the chi router with middleware and all routes.
func NewRouter(deps Deps) http.Handler {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.UserHeader == "" {
		deps.UserHeader = "X-Remote-User"
	}
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = 32 << 20
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(deps.Log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": build.String()})
	})
	r.Handle("/metrics", promhttp.Handler())
	// API docs are public, like /healthz.
	r.Get("/docs/*", httpSwagger.WrapHandler)

	templates := &templatesHandler{deps: deps}
	sections := &sectionsHandler{deps: deps}
	instances := &instancesHandler{deps: deps}

	r.Group(func(r chi.Router) {
		r.Use(requireUser(deps.UserHeader))

		r.Get("/templates", templates.List)
		r.Post("/templates", templates.Create)
		r.Get("/templates/{id}", templates.Get)
		r.Patch("/templates/{id}", templates.Update)
		r.Delete("/templates/{id}", templates.Delete)
		r.Put("/templates/{id}/source", templates.ReplaceSource)
		r.Post("/templates/{id}/reconcile", templates.Reconcile)
		r.Get("/templates/{id}/variables", templates.Variables)
		r.Get("/templates/{id}/questions", templates.Questions)
		r.Get("/templates/{id}/preview", templates.Preview)
		r.Get("/templates/{id}/preview.pdf", templates.PreviewPDF)
		r.Patch("/variables/{id}", templates.UpdateVariable)

		r.Get("/templates/{id}/sections", sections.List)
		r.Post("/templates/{id}/sections", sections.Create)
		r.Put("/templates/{id}/sections/order", sections.Reorder)
		r.Patch("/sections/{id}", sections.Rename)
		r.Delete("/sections/{id}", sections.Retire)

		r.Get("/instances", instances.List)
		r.Post("/instances", instances.Create)
		r.Get("/instances/{id}", instances.Get)
		r.Delete("/instances/{id}", instances.Delete)
		r.Put("/instances/{id}/answers", instances.SaveAnswers)
		r.Delete("/instances/{id}/answers/{element}", instances.ClearAnswer)
		r.Get("/instances/{id}/substitutions", instances.Substitutions)
		r.Get("/instances/{id}/document", instances.Document)
		r.Get("/instances/{id}/document.pdf", instances.DocumentPDF)
	})

	return r
}
