package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// sectionsHandler serves the sections of a template.
type sectionsHandler struct {
	deps Deps
}

// List returns the template's active sections; ?all=true includes retired ones.
// GET /templates/{id}/sections
//
// @Summary      List sections
// @Tags         Sections
// @Produce      json
// @Param        id        path      string                 true  "Template ID"
// @Param        all       query     boolean                false  "Include retired sections"
// @Success      200  {object}  SectionListResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Security     RemoteUser
// @Router       /templates/{id}/sections [get]
func (h *sectionsHandler) List(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.deps.Stores.Templates.GetByID(r.Context(), id); err != nil {
		writeFailure(w, h.deps.Log, err)
		return
	}
	sections, err := h.deps.Stores.Sections.ListByTemplate(r.Context(), id, r.URL.Query().Get("all") == "true")
	if err != nil {
		writeFailure(w, h.deps.Log, err)
		return
	}
	resp := SectionListResponse{Sections: make([]SectionResponse, 0, len(sections))}
	for _, s := range sections {
		resp.Sections = append(resp.Sections, toSectionResponse(s))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create appends a section to the template.
// POST /templates/{id}/sections
//
// @Summary      Create a section
// @Description  Appends a section to the template.
// @Tags         Sections
// @Accept       json
// @Produce      json
// @Param        id        path      string                 true  "Template ID"
// @Param        body      body      SectionRequest         true  "Section title"
// @Success      201  {object}  SectionResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Security     RemoteUser
// @Router       /templates/{id}/sections [post]
func (h *sectionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	title, ok := decodeTitle(w, r)
	if !ok {
		return
	}
	s, err := h.deps.Stores.Sections.Create(r.Context(), chi.URLParam(r, "id"), title)
	if err != nil {
		writeFailure(w, h.deps.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSectionResponse(s))
}

// Reorder sets the order of the template's sections.
// PUT /templates/{id}/sections/order
//
// @Summary      Reorder sections
// @Tags         Sections
// @Accept       json
// @Produce      json
// @Param        id        path      string                 true  "Template ID"
// @Param        body      body      ReorderSectionsRequest true  "Section IDs in their new order"
// @Success      200  {object}  SectionListResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Security     RemoteUser
// @Router       /templates/{id}/sections/order [put]
func (h *sectionsHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	var req ReorderSectionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
		return
	}
	if err := h.deps.Stores.Sections.Reorder(r.Context(), chi.URLParam(r, "id"), req.IDs); err != nil {
		writeFailure(w, h.deps.Log, err)
		return
	}
	h.List(w, r)
}

// Rename changes a section's title.
// PATCH /sections/{id}
//
// @Summary      Rename a section
// @Tags         Sections
// @Accept       json
// @Produce      json
// @Param        id        path      string                 true  "Section ID"
// @Param        body      body      SectionRequest         true  "New title"
// @Success      200  {object}  SectionResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Security     RemoteUser
// @Router       /sections/{id} [patch]
func (h *sectionsHandler) Rename(w http.ResponseWriter, r *http.Request) {
	title, ok := decodeTitle(w, r)
	if !ok {
		return
	}
	s, err := h.deps.Stores.Sections.Rename(r.Context(), chi.URLParam(r, "id"), title)
	if err != nil {
		writeFailure(w, h.deps.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toSectionResponse(s))
}

// Retire soft-deletes a section; its variables become unsectioned.
// DELETE /sections/{id}
//
// @Summary      Retire a section
// @Description  Soft-deletes the section; its variables become unsectioned.
// @Tags         Sections
// @Param        id        path      string                 true  "Section ID"
// @Success      204  "No Content"
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Security     RemoteUser
// @Router       /sections/{id} [delete]
func (h *sectionsHandler) Retire(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Stores.Sections.Retire(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeFailure(w, h.deps.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeTitle(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req SectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
		return "", false
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		writeError(w, http.StatusBadRequest, "title is required", "BAD_REQUEST")
		return "", false
	}
	return title, true
}
