package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/joestump/docmerge/internal/document"
	"github.com/joestump/docmerge/internal/engine"
	"github.com/joestump/docmerge/internal/store"
)

// templatesHandler serves templates, their variables, questions and previews.
type templatesHandler struct {
	deps Deps
}

// List returns all templates ordered by ordinal.
// GET /templates
//
// @Summary      List templates
// @Description  Returns every template ordered by ordinal.
// @Tags         Templates
// @Produce      json
// @Success      200  {object}  TemplateListResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Security     RemoteUser
// @Router       /templates [get]
func (h *templatesHandler) List(w http.ResponseWriter, r *http.Request) {
	templates, err := h.deps.Stores.Templates.List(r.Context())
	if err != nil {
		writeFailure(w, h.deps.Log, err)
		return
	}
	resp := TemplateListResponse{Templates: make([]TemplateResponse, 0, len(templates))}
	for _, t := range templates {
		resp.Templates = append(resp.Templates, toTemplateResponse(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create uploads a source document as a new template.
// POST /templates (multipart: file, title, description, ordinal)
//
// @Summary      Create a template
// @Description  Uploads a source document and extracts one variable per placeholder. A document whose text cannot be extracted is still saved and returned with 422.
// @Tags         Templates
// @Accept       multipart/form-data
// @Produce      json
// @Param        file      formData  file                   true  "Source document (.docx, .xlsx, .txt, .md, .html)"
// @Param        title     formData  string                 false  "Title; defaults to the file name"
// @Param        description formData  string                 false  "Description"
// @Param        ordinal   formData  integer                false  "Sort order"
// @Success      201  {object}  ReconcileResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      413  {object}  ErrorResponse
// @Failure      422  {object}  ExtractionFailedResponse
// @Failure      500  {object}  ErrorResponse
// @Security     RemoteUser
// @Router       /templates [post]
func (h *templatesHandler) Create(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	meta := store.NewTemplate{
		Title:       strings.TrimSpace(r.FormValue("title")),
		Description: r.FormValue("description"),
		CreatedBy:   userFromContext(r.Context()),
	}
	if meta.Title == "" {
		meta.Title = doc.Name
	}
	if o := r.FormValue("ordinal"); o != "" {
		n, err := strconv.Atoi(o)
		if err != nil {
			writeError(w, http.StatusBadRequest, "ordinal must be an integer", "BAD_REQUEST")
			return
		}
		meta.Ordinal = n
	}

	rec, err := h.deps.Reconciler.Create(r.Context(), meta, doc)
	h.writeReconciliation(w, http.StatusCreated, rec, err)
}

// Get returns one template.
// GET /templates/{id}
//
// @Summary      Get a template
// @Tags         Templates
// @Produce      json
// @Param        id        path      string                 true  "Template ID"
// @Success      200  {object}  TemplateResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Security     RemoteUser
// @Router       /templates/{id} [get]
func (h *templatesHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, err := h.deps.Stores.Templates.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, h.deps.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toTemplateResponse(t))
}

// Update changes a template's title, description or ordinal.
// PATCH /templates/{id}
//
// @Summary      Update a template
// @Description  Changes title, description or ordinal. Absent fields keep their value.
// @Tags         Templates
// @Accept       json
// @Produce      json
// @Param        id        path      string                 true  "Template ID"
// @Param        body      body      UpdateTemplateRequest  true  "Fields to change"
// @Success      200  {object}  TemplateResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Security     RemoteUser
// @Router       /templates/{id} [patch]
func (h *templatesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req UpdateTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
		return
	}
	t, err := h.deps.Stores.Templates.GetByID(r.Context(), id)
	if err != nil {
		writeFailure(w, h.deps.Log, err)
		return
	}
	title, description, ordinal := t.Title, t.Description, t.Ordinal
	if req.Title != nil {
		title = strings.TrimSpace(*req.Title)
		if title == "" {
			writeError(w, http.StatusBadRequest, "title must not be empty", "BAD_REQUEST")
			return
		}
	}
	if req.Description != nil {
		description = *req.Description
	}
	if req.Ordinal != nil {
		ordinal = *req.Ordinal
	}
	t, err = h.deps.Stores.Templates.UpdateMeta(r.Context(), id, title, description, ordinal)
	if err != nil {
		writeFailure(w, h.deps.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toTemplateResponse(t))
}

// Delete removes a template and everything it owns.
// DELETE /templates/{id}
//
// @Summary      Delete a template
// @Description  Removes the template with its variables, sections, instances and answers.
// @Tags         Templates
// @Param        id        path      string                 true  "Template ID"
// @Success      204  "No Content"
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Security     RemoteUser
// @Router       /templates/{id} [delete]
func (h *templatesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Stores.Templates.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeFailure(w, h.deps.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReplaceSource uploads a new version of the template's source document.
// PUT /templates/{id}/source (multipart: file)
//
// @Summary      Replace the source document
// @Description  Uploads a new version of the source and reconciles its variables.
// @Tags         Templates
// @Accept       multipart/form-data
// @Produce      json
// @Param        id        path      string                 true  "Template ID"
// @Param        file      formData  file                   true  "Source document"
// @Success      200  {object}  ReconcileResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      413  {object}  ErrorResponse
// @Failure      422  {object}  ExtractionFailedResponse
// @Security     RemoteUser
// @Router       /templates/{id}/source [put]
func (h *templatesHandler) ReplaceSource(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	rec, err := h.deps.Reconciler.Replace(r.Context(), chi.URLParam(r, "id"), doc)
	h.writeReconciliation(w, http.StatusOK, rec, err)
}

// Reconcile re-runs variable extraction on the stored source.
// POST /templates/{id}/reconcile
//
// @Summary      Retry extraction
// @Description  Re-runs variable extraction on the stored source.
// @Tags         Templates
// @Produce      json
// @Param        id        path      string                 true  "Template ID"
// @Success      200  {object}  ReconcileResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      422  {object}  ExtractionFailedResponse
// @Security     RemoteUser
// @Router       /templates/{id}/reconcile [post]
func (h *templatesHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	rec, err := h.deps.Reconciler.Retry(r.Context(), chi.URLParam(r, "id"))
	h.writeReconciliation(w, http.StatusOK, rec, err)
}

// Variables lists the template's variables in document order.
// GET /templates/{id}/variables
//
// @Summary      List variables
// @Description  Returns the template's variables in document order.
// @Tags         Variables
// @Produce      json
// @Param        id        path      string                 true  "Template ID"
// @Success      200  {object}  VariableListResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Security     RemoteUser
// @Router       /templates/{id}/variables [get]
func (h *templatesHandler) Variables(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.deps.Stores.Templates.GetByID(r.Context(), id); err != nil {
		writeFailure(w, h.deps.Log, err)
		return
	}
	vars, err := h.deps.Stores.Variables.ListByTemplate(r.Context(), id)
	if err != nil {
		writeFailure(w, h.deps.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, VariableListResponse{Variables: toVariableResponses(vars)})
}

// UpdateVariable changes a variable's question, options or section.
// PATCH /variables/{id}
//
// @Summary      Update a variable
// @Description  Absent fields are left alone; null clears a field. An empty or null option list makes the question free text.
// @Tags         Variables
// @Accept       json
// @Produce      json
// @Param        id        path      string                 true  "Variable ID"
// @Param        body      body      UpdateVariableRequest  true  "Fields to change"
// @Success      200  {object}  VariableResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Security     RemoteUser
// @Router       /variables/{id} [patch]
func (h *templatesHandler) UpdateVariable(w http.ResponseWriter, r *http.Request) {
	var req UpdateVariableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
		return
	}
	v, err := h.deps.Stores.Variables.Update(r.Context(), chi.URLParam(r, "id"), store.VariableUpdate{
		Question:  req.Question,
		Options:   req.Options,
		SectionID: req.SectionID,
	})
	if err != nil {
		writeFailure(w, h.deps.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toVariableResponse(v))
}

// Questions returns the question set grouped by section. With ?instance=
// the caller's answers are attached and cross-references resolved.
// GET /templates/{id}/questions
//
// @Summary      List questions
// @Description  Returns the question set grouped by section. With instance, the caller's answers are attached and references to answered placeholders are filled in.
// @Tags         Questions
// @Produce      json
// @Param        id        path      string                 true  "Template ID"
// @Param        instance  query     string                 false  "Instance ID"
// @Success      200  {object}  QuestionListResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Security     RemoteUser
// @Router       /templates/{id}/questions [get]
func (h *templatesHandler) Questions(w http.ResponseWriter, r *http.Request) {
	groups, err := h.deps.Questions.List(r.Context(), chi.URLParam(r, "id"),
		r.URL.Query().Get("instance"), userFromContext(r.Context()))
	if err != nil {
		writeFailure(w, h.deps.Log, err)
		return
	}
	resp := QuestionListResponse{Groups: make([]QuestionGroupResponse, 0, len(groups))}
	for _, g := range groups {
		gr := QuestionGroupResponse{Questions: g.Questions}
		if g.Section != nil {
			s := toSectionResponse(g.Section)
			gr.Section = &s
		}
		resp.Groups = append(resp.Groups, gr)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Preview returns the template's source with every placeholder blanked.
// GET /templates/{id}/preview
//
// @Summary      Preview a template
// @Description  Returns the source document with every placeholder blanked.
// @Tags         Rendering
// @Produce      octet-stream
// @Param        id        path      string                 true  "Template ID"
// @Success      200  {file}  file
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Security     RemoteUser
// @Router       /templates/{id}/preview [get]
func (h *templatesHandler) Preview(w http.ResponseWriter, r *http.Request) {
	doc, err := h.deps.Merger.Preview(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, h.deps.Log, err)
		return
	}
	writeDocument(w, doc.Name, doc.ContentType, doc.Data)
}

// PreviewPDF renders the blanked preview to PDF.
// GET /templates/{id}/preview.pdf
//
// @Summary      Preview a template as PDF
// @Tags         Rendering
// @Produce      application/pdf
// @Param        id        path      string                 true  "Template ID"
// @Success      200  {file}  file
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      503  {object}  ErrorResponse
// @Security     RemoteUser
// @Router       /templates/{id}/preview.pdf [get]
func (h *templatesHandler) PreviewPDF(w http.ResponseWriter, r *http.Request) {
	doc, err := h.deps.Merger.Preview(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, h.deps.Log, err)
		return
	}
	art, err := h.deps.Renderer.Render(r.Context(), "preview", doc)
	if err != nil {
		writeFailure(w, h.deps.Log, err)
		return
	}
	writeDocument(w, art.Name, art.ContentType, art.Data)
}

// readUpload reads the "file" part of a multipart request. It writes the
// error response itself and reports whether the caller should continue.
func (h *templatesHandler) readUpload(w http.ResponseWriter, r *http.Request) (document.Document, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.deps.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.deps.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large", "TOO_LARGE")
			return document.Document{}, false
		}
		writeError(w, http.StatusBadRequest, "expected multipart form with a file", "BAD_REQUEST")
		return document.Document{}, false
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required", "BAD_REQUEST")
		return document.Document{}, false
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read file", "BAD_REQUEST")
		return document.Document{}, false
	}
	doc := document.Document{Name: hdr.Filename, ContentType: hdr.Header.Get("Content-Type"), Data: data}
	format, err := doc.Format()
	if err != nil {
		writeFailure(w, h.deps.Log, err)
		return document.Document{}, false
	}
	// Multipart clients often send application/octet-stream; store the
	// canonical type of the format detected from the file name instead.
	if _, err := document.DetectFormat("", doc.ContentType); err != nil {
		doc.ContentType = document.ContentTypeFor(format)
	}
	return doc, true
}

func (h *templatesHandler) writeReconciliation(w http.ResponseWriter, status int, rec *engine.Reconciliation, err error) {
	if errors.Is(err, engine.ErrExtractionFailed) && rec != nil {
		writeJSON(w, http.StatusUnprocessableEntity, ExtractionFailedResponse{
			Error:    err.Error(),
			Code:     "EXTRACTION_FAILED",
			Template: toTemplateResponse(rec.Template),
		})
		return
	}
	if err != nil {
		writeFailure(w, h.deps.Log, err)
		return
	}
	writeJSON(w, status, toReconcileResponse(rec))
}

// writeDocument sends a document as an attachment.
func writeDocument(w http.ResponseWriter, name, contentType string, data []byte) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
