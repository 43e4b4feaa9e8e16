package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// instancesHandler serves the caller's instances, their answers and
// merged documents.
type instancesHandler struct {
	deps Deps
}

// List returns the caller's instances, newest first, paginated.
// GET /instances
//
// @Summary      List instances
// @Description  Returns the caller's instances, newest first.
// @Tags         Instances
// @Produce      json
// @Param        cursor    query     string                 false  "Pagination cursor"
// @Param        limit     query     integer                false  "Page size (max 200)"
// @Success      200  {object}  InstanceListResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Security     RemoteUser
// @Router       /instances [get]
func (h *instancesHandler) List(w http.ResponseWriter, r *http.Request) {
	instances, err := h.deps.Stores.Instances.ListByUser(r.Context(), userFromContext(r.Context()))
	if err != nil {
		writeFailure(w, h.deps.Log, err)
		return
	}
	items, next := page(r, instances)
	resp := InstanceListResponse{Instances: make([]InstanceResponse, 0, len(items)), NextCursor: next}
	for _, inst := range items {
		resp.Instances = append(resp.Instances, toInstanceResponse(inst, nil))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create starts a new instance of a template for the caller.
// POST /instances
//
// @Summary      Create an instance
// @Description  Starts a new instance of a template for the caller.
// @Tags         Instances
// @Accept       json
// @Produce      json
// @Param        body      body      CreateInstanceRequest  true  "Template to instantiate"
// @Success      201  {object}  InstanceResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Security     RemoteUser
// @Router       /instances [post]
func (h *instancesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateInstanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
		return
	}
	if strings.TrimSpace(req.TemplateID) == "" {
		writeError(w, http.StatusBadRequest, "template_id is required", "BAD_REQUEST")
		return
	}
	inst, err := h.deps.Stores.Instances.Create(r.Context(), req.TemplateID, userFromContext(r.Context()), req.Title)
	if err != nil {
		writeFailure(w, h.deps.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toInstanceResponse(inst, nil))
}

// Get returns one of the caller's instances with its answers.
// GET /instances/{id}
//
// @Summary      Get an instance
// @Description  Returns one of the caller's instances with its answers.
// @Tags         Instances
// @Produce      json
// @Param        id        path      string                 true  "Instance ID"
// @Success      200  {object}  InstanceResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Security     RemoteUser
// @Router       /instances/{id} [get]
func (h *instancesHandler) Get(w http.ResponseWriter, r *http.Request) {
	inst, err := h.deps.Stores.Instances.GetOwned(r.Context(), chi.URLParam(r, "id"), userFromContext(r.Context()))
	if err != nil {
		writeFailure(w, h.deps.Log, err)
		return
	}
	answers, err := h.deps.Stores.Answers.ListByInstance(r.Context(), inst.ID)
	if err != nil {
		writeFailure(w, h.deps.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toInstanceResponse(inst, answers))
}

// Delete removes one of the caller's instances and its answers.
// DELETE /instances/{id}
//
// @Summary      Delete an instance
// @Tags         Instances
// @Param        id        path      string                 true  "Instance ID"
// @Success      204  "No Content"
// @Failure      401  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Security     RemoteUser
// @Router       /instances/{id} [delete]
func (h *instancesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Stores.Instances.Delete(r.Context(), chi.URLParam(r, "id"), userFromContext(r.Context())); err != nil {
		writeFailure(w, h.deps.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SaveAnswers upserts a draft answer set, element by element.
// PUT /instances/{id}/answers
//
// @Summary      Save answers
// @Description  Upserts a draft answer set element by element. Selectable answers are sent as option labels and stored as their results. Nothing is written if any entry is rejected.
// @Tags         Answers
// @Accept       json
// @Produce      json
// @Param        id        path      string                 true  "Instance ID"
// @Param        body      body      SaveAnswersRequest     true  "Draft answers"
// @Success      200  {object}  AnswerListResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Security     RemoteUser
// @Router       /instances/{id}/answers [put]
func (h *instancesHandler) SaveAnswers(w http.ResponseWriter, r *http.Request) {
	var req SaveAnswersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
		return
	}
	answers, err := h.deps.Answers.Save(r.Context(), chi.URLParam(r, "id"), userFromContext(r.Context()), req.Answers)
	if err != nil {
		writeFailure(w, h.deps.Log, err)
		return
	}
	resp := AnswerListResponse{Answers: toAnswerResponses(answers)}
	if resp.Answers == nil {
		resp.Answers = []AnswerResponse{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ClearAnswer removes the answer for one element.
// DELETE /instances/{id}/answers/{element}
//
// @Summary      Clear an answer
// @Tags         Answers
// @Param        id        path      string                 true  "Instance ID"
// @Param        element   path      string                 true  "Element ID"
// @Success      204  "No Content"
// @Failure      401  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Security     RemoteUser
// @Router       /instances/{id}/answers/{element} [delete]
func (h *instancesHandler) ClearAnswer(w http.ResponseWriter, r *http.Request) {
	err := h.deps.Answers.Clear(r.Context(), chi.URLParam(r, "id"), userFromContext(r.Context()), chi.URLParam(r, "element"))
	if err != nil {
		writeFailure(w, h.deps.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Substitutions returns the placeholder to answer map for the viewer.
// GET /instances/{id}/substitutions
//
// @Summary      Get the substitution map
// @Description  Returns placeholder names mapped to their answers for the document viewer.
// @Tags         Rendering
// @Produce      json
// @Param        id        path      string                 true  "Instance ID"
// @Success      200  {object}  SubstitutionsResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Security     RemoteUser
// @Router       /instances/{id}/substitutions [get]
func (h *instancesHandler) Substitutions(w http.ResponseWriter, r *http.Request) {
	subst, err := h.deps.Merger.AnswerMap(r.Context(), chi.URLParam(r, "id"), userFromContext(r.Context()))
	if err != nil {
		writeFailure(w, h.deps.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, SubstitutionsResponse{Substitutions: subst})
}

// Document returns the template source with the instance's answers merged in.
// GET /instances/{id}/document
//
// @Summary      Get the merged document
// @Description  Returns the source document with the instance's answers substituted. Unanswered placeholders stay as written.
// @Tags         Rendering
// @Produce      octet-stream
// @Param        id        path      string                 true  "Instance ID"
// @Success      200  {file}  file
// @Failure      401  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Security     RemoteUser
// @Router       /instances/{id}/document [get]
func (h *instancesHandler) Document(w http.ResponseWriter, r *http.Request) {
	doc, err := h.deps.Merger.Merge(r.Context(), chi.URLParam(r, "id"), userFromContext(r.Context()))
	if err != nil {
		writeFailure(w, h.deps.Log, err)
		return
	}
	writeDocument(w, doc.Name, doc.ContentType, doc.Data)
}

// DocumentPDF renders the merged document to PDF.
// GET /instances/{id}/document.pdf
//
// @Summary      Get the merged document as PDF
// @Tags         Rendering
// @Produce      application/pdf
// @Param        id        path      string                 true  "Instance ID"
// @Success      200  {file}  file
// @Failure      401  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      503  {object}  ErrorResponse
// @Security     RemoteUser
// @Router       /instances/{id}/document.pdf [get]
func (h *instancesHandler) DocumentPDF(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := h.deps.Merger.Merge(r.Context(), id, userFromContext(r.Context()))
	if err != nil {
		writeFailure(w, h.deps.Log, err)
		return
	}
	art, err := h.deps.Renderer.Render(r.Context(), "answer", doc)
	if err != nil {
		h.deps.Log.Warn("instance render failed", zap.String("instance_id", id), zap.Error(err))
		writeFailure(w, h.deps.Log, err)
		return
	}
	writeDocument(w, art.Name, art.ContentType, art.Data)
}
