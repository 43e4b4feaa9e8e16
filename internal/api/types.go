package api

import (
	"time"

	"github.com/joestump/docmerge/internal/engine"
	"github.com/joestump/docmerge/internal/store"
)

// --- Template types ---

// TemplateResponse is the JSON representation of a template.
type TemplateResponse struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Ordinal          int       `json:"ordinal"`
	SourceName       string    `json:"source_name"`
	ContentType      string    `json:"content_type"`
	ExtractionStatus string    `json:"extraction_status"`
	ExtractionError  string    `json:"extraction_error,omitempty"`
	CreatedBy        string    `json:"created_by"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TemplateListResponse is the response for GET /templates.
type TemplateListResponse struct {
	Templates []TemplateResponse `json:"templates"`
}

// UpdateTemplateRequest is the body of PATCH /templates/{id}. Absent fields
// keep their current value.
type UpdateTemplateRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Ordinal     *int    `json:"ordinal"`
}

// ReconcileResponse is returned after a template source was created,
// replaced or re-extracted.
type ReconcileResponse struct {
	Template  TemplateResponse   `json:"template"`
	Variables []VariableResponse `json:"variables"`
	Added     []string           `json:"added"`
	Removed   []string           `json:"removed"`
}

// ExtractionFailedResponse is the 422 body for uploads whose text could not be
// extracted. The template was saved and is returned alongside the error.
type ExtractionFailedResponse struct {
	Error    string           `json:"error"`
	Code     string           `json:"code"`
	Template TemplateResponse `json:"template"`
}

// --- Variable types ---

// VariableResponse is the JSON representation of a variable.
type VariableResponse struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Question  string         `json:"question"`
	Options   []store.Option `json:"options"`
	SectionID *string        `json:"section_id"`
	Position  int            `json:"position"`
}

// VariableListResponse is the response for GET /templates/{id}/variables.
type VariableListResponse struct {
	Variables []VariableResponse `json:"variables"`
}

// UpdateVariableRequest is the body of PATCH /variables/{id}. A field that
// is absent is left alone; a field set to null is cleared.
type UpdateVariableRequest struct {
	Question  store.Optional[string]           `json:"question" swaggertype:"string"`
	Options   store.Optional[store.OptionList] `json:"options" swaggertype:"array,object"`
	SectionID store.Optional[string]           `json:"section_id" swaggertype:"string"`
}

// --- Section types ---

// SectionResponse is the JSON representation of a section.
type SectionResponse struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Position int    `json:"position"`
	Status   string `json:"status"`
}

// SectionListResponse is the response for GET /templates/{id}/sections.
type SectionListResponse struct {
	Sections []SectionResponse `json:"sections"`
}

// SectionRequest is the body for creating or renaming a section.
type SectionRequest struct {
	Title string `json:"title"`
}

// ReorderSectionsRequest lists section ids in their new order.
type ReorderSectionsRequest struct {
	IDs []string `json:"ids"`
}

// --- Question types ---

// QuestionListResponse is the response for GET /templates/{id}/questions.
type QuestionListResponse struct {
	Groups []QuestionGroupResponse `json:"groups"`
}

// QuestionGroupResponse is one section's questions; Section is nil for the
// unsectioned group.
type QuestionGroupResponse struct {
	Section   *SectionResponse  `json:"section"`
	Questions []engine.Question `json:"questions"`
}

// --- Instance types ---

// CreateInstanceRequest is the body of POST /instances.
type CreateInstanceRequest struct {
	TemplateID string `json:"template_id"`
	Title      string `json:"title"`
}

// InstanceResponse is the JSON representation of an instance.
type InstanceResponse struct {
	ID         string           `json:"id"`
	TemplateID string           `json:"template_id"`
	Title      string           `json:"title"`
	Answers    []AnswerResponse `json:"answers,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// InstanceListResponse is the paginated response for GET /instances.
type InstanceListResponse struct {
	Instances  []InstanceResponse `json:"instances"`
	NextCursor *string            `json:"next_cursor"`
}

// SaveAnswersRequest is the body of PUT /instances/{id}/answers.
type SaveAnswersRequest struct {
	Answers engine.DraftAnswers `json:"answers"`
}

// AnswerResponse is one stored answer.
type AnswerResponse struct {
	ElementID string    `json:"element_id"`
	Name      string    `json:"name"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AnswerListResponse is returned after saving answers.
type AnswerListResponse struct {
	Answers []AnswerResponse `json:"answers"`
}

// SubstitutionsResponse is the flat placeholder to text map consumed by the
// document viewer.
type SubstitutionsResponse struct {
	Substitutions map[string]string `json:"substitutions"`
}

func toTemplateResponse(t *store.Template) TemplateResponse {
	return TemplateResponse{
		ID:               t.ID,
		Title:            t.Title,
		Description:      t.Description,
		Ordinal:          t.Ordinal,
		SourceName:       t.SourceName,
		ContentType:      t.ContentType,
		ExtractionStatus: string(t.ExtractionStatus),
		ExtractionError:  t.ExtractionError,
		CreatedBy:        t.CreatedBy,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
}

func toVariableResponses(vars []*store.Variable) []VariableResponse {
	out := make([]VariableResponse, 0, len(vars))
	for _, v := range vars {
		out = append(out, toVariableResponse(v))
	}
	return out
}

func toVariableResponse(v *store.Variable) VariableResponse {
	vr := VariableResponse{
		ID:       v.ID,
		Name:     v.Name,
		Question: v.Question,
		Options:  []store.Option(v.Options),
		Position: v.Position,
	}
	if vr.Options == nil {
		vr.Options = []store.Option{}
	}
	if v.SectionID.Valid {
		id := v.SectionID.String
		vr.SectionID = &id
	}
	return vr
}

func toSectionResponse(s *store.Section) SectionResponse {
	return SectionResponse{ID: s.ID, Title: s.Title, Position: s.Position, Status: string(s.Status)}
}

func toReconcileResponse(rec *engine.Reconciliation) ReconcileResponse {
	resp := ReconcileResponse{
		Template:  toTemplateResponse(rec.Template),
		Variables: toVariableResponses(rec.Variables),
		Added:     rec.Diff.Added,
		Removed:   rec.Diff.Removed,
	}
	if resp.Added == nil {
		resp.Added = []string{}
	}
	if resp.Removed == nil {
		resp.Removed = []string{}
	}
	return resp
}

func toInstanceResponse(inst *store.Instance, answers []*store.Answer) InstanceResponse {
	return InstanceResponse{
		ID:         inst.ID,
		TemplateID: inst.TemplateID,
		Title:      inst.Title,
		Answers:    toAnswerResponses(answers),
		CreatedAt:  inst.CreatedAt,
		UpdatedAt:  inst.UpdatedAt,
	}
}

func toAnswerResponses(answers []*store.Answer) []AnswerResponse {
	if answers == nil {
		return nil
	}
	out := make([]AnswerResponse, 0, len(answers))
	for _, a := range answers {
		out = append(out, AnswerResponse{ElementID: a.ElementID, Name: a.ElementName, Value: a.Value, UpdatedAt: a.UpdatedAt})
	}
	return out
}
