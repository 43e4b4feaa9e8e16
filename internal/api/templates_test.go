package api_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/joestump/docmerge/internal/api"
)

func TestTemplates_Unauthenticated(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, "GET", "/templates", "", nil, "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, "GET", "/healthz", "", nil, "")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestAPIDocs(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, "GET", "/docs/doc.json", "", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	body := rec.Body.String()
	for _, want := range []string{`"/instances/{id}/answers"`, `"/templates/{id}/preview.pdf"`, `"X-Remote-User"`, `"api.ReconcileResponse"`} {
		if !strings.Contains(body, want) {
			t.Errorf("doc.json missing %s", want)
		}
	}
}

func TestTemplates_CreateAndList(t *testing.T) {
	env := newTestEnv(t)
	created := seedTemplate(t, env, "Hello ${name}, you work at ${company}.")

	if created.Template.Title != "Policy" || created.Template.CreatedBy != "operator" {
		t.Errorf("template = %+v", created.Template)
	}
	if created.Template.ExtractionStatus != "ok" {
		t.Errorf("extraction_status = %q", created.Template.ExtractionStatus)
	}
	// multipart file parts arrive as application/octet-stream
	if created.Template.ContentType != "text/plain; charset=utf-8" {
		t.Errorf("content_type = %q", created.Template.ContentType)
	}
	if len(created.Variables) != 2 || created.Variables[0].Name != "name" {
		t.Errorf("variables = %+v", created.Variables)
	}

	rec := env.do(t, "GET", "/templates", "operator", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var list api.TemplateListResponse
	decode(t, rec, &list)
	if len(list.Templates) != 1 {
		t.Errorf("len(templates) = %d, want 1", len(list.Templates))
	}
}

func TestTemplates_CreateUnsupportedFormat(t *testing.T) {
	env := newTestEnv(t)
	rec := env.upload(t, "POST", "/templates", "operator", "photo.png", "...", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400; body: %s", rec.Code, rec.Body.String())
	}
	if code := errorCode(t, rec); code != "UNSUPPORTED_FORMAT" {
		t.Errorf("code = %q", code)
	}
}

func TestTemplates_CreateExtractionFailed(t *testing.T) {
	env := newTestEnv(t)
	rec := env.upload(t, "POST", "/templates", "operator", "broken.docx", "not a zip", map[string]string{"title": "Broken"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422; body: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Code     string               `json:"code"`
		Template api.TemplateResponse `json:"template"`
	}
	decode(t, rec, &body)
	if body.Code != "EXTRACTION_FAILED" {
		t.Errorf("code = %q", body.Code)
	}
	if body.Template.ID == "" || body.Template.ExtractionStatus != "failed" {
		t.Errorf("template = %+v", body.Template)
	}

	// The template was kept and can be fixed by uploading a new source.
	rec = env.upload(t, "PUT", "/templates/"+body.Template.ID+"/source", "operator", "fixed.txt", "${a}", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("replace: status = %d; body: %s", rec.Code, rec.Body.String())
	}
}

func TestTemplates_UpdateAndDelete(t *testing.T) {
	env := newTestEnv(t)
	created := seedTemplate(t, env, "${a}")
	path := "/templates/" + created.Template.ID

	rec := env.doJSON(t, "PATCH", path, "operator", `{"description":"new","ordinal":3}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch: status = %d; body: %s", rec.Code, rec.Body.String())
	}
	var tpl api.TemplateResponse
	decode(t, rec, &tpl)
	if tpl.Title != "Policy" || tpl.Description != "new" || tpl.Ordinal != 3 {
		t.Errorf("template = %+v", tpl)
	}

	if rec := env.do(t, "DELETE", path, "operator", nil, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: status = %d", rec.Code)
	}
	if rec := env.do(t, "GET", path, "operator", nil, ""); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete: status = %d, want 404", rec.Code)
	}
}

func TestTemplates_ReplaceSourcePreservesQuestions(t *testing.T) {
	env := newTestEnv(t)
	created := seedTemplate(t, env, "${name} ${old}")
	id := created.Template.ID

	rec := env.doJSON(t, "PATCH", "/variables/"+created.Variables[0].ID, "operator", `{"question":"Your name?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch variable: status = %d; body: %s", rec.Code, rec.Body.String())
	}

	rec = env.upload(t, "PUT", "/templates/"+id+"/source", "operator", "v2.txt", "${name} ${new}", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("replace: status = %d; body: %s", rec.Code, rec.Body.String())
	}
	var resp api.ReconcileResponse
	decode(t, rec, &resp)
	if len(resp.Variables) != 2 || resp.Variables[0].Question != "Your name?" {
		t.Errorf("variables = %+v", resp.Variables)
	}
	if len(resp.Added) != 1 || resp.Added[0] != "new" || len(resp.Removed) != 1 || resp.Removed[0] != "old" {
		t.Errorf("added = %v, removed = %v", resp.Added, resp.Removed)
	}

	rec = env.do(t, "POST", "/templates/"+id+"/reconcile", "operator", nil, "")
	if rec.Code != http.StatusOK {
		t.Errorf("reconcile: status = %d", rec.Code)
	}
}

func TestVariables_PatchTriState(t *testing.T) {
	env := newTestEnv(t)
	created := seedTemplate(t, env, "${region}")
	path := "/variables/" + created.Variables[0].ID

	rec := env.doJSON(t, "POST", "/templates/"+created.Template.ID+"/sections", "operator", `{"title":"Hosting"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create section: status = %d; body: %s", rec.Code, rec.Body.String())
	}
	var sec api.SectionResponse
	decode(t, rec, &sec)

	rec = env.doJSON(t, "PATCH", path, "operator",
		`{"options":[{"label":"EU","result":"European Union"}],"section_id":"`+sec.ID+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch: status = %d; body: %s", rec.Code, rec.Body.String())
	}
	var v api.VariableResponse
	decode(t, rec, &v)
	if len(v.Options) != 1 || v.SectionID == nil || *v.SectionID != sec.ID {
		t.Errorf("variable = %+v", v)
	}

	// Absent fields stay, null clears.
	rec = env.doJSON(t, "PATCH", path, "operator", `{"options":null}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch: status = %d; body: %s", rec.Code, rec.Body.String())
	}
	v = api.VariableResponse{}
	decode(t, rec, &v)
	if len(v.Options) != 0 {
		t.Errorf("options not cleared: %+v", v.Options)
	}
	if v.SectionID == nil {
		t.Error("section cleared by a patch that did not mention it")
	}

	rec = env.doJSON(t, "PATCH", path, "operator", `{"options":[{"label":"EU","result":"a"},{"label":"EU","result":"b"}]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("duplicate labels: status = %d, want 400", rec.Code)
	}
	if code := errorCode(t, rec); code != "INVALID_OPTIONS" {
		t.Errorf("code = %q", code)
	}
}

func TestSections_RetireClearsVariables(t *testing.T) {
	env := newTestEnv(t)
	created := seedTemplate(t, env, "${a}")
	tplPath := "/templates/" + created.Template.ID

	rec := env.doJSON(t, "POST", tplPath+"/sections", "operator", `{"title":"Gone"}`)
	var sec api.SectionResponse
	decode(t, rec, &sec)
	env.doJSON(t, "PATCH", "/variables/"+created.Variables[0].ID, "operator", `{"section_id":"`+sec.ID+`"}`)

	if rec := env.do(t, "DELETE", "/sections/"+sec.ID, "operator", nil, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("retire: status = %d", rec.Code)
	}

	rec = env.do(t, "GET", tplPath+"/variables", "operator", nil, "")
	var vars struct {
		Variables []api.VariableResponse `json:"variables"`
	}
	decode(t, rec, &vars)
	if vars.Variables[0].SectionID != nil {
		t.Errorf("variable still points at retired section")
	}

	rec = env.doJSON(t, "PATCH", "/variables/"+created.Variables[0].ID, "operator", `{"section_id":"`+sec.ID+`"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("assign retired section: status = %d, want 400", rec.Code)
	}

	rec = env.do(t, "GET", tplPath+"/sections?all=true", "operator", nil, "")
	var list api.SectionListResponse
	decode(t, rec, &list)
	if len(list.Sections) != 1 || list.Sections[0].Status != "retired" {
		t.Errorf("sections = %+v", list.Sections)
	}
}

func TestSections_RenameAndReorder(t *testing.T) {
	env := newTestEnv(t)
	created := seedTemplate(t, env, "${a}")
	tplPath := "/templates/" + created.Template.ID

	var a, b api.SectionResponse
	decode(t, env.doJSON(t, "POST", tplPath+"/sections", "operator", `{"title":"A"}`), &a)
	decode(t, env.doJSON(t, "POST", tplPath+"/sections", "operator", `{"title":"B"}`), &b)

	rec := env.doJSON(t, "PATCH", "/sections/"+a.ID, "operator", `{"title":"First"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("rename: status = %d", rec.Code)
	}

	rec = env.doJSON(t, "PUT", tplPath+"/sections/order", "operator", `{"ids":["`+b.ID+`","`+a.ID+`"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("reorder: status = %d; body: %s", rec.Code, rec.Body.String())
	}
	var list api.SectionListResponse
	decode(t, rec, &list)
	if len(list.Sections) != 2 || list.Sections[0].ID != b.ID || list.Sections[1].Title != "First" {
		t.Errorf("sections = %+v", list.Sections)
	}

	rec = env.doJSON(t, "POST", tplPath+"/sections", "operator", `{"title":"  "}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("blank title: status = %d, want 400", rec.Code)
	}
}

func TestTemplates_Preview(t *testing.T) {
	env := newTestEnv(t)
	created := seedTemplate(t, env, "Hello ${name}, you work at ${company}.")

	rec := env.do(t, "GET", "/templates/"+created.Template.ID+"/preview", "viewer", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Body.String(); got != "Hello ____, you work at ____." {
		t.Errorf("preview = %q", got)
	}

	rec = env.do(t, "GET", "/templates/"+created.Template.ID+"/preview.pdf", "viewer", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("pdf status = %d; body: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("content type = %q", ct)
	}
	if !strings.HasPrefix(rec.Body.String(), "%PDF-preview Hello ____") {
		t.Errorf("pdf body = %q", rec.Body.String())
	}
}
