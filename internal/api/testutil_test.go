package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/joestump/docmerge/internal/api"
	"github.com/joestump/docmerge/internal/document"
	"github.com/joestump/docmerge/internal/engine"
	"github.com/joestump/docmerge/internal/render"
	"github.com/joestump/docmerge/internal/testutil"
)

// fakeRenderer stands in for the headless browser.
type fakeRenderer struct {
	err error
}

func (f *fakeRenderer) Render(ctx context.Context, mode string, doc document.Document) (render.Artifact, error) {
	if f.err != nil {
		return render.Artifact{}, f.err
	}
	return render.Artifact{Name: "out.pdf", ContentType: "application/pdf", Data: append([]byte("%PDF-"+mode+" "), doc.Data...)}, nil
}

// testEnv holds the router and the engine behind it.
type testEnv struct {
	Router   http.Handler
	Stores   *engine.Stores
	Renderer *fakeRenderer
}

// newTestEnv creates an in-memory SQLite test database, runs migrations,
// and wires up the full API router with real stores.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	stores := engine.NewStores(testutil.NewTestDB(t))
	renderer := &fakeRenderer{}
	router := api.NewRouter(api.Deps{
		Stores:     stores,
		Reconciler: engine.NewReconciler(stores, engine.ModePreserve, 5*time.Second, nil),
		Answers:    engine.NewAnswers(stores, nil),
		Questions:  engine.NewQuestions(stores),
		Merger:     engine.NewMerger(stores, "____"),
		Renderer:   renderer,
	})
	return &testEnv{Router: router, Stores: stores, Renderer: renderer}
}

// do sends a request as user and returns the recorder.
func (env *testEnv) do(t *testing.T, method, path, user string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if user != "" {
		req.Header.Set("X-Remote-User", user)
	}
	rec := httptest.NewRecorder()
	env.Router.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) doJSON(t *testing.T, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	return env.do(t, method, path, user, strings.NewReader(body), "application/json")
}

// upload sends a multipart request with one file and extra form fields.
func (env *testEnv) upload(t *testing.T, method, path, user, filename, content string, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return env.do(t, method, path, user, &buf, mw.FormDataContentType())
}

// seedTemplate uploads text as a template and returns the response.
func seedTemplate(t *testing.T, env *testEnv, text string) api.ReconcileResponse {
	t.Helper()
	rec := env.upload(t, "POST", "/templates", "operator", "policy.txt", text, map[string]string{"title": "Policy"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create template: status = %d; body: %s", rec.Code, rec.Body.String())
	}
	var resp api.ReconcileResponse
	decode(t, rec, &resp)
	return resp
}

func seedInstance(t *testing.T, env *testEnv, templateID, user string) api.InstanceResponse {
	t.Helper()
	rec := env.doJSON(t, "POST", "/instances", user, `{"template_id":"`+templateID+`","title":"Mine"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create instance: status = %d; body: %s", rec.Code, rec.Body.String())
	}
	var resp api.InstanceResponse
	decode(t, rec, &resp)
	return resp
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v; body: %s", err, rec.Body.String())
	}
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	decode(t, rec, &body)
	return body.Code
}
