package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"sowforge/internal/config"
	"sowforge/internal/db"
	"sowforge/internal/domain"
	"sowforge/internal/engine"
	"sowforge/internal/migrate"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default(), nil)
	e.Now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	handler, err := New(Config{Engine: e, BasePath: "/v0"})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func discoveryBody() GenerateRequest {
	return GenerateRequest{Discovery: domain.Discovery{
		Client: domain.Client{Name: "Acme Corp", Industry: "Retail"},
		Project: domain.Project{
			Title:           "Replatform",
			Objectives:      []string{"Migrate checkout"},
			SuccessCriteria: []string{"Zero downtime cutover"},
		},
		Scope: domain.Scope{Modules: []string{"Storefront", "Checkout"}},
	}}
}

func TestHealth(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	resp, body := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.StatusCode, body)
	}
	var out map[string]string
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out["status"] != "ok" {
		t.Fatalf("status field = %q", out["status"])
	}
}

func TestGenerateAndGetDocument(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	resp, body := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/generate", discoveryBody())
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("generate status = %d, body %s", resp.StatusCode, body)
	}
	var gen GenerateResponse
	if err := json.Unmarshal(body, &gen); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if gen.Origin != "deterministic" {
		t.Fatalf("origin = %q", gen.Origin)
	}
	if gen.SOW.Meta.Title != "Statement of Work: Replatform" {
		t.Fatalf("sow title = %q", gen.SOW.Meta.Title)
	}

	resp, body = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/documents/proposal", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d, body %s", resp.StatusCode, body)
	}
	var doc domain.DocumentDraft
	if err := json.Unmarshal(body, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc.Meta.Title != "Proposal: Replatform" {
		t.Fatalf("proposal title = %q", doc.Meta.Title)
	}
	if len(doc.Sections) != 11 {
		t.Fatalf("sections = %d, want 11", len(doc.Sections))
	}
}

func TestGenerateValidationEnvelope(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	req := discoveryBody()
	req.Discovery.Client.Name = ""
	resp, body := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/generate", req)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, body %s", resp.StatusCode, body)
	}
	var envelope struct {
		Error struct {
			Code    string         `json:"code"`
			Message string         `json:"message"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if envelope.Error.Code != "validation_failed" {
		t.Fatalf("code = %q", envelope.Error.Code)
	}
	if _, ok := envelope.Error.Details["client.name"]; !ok {
		t.Fatalf("details = %v, missing client.name", envelope.Error.Details)
	}
}

func TestDocumentNotFound(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	resp, body := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/documents/sow", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, body %s", resp.StatusCode, body)
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if envelope.Error.Code != "not_found" {
		t.Fatalf("code = %q", envelope.Error.Code)
	}
}

func TestParseTranscriptSample(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	resp, body := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/transcript/parse", ParseTranscriptRequest{Sample: true})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.StatusCode, body)
	}
	var d domain.Discovery
	if err := json.Unmarshal(body, &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.Client.Name != "TechFlow Solutions" {
		t.Fatalf("client = %q", d.Client.Name)
	}
}

func TestStatusConflict(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/generate", discoveryBody())

	resp, body := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/documents/sow/status", SetStatusRequest{Status: "Approved"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, body %s", resp.StatusCode, body)
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if envelope.Error.Code != "conflict" {
		t.Fatalf("code = %q", envelope.Error.Code)
	}
}

func TestUpdateSectionAndExport(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/generate", discoveryBody())

	text := "Revised summary."
	resp, body := doJSON(t, srv.Client(), http.MethodPatch, srv.URL+"/v0/documents/sow/sections/exec-summary", UpdateSectionRequest{Text: &text})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patch status = %d, body %s", resp.StatusCode, body)
	}

	resp, body = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/documents/sow/export?format=html", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export status = %d, body %s", resp.StatusCode, body)
	}
	var out ExportResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.ContentType != "text/html" {
		t.Fatalf("content type = %q", out.ContentType)
	}
	if out.Filename != "Statement_of_Work__Replatform.html" {
		t.Fatalf("filename = %q", out.Filename)
	}
	if !bytes.Contains([]byte(out.Content), []byte("<html")) {
		t.Fatalf("export content is not a page")
	}
}

func TestChangeFlowOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/generate", discoveryBody())

	resp, body := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/documents/sow/changes", ProposeChangeRequest{
		SectionID: "exec-summary",
		After:     "A tighter pitch.",
		Author:    "reviewer",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("propose status = %d, body %s", resp.StatusCode, body)
	}
	var ch domain.Change
	if err := json.Unmarshal(body, &ch); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	resp, body = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/changes/"+ch.ID+"/diff", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("diff status = %d, body %s", resp.StatusCode, body)
	}
	var diff DiffResponse
	if err := json.Unmarshal(body, &diff); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(diff.Added) == 0 {
		t.Fatalf("diff added empty")
	}

	resp, body = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/changes/"+ch.ID+"/accept", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("accept status = %d, body %s", resp.StatusCode, body)
	}
	var doc domain.DocumentDraft
	if err := json.Unmarshal(body, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc.Section("exec-summary").Text != "A tighter pitch." {
		t.Fatalf("section text = %q", doc.Section("exec-summary").Text)
	}
}

func TestWorkspaceClear(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/generate", discoveryBody())

	resp, body := doJSON(t, srv.Client(), http.MethodDelete, srv.URL+"/v0/workspace", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d, body %s", resp.StatusCode, body)
	}

	resp, body = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/workspace", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d, body %s", resp.StatusCode, body)
	}
	var ws domain.Workspace
	if err := json.Unmarshal(body, &ws); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ws.SOW != nil || ws.Proposal != nil {
		t.Fatalf("workspace not cleared")
	}
}
