package ai_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sowforge/internal/ai"
	"sowforge/internal/domain"
	"sowforge/internal/gen"
)

type failingBackend struct{ err error }

func (b failingBackend) Generate(context.Context, domain.Discovery) (domain.DocumentDraft, domain.DocumentDraft, error) {
	return domain.DocumentDraft{}, domain.DocumentDraft{}, b.err
}

func fixedGenerator() *gen.Generator {
	n := 0
	return &gen.Generator{
		Now: func() time.Time { return time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC) },
		NewID: func(prefix string) string {
			n++
			return fmt.Sprintf("%s-%d", prefix, n)
		},
	}
}

func discovery() domain.Discovery {
	return domain.Discovery{
		Client: domain.Client{Name: "Acme", Industry: "Retail"},
		Project: domain.Project{
			Title:           "Replatform",
			Objectives:      []string{"Faster checkout", "Lower cost"},
			SuccessCriteria: []string{"Latency under 500ms"},
		},
		Scope: domain.Scope{Modules: []string{"Design", "Development"}},
	}
}

func TestFacadeFallbackMatchesDeterministic(t *testing.T) {
	backendErr := errors.New("boom")
	facade := ai.NewFacade(failingBackend{err: backendErr}, fixedGenerator())

	res := facade.Generate(context.Background(), discovery())
	if res.Origin != ai.OriginDeterministic {
		t.Fatalf("origin = %s", res.Origin)
	}
	if !errors.Is(res.FallbackErr, backendErr) {
		t.Fatalf("fallback err = %v", res.FallbackErr)
	}

	sow, proposal := fixedGenerator().Generate(discovery())
	if res.SOW.Markdown != sow.Markdown {
		t.Fatal("fallback sow differs from deterministic output")
	}
	if res.Proposal.Meta.Title != proposal.Meta.Title {
		t.Fatalf("proposal title = %q", res.Proposal.Meta.Title)
	}
}

func TestFacadeNoBackend(t *testing.T) {
	facade := ai.NewFacade(nil, fixedGenerator())
	res := facade.Generate(context.Background(), discovery())
	if res.Origin != ai.OriginDeterministic || res.FallbackErr != nil {
		t.Fatalf("origin = %s, err = %v", res.Origin, res.FallbackErr)
	}
	if res.SOW.ID == "" || res.Proposal.ID == "" {
		t.Fatal("drafts missing ids")
	}
}

func TestOpenAIBackendParsesResponse(t *testing.T) {
	draft := domain.DocumentDraft{
		Meta: domain.DocumentMeta{Title: "Statement of Work: Replatform", ClientName: "Acme"},
		Sections: []domain.Section{
			{ID: "exec-summary", Title: "Executive Summary", Kind: domain.KindText, Text: "Summary."},
		},
		Markdown: "# Statement of Work: Replatform\n",
	}
	content, err := json.Marshal(draft)
	if err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth = %q", got)
		}
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": string(content)}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := ai.NewOpenAI("test-key", "", srv.URL)
	n := 0
	client.NewID = func(prefix string) string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}

	sow, proposal, err := client.Generate(context.Background(), discovery())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if sow.ID != "doc-1" || proposal.ID != "doc-2" {
		t.Fatalf("ids = %s / %s", sow.ID, proposal.ID)
	}
	if sow.Status != domain.StatusDraft {
		t.Fatalf("status = %s", sow.Status)
	}
	if proposal.Meta.Title != "Proposal: Replatform" {
		t.Fatalf("proposal title = %q", proposal.Meta.Title)
	}
}

func TestOpenAIBackendNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := ai.NewOpenAI("test-key", "", srv.URL)
	if _, _, err := client.Generate(context.Background(), discovery()); err == nil {
		t.Fatal("expected error on non-2xx status")
	}
}
