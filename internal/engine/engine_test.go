package engine_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"sowforge/internal/config"
	"sowforge/internal/db"
	"sowforge/internal/domain"
	"sowforge/internal/engine"
	"sowforge/internal/migrate"
	"sowforge/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default(), nil)
	eng.Now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	var n int
	eng.NewID = func(prefix string) string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
	eng.Gen.Now = eng.Now
	eng.Gen.NewID = eng.NewID
	return testEnv{Engine: eng, Ctx: context.Background()}
}

func testDiscovery() domain.Discovery {
	return domain.Discovery{
		Client: domain.Client{Name: "Acme Corp", Industry: "Retail"},
		Project: domain.Project{
			Title:           "Replatform",
			Context:         "Legacy storefront replacement",
			Objectives:      []string{"Migrate checkout"},
			SuccessCriteria: []string{"Zero downtime cutover"},
		},
		Scope: domain.Scope{Modules: []string{"Storefront", "Checkout"}},
	}
}

func generate(t *testing.T, env testEnv) engine.GenerateResult {
	t.Helper()
	res, err := env.Engine.Generate(env.Ctx, testDiscovery(), "tester")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	return res
}

func TestGeneratePersistsBothSlots(t *testing.T) {
	env := newTestEnv(t)
	res := generate(t, env)
	if res.Origin != "deterministic" {
		t.Fatalf("origin = %q, want deterministic", res.Origin)
	}

	sow, err := env.Engine.GetDocument(env.Ctx, domain.SlotSOW)
	if err != nil {
		t.Fatalf("get sow: %v", err)
	}
	if sow.Meta.Title != "Statement of Work: Replatform" {
		t.Fatalf("sow title = %q", sow.Meta.Title)
	}
	proposal, err := env.Engine.GetDocument(env.Ctx, domain.SlotProposal)
	if err != nil {
		t.Fatalf("get proposal: %v", err)
	}
	if proposal.Meta.Title != "Proposal: Replatform" {
		t.Fatalf("proposal title = %q", proposal.Meta.Title)
	}

	versions, err := env.Engine.ListVersions(env.Ctx, "")
	if err != nil {
		t.Fatalf("list versions: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("versions = %d, want 2", len(versions))
	}
	for _, v := range versions {
		if v.Description != "Initial generation" {
			t.Fatalf("version description = %q", v.Description)
		}
	}
}

func TestGenerateValidation(t *testing.T) {
	env := newTestEnv(t)
	d := testDiscovery()
	d.Client.Name = ""
	d.Scope.Modules = nil
	_, err := env.Engine.Generate(env.Ctx, d, "tester")
	var verr *engine.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if _, ok := verr.Fields["client.name"]; !ok {
		t.Fatalf("fields = %v, missing client.name", verr.Fields)
	}
	if _, ok := verr.Fields["scope.modules"]; !ok {
		t.Fatalf("fields = %v, missing scope.modules", verr.Fields)
	}
}

type failingBackend struct{}

func (failingBackend) Generate(ctx context.Context, d domain.Discovery) (domain.DocumentDraft, domain.DocumentDraft, error) {
	return domain.DocumentDraft{}, domain.DocumentDraft{}, errors.New("backend down")
}

func TestGenerateBackendFallbackLogsEvent(t *testing.T) {
	env := newTestEnv(t)
	env.Engine.Facade.Backend = failingBackend{}

	res := generate(t, env)
	if res.Origin != "deterministic" {
		t.Fatalf("origin = %q, want deterministic", res.Origin)
	}
	evts, err := env.Engine.LatestEvents(env.Ctx, 10, "generate.fallback")
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(evts) != 1 {
		t.Fatalf("fallback events = %d, want 1", len(evts))
	}
}

func TestGenerateReplacesWorkspaceDocuments(t *testing.T) {
	env := newTestEnv(t)
	generate(t, env)
	first, _ := env.Engine.GetDocument(env.Ctx, domain.SlotSOW)

	d := testDiscovery()
	d.Project.Title = "Second Engagement"
	if _, err := env.Engine.Generate(env.Ctx, d, "tester"); err != nil {
		t.Fatalf("second generate: %v", err)
	}
	second, err := env.Engine.GetDocument(env.Ctx, domain.SlotSOW)
	if err != nil {
		t.Fatalf("get sow: %v", err)
	}
	if second.Meta.Title == first.Meta.Title {
		t.Fatalf("sow not replaced, title still %q", second.Meta.Title)
	}
	if second.Meta.Title != "Statement of Work: Second Engagement" {
		t.Fatalf("sow title = %q", second.Meta.Title)
	}
}

func TestStatusTransitions(t *testing.T) {
	env := newTestEnv(t)
	generate(t, env)

	doc, err := env.Engine.SetStatus(env.Ctx, domain.SlotSOW, domain.StatusInReview, "tester")
	if err != nil || doc.Status != domain.StatusInReview {
		t.Fatalf("to InReview: %v", err)
	}
	doc, err = env.Engine.SetStatus(env.Ctx, domain.SlotSOW, domain.StatusApproved, "tester")
	if err != nil || doc.Status != domain.StatusApproved {
		t.Fatalf("to Approved: %v", err)
	}

	// backward and skipping transitions are rejected
	var cerr *engine.ConflictError
	if _, err = env.Engine.SetStatus(env.Ctx, domain.SlotSOW, domain.StatusDraft, "tester"); !errors.As(err, &cerr) {
		t.Fatalf("backward transition err = %v, want ConflictError", err)
	}
	if _, err = env.Engine.SetStatus(env.Ctx, domain.SlotProposal, domain.StatusApproved, "tester"); !errors.As(err, &cerr) {
		t.Fatalf("skip transition err = %v, want ConflictError", err)
	}
}

func TestUpdateSectionWritesBack(t *testing.T) {
	env := newTestEnv(t)
	generate(t, env)

	bullets := []string{"No change freezes", "Staging mirrors production"}
	doc, err := env.Engine.UpdateSection(env.Ctx, domain.SlotSOW, "assumptions", engine.SectionUpdate{Bullets: bullets}, "tester")
	if err != nil {
		t.Fatalf("update section: %v", err)
	}
	sec := doc.Section("assumptions")
	if len(sec.Bullets) != 2 || sec.Bullets[0] != "No change freezes" {
		t.Fatalf("section bullets = %v", sec.Bullets)
	}
	if len(doc.Assumptions) != 2 || doc.Assumptions[1] != "Staging mirrors production" {
		t.Fatalf("draft assumptions not written back: %v", doc.Assumptions)
	}

	// persisted, not just returned
	stored, err := env.Engine.GetDocument(env.Ctx, domain.SlotSOW)
	if err != nil {
		t.Fatalf("get sow: %v", err)
	}
	if len(stored.Assumptions) != 2 {
		t.Fatalf("stored assumptions = %v", stored.Assumptions)
	}
}

func TestUpdateSectionKindMismatch(t *testing.T) {
	env := newTestEnv(t)
	generate(t, env)

	_, err := env.Engine.UpdateSection(env.Ctx, domain.SlotSOW, "exec-summary", engine.SectionUpdate{Bullets: []string{"x"}}, "tester")
	var verr *engine.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if _, err := env.Engine.UpdateSection(env.Ctx, domain.SlotSOW, "no-such-section", engine.SectionUpdate{}, "tester"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("unknown section err = %v, want ErrNotFound", err)
	}
}

func TestRenderReflectsEdits(t *testing.T) {
	env := newTestEnv(t)
	generate(t, env)

	text := "A fully revised executive summary."
	if _, err := env.Engine.UpdateSection(env.Ctx, domain.SlotSOW, "exec-summary", engine.SectionUpdate{Text: &text}, "tester"); err != nil {
		t.Fatalf("update section: %v", err)
	}
	doc, err := env.Engine.Render(env.Ctx, domain.SlotSOW, "tester")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(doc.Markdown, text) {
		t.Fatalf("markdown does not contain the edited summary")
	}
}

func TestSaveVersion(t *testing.T) {
	env := newTestEnv(t)
	generate(t, env)

	v, err := env.Engine.SaveVersion(env.Ctx, domain.SlotSOW, "before client review", "tester")
	if err != nil {
		t.Fatalf("save version: %v", err)
	}
	if v.Description != "before client review" {
		t.Fatalf("description = %q", v.Description)
	}
	versions, err := env.Engine.ListVersions(env.Ctx, domain.SlotSOW)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("sow versions = %d, want 2", len(versions))
	}
}

func TestCommentLifecycle(t *testing.T) {
	env := newTestEnv(t)
	generate(t, env)

	c, err := env.Engine.AddComment(env.Ctx, domain.SlotSOW, "pricing", "Check the QA rate", "reviewer")
	if err != nil {
		t.Fatalf("add comment: %v", err)
	}
	if c.Resolved {
		t.Fatalf("new comment already resolved")
	}
	if err := env.Engine.ResolveComment(env.Ctx, c.ID, "tester"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	comments, err := env.Engine.ListComments(env.Ctx, domain.SlotSOW)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(comments) != 1 || !comments[0].Resolved {
		t.Fatalf("comments = %+v", comments)
	}
	if err := env.Engine.ResolveComment(env.Ctx, "missing", "tester"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("resolve missing err = %v, want ErrNotFound", err)
	}
}

func TestChangeAcceptAppliesText(t *testing.T) {
	env := newTestEnv(t)
	generate(t, env)

	after := "First point\nSecond point"
	ch, err := env.Engine.ProposeChange(env.Ctx, domain.SlotSOW, "assumptions", after, "reviewer")
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if ch.Status != "pending" || ch.Before == "" {
		t.Fatalf("change = %+v", ch)
	}

	doc, err := env.Engine.AcceptChange(env.Ctx, ch.ID, "tester")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	sec := doc.Section("assumptions")
	if len(sec.Bullets) != 2 || sec.Bullets[1] != "Second point" {
		t.Fatalf("bullets = %v", sec.Bullets)
	}
	if len(doc.Assumptions) != 2 {
		t.Fatalf("assumptions not written back: %v", doc.Assumptions)
	}

	// a decided change cannot be re-decided
	var cerr *engine.ConflictError
	if _, err := env.Engine.AcceptChange(env.Ctx, ch.ID, "tester"); !errors.As(err, &cerr) {
		t.Fatalf("double accept err = %v, want ConflictError", err)
	}
}

func TestChangeReject(t *testing.T) {
	env := newTestEnv(t)
	generate(t, env)

	before, _ := env.Engine.GetDocument(env.Ctx, domain.SlotSOW)
	ch, err := env.Engine.ProposeChange(env.Ctx, domain.SlotSOW, "exec-summary", "replacement text", "reviewer")
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if err := env.Engine.RejectChange(env.Ctx, ch.ID, "tester"); err != nil {
		t.Fatalf("reject: %v", err)
	}
	changes, err := env.Engine.ListChanges(env.Ctx, domain.SlotSOW, "rejected")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(changes) != 1 {
		t.Fatalf("rejected changes = %d, want 1", len(changes))
	}

	after, _ := env.Engine.GetDocument(env.Ctx, domain.SlotSOW)
	if after.Section("exec-summary").Text != before.Section("exec-summary").Text {
		t.Fatalf("rejected change mutated the document")
	}
}

func TestWorkspaceAndClear(t *testing.T) {
	env := newTestEnv(t)
	generate(t, env)
	if _, err := env.Engine.AddComment(env.Ctx, domain.SlotSOW, "scope", "note", "reviewer"); err != nil {
		t.Fatalf("add comment: %v", err)
	}

	ws, err := env.Engine.Workspace(env.Ctx)
	if err != nil {
		t.Fatalf("workspace: %v", err)
	}
	if ws.SOW == nil || ws.Proposal == nil {
		t.Fatalf("workspace missing documents")
	}
	if len(ws.Versions) != 2 || len(ws.Comments) != 1 {
		t.Fatalf("versions = %d, comments = %d", len(ws.Versions), len(ws.Comments))
	}

	if err := env.Engine.Clear(env.Ctx, "tester"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	ws, err = env.Engine.Workspace(env.Ctx)
	if err != nil {
		t.Fatalf("workspace after clear: %v", err)
	}
	if ws.SOW != nil || ws.Proposal != nil || len(ws.Versions) != 0 || len(ws.Comments) != 0 {
		t.Fatalf("workspace not empty after clear: %+v", ws)
	}

	// events survive as the audit trail
	evts, err := env.Engine.LatestEvents(env.Ctx, 50, "")
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(evts) == 0 {
		t.Fatalf("expected events after clear")
	}
}

func TestConfigDefaultsApplied(t *testing.T) {
	env := newTestEnv(t)
	env.Engine.Config.Defaults.TimelineWeeks = 8
	env.Engine.Config.Defaults.PricingModel = domain.ModelFixed

	res := generate(t, env)
	if res.SOW.Pricing.Model != domain.ModelFixed {
		t.Fatalf("pricing model = %q, want Fixed", res.SOW.Pricing.Model)
	}
	last := res.SOW.Milestones[len(res.SOW.Milestones)-1]
	if last.EndWeek > 8 {
		t.Fatalf("last milestone ends week %d, want <= 8", last.EndWeek)
	}
}
