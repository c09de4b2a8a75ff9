package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"sowforge/internal/ai"
	"sowforge/internal/config"
	"sowforge/internal/domain"
	"sowforge/internal/events"
	"sowforge/internal/gen"
	"sowforge/internal/repo"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Facade *ai.Facade
	Gen    *gen.Generator
	Now    func() time.Time
	NewID  func(prefix string) string
}

func New(db *sql.DB, cfg *config.Config, backend ai.Backend) Engine {
	g := gen.NewGenerator()
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Facade: ai.NewFacade(backend, g),
		Gen:    g,
		Now:    time.Now,
		NewID:  gen.NewID,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) newID(prefix string) string {
	if e.NewID != nil {
		return e.NewID(prefix)
	}
	return gen.NewID(prefix)
}

func validateDiscovery(d domain.Discovery) error {
	fields := map[string]string{}
	if strings.TrimSpace(d.Client.Name) == "" {
		fields["client.name"] = "required"
	}
	if strings.TrimSpace(d.Client.Industry) == "" {
		fields["client.industry"] = "required"
	}
	if strings.TrimSpace(d.Project.Title) == "" {
		fields["project.title"] = "required"
	}
	if len(d.Project.Objectives) == 0 {
		fields["project.objectives"] = "at least one objective is required"
	}
	if len(d.Project.SuccessCriteria) == 0 {
		fields["project.success_criteria"] = "at least one success criterion is required"
	}
	if len(d.Scope.Modules) == 0 {
		fields["scope.modules"] = "at least one scope module is required"
	}
	switch d.PricingPreference {
	case "", domain.ModelTimeAndMaterials, domain.ModelFixed, domain.ModelHybrid:
	default:
		fields["pricing_preference"] = "must be TimeAndMaterials, Fixed or Hybrid"
	}
	if d.Constraints != nil && d.Constraints.TimelineWeeks < 0 {
		fields["constraints.timeline_weeks"] = "must be positive"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// applyConfigDefaults fills discovery gaps from sowforge.yml.
func (e Engine) applyConfigDefaults(d domain.Discovery) domain.Discovery {
	if e.Config == nil {
		return d
	}
	if d.PricingPreference == "" && e.Config.Defaults.PricingModel != "" {
		d.PricingPreference = e.Config.Defaults.PricingModel
	}
	if e.Config.Defaults.TimelineWeeks > 0 {
		if d.Constraints == nil {
			d.Constraints = &domain.Constraints{TimelineWeeks: e.Config.Defaults.TimelineWeeks}
		} else if d.Constraints.TimelineWeeks == 0 {
			d.Constraints.TimelineWeeks = e.Config.Defaults.TimelineWeeks
		}
	}
	if d.Tone == "" && e.Config.Brand.Tone != "" {
		d.Tone = e.Config.Brand.Tone
	}
	return d
}

func (e Engine) brand() *domain.Brand {
	if e.Config == nil || e.Config.Brand.Name == "" {
		return nil
	}
	return &domain.Brand{
		Name:           e.Config.Brand.Name,
		LogoURL:        e.Config.Brand.LogoURL,
		PrimaryColor:   e.Config.Brand.PrimaryColor,
		SecondaryColor: e.Config.Brand.SecondaryColor,
		Tone:           e.Config.Brand.Tone,
	}
}

type GenerateResult struct {
	SOW      domain.DocumentDraft
	Proposal domain.DocumentDraft
	Origin   string
}

// Generate runs the facade and replaces the workspace documents with the
// fresh pair, recording an initial version of each. A backend failure is
// logged as a generate.fallback event and never surfaced.
func (e Engine) Generate(ctx context.Context, d domain.Discovery, actorID string) (GenerateResult, error) {
	d = e.applyConfigDefaults(d)
	if err := validateDiscovery(d); err != nil {
		return GenerateResult{}, err
	}

	res := e.Facade.Generate(ctx, d)
	if brand := e.brand(); brand != nil {
		res.SOW.Brand = brand
		res.Proposal.Brand = brand
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return GenerateResult{}, err
	}
	defer tx.Rollback()

	now := e.now().UTC().Format(time.RFC3339)
	for slot, doc := range map[string]domain.DocumentDraft{
		domain.SlotSOW:      res.SOW,
		domain.SlotProposal: res.Proposal,
	} {
		if err := e.Repo.UpsertDocument(ctx, tx, slot, doc, now); err != nil {
			return GenerateResult{}, fmt.Errorf("store %s: %w", slot, err)
		}
		v := domain.Version{
			ID:          e.newID("v"),
			Timestamp:   now,
			Description: "Initial generation",
			Draft:       doc,
		}
		if err := e.Repo.InsertVersion(ctx, tx, slot, v); err != nil {
			return GenerateResult{}, fmt.Errorf("version %s: %w", slot, err)
		}
		if err := e.Events.Append(ctx, tx, "document.generated", "document", slot, actorID, events.EventPayload{
			"id":     doc.ID,
			"title":  doc.Meta.Title,
			"origin": res.Origin,
		}); err != nil {
			return GenerateResult{}, err
		}
	}
	if res.FallbackErr != nil {
		if err := e.Events.Append(ctx, tx, "generate.fallback", "document", "", actorID, events.EventPayload{
			"error": res.FallbackErr.Error(),
		}); err != nil {
			return GenerateResult{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return GenerateResult{}, err
	}
	return GenerateResult{SOW: res.SOW, Proposal: res.Proposal, Origin: res.Origin}, nil
}

func (e Engine) GetDocument(ctx context.Context, slot string) (domain.DocumentDraft, error) {
	if err := validSlot(slot); err != nil {
		return domain.DocumentDraft{}, err
	}
	return e.Repo.GetDocument(ctx, slot)
}

func validSlot(slot string) error {
	if slot != domain.SlotSOW && slot != domain.SlotProposal {
		return &ValidationError{Fields: map[string]string{"slot": "must be sow or proposal"}}
	}
	return nil
}

// Workspace assembles the full editing state.
func (e Engine) Workspace(ctx context.Context) (domain.Workspace, error) {
	var ws domain.Workspace
	sow, err := e.Repo.GetDocument(ctx, domain.SlotSOW)
	if err == nil {
		ws.SOW = &sow
	} else if !errors.Is(err, repo.ErrNotFound) {
		return ws, err
	}
	proposal, err := e.Repo.GetDocument(ctx, domain.SlotProposal)
	if err == nil {
		ws.Proposal = &proposal
	} else if !errors.Is(err, repo.ErrNotFound) {
		return ws, err
	}
	if ws.Versions, err = e.Repo.ListVersions(ctx, ""); err != nil {
		return ws, err
	}
	if ws.Changes, err = e.Repo.ListChanges(ctx, "", ""); err != nil {
		return ws, err
	}
	if ws.Comments, err = e.Repo.ListComments(ctx, ""); err != nil {
		return ws, err
	}
	return ws, nil
}

// Clear deletes all workspace state. Events are kept as the audit trail.
func (e Engine) Clear(ctx context.Context, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteWorkspace(ctx, tx); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "workspace.cleared", "workspace", "", actorID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// SectionUpdate carries new content for one section. Exactly the field
// matching the section's kind is read.
type SectionUpdate struct {
	Text         *string
	Bullets      []string
	Deliverables []domain.Deliverable
	Milestones   []domain.Milestone
	Pricing      *domain.PricingTable
	Risks        []domain.Risk
}

// UpdateSection replaces a section's content and writes it back into the
// matching top-level draft field so the outline and the raw fields never
// diverge. The stored markdown is not re-rendered; use Render for that.
func (e Engine) UpdateSection(ctx context.Context, slot, sectionID string, upd SectionUpdate, actorID string) (domain.DocumentDraft, error) {
	if err := validSlot(slot); err != nil {
		return domain.DocumentDraft{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.DocumentDraft{}, err
	}
	defer tx.Rollback()

	doc, err := e.Repo.GetDocumentTx(ctx, tx, slot)
	if err != nil {
		return doc, err
	}
	sec := doc.Section(sectionID)
	if sec == nil {
		return doc, repo.ErrNotFound
	}
	if err := applyUpdate(sec, upd); err != nil {
		return doc, err
	}
	writeBack(&doc, *sec)

	now := e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.UpsertDocument(ctx, tx, slot, doc, now); err != nil {
		return doc, err
	}
	if err := e.Events.Append(ctx, tx, "section.updated", "document", slot, actorID, events.EventPayload{
		"section_id": sectionID,
	}); err != nil {
		return doc, err
	}
	if err := tx.Commit(); err != nil {
		return doc, err
	}
	return doc, nil
}

func applyUpdate(sec *domain.Section, upd SectionUpdate) error {
	switch sec.Kind {
	case domain.KindText:
		if upd.Text == nil {
			return &ValidationError{Fields: map[string]string{"text": "required for a text section"}}
		}
		sec.Text = *upd.Text
	case domain.KindBullets:
		if upd.Bullets == nil {
			return &ValidationError{Fields: map[string]string{"bullets": "required for a bullets section"}}
		}
		sec.Bullets = upd.Bullets
	case domain.KindTable, domain.KindTimeline:
		switch {
		case upd.Deliverables != nil:
			sec.Deliverables = upd.Deliverables
		case upd.Milestones != nil:
			sec.Milestones = upd.Milestones
		case upd.Pricing != nil:
			sec.Pricing = upd.Pricing
		case upd.Risks != nil:
			sec.Risks = upd.Risks
		default:
			return &ValidationError{Fields: map[string]string{"content": "structured payload required"}}
		}
	}
	return nil
}

// writeBack mirrors a section edit into the top-level field it projects.
// Sections without a raw-field counterpart (exec-summary, objectives,
// scope, acceptance) live only in the outline.
func writeBack(doc *domain.DocumentDraft, sec domain.Section) {
	switch sec.ID {
	case "deliverables":
		if sec.Deliverables != nil {
			doc.Deliverables = sec.Deliverables
		}
	case "timeline":
		if sec.Milestones != nil {
			doc.Milestones = sec.Milestones
		}
	case "pricing":
		if sec.Pricing != nil {
			doc.Pricing = *sec.Pricing
		}
	case "assumptions":
		if sec.Bullets != nil {
			doc.Assumptions = sec.Bullets
		}
	case "out-of-scope":
		if sec.Bullets != nil {
			doc.OutOfScope = sec.Bullets
		}
	case "risks":
		if sec.Risks != nil {
			doc.Risks = sec.Risks
		}
	case "dependencies":
		if sec.Bullets != nil {
			doc.Dependencies = sec.Bullets
		}
	}
}

func ensureStatusTransition(oldStatus, newStatus string) error {
	ok := (oldStatus == domain.StatusDraft && newStatus == domain.StatusInReview) ||
		(oldStatus == domain.StatusInReview && newStatus == domain.StatusApproved)
	if !ok {
		return &ConflictError{Msg: fmt.Sprintf("invalid status transition %s -> %s", oldStatus, newStatus)}
	}
	return nil
}

// SetStatus advances a document one step: Draft -> InReview -> Approved.
// No backward transitions.
func (e Engine) SetStatus(ctx context.Context, slot, status, actorID string) (domain.DocumentDraft, error) {
	if err := validSlot(slot); err != nil {
		return domain.DocumentDraft{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.DocumentDraft{}, err
	}
	defer tx.Rollback()

	doc, err := e.Repo.GetDocumentTx(ctx, tx, slot)
	if err != nil {
		return doc, err
	}
	if err := ensureStatusTransition(doc.Status, status); err != nil {
		return doc, err
	}
	from := doc.Status
	doc.Status = status

	now := e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.UpsertDocument(ctx, tx, slot, doc, now); err != nil {
		return doc, err
	}
	if err := e.Events.Append(ctx, tx, "document.status", "document", slot, actorID, events.EventPayload{
		"from": from,
		"to":   status,
	}); err != nil {
		return doc, err
	}
	if err := tx.Commit(); err != nil {
		return doc, err
	}
	return doc, nil
}

// Render regenerates the markdown from the stored draft fields and
// persists it.
func (e Engine) Render(ctx context.Context, slot, actorID string) (domain.DocumentDraft, error) {
	if err := validSlot(slot); err != nil {
		return domain.DocumentDraft{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.DocumentDraft{}, err
	}
	defer tx.Rollback()

	doc, err := e.Repo.GetDocumentTx(ctx, tx, slot)
	if err != nil {
		return doc, err
	}
	doc.Markdown = gen.RenderDraft(doc)

	now := e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.UpsertDocument(ctx, tx, slot, doc, now); err != nil {
		return doc, err
	}
	if err := e.Events.Append(ctx, tx, "document.rendered", "document", slot, actorID, nil); err != nil {
		return doc, err
	}
	if err := tx.Commit(); err != nil {
		return doc, err
	}
	return doc, nil
}

// SaveVersion snapshots the current draft.
func (e Engine) SaveVersion(ctx context.Context, slot, description, actorID string) (domain.Version, error) {
	if err := validSlot(slot); err != nil {
		return domain.Version{}, err
	}
	if strings.TrimSpace(description) == "" {
		description = "Manual save"
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Version{}, err
	}
	defer tx.Rollback()

	doc, err := e.Repo.GetDocumentTx(ctx, tx, slot)
	if err != nil {
		return domain.Version{}, err
	}
	v := domain.Version{
		ID:          e.newID("v"),
		Timestamp:   e.now().UTC().Format(time.RFC3339),
		Description: description,
		Draft:       doc,
	}
	if err := e.Repo.InsertVersion(ctx, tx, slot, v); err != nil {
		return v, err
	}
	if err := e.Events.Append(ctx, tx, "version.saved", "version", v.ID, actorID, events.EventPayload{
		"slot":        slot,
		"description": description,
	}); err != nil {
		return v, err
	}
	if err := tx.Commit(); err != nil {
		return v, err
	}
	return v, nil
}

func (e Engine) ListVersions(ctx context.Context, slot string) ([]domain.Version, error) {
	if slot != "" {
		if err := validSlot(slot); err != nil {
			return nil, err
		}
	}
	return e.Repo.ListVersions(ctx, slot)
}

// AddComment attaches a comment to a section of a stored document.
func (e Engine) AddComment(ctx context.Context, slot, sectionID, content, author string) (domain.Comment, error) {
	if err := validSlot(slot); err != nil {
		return domain.Comment{}, err
	}
	if strings.TrimSpace(content) == "" {
		return domain.Comment{}, &ValidationError{Fields: map[string]string{"content": "required"}}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Comment{}, err
	}
	defer tx.Rollback()

	doc, err := e.Repo.GetDocumentTx(ctx, tx, slot)
	if err != nil {
		return domain.Comment{}, err
	}
	if doc.Section(sectionID) == nil {
		return domain.Comment{}, repo.ErrNotFound
	}
	c := domain.Comment{
		ID:        e.newID("c"),
		SectionID: sectionID,
		Content:   content,
		Author:    author,
		Timestamp: e.now().UTC().Format(time.RFC3339),
		Replies:   []domain.Reply{},
	}
	if err := e.Repo.InsertComment(ctx, tx, slot, c); err != nil {
		return c, err
	}
	if err := e.Events.Append(ctx, tx, "comment.added", "comment", c.ID, author, events.EventPayload{
		"slot":       slot,
		"section_id": sectionID,
	}); err != nil {
		return c, err
	}
	if err := tx.Commit(); err != nil {
		return c, err
	}
	return c, nil
}

func (e Engine) ResolveComment(ctx context.Context, id, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.ResolveComment(ctx, tx, id); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "comment.resolved", "comment", id, actorID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) ListComments(ctx context.Context, slot string) ([]domain.Comment, error) {
	if slot != "" {
		if err := validSlot(slot); err != nil {
			return nil, err
		}
	}
	return e.Repo.ListComments(ctx, slot)
}

// ProposeChange records a pending edit to a section. Before is snapshotted
// from the current section content.
func (e Engine) ProposeChange(ctx context.Context, slot, sectionID, after, author string) (domain.Change, error) {
	if err := validSlot(slot); err != nil {
		return domain.Change{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Change{}, err
	}
	defer tx.Rollback()

	doc, err := e.Repo.GetDocumentTx(ctx, tx, slot)
	if err != nil {
		return domain.Change{}, err
	}
	sec := doc.Section(sectionID)
	if sec == nil {
		return domain.Change{}, repo.ErrNotFound
	}
	c := domain.Change{
		ID:        e.newID("ch"),
		Slot:      slot,
		SectionID: sectionID,
		Before:    sectionText(*sec),
		After:     after,
		Author:    author,
		Timestamp: e.now().UTC().Format(time.RFC3339),
		Status:    "pending",
	}
	if err := e.Repo.InsertChange(ctx, tx, c); err != nil {
		return c, err
	}
	if err := e.Events.Append(ctx, tx, "change.proposed", "change", c.ID, author, events.EventPayload{
		"slot":       slot,
		"section_id": sectionID,
	}); err != nil {
		return c, err
	}
	if err := tx.Commit(); err != nil {
		return c, err
	}
	return c, nil
}

// sectionText serializes section content to the flat form changes are
// diffed and stored in: raw text, newline-joined bullets, or JSON for
// structured kinds.
func sectionText(sec domain.Section) string {
	switch sec.Kind {
	case domain.KindText:
		return sec.Text
	case domain.KindBullets:
		return strings.Join(sec.Bullets, "\n")
	default:
		var payload any
		switch {
		case sec.Deliverables != nil:
			payload = sec.Deliverables
		case sec.Milestones != nil:
			payload = sec.Milestones
		case sec.Pricing != nil:
			payload = sec.Pricing
		case sec.Risks != nil:
			payload = sec.Risks
		}
		b, err := json.Marshal(payload)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// AcceptChange applies a pending change's After text to its section and
// marks the change accepted.
func (e Engine) AcceptChange(ctx context.Context, id, actorID string) (domain.DocumentDraft, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.DocumentDraft{}, err
	}
	defer tx.Rollback()

	c, err := e.Repo.GetChangeTx(ctx, tx, id)
	if err != nil {
		return domain.DocumentDraft{}, err
	}
	if c.Status != "pending" {
		return domain.DocumentDraft{}, &ConflictError{Msg: fmt.Sprintf("change %s already %s", id, c.Status)}
	}
	doc, err := e.Repo.GetDocumentTx(ctx, tx, c.Slot)
	if err != nil {
		return doc, err
	}
	sec := doc.Section(c.SectionID)
	if sec == nil {
		return doc, repo.ErrNotFound
	}
	if err := applyText(sec, c.After); err != nil {
		return doc, err
	}
	writeBack(&doc, *sec)

	now := e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.UpsertDocument(ctx, tx, c.Slot, doc, now); err != nil {
		return doc, err
	}
	if err := e.Repo.UpdateChangeStatus(ctx, tx, id, "accepted"); err != nil {
		return doc, err
	}
	if err := e.Events.Append(ctx, tx, "change.accepted", "change", id, actorID, events.EventPayload{
		"slot":       c.Slot,
		"section_id": c.SectionID,
	}); err != nil {
		return doc, err
	}
	if err := tx.Commit(); err != nil {
		return doc, err
	}
	return doc, nil
}

// applyText is the inverse of sectionText.
func applyText(sec *domain.Section, after string) error {
	switch sec.Kind {
	case domain.KindText:
		sec.Text = after
	case domain.KindBullets:
		sec.Bullets = strings.Split(after, "\n")
	default:
		switch {
		case sec.Deliverables != nil:
			return json.Unmarshal([]byte(after), &sec.Deliverables)
		case sec.Milestones != nil:
			return json.Unmarshal([]byte(after), &sec.Milestones)
		case sec.Pricing != nil:
			return json.Unmarshal([]byte(after), &sec.Pricing)
		case sec.Risks != nil:
			return json.Unmarshal([]byte(after), &sec.Risks)
		}
	}
	return nil
}

func (e Engine) RejectChange(ctx context.Context, id, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	c, err := e.Repo.GetChangeTx(ctx, tx, id)
	if err != nil {
		return err
	}
	if c.Status != "pending" {
		return &ConflictError{Msg: fmt.Sprintf("change %s already %s", id, c.Status)}
	}
	if err := e.Repo.UpdateChangeStatus(ctx, tx, id, "rejected"); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "change.rejected", "change", id, actorID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) ListChanges(ctx context.Context, slot, status string) ([]domain.Change, error) {
	if slot != "" {
		if err := validSlot(slot); err != nil {
			return nil, err
		}
	}
	return e.Repo.ListChanges(ctx, slot, status)
}

func (e Engine) LatestEvents(ctx context.Context, limit int, evtType string) ([]domain.Event, error) {
	return e.Repo.LatestEvents(ctx, limit, evtType, "", "")
}
