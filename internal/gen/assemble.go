package gen

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"sowforge/internal/domain"
)

var assumptions = []string{
	"Client provides timely access to systems, data, and stakeholders",
	"Existing technical infrastructure is documented and accessible",
	"Key stakeholders available for weekly sync meetings",
	"Client has internal resources for UAT and acceptance testing",
	"No major scope changes after kickoff; change requests via formal process",
	"Compliance requirements are fully documented upfront",
}

var outOfScope = []string{
	"Third-party vendor management or procurement",
	"Hardware infrastructure or cloud account setup",
	"Ongoing maintenance and support post-launch (available separately)",
	"Training for end-users beyond admin/power users",
	"Data migration from legacy systems",
	"Integration with systems not identified in discovery",
	"Custom reporting beyond specified dashboards",
	"Mobile app development (web-responsive only)",
}

var dependencies = []string{
	"Client provides API documentation and sandbox access by Week 1",
	"Design approval within 5 business days of presentation",
	"Stakeholder availability for weekly checkpoints",
	"UAT environment provisioned by start of testing phase",
}

var fallbackRisk = domain.Risk{
	Description: "Technical complexity may require additional discovery",
	Mitigation:  "Allocate spike weeks for unknowns; maintain contingency buffer",
}

var ownerRotation = []string{"Senior Consultant", "Engineer", "Designer"}

// Generator produces deterministic SOW and Proposal drafts from a discovery
// record. Now and NewID are injectable for tests.
type Generator struct {
	Now   func() time.Time
	NewID func(prefix string) string
}

func NewGenerator() *Generator {
	return &Generator{Now: time.Now, NewID: NewID}
}

// NewID returns "prefix-<unix millis>-<short uuid>".
func NewID(prefix string) string {
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixMilli(), uuid.NewString()[:8])
}

// Deliverables derives one deliverable per scope module with a fixed
// acceptance checklist and a rotating owner role.
func Deliverables(modules []string) []domain.Deliverable {
	out := make([]domain.Deliverable, 0, len(modules))
	for i, mod := range modules {
		lower := strings.ToLower(mod)
		out = append(out, domain.Deliverable{
			ID:          fmt.Sprintf("d%d", i+1),
			Title:       mod,
			Description: fmt.Sprintf("Complete %s with documentation and quality assurance", lower),
			AcceptanceCriteria: []string{
				fmt.Sprintf("All %s requirements met", lower),
				"Documentation provided",
				"Stakeholder sign-off obtained",
			},
			OwnerRole: ownerRotation[i%len(ownerRotation)],
		})
	}
	return out
}

// Generate runs the full deterministic pipeline and returns the SOW plus a
// Proposal clone that differs only in id and title.
func (g *Generator) Generate(d domain.Discovery) (sow, proposal domain.DocumentDraft) {
	timelineWeeks := d.TimelineWeeks()
	budgetRange := ""
	if d.Constraints != nil {
		budgetRange = d.Constraints.BudgetRange
	}

	deliverables := Deliverables(d.Scope.Modules)
	milestones := Schedule(d.Scope.Modules, timelineWeeks)
	pricing := Price(d.PricingModel(), timelineWeeks, budgetRange)

	risks := d.Risks
	if len(risks) == 0 {
		risks = []domain.Risk{fallbackRisk}
	}

	now := g.Now()
	markdown := Render(RenderInput{
		Title:           "Statement of Work: " + d.Project.Title,
		ProjectTitle:    d.Project.Title,
		ClientName:      d.Client.Name,
		Industry:        d.Client.Industry,
		Date:            now.Format("1/2/2006"),
		Objectives:      d.Project.Objectives,
		Modules:         d.Scope.Modules,
		SuccessCriteria: d.Project.SuccessCriteria,
		Deliverables:    deliverables,
		Milestones:      milestones,
		Pricing:         pricing,
		Assumptions:     assumptions,
		OutOfScope:      outOfScope,
		Risks:           risks,
		Dependencies:    dependencies,
	})

	sections := buildSections(d, timelineWeeks, deliverables, milestones, pricing, risks)

	sow = domain.DocumentDraft{
		ID:     g.NewID("doc"),
		Status: domain.StatusDraft,
		Meta: domain.DocumentMeta{
			Title:      "Statement of Work: " + d.Project.Title,
			ClientName: d.Client.Name,
			Industry:   d.Client.Industry,
			CreatedAt:  now.UTC().Format(time.RFC3339),
		},
		Sections:     sections,
		Deliverables: deliverables,
		Milestones:   milestones,
		Pricing:      pricing,
		Assumptions:  assumptions,
		OutOfScope:   outOfScope,
		Risks:        risks,
		Dependencies: dependencies,
		Markdown:     markdown,
	}

	proposal = sow
	proposal.ID = g.NewID("doc")
	proposal.Meta.Title = "Proposal: " + d.Project.Title
	return sow, proposal
}

func buildSections(d domain.Discovery, timelineWeeks int, deliverables []domain.Deliverable, milestones []domain.Milestone, pricing domain.PricingTable, risks []domain.Risk) []domain.Section {
	return []domain.Section{
		{
			ID:    "exec-summary",
			Title: "Executive Summary",
			Kind:  domain.KindText,
			Text:  execSummary(d, timelineWeeks, pricing.Model),
		},
		{ID: "objectives", Title: "Objectives", Kind: domain.KindBullets, Bullets: d.Project.Objectives},
		{ID: "scope", Title: "Scope of Work", Kind: domain.KindBullets, Bullets: d.Scope.Modules},
		{ID: "deliverables", Title: "Deliverables", Kind: domain.KindTable, Deliverables: deliverables},
		{ID: "timeline", Title: "Timeline & Milestones", Kind: domain.KindTimeline, Milestones: milestones},
		{ID: "assumptions", Title: "Assumptions", Kind: domain.KindBullets, Bullets: assumptions},
		{ID: "out-of-scope", Title: "Out of Scope", Kind: domain.KindBullets, Bullets: outOfScope},
		{ID: "pricing", Title: "Pricing", Kind: domain.KindTable, Pricing: &pricing},
		{ID: "risks", Title: "Risks & Mitigations", Kind: domain.KindTable, Risks: risks},
		{ID: "dependencies", Title: "Dependencies", Kind: domain.KindBullets, Bullets: dependencies},
		{ID: "acceptance", Title: "Acceptance Criteria", Kind: domain.KindBullets, Bullets: d.Project.SuccessCriteria},
	}
}

func execSummary(d domain.Discovery, timelineWeeks int, model string) string {
	modelLabel := "time & materials"
	switch model {
	case domain.ModelFixed:
		modelLabel = "fixed-price"
	case domain.ModelHybrid:
		modelLabel = "hybrid"
	}
	return fmt.Sprintf(
		"This Statement of Work outlines our proposed approach to deliver **%s** for %s. Our engagement will span **%d weeks** and focus on %s.\n\n"+
			"We will leverage a %s model to ensure flexibility and value alignment. Our team brings deep expertise in %s and a proven track record of delivering %d+ work streams on time and within budget.\n\n"+
			"**Key outcomes:** %s.",
		d.Project.Title,
		d.Client.Name,
		timelineWeeks,
		strings.Join(firstN(d.Project.Objectives, 2), " and "),
		modelLabel,
		d.Client.Industry,
		len(d.Scope.Modules),
		strings.Join(firstN(d.Project.SuccessCriteria, 2), ", "),
	)
}
