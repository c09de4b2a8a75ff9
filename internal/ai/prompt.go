package ai

import (
	"fmt"
	"strings"

	"sowforge/internal/domain"
)

// systemPrompt builds the instruction block sent to the chat backend. The
// response contract is strict JSON matching the DocumentDraft shape.
func systemPrompt(d domain.Discovery) string {
	budget := "TBD"
	compliance := "None specified"
	if d.Constraints != nil {
		if d.Constraints.BudgetRange != "" {
			budget = d.Constraints.BudgetRange
		}
		if len(d.Constraints.Compliance) > 0 {
			compliance = strings.Join(d.Constraints.Compliance, ", ")
		}
	}
	tone := d.Tone
	if tone == "" {
		tone = "consultative"
	}

	var b strings.Builder
	b.WriteString("You are an expert consultant generating a Statement of Work (SOW) and Proposal.\n\n")
	b.WriteString("CRITICAL: Your response MUST be ONLY valid JSON matching the exact schema below. Do NOT include any surrounding prose, explanations, or markdown formatting. Just pure JSON.\n\n")
	fmt.Fprintf(&b, "Client: %s (%s)\n", d.Client.Name, d.Client.Industry)
	fmt.Fprintf(&b, "Project: %s\n", d.Project.Title)
	fmt.Fprintf(&b, "Context: %s\n", d.Project.Context)
	fmt.Fprintf(&b, "Objectives: %s\n", strings.Join(d.Project.Objectives, "; "))
	fmt.Fprintf(&b, "Success Criteria: %s\n", strings.Join(d.Project.SuccessCriteria, "; "))
	fmt.Fprintf(&b, "Scope Modules: %s\n", strings.Join(d.Scope.Modules, "; "))
	fmt.Fprintf(&b, "Timeline: %d weeks\n", d.TimelineWeeks())
	fmt.Fprintf(&b, "Budget Range: %s\n", budget)
	fmt.Fprintf(&b, "Compliance: %s\n", compliance)
	fmt.Fprintf(&b, "Pricing Preference: %s\n", d.PricingModel())
	fmt.Fprintf(&b, "Tone: %s\n\n", tone)
	b.WriteString(`JSON schema (you must match this exactly):

{
  "meta": {"title": "Statement of Work: [Project Title]", "client_name": "[Client Name]", "industry": "[Industry]", "created_at": "[RFC 3339 date]"},
  "sections": [{"id": "exec-summary", "title": "Executive Summary", "kind": "text", "text": "[2-3 paragraph markdown summary]"}, ...],
  "deliverables": [{"id": "d1", "title": "...", "description": "...", "acceptance_criteria": ["..."], "owner_role": "..."}],
  "milestones": [{"id": "m1", "title": "...", "start_week": 1, "end_week": 3, "dependencies": []}],
  "pricing": {"model": "TimeAndMaterials|Fixed|Hybrid", "tm": {"roles": [...], "est_hours_by_role": {...}}, "fixed": {"total": 0, "breakdown": [...]}, "notes": "..."},
  "assumptions": ["..."],
  "out_of_scope": ["..."],
  "risks": [{"description": "...", "mitigation": "..."}],
  "dependencies": ["..."],
  "markdown": "[full document rendered as markdown]"
}
`)
	return b.String()
}
