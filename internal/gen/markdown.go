package gen

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"sowforge/internal/domain"
)

// RenderInput carries everything the markdown renderer needs. The assembler
// fills it from a generation run; RenderDraft rebuilds it from a stored
// draft.
type RenderInput struct {
	Title           string
	ProjectTitle    string
	ClientName      string
	Industry        string
	Date            string
	Objectives      []string
	Modules         []string
	SuccessCriteria []string
	Deliverables    []domain.Deliverable
	Milestones      []domain.Milestone
	Pricing         domain.PricingTable
	Assumptions     []string
	OutOfScope      []string
	Risks           []domain.Risk
	Dependencies    []string
}

// Render serializes the assembled fields to markdown in the fixed section
// order. Header lines end with two trailing spaces for hard line breaks.
func Render(in RenderInput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", in.Title)
	fmt.Fprintf(&b, "**Client:** %s  \n", in.ClientName)
	fmt.Fprintf(&b, "**Industry:** %s  \n", in.Industry)
	fmt.Fprintf(&b, "**Date:** %s  \n\n", in.Date)

	b.WriteString("## Executive Summary\n\n")
	fmt.Fprintf(&b, "This engagement will deliver **%s** with a focus on %s.  \n\n",
		in.ProjectTitle, strings.Join(firstN(in.Objectives, 2), " and "))

	b.WriteString("## Objectives\n\n")
	writeBullets(&b, in.Objectives)

	b.WriteString("## Scope of Work\n\n")
	writeBullets(&b, in.Modules)

	b.WriteString("## Deliverables\n\n")
	b.WriteString("| Title | Description | Owner |\n")
	b.WriteString("|-------|-------------|-------|\n")
	for _, d := range in.Deliverables {
		owner := d.OwnerRole
		if owner == "" {
			owner = "TBD"
		}
		fmt.Fprintf(&b, "| %s | %s | %s |\n", d.Title, d.Description, owner)
	}
	b.WriteString("\n")

	b.WriteString("## Timeline & Milestones\n\n")
	for _, m := range in.Milestones {
		fmt.Fprintf(&b, "- **%s** (Weeks %d-%d)\n", m.Title, m.StartWeek, m.EndWeek)
	}
	b.WriteString("\n")

	b.WriteString("### Gantt Chart (ASCII)\n\n")
	b.WriteString("```\n")
	b.WriteString(gantt(in.Milestones))
	b.WriteString("```\n\n")

	b.WriteString("## Pricing\n\n")
	fmt.Fprintf(&b, "**Model:** %s  \n\n", in.Pricing.Model)

	if tm := in.Pricing.TM; tm != nil {
		b.WriteString("### Time & Materials Rates\n\n")
		b.WriteString("| Role | Rate | Est. Hours |\n")
		b.WriteString("|------|------|------------|\n")
		for _, r := range tm.Roles {
			fmt.Fprintf(&b, "| %s | $%d/%s | %d |\n", r.Role, r.Rate, r.Currency, tm.EstHoursByRole[r.Role])
		}
		b.WriteString("\n")
	}

	if fx := in.Pricing.Fixed; fx != nil {
		fmt.Fprintf(&b, "### Fixed Price: $%s\n\n", humanize.Comma(int64(fx.Total)))
		if len(fx.Breakdown) > 0 {
			b.WriteString("| Item | Amount |\n")
			b.WriteString("|------|--------|\n")
			for _, item := range fx.Breakdown {
				fmt.Fprintf(&b, "| %s | $%s |\n", item.Item, humanize.Comma(int64(item.Amount)))
			}
			b.WriteString("\n")
		}
	}

	fmt.Fprintf(&b, "**Notes:** %s\n\n", in.Pricing.Notes)

	b.WriteString("## Assumptions\n\n")
	writeBullets(&b, in.Assumptions)

	b.WriteString("## Out of Scope\n\n")
	writeBullets(&b, in.OutOfScope)

	b.WriteString("## Risks & Mitigations\n\n")
	b.WriteString("| Risk | Mitigation |\n")
	b.WriteString("|------|------------|\n")
	for _, r := range in.Risks {
		fmt.Fprintf(&b, "| %s | %s |\n", r.Description, r.Mitigation)
	}
	b.WriteString("\n")

	b.WriteString("## Dependencies\n\n")
	writeBullets(&b, in.Dependencies)

	b.WriteString("## Acceptance Criteria\n\n")
	writeBullets(&b, in.SuccessCriteria)

	return b.String()
}

// gantt renders the fixed-width ASCII chart. Week columns are 4 characters
// wide; milestone titles are padded or truncated to exactly 7 characters.
func gantt(milestones []domain.Milestone) string {
	maxWeek := 0
	for _, m := range milestones {
		if m.EndWeek > maxWeek {
			maxWeek = m.EndWeek
		}
	}

	var b strings.Builder
	b.WriteString("Week:  ")
	for w := 1; w <= maxWeek; w++ {
		fmt.Fprintf(&b, "%3d ", w)
	}
	b.WriteString("\n")
	b.WriteString("       " + strings.Repeat("----", maxWeek) + "\n")

	for _, m := range milestones {
		title := m.Title
		if len(title) < 7 {
			title += strings.Repeat(" ", 7-len(title))
		}
		b.WriteString(title[:7] + " ")
		for w := 1; w <= maxWeek; w++ {
			if w >= m.StartWeek && w <= m.EndWeek {
				b.WriteString("███ ")
			} else {
				b.WriteString("    ")
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

// RenderDraft re-renders markdown from a stored draft, pulling the bullet
// sections back out of the outline.
func RenderDraft(doc domain.DocumentDraft) string {
	project := doc.Meta.Title
	if _, rest, ok := strings.Cut(project, ": "); ok {
		project = rest
	}
	in := RenderInput{
		Title:        doc.Meta.Title,
		ProjectTitle: project,
		ClientName:   doc.Meta.ClientName,
		Industry:     doc.Meta.Industry,
		Date:         doc.Meta.CreatedAt,
		Deliverables: doc.Deliverables,
		Milestones:   doc.Milestones,
		Pricing:      doc.Pricing,
		Assumptions:  doc.Assumptions,
		OutOfScope:   doc.OutOfScope,
		Risks:        doc.Risks,
		Dependencies: doc.Dependencies,
	}
	for _, s := range doc.Sections {
		switch s.ID {
		case "objectives":
			in.Objectives = s.Bullets
		case "scope":
			in.Modules = s.Bullets
		case "acceptance":
			in.SuccessCriteria = s.Bullets
		}
	}
	return Render(in)
}

func writeBullets(b *strings.Builder, items []string) {
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", it)
	}
	b.WriteString("\n")
}

func firstN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
