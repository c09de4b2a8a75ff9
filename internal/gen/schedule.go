package gen

import (
	"fmt"

	"sowforge/internal/domain"
)

// Phase titles in delivery order. The first four absorb scope modules, the
// last two are always synthetic.
var phaseTitles = []string{
	"Discovery & Planning",
	"Design & Architecture",
	"Development Phase 1",
	"Development Phase 2",
	"Testing & QA",
	"Launch & Handoff",
}

// Schedule lays scope modules out over at most six sequential milestones.
// The first phase is fixed at two weeks; the rest split the remaining
// timeline evenly, clamped so a milestone never ends before it starts, and
// no milestone runs past timelineWeeks. Each milestone depends on the one
// before it.
func Schedule(modules []string, timelineWeeks int) []domain.Milestone {
	if timelineWeeks < 1 {
		timelineWeeks = 1
	}
	per := timelineWeeks / min(max(len(modules), 1), len(phaseTitles))
	if per < 1 {
		per = 1
	}

	var out []domain.Milestone
	current := 1
	for i, title := range phaseTitles {
		if current > timelineWeeks {
			break
		}
		dur := per
		if i == 0 {
			dur = 2
		}
		end := current + dur - 1
		if end > timelineWeeks {
			end = timelineWeeks
		}
		m := domain.Milestone{
			ID:           fmt.Sprintf("m%d", i+1),
			Title:        title,
			StartWeek:    current,
			EndWeek:      end,
			Dependencies: []string{},
		}
		if i > 0 {
			m.Dependencies = []string{fmt.Sprintf("m%d", i)}
		}
		out = append(out, m)
		current = end + 1
	}
	return out
}
