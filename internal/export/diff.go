package export

import "strings"

type Diff struct {
	Added     []string `json:"added"`
	Removed   []string `json:"removed"`
	Unchanged []string `json:"unchanged"`
}

// Lines computes a line-level diff with a one-line lookahead heuristic.
// Not an LCS; good enough for section-sized edits.
func Lines(before, after string) Diff {
	beforeLines := strings.Split(before, "\n")
	afterLines := strings.Split(after, "\n")

	var d Diff
	i, j := 0, 0
	for i < len(beforeLines) || j < len(afterLines) {
		switch {
		case i >= len(beforeLines):
			d.Added = append(d.Added, afterLines[j])
			j++
		case j >= len(afterLines):
			d.Removed = append(d.Removed, beforeLines[i])
			i++
		case beforeLines[i] == afterLines[j]:
			d.Unchanged = append(d.Unchanged, beforeLines[i])
			i++
			j++
		case i+1 < len(beforeLines) && beforeLines[i+1] == afterLines[j]:
			d.Removed = append(d.Removed, beforeLines[i])
			i++
		case j+1 < len(afterLines) && beforeLines[i] == afterLines[j+1]:
			d.Added = append(d.Added, afterLines[j])
			j++
		default:
			d.Removed = append(d.Removed, beforeLines[i])
			d.Added = append(d.Added, afterLines[j])
			i++
			j++
		}
	}
	return d
}

// Format renders removed lines first, then added, then unchanged.
func (d Diff) Format() string {
	lines := make([]string, 0, len(d.Removed)+len(d.Added)+len(d.Unchanged))
	for _, l := range d.Removed {
		lines = append(lines, "- "+l)
	}
	for _, l := range d.Added {
		lines = append(lines, "+ "+l)
	}
	for _, l := range d.Unchanged {
		lines = append(lines, "  "+l)
	}
	return strings.Join(lines, "\n")
}
