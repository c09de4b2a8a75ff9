package gen

import (
	"regexp"
	"strconv"
	"strings"

	"sowforge/internal/domain"
)

// Standard role card. Estimated hours scale linearly with the timeline.
var roleRates = []domain.RoleRate{
	{Role: "Senior Consultant", Rate: 250, Currency: "USD"},
	{Role: "Engineer", Rate: 180, Currency: "USD"},
	{Role: "Designer", Rate: 160, Currency: "USD"},
	{Role: "QA Specialist", Rate: 140, Currency: "USD"},
}

var hoursPerWeek = map[string]int{
	"Senior Consultant": 20,
	"Engineer":          40,
	"Designer":          15,
	"QA Specialist":     10,
}

var fixedBreakdown = []domain.BreakdownItem{
	{Item: "Discovery & Planning", Amount: 15000},
	{Item: "Design & UX", Amount: 25000},
	{Item: "Development", Amount: 80000},
	{Item: "Testing & QA", Amount: 20000},
	{Item: "Launch & Training", Amount: 10000},
}

const (
	notesTM     = "Time & Materials billing with monthly invoicing. Rates locked for duration of engagement."
	notesFixed  = "Fixed price with milestone-based payments. 30% upfront, 40% at mid-point, 30% at completion."
	notesHybrid = "Hybrid model: Fixed price for design phase, T&M for development with NTE cap."
)

const defaultFixedTotal = 150000

var priceToken = regexp.MustCompile(`[\d,]+`)

// ParseFixedPrice pulls the first numeric token out of a budget range string
// such as "$150,000 - $220,000". Returns the default total when nothing
// parses.
func ParseFixedPrice(budgetRange string) int {
	tok := priceToken.FindString(budgetRange)
	if tok == "" {
		return defaultFixedTotal
	}
	n, err := strconv.Atoi(strings.ReplaceAll(tok, ",", ""))
	if err != nil || n == 0 {
		return defaultFixedTotal
	}
	return n
}

// Price builds the pricing table for the given model preference. Both the
// T&M and fixed blocks are always populated; Model only flags which one the
// consumer should foreground. T&M hours scale with the timeline, the fixed
// breakdown is a template and does not scale with the parsed total.
func Price(model string, timelineWeeks int, budgetRange string) domain.PricingTable {
	hours := make(map[string]int, len(hoursPerWeek))
	for role, perWeek := range hoursPerWeek {
		hours[role] = timelineWeeks * perWeek
	}
	p := domain.PricingTable{
		Model: model,
		TM:    &domain.TMPricing{Roles: roleRates, EstHoursByRole: hours},
		Fixed: &domain.FixedPricing{
			Total:     ParseFixedPrice(budgetRange),
			Breakdown: fixedBreakdown,
		},
	}
	switch model {
	case domain.ModelFixed:
		p.Notes = notesFixed
	case domain.ModelHybrid:
		p.Notes = notesHybrid
	default:
		p.Model = domain.ModelTimeAndMaterials
		p.Notes = notesTM
	}
	return p
}

// TotalCost computes the headline engagement cost: the fixed total for the
// Fixed model, otherwise the sum of estimated hours times rates.
func TotalCost(p domain.PricingTable) int {
	if p.Model == domain.ModelFixed && p.Fixed != nil {
		return p.Fixed.Total
	}
	if p.TM == nil {
		return 0
	}
	total := 0
	for _, r := range p.TM.Roles {
		total += r.Rate * p.TM.EstHoursByRole[r.Role]
	}
	return total
}
