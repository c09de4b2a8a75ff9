package transcript_test

import (
	"strings"
	"testing"

	"sowforge/internal/domain"
	"sowforge/internal/transcript"
)

func TestExtractSampleTranscript(t *testing.T) {
	d := transcript.Extract(transcript.SampleTranscript)

	if d.Client.Name != "TechFlow Solutions" {
		t.Fatalf("client name = %q", d.Client.Name)
	}
	if d.Client.Industry != "SaaS" {
		t.Fatalf("industry = %q", d.Client.Industry)
	}
	if d.PricingPreference != domain.ModelHybrid {
		t.Fatalf("pricing preference = %q", d.PricingPreference)
	}
	if len(d.Scope.Modules) != 7 {
		t.Fatalf("modules = %d, want 7", len(d.Scope.Modules))
	}
	if d.Constraints == nil || d.Constraints.TimelineWeeks != 12 {
		t.Fatalf("constraints = %+v", d.Constraints)
	}
	if d.Constraints.BudgetRange != "$150,000 - $220,000" {
		t.Fatalf("budget = %q", d.Constraints.BudgetRange)
	}
	if len(d.Risks) != 2 {
		t.Fatalf("risks = %d, want 2", len(d.Risks))
	}
	if got := d.Constraints.Compliance; len(got) != 2 || got[0] != "SOC 2 Type II" || got[1] != "GDPR" {
		t.Fatalf("compliance = %v", got)
	}
}

func TestExtractGenericDefaults(t *testing.T) {
	d := transcript.Extract("short note with nothing useful in it")

	if d.Client.Name != "Client Company" {
		t.Fatalf("client name = %q", d.Client.Name)
	}
	if d.Client.Industry != "Technology" {
		t.Fatalf("industry = %q", d.Client.Industry)
	}
	if d.Project.Title != "Digital Transformation Initiative" {
		t.Fatalf("title = %q", d.Project.Title)
	}
	if len(d.Project.Objectives) != 3 {
		t.Fatalf("objectives = %d, want 3 defaults", len(d.Project.Objectives))
	}
	if len(d.Project.SuccessCriteria) != 3 {
		t.Fatalf("success criteria = %d, want 3 defaults", len(d.Project.SuccessCriteria))
	}
	if len(d.Scope.Modules) != 5 {
		t.Fatalf("modules = %d, want 5 defaults", len(d.Scope.Modules))
	}
	if d.Constraints.TimelineWeeks != 12 {
		t.Fatalf("timeline = %d, want 12 default", d.Constraints.TimelineWeeks)
	}
	if d.Constraints.BudgetRange != "$100,000 - $200,000" {
		t.Fatalf("budget = %q", d.Constraints.BudgetRange)
	}
	if d.PricingPreference != domain.ModelTimeAndMaterials {
		t.Fatalf("pricing = %q", d.PricingPreference)
	}
	if d.Scope.CustomNotes != "Extracted from discovery call transcript" {
		t.Fatalf("custom notes = %q", d.Scope.CustomNotes)
	}
}

func TestExtractTimelineMonthsToWeeks(t *testing.T) {
	d := transcript.Extract("We expect the engagement to run about 3 months start to finish.")
	if d.Constraints.TimelineWeeks != 12 {
		t.Fatalf("timeline = %d, want 12 (3 months x 4)", d.Constraints.TimelineWeeks)
	}
}

func TestExtractTimelineWeeks(t *testing.T) {
	d := transcript.Extract("Timeline is probably 8 to 10 weeks for the whole thing.")
	if d.Constraints.TimelineWeeks != 8 {
		t.Fatalf("timeline = %d, want 8", d.Constraints.TimelineWeeks)
	}
}

func TestExtractScopeKeywords(t *testing.T) {
	d := transcript.Extract("We need design work, backend changes, and testing before deployment.")
	want := []string{"UX/UI Design", "Backend Development", "QA & Testing", "Deployment"}
	if len(d.Scope.Modules) != len(want) {
		t.Fatalf("modules = %v", d.Scope.Modules)
	}
	for i, m := range want {
		if d.Scope.Modules[i] != m {
			t.Fatalf("module %d = %q, want %q", i, d.Scope.Modules[i], m)
		}
	}
}

func TestExtractPricingKeywords(t *testing.T) {
	if d := transcript.Extract("We want a fixed price arrangement."); d.PricingPreference != domain.ModelFixed {
		t.Fatalf("fixed price text gave %q", d.PricingPreference)
	}
	if d := transcript.Extract("A hybrid structure with a fixed fee design phase."); d.PricingPreference != domain.ModelHybrid {
		t.Fatalf("hybrid text gave %q", d.PricingPreference)
	}
}

func TestExtractComplianceVocab(t *testing.T) {
	d := transcript.Extract("We must keep HIPAA and PCI DSS plus SOC2 coverage.")
	want := []string{"SOC 2", "HIPAA", "PCI DSS"}
	if len(d.Constraints.Compliance) != len(want) {
		t.Fatalf("compliance = %v", d.Constraints.Compliance)
	}
	for i, c := range want {
		if d.Constraints.Compliance[i] != c {
			t.Fatalf("compliance %d = %q, want %q", i, d.Constraints.Compliance[i], c)
		}
	}
}

func TestExtractContextTruncation(t *testing.T) {
	long := strings.Repeat("All work and no play makes for a dull proposal. ", 20)
	d := transcript.Extract(long)
	if !strings.HasSuffix(d.Project.Context, "...") {
		t.Fatalf("long context not truncated: %q", d.Project.Context[len(d.Project.Context)-10:])
	}
	if len(d.Project.Context) > 404 {
		t.Fatalf("context too long: %d", len(d.Project.Context))
	}
}
