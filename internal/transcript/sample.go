package transcript

import "sowforge/internal/domain"

// SampleTranscript is the canonical demo transcript. Extract recognizes it
// and returns the hand-curated discovery below instead of the generic path.
const SampleTranscript = `Hi, thanks for taking this call. So we're TechFlow Solutions, a SaaS company in the North America market.

Our main contact is Sarah Chen, she's VP of Product. We're looking at a major initiative around our user onboarding transformation.

The context is that our current onboarding takes about 14 days for users to reach first value, and our activation rate is only at 32%. We're spending more on marketing but retention is staying flat. We really need to modernize the whole experience and get better analytics in place.

Our main goals are: reduce time-to-first-value from 14 days to under 48 hours, increase activation rate from 32% to 65% or higher, build a solid analytics foundation for funnel optimization, modernize the UI/UX to match our recent brand refresh, and enable self-service for about 80% of our user personas.

In terms of success metrics, we want to see activation rate at 65% or higher within 3 months post-launch, time-to-first-value at 48 hours or less for the 80th percentile, user satisfaction score of 4.5 out of 5 on our onboarding survey, and we want to cut support tickets for onboarding by 50%.

The scope would include product discovery and user research - probably 3 sessions and persona validation. Then UX/UI design with flows, wireframes, and high-fidelity mockups. Frontend development with React components and state management. Backend integration for API endpoints and authentication hooks. Analytics implementation with event tracking and dashboards. QA and user acceptance testing. And training and documentation for both admins and our help center.

Our existing stack is React, Node.js, and PostgreSQL. We use Auth0 for authentication and send analytics to Segment which goes to Mixpanel. We have a design system partially in place but it needs extension.

Budget-wise we're looking at somewhere in the $150,000 to $220,000 range. Timeline is probably 10 to 12 weeks. We need to maintain SOC 2 Type II compliance and be GDPR compliant.

One risk we're concerned about is the integration complexity with our legacy auth service - we don't fully know the API surface and rate limits. Our mitigation would be to do a 1-week technical spike with a sandbox environment, and maybe build a parallel auth flow if needed.

For pricing, we're thinking a hybrid model makes sense - maybe fixed price for the design phase and then time and materials for development with a not-to-exceed cap.

Does this give you enough to work with?`

func sampleDiscovery() domain.Discovery {
	return domain.Discovery{
		Client: domain.Client{
			Name:     "TechFlow Solutions",
			Industry: "SaaS",
			Region:   "North America",
			Contact:  "Sarah Chen, VP Product",
		},
		Project: domain.Project{
			Title:   "User Onboarding Transformation",
			Context: "TechFlow's current onboarding process takes 14+ days for users to reach first value, with an activation rate of only 32%. Marketing spend is increasing but retention remains flat. The company needs to modernize the entire onboarding experience, implement comprehensive analytics, and reduce time-to-value to under 48 hours while enabling self-service for the majority of users.",
			Objectives: []string{
				"Reduce time-to-first-value from 14 days to under 48 hours",
				"Increase activation rate from 32% to 65% or higher",
				"Build analytics foundation for onboarding funnel optimization",
				"Modernize UI/UX to match recent brand refresh",
				"Enable self-service for 80% of user personas",
			},
			SuccessCriteria: []string{
				"Activation rate ≥65% within 3 months post-launch",
				"Time-to-first-value ≤48 hours for 80th percentile",
				"User satisfaction score ≥4.5/5 on onboarding survey",
				"Support ticket volume for onboarding reduced by 50%",
				"All key onboarding events tracked in analytics platform",
			},
		},
		Scope: domain.Scope{
			Modules: []string{
				"Product Discovery & User Research (3 sessions, persona validation)",
				"UX/UI Design (flows, wireframes, high-fidelity mockups)",
				"Frontend Development (React components, state management)",
				"Backend Integration (API endpoints, authentication hooks)",
				"Analytics Implementation (event tracking, dashboards)",
				"QA & User Acceptance Testing",
				"Training & Documentation (admin guide, user help center)",
			},
			CustomNotes: "Existing stack: React, Node.js, PostgreSQL. Auth via Auth0. Analytics to Segment + Mixpanel. Design system partially in place (needs extension).",
		},
		Constraints: &domain.Constraints{
			TimelineWeeks: 12,
			BudgetRange:   "$150,000 - $220,000",
			Compliance:    []string{"SOC 2 Type II", "GDPR"},
		},
		Risks: []domain.Risk{
			{
				Description: "Integration complexity with legacy auth service—unknown API surface and rate limits",
				Mitigation:  "Conduct 1-week technical spike with sandbox environment; parallel auth flow if needed",
			},
			{
				Description: "Design system gaps may require additional component library work",
				Mitigation:  "Audit design system in Week 1; allocate contingency buffer for net-new components",
			},
		},
		PricingPreference: domain.ModelHybrid,
		TimelineWindow:    &domain.TimelineWindow{},
		Tone:              "consultative",
	}
}
