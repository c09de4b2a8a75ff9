package domain

const (
	StatusDraft    = "Draft"
	StatusInReview = "InReview"
	StatusApproved = "Approved"
)

const (
	ModelTimeAndMaterials = "TimeAndMaterials"
	ModelFixed            = "Fixed"
	ModelHybrid           = "Hybrid"
)

const (
	SlotSOW      = "sow"
	SlotProposal = "proposal"
)

type Brand struct {
	Name           string `json:"name"`
	LogoURL        string `json:"logo_url,omitempty"`
	PrimaryColor   string `json:"primary_color,omitempty"`
	SecondaryColor string `json:"secondary_color,omitempty"`
	Tone           string `json:"tone,omitempty" enum:"formal,consultative,friendly"`
}

type Client struct {
	Name     string `json:"name"`
	Industry string `json:"industry"`
	Region   string `json:"region,omitempty"`
	Contact  string `json:"contact,omitempty"`
}

type Project struct {
	Title           string   `json:"title"`
	Context         string   `json:"context"`
	Objectives      []string `json:"objectives"`
	SuccessCriteria []string `json:"success_criteria"`
}

type Scope struct {
	Modules     []string `json:"modules"`
	CustomNotes string   `json:"custom_notes,omitempty"`
}

type Constraints struct {
	TimelineWeeks int      `json:"timeline_weeks,omitempty"`
	BudgetRange   string   `json:"budget_range,omitempty"`
	Compliance    []string `json:"compliance,omitempty"`
}

type Risk struct {
	Description string `json:"description"`
	Mitigation  string `json:"mitigation"`
}

type TimelineWindow struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

type Discovery struct {
	Client            Client          `json:"client"`
	Project           Project         `json:"project"`
	Scope             Scope           `json:"scope"`
	Constraints       *Constraints    `json:"constraints,omitempty"`
	Risks             []Risk          `json:"risks,omitempty"`
	PricingPreference string          `json:"pricing_preference,omitempty" enum:"TimeAndMaterials,Fixed,Hybrid"`
	TimelineWindow    *TimelineWindow `json:"timeline_window,omitempty"`
	Tone              string          `json:"tone,omitempty" enum:"formal,consultative,friendly"`
}

// TimelineWeeks returns the constrained timeline or the 12-week default.
func (d Discovery) TimelineWeeks() int {
	if d.Constraints != nil && d.Constraints.TimelineWeeks > 0 {
		return d.Constraints.TimelineWeeks
	}
	return 12
}

func (d Discovery) PricingModel() string {
	if d.PricingPreference != "" {
		return d.PricingPreference
	}
	return ModelTimeAndMaterials
}

type Deliverable struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	AcceptanceCriteria []string `json:"acceptance_criteria"`
	OwnerRole          string   `json:"owner_role,omitempty"`
}

type Milestone struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	StartWeek    int      `json:"start_week"`
	EndWeek      int      `json:"end_week"`
	Dependencies []string `json:"dependencies"`
}

type RoleRate struct {
	Role     string `json:"role"`
	Rate     int    `json:"rate"`
	Currency string `json:"currency"`
}

type TMPricing struct {
	Roles          []RoleRate     `json:"roles"`
	EstHoursByRole map[string]int `json:"est_hours_by_role"`
}

type BreakdownItem struct {
	Item   string `json:"item"`
	Amount int    `json:"amount"`
}

type FixedPricing struct {
	Total     int             `json:"total"`
	Breakdown []BreakdownItem `json:"breakdown,omitempty"`
}

type PricingTable struct {
	Model string        `json:"model" enum:"TimeAndMaterials,Fixed,Hybrid"`
	TM    *TMPricing    `json:"tm,omitempty"`
	Fixed *FixedPricing `json:"fixed,omitempty"`
	Notes string        `json:"notes,omitempty"`
}

const (
	KindText     = "text"
	KindBullets  = "bullets"
	KindTable    = "table"
	KindTimeline = "timeline"
)

// Section is one editable block of a document outline. The payload is a
// variant keyed by Kind: exactly one of the content fields is set.
type Section struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Kind  string `json:"kind" enum:"text,bullets,table,timeline"`

	Text         string        `json:"text,omitempty"`
	Bullets      []string      `json:"bullets,omitempty"`
	Deliverables []Deliverable `json:"deliverables,omitempty"`
	Milestones   []Milestone   `json:"milestones,omitempty"`
	Pricing      *PricingTable `json:"pricing,omitempty"`
	Risks        []Risk        `json:"risks,omitempty"`
}

type DocumentMeta struct {
	Title      string `json:"title"`
	ClientName string `json:"client_name"`
	Industry   string `json:"industry,omitempty"`
	CreatedAt  string `json:"created_at" format:"date-time"`
}

type DocumentDraft struct {
	ID           string        `json:"id"`
	Status       string        `json:"status" enum:"Draft,InReview,Approved"`
	Brand        *Brand        `json:"brand,omitempty"`
	Meta         DocumentMeta  `json:"meta"`
	Sections     []Section     `json:"sections"`
	Deliverables []Deliverable `json:"deliverables"`
	Milestones   []Milestone   `json:"milestones"`
	Pricing      PricingTable  `json:"pricing"`
	Assumptions  []string      `json:"assumptions"`
	OutOfScope   []string      `json:"out_of_scope"`
	Risks        []Risk        `json:"risks"`
	Dependencies []string      `json:"dependencies"`
	Markdown     string        `json:"markdown"`
}

// Section returns a pointer into Sections by id, or nil.
func (d *DocumentDraft) Section(id string) *Section {
	for i := range d.Sections {
		if d.Sections[i].ID == id {
			return &d.Sections[i]
		}
	}
	return nil
}

type Change struct {
	ID        string `json:"id"`
	Slot      string `json:"slot" enum:"sow,proposal"`
	SectionID string `json:"section_id"`
	Before    string `json:"before"`
	After     string `json:"after"`
	Author    string `json:"author"`
	Timestamp string `json:"timestamp" format:"date-time"`
	Status    string `json:"status" enum:"pending,accepted,rejected"`
}

type Reply struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Author    string `json:"author"`
	Timestamp string `json:"timestamp" format:"date-time"`
}

type Comment struct {
	ID        string  `json:"id"`
	SectionID string  `json:"section_id"`
	Content   string  `json:"content"`
	Author    string  `json:"author"`
	Timestamp string  `json:"timestamp" format:"date-time"`
	Resolved  bool    `json:"resolved"`
	Replies   []Reply `json:"replies"`
}

type Version struct {
	ID          string        `json:"id"`
	Timestamp   string        `json:"timestamp" format:"date-time"`
	Description string        `json:"description"`
	Draft       DocumentDraft `json:"draft"`
}

type Workspace struct {
	SOW      *DocumentDraft `json:"sow,omitempty"`
	Proposal *DocumentDraft `json:"proposal,omitempty"`
	Versions []Version      `json:"versions"`
	Changes  []Change       `json:"changes"`
	Comments []Comment      `json:"comments"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
