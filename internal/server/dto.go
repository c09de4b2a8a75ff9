package server

import (
	"sowforge/internal/domain"
)

// Request payloads

type GenerateRequest struct {
	Discovery domain.Discovery `json:"discovery"`
}

type ParseTranscriptRequest struct {
	Text   string `json:"text,omitempty"`
	Sample bool   `json:"sample,omitempty"`
}

type SetStatusRequest struct {
	Status string `json:"status" enum:"Draft,InReview,Approved"`
}

type UpdateSectionRequest struct {
	Text         *string              `json:"text,omitempty"`
	Bullets      []string             `json:"bullets,omitempty"`
	Deliverables []domain.Deliverable `json:"deliverables,omitempty"`
	Milestones   []domain.Milestone   `json:"milestones,omitempty"`
	Pricing      *domain.PricingTable `json:"pricing,omitempty"`
	Risks        []domain.Risk        `json:"risks,omitempty"`
}

type SaveVersionRequest struct {
	Description string `json:"description,omitempty"`
}

type AddCommentRequest struct {
	SectionID string `json:"section_id"`
	Content   string `json:"content"`
	Author    string `json:"author,omitempty"`
}

type ProposeChangeRequest struct {
	SectionID string `json:"section_id"`
	After     string `json:"after"`
	Author    string `json:"author,omitempty"`
}

// Response payloads

type GenerateResponse struct {
	SOW      domain.DocumentDraft `json:"sow"`
	Proposal domain.DocumentDraft `json:"proposal"`
	Origin   string               `json:"origin" enum:"backend,deterministic"`
}

type ExportResponse struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Content     string `json:"content"`
}

type DiffResponse struct {
	ChangeID  string   `json:"change_id"`
	SectionID string   `json:"section_id"`
	Added     []string `json:"added"`
	Removed   []string `json:"removed"`
	Unchanged []string `json:"unchanged"`
}
