// Package ai generates document drafts, preferring a remote model backend
// and falling back to the deterministic generator on any failure.
package ai

import (
	"context"

	"sowforge/internal/domain"
	"sowforge/internal/gen"
)

// Backend produces a SOW and Proposal pair from a discovery record.
type Backend interface {
	Generate(ctx context.Context, d domain.Discovery) (sow, proposal domain.DocumentDraft, err error)
}

// Origins reported by the facade.
const (
	OriginBackend       = "backend"
	OriginDeterministic = "deterministic"
)

type Result struct {
	SOW      domain.DocumentDraft
	Proposal domain.DocumentDraft
	// Origin records which path produced the drafts; a backend failure is
	// absorbed here, never surfaced to the caller.
	Origin      string
	FallbackErr error
}

// Facade tries Backend once, then falls back to the deterministic
// generator. No retries, no backoff.
type Facade struct {
	Backend   Backend
	Generator *gen.Generator
}

func NewFacade(backend Backend, g *gen.Generator) *Facade {
	if g == nil {
		g = gen.NewGenerator()
	}
	return &Facade{Backend: backend, Generator: g}
}

func (f *Facade) Generate(ctx context.Context, d domain.Discovery) Result {
	if f.Backend != nil {
		sow, proposal, err := f.Backend.Generate(ctx, d)
		if err == nil {
			return Result{SOW: sow, Proposal: proposal, Origin: OriginBackend}
		}
		sow, proposal = f.Generator.Generate(d)
		return Result{SOW: sow, Proposal: proposal, Origin: OriginDeterministic, FallbackErr: err}
	}
	sow, proposal := f.Generator.Generate(d)
	return Result{SOW: sow, Proposal: proposal, Origin: OriginDeterministic}
}
