// Package source fetches raw trend candidates from external providers.
//
// Every source degrades instead of failing: without credentials it returns
// one deterministic simulated candidate.
package source

import (
	"context"

	"github.com/zulandar/trendyard/internal/models"
)

// Source is a candidate provider.
type Source interface {
	// Name is the tool identifier reported in research plans.
	Name() string
	// Configured reports whether real credentials are present.
	Configured() bool
	Fetch(ctx context.Context, query string, scope models.Scope, platforms []string) ([]models.Candidate, error)
}

// Set holds the sources available to a workflow.
type Set struct {
	WebSearch Source
	Community Source
	// Extra sources are selected only when configured.
	Extra []Source
}

// Select returns the sources to use for a run. Web search and community
// discussion are each included when configured; when neither is, both are
// included and run in simulation mode.
func (s Set) Select() []Source {
	var out []Source
	if s.WebSearch != nil && s.WebSearch.Configured() {
		out = append(out, s.WebSearch)
	}
	if s.Community != nil && s.Community.Configured() {
		out = append(out, s.Community)
	}
	if len(out) == 0 {
		for _, src := range []Source{s.WebSearch, s.Community} {
			if src != nil {
				out = append(out, src)
			}
		}
	}
	for _, src := range s.Extra {
		if src != nil && src.Configured() {
			out = append(out, src)
		}
	}
	return out
}

// Lookup returns the source in s with the given name.
func (s Set) Lookup(name string) (Source, bool) {
	all := append([]Source{s.WebSearch, s.Community}, s.Extra...)
	for _, src := range all {
		if src != nil && src.Name() == name {
			return src, true
		}
	}
	return nil, false
}

// Names returns the names of sources.
func Names(sources []Source) []string {
	out := make([]string, len(sources))
	for i, src := range sources {
		out[i] = src.Name()
	}
	return out
}
