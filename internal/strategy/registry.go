package strategy

import (
	"fmt"
	"strings"
)

// Registry holds the policies to evaluate each cycle, in evaluation order.
// Order matters: the arbitrage first leg must run before the hedge so a
// freshly opened leg can be hedged within the same cycle.
type Registry struct {
	policies []Policy
}

// NewRegistry builds the full policy set from the shared parameters, then
// filters it to the active names. An empty active list keeps every policy.
// Unknown names are an error so a config typo cannot silently disable a
// strategy.
func NewRegistry(cfg Params, active []string) (*Registry, error) {
	all := []Policy{
		NewPreviousPolicy(cfg),
		NewMomentumPolicy(cfg),
		NewMomentum15Policy(cfg),
		NewPrevious2Policy(cfg),
		NewConsensusPolicy(cfg),
		NewConsensus2Policy(cfg),
		NewArbitragePolicy(cfg),
		NewArbitrageHedgePolicy(cfg),
	}
	if len(active) == 0 {
		return &Registry{policies: all}, nil
	}

	byName := make(map[string]Policy, len(all))
	for _, p := range all {
		byName[p.Name()] = p
	}

	want := make(map[string]bool, len(active))
	for _, name := range active {
		name = strings.ToUpper(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if _, ok := byName[name]; !ok {
			return nil, fmt.Errorf("strategy: unknown policy %q", name)
		}
		want[name] = true
	}

	// Keep canonical evaluation order regardless of config order.
	kept := make([]Policy, 0, len(want))
	for _, p := range all {
		if want[p.Name()] {
			kept = append(kept, p)
		}
	}
	return &Registry{policies: kept}, nil
}

// Policies returns the active policies in evaluation order.
func (r *Registry) Policies() []Policy {
	return r.policies
}

// Names returns the active policy names in evaluation order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.policies))
	for _, p := range r.policies {
		names = append(names, p.Name())
	}
	return names
}
