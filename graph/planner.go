package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"pkt.systems/sapadt/adterr"
	"pkt.systems/sapadt/bw"
)

// Planner defaults.
const (
	DefaultInitialMaxResults = 200
	DefaultMaxResultsCap     = 1600
	DefaultMaxSteps          = 4
	DefaultValidationCap     = 50
)

// Evidence labels naming which search produced a candidate.
const (
	EvidenceTyped    = "bwSearch.depends_on_typed"
	EvidenceNameOnly = "bwSearch.depends_on_name"
)

// PlannerOptions configure PlanUpstream.
type PlannerOptions struct {
	InfoProvider      string
	ProviderType      string
	InitialMaxResults int
	MaxResultsCap     int
	MaxSteps          int
	ValidationCap     int
}

// Candidate is a DTP that may load the InfoProvider.
type Candidate struct {
	Name     string `json:"name"`
	Type     string `json:"type,omitempty"`
	Version  string `json:"version,omitempty"`
	Status   string `json:"status,omitempty"`
	URI      string `json:"uri,omitempty"`
	Evidence string `json:"evidence"`
}

// Plan is the outcome of PlanUpstream.
type Plan struct {
	InfoProvider string      `json:"info_provider"`
	ProviderType string      `json:"info_provider_type,omitempty"`
	Candidates   []Candidate `json:"candidates"`
	Ambiguous    bool        `json:"ambiguous"`
	SelectedDTP  string      `json:"selected_dtp,omitempty"`
	Complete     bool        `json:"complete"`
	Steps        int         `json:"steps"`
	Warnings     []string    `json:"warnings"`
	Evidence     []string    `json:"evidence"`
}

// PlanUpstream finds the DTPs that load an InfoProvider. It searches DTPs
// depending on the provider, typed first and by name only when the typed
// search finds nothing, doubling the page size while the feed is
// incomplete. Every candidate's DTP is then read and kept only when its
// target is the provider. A single survivor becomes SelectedDTP; several
// mark the plan ambiguous.
func PlanUpstream(ctx context.Context, api API, opts PlannerOptions) (Plan, error) {
	plan := Plan{
		InfoProvider: opts.InfoProvider,
		ProviderType: strings.ToUpper(opts.ProviderType),
		Candidates:   []Candidate{},
		Complete:     true,
		Warnings:     []string{},
		Evidence:     []string{},
	}
	if strings.TrimSpace(opts.InfoProvider) == "" {
		plan.Warnings = append(plan.Warnings, "Query has no info_provider; upstream DTP discovery skipped")
		return plan, nil
	}
	p := planner{api: api, opts: opts, plan: &plan, seen: make(map[string]bool)}
	if plan.ProviderType != "" {
		if err := p.collect(ctx, plan.ProviderType, EvidenceTyped); err != nil {
			return Plan{}, err
		}
	}
	if len(plan.Candidates) == 0 {
		if err := p.collect(ctx, "", EvidenceNameOnly); err != nil {
			return Plan{}, err
		}
	}
	if err := p.validate(ctx); err != nil {
		return Plan{}, err
	}

	sort.Slice(plan.Candidates, func(i, j int) bool {
		a, b := plan.Candidates[i], plan.Candidates[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.Version != b.Version {
			return a.Version < b.Version
		}
		return a.Status < b.Status
	})
	switch len(plan.Candidates) {
	case 0:
		plan.Warnings = append(plan.Warnings, "No upstream DTP candidates discovered")
	case 1:
		plan.SelectedDTP = plan.Candidates[0].Name
	default:
		plan.Ambiguous = true
		plan.Warnings = append(plan.Warnings, "Ambiguous upstream lineage: multiple DTP candidates discovered")
	}
	return plan, nil
}

type planner struct {
	api  API
	opts PlannerOptions
	plan *Plan
	seen map[string]bool
}

func (p *planner) collect(ctx context.Context, dependsType, evidence string) error {
	size := p.opts.InitialMaxResults
	if size <= 0 {
		size = DefaultInitialMaxResults
	}
	limit := p.opts.MaxResultsCap
	if limit <= 0 {
		limit = DefaultMaxResultsCap
	}
	if limit < size {
		limit = size
	}
	steps := p.opts.MaxSteps
	if steps <= 0 {
		steps = DefaultMaxSteps
	}
	p.plan.Evidence = append(p.plan.Evidence, evidence)

	incomplete := false
	for step := 0; step < steps; step++ {
		res, err := p.api.Search(ctx, bw.SearchOptions{
			Query:               "*",
			MaxResults:          size,
			ObjectType:          "DTPA",
			DependsOnObjectName: p.opts.InfoProvider,
			DependsOnObjectType: dependsType,
		})
		if err != nil {
			return err
		}
		p.plan.Steps++
		incomplete = res.FeedIncomplete
		for _, item := range res.Items {
			if item.Name == "" || p.seen[item.Name] {
				continue
			}
			p.seen[item.Name] = true
			p.plan.Candidates = append(p.plan.Candidates, Candidate{
				Name:     item.Name,
				Type:     item.Type,
				Version:  item.Version,
				Status:   item.Status,
				URI:      item.URI,
				Evidence: evidence,
			})
		}
		if !incomplete {
			return nil
		}
		if size >= limit {
			p.plan.Complete = false
			p.plan.Warnings = append(p.plan.Warnings, fmt.Sprintf("Search feed remains incomplete at maxSize=%d", size))
			return nil
		}
		size *= 2
		if size > limit {
			size = limit
		}
	}
	if incomplete {
		p.plan.Complete = false
		p.plan.Warnings = append(p.plan.Warnings, "Search feed remained incomplete after max planner steps")
	}
	return nil
}

func (p *planner) validate(ctx context.Context) error {
	if len(p.plan.Candidates) == 0 {
		return nil
	}
	limit := p.opts.ValidationCap
	if limit <= 0 {
		limit = DefaultValidationCap
	}
	var valid []Candidate
	for i, c := range p.plan.Candidates {
		if err := ctx.Err(); err != nil {
			return adterr.Newf("PlanUpstream", "", adterr.Timeout, "planner cancelled: %v", err)
		}
		if i >= limit {
			p.plan.Complete = false
			p.plan.Warnings = append(p.plan.Warnings, fmt.Sprintf("Candidate validation truncated at %d entries", limit))
			break
		}
		dtp, err := p.api.ReadDTP(ctx, c.Name, normVersion(c.Version))
		if err != nil {
			p.plan.Warnings = append(p.plan.Warnings, fmt.Sprintf("Could not validate DTP candidate %s: %v", c.Name, err))
			continue
		}
		if dtp.TargetName != p.opts.InfoProvider {
			p.plan.Warnings = append(p.plan.Warnings, fmt.Sprintf("Discarded DTP candidate %s due to target mismatch (%s)", c.Name, dtp.TargetName))
			continue
		}
		if p.plan.ProviderType != "" && dtp.TargetType != "" && !strings.EqualFold(dtp.TargetType, p.plan.ProviderType) {
			p.plan.Warnings = append(p.plan.Warnings, fmt.Sprintf("Discarded DTP candidate %s due to target type mismatch (%s)", c.Name, dtp.TargetType))
			continue
		}
		valid = append(valid, c)
	}
	if len(valid) == 0 {
		p.plan.Warnings = append(p.plan.Warnings, "No structurally valid DTP candidates after validation")
		p.plan.Candidates = []Candidate{}
		return nil
	}
	p.plan.Candidates = valid
	return nil
}
