package facematch

import (
	"errors"
	"fmt"
	"sort"
)

// ErrIncompatibleProfile marks a stored embedding produced by a different
// model or detector order than the active profile.
var ErrIncompatibleProfile = errors.New("embedding produced by incompatible profile")

// Candidate is one stored case as seen by the match engine.
type Candidate struct {
	CaseID       int64
	Name         string
	Gender       string
	ContactPhone string
	Embedding    []float32
	Profile      string // signature of the profile that produced Embedding
}

// Probe is the transient embedding derived from one live frame.
type Probe struct {
	Embedding []float32
	Gender    string // optional demographic hint, empty when unknown
}

// Result is the score of one candidate against a probe.
type Result struct {
	CaseID       int64
	Name         string
	Score        float64 // cosine distance, lower is more similar
	Matched      bool
	ContactPhone string
	Gender       string
}

// SkipReason explains why a candidate was left out of the results.
type SkipReason string

const (
	SkipNoEmbedding  SkipReason = "no_embedding"
	SkipDemographic  SkipReason = "demographic_conflict"
	SkipIncompatible SkipReason = "incompatible_embedding"
)

// Skip records a candidate that was not scored.
type Skip struct {
	CaseID int64
	Reason SkipReason
	Err    error
}

// Report is the outcome of one match cycle.
type Report struct {
	Results []Result // every scored candidate, closest first
	Skipped []Skip

	displayCutoff float64
}

// Top returns the closest matched result, or nil when nothing matched.
func (r Report) Top() *Result {
	if len(r.Results) == 0 || !r.Results[0].Matched {
		return nil
	}
	top := r.Results[0]
	return &top
}

// Visible returns the results at or under the display cutoff. Matched results
// are always visible. It is meant for presentation only; alerting decisions
// use Top.
func (r Report) Visible() []Result {
	visible := make([]Result, 0, len(r.Results))
	for _, res := range r.Results {
		if res.Matched || res.Score <= r.displayCutoff {
			visible = append(visible, res)
		}
	}
	return visible
}

// Matcher scores probes against stored candidates under one profile.
type Matcher struct {
	profile   Profile
	signature string
}

// NewMatcher creates a matcher for the given profile.
func NewMatcher(p Profile) *Matcher {
	return &Matcher{profile: p, signature: p.Signature()}
}

// Profile returns the profile the matcher was built with.
func (m *Matcher) Profile() Profile {
	return m.profile
}

// Match scores every usable candidate against the probe. It does not mutate
// its inputs. A malformed candidate is skipped, never fatal.
func (m *Matcher) Match(probe Probe, candidates []Candidate) Report {
	report := Report{
		Results:       make([]Result, 0, len(candidates)),
		displayCutoff: m.profile.DisplayCutoff,
	}

	for _, c := range candidates {
		if len(c.Embedding) == 0 {
			report.Skipped = append(report.Skipped, Skip{CaseID: c.CaseID, Reason: SkipNoEmbedding})
			continue
		}
		if !Compatible(probe.Gender, c.Gender) {
			report.Skipped = append(report.Skipped, Skip{CaseID: c.CaseID, Reason: SkipDemographic})
			continue
		}
		if c.Profile != m.signature {
			report.Skipped = append(report.Skipped, Skip{
				CaseID: c.CaseID,
				Reason: SkipIncompatible,
				Err:    fmt.Errorf("%w: %q, want %q", ErrIncompatibleProfile, c.Profile, m.signature),
			})
			continue
		}

		score, err := CosineDistance(probe.Embedding, c.Embedding)
		if err != nil {
			report.Skipped = append(report.Skipped, Skip{CaseID: c.CaseID, Reason: SkipIncompatible, Err: err})
			continue
		}

		report.Results = append(report.Results, Result{
			CaseID:       c.CaseID,
			Name:         c.Name,
			Score:        score,
			Matched:      score <= m.profile.Threshold,
			ContactPhone: c.ContactPhone,
			Gender:       c.Gender,
		})
	}

	sort.SliceStable(report.Results, func(i, j int) bool {
		a, b := report.Results[i], report.Results[j]
		if a.Score != b.Score {
			return a.Score < b.Score
		}
		return a.CaseID < b.CaseID
	})

	return report
}
