package checker

import (
	consts "github.com/khanhnv2901/webharden/internal/shared/constants"
)

// Score deductions per finding.
const (
	PenaltyNoHTTPS          = 20
	PenaltyMissingHeader    = 10
	PenaltyLeakHeader       = 5
	PenaltyInsecureCookie   = 5
	PenaltyScriptableCookie = 3
	PenaltyTLSUnavailable   = 10
	PenaltyNoRedirect       = 10
)

// Recommendation texts shared by the aggregator and its callers.
const (
	recNoHTTPS        = "Site is not using HTTPS"
	recTLSUnavailable = "Could not read TLS/certificate metadata"
	recNoRedirect     = "HTTP does not properly redirect to HTTPS"
)

// Deduction is one scored finding and the recommendation it produces.
type Deduction struct {
	Points         int    `json:"points"`
	Recommendation string `json:"recommendation"`
}

// Scorecard folds deductions into a bounded score. Deductions are kept in the
// order they were applied; identical recommendations are not merged.
type Scorecard struct {
	raw        int
	deductions []Deduction
}

// NewScorecard starts a scorecard at the maximum score.
func NewScorecard() *Scorecard {
	return &Scorecard{raw: consts.StartingScore}
}

// Deduct subtracts points and records the recommendation.
func (s *Scorecard) Deduct(points int, recommendation string) {
	s.raw -= points
	s.deductions = append(s.deductions, Deduction{Points: points, Recommendation: recommendation})
}

// Apply records every deduction in order.
func (s *Scorecard) Apply(deductions []Deduction) {
	for _, d := range deductions {
		s.Deduct(d.Points, d.Recommendation)
	}
}

// Score returns the score clamped to [0, 100].
func (s *Scorecard) Score() int {
	return clampScore(s.raw)
}

// Recommendations returns the recommendations in application order.
func (s *Scorecard) Recommendations() []string {
	out := make([]string, 0, len(s.deductions))
	for _, d := range s.deductions {
		out = append(out, d.Recommendation)
	}
	return out
}

// Deductions returns a copy of the applied deductions.
func (s *Scorecard) Deductions() []Deduction {
	return append([]Deduction(nil), s.deductions...)
}

func clampScore(score int) int {
	switch {
	case score < 0:
		return 0
	case score > consts.StartingScore:
		return consts.StartingScore
	}
	return score
}

// Grade buckets a score the way reports colour it.
func Grade(score int) string {
	switch {
	case score >= consts.GoodScoreThreshold:
		return "good"
	case score >= consts.WarnScoreThreshold:
		return "warn"
	default:
		return "bad"
	}
}
