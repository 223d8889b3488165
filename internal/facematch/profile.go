// Package facematch holds the face matching core: the shared match profile,
// the cosine comparator, the match engine and the confirmation policy.
package facematch

import (
	"errors"
	"fmt"
	"strings"
)

// Profile is the single source of truth for everything that must agree
// between registration-time and scan-time embeddings, plus the decision
// thresholds applied to them. Build it once and pass it around.
type Profile struct {
	Model         string   `yaml:"model"`
	Detectors     []string `yaml:"detectors"`
	Threshold     float64  `yaml:"threshold"`
	DisplayCutoff float64  `yaml:"display_cutoff"`
	ConfirmCount  int      `yaml:"confirm_count"`
}

// Signature identifies the embedding space produced by this profile.
// Embeddings with different signatures must never be compared.
func (p Profile) Signature() string {
	return p.Model + ":" + strings.Join(p.Detectors, ",")
}

// Validate checks the profile for internal consistency.
func (p Profile) Validate() error {
	if p.Model == "" {
		return errors.New("model is required")
	}
	if len(p.Detectors) == 0 {
		return errors.New("at least one detector is required")
	}
	seen := make(map[string]struct{}, len(p.Detectors))
	for _, d := range p.Detectors {
		if strings.TrimSpace(d) == "" {
			return errors.New("detector name must not be empty")
		}
		if _, ok := seen[d]; ok {
			return fmt.Errorf("detector %q listed twice", d)
		}
		seen[d] = struct{}{}
	}
	if p.Threshold <= 0 || p.Threshold > 2 {
		return fmt.Errorf("threshold %.4f out of range (0, 2]", p.Threshold)
	}
	if p.DisplayCutoff < p.Threshold {
		return fmt.Errorf("display cutoff %.4f must not be tighter than threshold %.4f", p.DisplayCutoff, p.Threshold)
	}
	if p.ConfirmCount < 1 {
		return fmt.Errorf("confirm count must be at least 1, got %d", p.ConfirmCount)
	}
	return nil
}
