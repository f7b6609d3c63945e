// Package models contains shared data models used across the Deliberate codebase.
package models

// Confidence levels reported by the synthesis step.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// ValidConfidence reports whether s is one of the allowed confidence levels.
func ValidConfidence(s string) bool {
	return s == ConfidenceHigh || s == ConfidenceMedium || s == ConfidenceLow
}

// Verdict is the terminal, structured output of a completed deliberation.
// KeyAgreements and Divergences preserve synthesis output order.
type Verdict struct {
	Verdict         string       `json:"verdict"`
	Confidence      string       `json:"confidence"`
	Reasoning       string       `json:"reasoning"`
	KeyAgreements   []string     `json:"key_agreements"`
	Divergences     []Divergence `json:"divergences"`
	TokensUsed      int          `json:"tokens_used"`
	RoundsCompleted int          `json:"rounds_completed"`
}

// Divergence is one topic on which the agents disagreed.
type Divergence struct {
	Topic       string     `json:"topic"`
	Description string     `json:"description"`
	Positions   []Position `json:"positions"`
}

// Position is a single agent's stance within a divergence.
type Position struct {
	View       string `json:"view"`
	Confidence string `json:"confidence"`
}

// Clone returns a deep copy of the verdict.
func (v Verdict) Clone() Verdict {
	c := v
	c.KeyAgreements = append([]string(nil), v.KeyAgreements...)
	c.Divergences = make([]Divergence, len(v.Divergences))
	for i, d := range v.Divergences {
		c.Divergences[i] = Divergence{
			Topic:       d.Topic,
			Description: d.Description,
			Positions:   append([]Position(nil), d.Positions...),
		}
	}
	return c
}
