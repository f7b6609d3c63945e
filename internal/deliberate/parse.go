package deliberate

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kiranshivaraju/deliberate/pkg/models"
)

var (
	jsonFenceRe = regexp.MustCompile("```json\\s*(\\{[\\s\\S]*\\})\\s*```")
	rawJSONRe   = regexp.MustCompile(`\{\s*"verdict"[\s\S]*\}`)
)

// ParseVerdict extracts the structured JSON block from a synthesis response
// and validates it against the verdict schema. A response that does not
// contain a parseable, schema-conforming block is a malformed response;
// nothing is coerced with defaults.
func ParseVerdict(content string) (models.Verdict, error) {
	candidate := ""
	if m := jsonFenceRe.FindStringSubmatch(content); m != nil {
		candidate = m[1]
	} else if m := rawJSONRe.FindString(content); m != "" {
		candidate = m
	}
	if candidate == "" {
		return models.Verdict{}, fmt.Errorf("%w: no JSON verdict block found", models.ErrMalformedResponse)
	}

	candidate = balancedJSON(candidate)

	var wire verdictWire
	if err := json.Unmarshal([]byte(candidate), &wire); err != nil {
		return models.Verdict{}, fmt.Errorf("%w: invalid verdict JSON: %v", models.ErrMalformedResponse, err)
	}

	verdict, err := wire.validate()
	if err != nil {
		return models.Verdict{}, fmt.Errorf("%w: %v", models.ErrMalformedResponse, err)
	}
	return verdict, nil
}

// balancedJSON trims s down to the first balanced top-level object. The
// regex above is greedy and may swallow trailing prose after the closing
// brace.
func balancedJSON(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return s
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return s
}

// verdictWire is the strict schema the synthesis model must produce.
type verdictWire struct {
	Verdict       string   `json:"verdict"`
	Confidence    string   `json:"confidence"`
	Reasoning     string   `json:"reasoning"`
	KeyAgreements []string `json:"key_agreements"`
	Divergences   []struct {
		Topic       string `json:"topic"`
		Description string `json:"description"`
		Positions   []struct {
			View       string `json:"view"`
			Confidence string `json:"confidence"`
		} `json:"positions"`
	} `json:"divergences"`
}

func (w verdictWire) validate() (models.Verdict, error) {
	if strings.TrimSpace(w.Verdict) == "" {
		return models.Verdict{}, fmt.Errorf("verdict field is empty")
	}
	if !models.ValidConfidence(w.Confidence) {
		return models.Verdict{}, fmt.Errorf("confidence %q is not one of high, medium, low", w.Confidence)
	}
	if strings.TrimSpace(w.Reasoning) == "" {
		return models.Verdict{}, fmt.Errorf("reasoning field is empty")
	}

	out := models.Verdict{
		Verdict:       w.Verdict,
		Confidence:    w.Confidence,
		Reasoning:     w.Reasoning,
		KeyAgreements: w.KeyAgreements,
	}
	for i, d := range w.Divergences {
		if strings.TrimSpace(d.Topic) == "" {
			return models.Verdict{}, fmt.Errorf("divergence %d has no topic", i)
		}
		div := models.Divergence{Topic: d.Topic, Description: d.Description}
		for j, p := range d.Positions {
			if !models.ValidConfidence(p.Confidence) {
				return models.Verdict{}, fmt.Errorf("divergence %d position %d has confidence %q", i, j, p.Confidence)
			}
			div.Positions = append(div.Positions, models.Position{View: p.View, Confidence: p.Confidence})
		}
		out.Divergences = append(out.Divergences, div)
	}
	return out, nil
}
