package deliberate

import (
	"fmt"
	"strings"
	"time"
)

// AgentLabels are the round-scoped pseudonyms agents see during
// cross-reading. Assignment order is randomized per round.
var AgentLabels = []string{"Agent Alpha", "Agent Beta", "Agent Gamma"}

const markdownInstruction = `

**Format your response using Markdown:**
- Use ## headings to organize sections
- Use **bold** for key points
- Use bullet points for clarity`

// LabeledOutput pairs a display label with one agent's text.
type LabeledOutput struct {
	Label string
	Text  string
}

// BuildR1Prompt builds the independent-analysis prompt for one agent.
func BuildR1Prompt(thesis, context string) string {
	var contextSection string
	if context != "" {
		contextSection = fmt.Sprintf("\n---\n**CONTEXT**\n%s\n---\n", context)
	}

	return fmt.Sprintf(`You are analyzing the following thesis:
---
%s
---
%s
Today's date: %s

Provide your independent analysis. Consider:
- Strengths and weaknesses of the argument
- Missing considerations
- Potential risks and opportunities
- Evidence that would strengthen or weaken the thesis
- Key assumptions and dependencies

Be thorough but concise. Focus on your highest-conviction insights.
%s`, thesis, contextSection, time.Now().Format("January 02, 2006"), markdownInstruction)
}

// BuildR2Prompt builds the cross-reading prompt for one agent. The other
// agents' analyses arrive under pseudonymous labels; the agent's own R1
// output is never among them.
func BuildR2Prompt(thesis, ownAnalysis string, others []LabeledOutput) string {
	return fmt.Sprintf(`Original thesis:
---
%s
---

Your R1 analysis:
---
%s
---

Other agents' analyses:
%s

Review the other analyses and identify:
1. **Points of agreement** - Where do all analyses converge?
2. **Points of disagreement** - Where do analyses diverge? Why?
3. **New considerations** - What did others raise that you find compelling?
4. **Rebuttals** - What do you disagree with and why?

%s`, thesis, ownAnalysis, formatOutputs(others), markdownInstruction)
}

// BuildR3Prompt builds the synthesis prompt. Outputs are re-attributed to
// real model identifiers here; synthesis is a single aggregation step, not
// a debate participant.
func BuildR3Prompt(thesis string, outputs []LabeledOutput) string {
	return fmt.Sprintf(`Original thesis:
---
%s
---

All deliberation outputs:
%s

Synthesize the deliberation into a comprehensive final verdict.

IMPORTANT: Provide DETAILED, SUBSTANTIVE responses. Do not summarize or abbreviate.

Your response MUST end with a structured JSON block in exactly this format:

`+"```json"+`
{
  "verdict": "Your clear, actionable verdict on the thesis. Be specific and detailed - at least 3-4 sentences explaining the bottom-line conclusion and its key qualifications.",
  "confidence": "high" | "medium" | "low",
  "reasoning": "Comprehensive reasoning behind your verdict. This should be a substantial paragraph (150-250 words) that synthesizes the key arguments, explains why certain factors were weighted more heavily, addresses the strongest counterarguments, and justifies the confidence level. Do NOT say 'see above' or 'as discussed' - provide the full reasoning here.",
  "key_agreements": [
    "First substantive point all agents agreed on - be specific about what exactly they agreed on and why it matters",
    "Second point of consensus with specific details",
    "Include at least 4-6 meaningful agreements"
  ],
  "divergences": [
    {
      "topic": "Specific topic of disagreement",
      "description": "Detailed description of what the disagreement is about, why it matters, and what's at stake (2-3 sentences minimum)",
      "positions": [
        {"view": "First agent's detailed position - include their reasoning and key evidence (2-3 sentences)", "confidence": "high|medium|low"},
        {"view": "Second agent's detailed position with reasoning (2-3 sentences)", "confidence": "high|medium|low"}
      ]
    }
  ]
}
`+"```"+`

Include at least 3-5 divergences if they exist. Be thorough and substantive throughout.

First, write your synthesis narrative (at least 500 words), then end with the JSON block.
%s`, thesis, formatOutputs(outputs), markdownInstruction)
}

func formatOutputs(outputs []LabeledOutput) string {
	var b strings.Builder
	for _, out := range outputs {
		fmt.Fprintf(&b, "\n**%s:**\n---\n%s\n---\n", out.Label, out.Text)
	}
	return b.String()
}
