package deliberate

import (
	"fmt"
	"math/rand"
)

// Anonymizer maps real agent identifiers to round-scoped pseudonyms and
// back. The assignment is a seeded random permutation so that label order
// never correlates with agent identity or call order; under a fixed seed
// the mapping is reproducible.
type Anonymizer struct {
	forward map[string]string // agent id -> pseudonym
	reverse map[string]string // pseudonym -> agent id
}

// NewAnonymizer assigns each agent a pseudonym from AgentLabels using a
// permutation drawn from the given seed. Panics if there are more agents
// than labels; a deliberation has at most three.
func NewAnonymizer(agentIDs []string, seed int64) *Anonymizer {
	if len(agentIDs) > len(AgentLabels) {
		panic(fmt.Sprintf("anonymizer: %d agents exceed %d labels", len(agentIDs), len(AgentLabels)))
	}

	perm := rand.New(rand.NewSource(seed)).Perm(len(AgentLabels))

	a := &Anonymizer{
		forward: make(map[string]string, len(agentIDs)),
		reverse: make(map[string]string, len(agentIDs)),
	}
	for i, id := range agentIDs {
		label := AgentLabels[perm[i]]
		a.forward[id] = label
		a.reverse[label] = id
	}
	return a
}

// Pseudonym returns the label assigned to the agent.
func (a *Anonymizer) Pseudonym(agentID string) (string, bool) {
	label, ok := a.forward[agentID]
	return label, ok
}

// AgentID recovers the real agent behind a pseudonym. Used only while
// building synthesis input; never exposed to the agents themselves.
func (a *Anonymizer) AgentID(pseudonym string) (string, bool) {
	id, ok := a.reverse[pseudonym]
	return id, ok
}
