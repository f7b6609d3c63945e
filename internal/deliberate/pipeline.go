// Package deliberate implements the deliberation job engine: the three-round
// protocol (independent analysis, cross-reading, synthesis), its concurrent
// round executor, cross-round anonymization, and the asynchronous job runner.
package deliberate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kiranshivaraju/deliberate/pkg/models"
)

// Pipeline-fatal errors. Call-level failures never surface here; these two
// mean no usable verdict could be produced and map to a failed job.
var (
	ErrAllAgentsFailed = errors.New("AllAgentsFailed")
	ErrSynthesisFailed = errors.New("SynthesisFailed")
)

// Inputs are the immutable parameters of one deliberation.
type Inputs struct {
	Thesis  string
	Context string
	Models  []string // exactly 3
}

// ProgressFunc is invoked as each round begins, with the 1-based round number.
type ProgressFunc func(round int)

// Pipeline sequences the three deliberation rounds for one job.
type Pipeline struct {
	gw          models.ModelGateway
	exec        *Executor
	callTimeout time.Duration

	// seedFn produces the per-round anonymization seed. Overridable in
	// tests for reproducible pseudonym assignment.
	seedFn func() int64
}

// NewPipeline creates a Pipeline over the given gateway.
func NewPipeline(gw models.ModelGateway, callTimeout time.Duration) *Pipeline {
	return &Pipeline{
		gw:          gw,
		exec:        NewExecutor(gw),
		callTimeout: callTimeout,
		seedFn:      func() int64 { return time.Now().UnixNano() },
	}
}

// Run executes R1 -> R2 -> R3 and returns the final verdict.
//
// R1 needs at least one successful agent to proceed. R2 is skipped when
// fewer than two agents survive R1, since cross-reading needs at least two
// distinct viewpoints; the pipeline then synthesizes from R1 alone. R3 is a
// single call against the first model of the job's model list, a fixed
// designated reducer so the choice is deterministic for a given input set.
func (p *Pipeline) Run(ctx context.Context, in Inputs, onProgress ProgressFunc) (models.Verdict, error) {
	progress := func(round int) {
		if onProgress != nil {
			onProgress(round)
		}
	}

	// R1: independent analysis
	progress(1)
	r1Calls := make([]AgentCall, len(in.Models))
	for i, model := range in.Models {
		r1Calls[i] = AgentCall{
			AgentID: fmt.Sprintf("agent_%d", i),
			Model:   model,
			Prompt:  BuildR1Prompt(in.Thesis, in.Context),
		}
	}
	r1 := p.exec.RunRound(ctx, r1Calls, p.callTimeout)
	totalTokens := r1.TokensUsed

	r1Successes := r1.Successes()
	slog.Info("R1 complete", "successes", len(r1Successes), "agents", len(r1Calls))
	if len(r1Successes) == 0 {
		return models.Verdict{}, fmt.Errorf("%w: all %d agents failed independent analysis", ErrAllAgentsFailed, len(r1Calls))
	}

	// R2: cross-reading over anonymized R1 output. Only R1 survivors
	// participate; an agent never sees its own analysis among the others.
	var r2 RoundOutcome
	r2Ran := false
	if len(r1Successes) >= 2 {
		progress(2)
		anon := NewAnonymizer(agentIDs(r1Successes), p.seedFn())

		r2Calls := make([]AgentCall, 0, len(r1Successes))
		for _, own := range r1Successes {
			var others []LabeledOutput
			for _, other := range r1Successes {
				if other.AgentID == own.AgentID {
					continue
				}
				label, _ := anon.Pseudonym(other.AgentID)
				others = append(others, LabeledOutput{Label: label, Text: other.Text})
			}
			r2Calls = append(r2Calls, AgentCall{
				AgentID: own.AgentID,
				Model:   own.Model,
				Prompt:  BuildR2Prompt(in.Thesis, own.Text, others),
			})
		}

		r2 = p.exec.RunRound(ctx, r2Calls, p.callTimeout)
		totalTokens += r2.TokensUsed
		r2Ran = len(r2.Successes()) > 0
		slog.Info("R2 complete", "successes", len(r2.Successes()), "agents", len(r2Calls))
	} else {
		slog.Info("R2 skipped: cross-reading needs at least two R1 successes",
			"r1_successes", len(r1Successes))
	}

	// R3: synthesis over everything available, re-attributed to real model
	// identifiers. Single call, lower stakes on diversity, so the first
	// configured model acts as the reducer.
	progress(3)
	synthesisInput := buildSynthesisInput(r1Successes, r2)
	verdict, synthTokens, err := p.synthesize(ctx, in, synthesisInput)
	if err != nil {
		return models.Verdict{}, err
	}
	totalTokens += synthTokens

	verdict.TokensUsed = totalTokens
	if r2Ran {
		verdict.RoundsCompleted = 3
	} else {
		verdict.RoundsCompleted = 2
	}
	return verdict, nil
}

func (p *Pipeline) synthesize(ctx context.Context, in Inputs, outputs []LabeledOutput) (models.Verdict, int, error) {
	prompt := BuildR3Prompt(in.Thesis, outputs)

	callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	completion, err := p.gw.Complete(callCtx, in.Models[0], prompt)
	if err != nil {
		return models.Verdict{}, 0, fmt.Errorf("%w: synthesis call: %v", ErrSynthesisFailed, err)
	}

	verdict, err := ParseVerdict(completion.Text)
	if err != nil {
		return models.Verdict{}, 0, fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}

	slog.Info("R3 complete", "confidence", verdict.Confidence, "divergences", len(verdict.Divergences))
	return verdict, completion.TokensUsed, nil
}

// buildSynthesisInput collects each surviving agent's R1 analysis and, when
// present, its R2 reaction, attributed to the real model identifier.
func buildSynthesisInput(r1Successes []AgentResult, r2 RoundOutcome) []LabeledOutput {
	r2ByAgent := make(map[string]AgentResult, len(r2.Results))
	for _, r := range r2.Results {
		if r.OK() {
			r2ByAgent[r.AgentID] = r
		}
	}

	var outputs []LabeledOutput
	for _, r1 := range r1Successes {
		outputs = append(outputs, LabeledOutput{
			Label: fmt.Sprintf("%s (independent analysis)", r1.Model),
			Text:  r1.Text,
		})
		if r2, ok := r2ByAgent[r1.AgentID]; ok {
			outputs = append(outputs, LabeledOutput{
				Label: fmt.Sprintf("%s (cross-reading)", r2.Model),
				Text:  r2.Text,
			})
		}
	}
	return outputs
}

func agentIDs(results []AgentResult) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.AgentID
	}
	return ids
}
