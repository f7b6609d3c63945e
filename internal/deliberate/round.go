package deliberate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kiranshivaraju/deliberate/pkg/models"
)

// FailureKind classifies a single agent call failure.
type FailureKind string

const (
	FailureTimeout   FailureKind = "timeout"
	FailureProvider  FailureKind = "provider_error"
	FailureMalformed FailureKind = "malformed_response"
)

// AgentCall is one prompt destined for one agent's model.
type AgentCall struct {
	AgentID string
	Model   string
	Prompt  string
}

// AgentResult is the settled result of one call. Failure is empty on
// success; on failure, Text is empty and Err carries the underlying cause.
type AgentResult struct {
	AgentID    string
	Model      string
	Text       string
	TokensUsed int
	Failure    FailureKind
	Err        error
}

// OK reports whether the call produced text.
func (r AgentResult) OK() bool { return r.Failure == "" }

// RoundOutcome holds the settled results of one round, in call order.
// Every agent in the call list appears exactly once, as success or failure.
type RoundOutcome struct {
	Results    []AgentResult
	TokensUsed int
}

// Successes returns the results that produced text, preserving call order.
func (o RoundOutcome) Successes() []AgentResult {
	var ok []AgentResult
	for _, r := range o.Results {
		if r.OK() {
			ok = append(ok, r)
		}
	}
	return ok
}

// Executor fans a round's calls out against the model gateway and joins
// them into a RoundOutcome.
type Executor struct {
	gw models.ModelGateway
}

// NewExecutor creates an Executor backed by the given gateway.
func NewExecutor(gw models.ModelGateway) *Executor {
	return &Executor{gw: gw}
}

// RunRound issues all calls concurrently, each under its own timeout, and
// returns once every call has settled. A timed-out or failed call is
// recorded against its agent only; siblings run to completion — a degraded
// round is still useful downstream.
func (e *Executor) RunRound(ctx context.Context, calls []AgentCall, timeout time.Duration) RoundOutcome {
	results := make([]AgentResult, len(calls))

	var g errgroup.Group
	for i, call := range calls {
		g.Go(func() error {
			results[i] = e.runCall(ctx, call, timeout)
			return nil
		})
	}
	_ = g.Wait() // failures are captured in results, never returned

	outcome := RoundOutcome{Results: results}
	for _, r := range results {
		outcome.TokensUsed += r.TokensUsed
	}
	return outcome
}

func (e *Executor) runCall(ctx context.Context, call AgentCall, timeout time.Duration) (res AgentResult) {
	// A panicking gateway must settle this agent's slot, not unwind the
	// worker goroutine.
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("panic in agent call",
				"agent_id", call.AgentID, "model", call.Model, "error", rec)
			res = AgentResult{
				AgentID: call.AgentID,
				Model:   call.Model,
				Failure: FailureProvider,
				Err:     fmt.Errorf("panic: %v", rec),
			}
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	completion, err := e.gw.Complete(callCtx, call.Model, call.Prompt)
	if err != nil {
		kind := classifyFailure(callCtx, err)
		slog.Error("agent call failed",
			"agent_id", call.AgentID, "model", call.Model, "failure", kind, "error", err)
		return AgentResult{
			AgentID: call.AgentID,
			Model:   call.Model,
			Failure: kind,
			Err:     err,
		}
	}

	return AgentResult{
		AgentID:    call.AgentID,
		Model:      call.Model,
		Text:       completion.Text,
		TokensUsed: completion.TokensUsed,
	}
}

// classifyFailure maps a gateway error onto the call-level taxonomy.
// Anything unrecognized counts as a provider error.
func classifyFailure(ctx context.Context, err error) FailureKind {
	switch {
	case errors.Is(err, models.ErrTimeout),
		errors.Is(err, context.DeadlineExceeded),
		ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded):
		return FailureTimeout
	case errors.Is(err, models.ErrMalformedResponse):
		return FailureMalformed
	default:
		return FailureProvider
	}
}
