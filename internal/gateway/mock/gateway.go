package mock

import (
	"context"
	"fmt"
	"strings"

	"github.com/kiranshivaraju/deliberate/pkg/models"
)

// Gateway satisfies models.ModelGateway for testing and local development.
type Gateway struct {
	Name_        string
	CompleteFunc func(ctx context.Context, model, prompt string) (models.Completion, error)
}

func (g *Gateway) Name() string {
	if g.Name_ == "" {
		return "mock"
	}
	return g.Name_
}

func (g *Gateway) Complete(ctx context.Context, model, prompt string) (models.Completion, error) {
	if g.CompleteFunc != nil {
		return g.CompleteFunc(ctx, model, prompt)
	}
	return models.Completion{}, nil
}

// cannedVerdict is returned for synthesis prompts so a full deliberation
// completes without a real provider.
const cannedVerdict = "```json\n" + `{
  "verdict": "Mock verdict: the thesis holds under the stated assumptions.",
  "confidence": "medium",
  "reasoning": "Canned reasoning produced by the mock gateway.",
  "key_agreements": ["All mock agents agreed."],
  "divergences": []
}` + "\n```"

// NewGateway returns a Gateway with canned responses, useful for running
// the service without an OpenRouter key.
func NewGateway() *Gateway {
	return &Gateway{
		Name_: "mock",
		CompleteFunc: func(_ context.Context, model, prompt string) (models.Completion, error) {
			text := fmt.Sprintf("Mock analysis from %s for testing", model)
			if strings.Contains(prompt, "```json") {
				text = cannedVerdict
			}
			return models.Completion{
				Text:       text,
				TokensUsed: 10,
			}, nil
		},
	}
}

// NewFailingGateway returns a Gateway that always returns the given error.
func NewFailingGateway(err error) *Gateway {
	return &Gateway{
		Name_: "mock-failing",
		CompleteFunc: func(_ context.Context, _, _ string) (models.Completion, error) {
			return models.Completion{}, err
		},
	}
}

// NewTimeoutGateway returns a Gateway that blocks until context cancellation.
func NewTimeoutGateway() *Gateway {
	return &Gateway{
		Name_: "mock-timeout",
		CompleteFunc: func(ctx context.Context, _, _ string) (models.Completion, error) {
			<-ctx.Done()
			return models.Completion{}, fmt.Errorf("%w: %v", models.ErrTimeout, ctx.Err())
		},
	}
}

// Compile-time check that Gateway implements ModelGateway.
var _ models.ModelGateway = (*Gateway)(nil)
