package gateway

import (
	"fmt"

	"github.com/kiranshivaraju/deliberate/internal/config"
	"github.com/kiranshivaraju/deliberate/internal/gateway/mock"
	"github.com/kiranshivaraju/deliberate/internal/gateway/openrouter"
	"github.com/kiranshivaraju/deliberate/pkg/models"
)

// New constructs the appropriate model gateway based on config.
// Called once at server startup.
func New(cfg config.GatewayConfig) (models.ModelGateway, error) {
	switch cfg.Provider {
	case "openrouter":
		return openrouter.NewClient(cfg.OpenRouter), nil
	case "mock":
		return mock.NewGateway(), nil
	default:
		return nil, fmt.Errorf("unknown gateway provider %q: must be one of openrouter, mock", cfg.Provider)
	}
}
