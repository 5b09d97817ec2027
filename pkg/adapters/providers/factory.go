package providers

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/loopfi/conductor/internal/application/lending"
	"github.com/loopfi/conductor/internal/config"
	"github.com/loopfi/conductor/internal/ports"
	"github.com/loopfi/conductor/pkg/adapters/providers/aave"
	"github.com/loopfi/conductor/pkg/adapters/providers/paper"
)

// NewRegistry builds the provider registry from configuration
func NewRegistry(cfg config.ProviderConfig, logger *zap.Logger) (*lending.ProviderRegistry, error) {
	var list []ports.LendingProvider

	if cfg.AaveGatewayURL != "" {
		list = append(list, aave.NewProvider(cfg.AaveGatewayURL, cfg.AaveAPIKey, cfg.RequestTimeout, logger))
		logger.Info("lending provider registered",
			zap.String("provider", "aave"),
			zap.String("gateway", cfg.AaveGatewayURL))
	}

	if cfg.EnablePaper {
		list = append(list, paper.NewProvider())
		logger.Warn("paper lending provider enabled, operations will not touch any chain")
	}

	if len(list) == 0 {
		return nil, fmt.Errorf("no lending providers configured")
	}

	return lending.NewProviderRegistry(list...)
}
