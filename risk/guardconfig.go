package risk

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// GuardConfig is one entry of the configured guard chain. The mapping is an
// open union keyed by "type"; the raw node is kept so BuildChain can decode
// the strongly-typed options for the matching guard kind.
type GuardConfig struct {
	Type string
	node yaml.Node
}

func (g *GuardConfig) UnmarshalYAML(value *yaml.Node) error {
	var head struct {
		Type string `yaml:"type"`
	}
	if err := value.Decode(&head); err != nil {
		return err
	}
	if head.Type == "" {
		return fmt.Errorf("guard entry missing type")
	}
	g.Type = head.Type
	g.node = *value
	return nil
}

// BuildChain materializes the configured guard chain in order. Unknown guard
// types become pass-through guards with a logged warning rather than a hard
// error. Duplicate types are kept in config order.
func BuildChain(cfgs []GuardConfig, logger *zap.Logger) (Chain, error) {
	chain := make(Chain, 0, len(cfgs))
	for i, cfg := range cfgs {
		g, err := buildGuard(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("guard %d (%s): %w", i, cfg.Type, err)
		}
		chain = append(chain, g)
	}
	return chain, nil
}

func buildGuard(cfg GuardConfig, logger *zap.Logger) (Guard, error) {
	switch cfg.Type {
	case GuardMaxPositionSize:
		var o struct {
			MaxPercentOfEquity float64 `yaml:"max_percent_of_equity"`
		}
		if err := cfg.node.Decode(&o); err != nil {
			return nil, err
		}
		if o.MaxPercentOfEquity <= 0 {
			return nil, fmt.Errorf("max_percent_of_equity must be positive")
		}
		return MaxPositionSizeGuard{MaxPercentOfEquity: o.MaxPercentOfEquity}, nil

	case GuardMaxLeverage:
		var o struct {
			MaxLeverage float64 `yaml:"max_leverage"`
		}
		if err := cfg.node.Decode(&o); err != nil {
			return nil, err
		}
		if o.MaxLeverage <= 0 {
			return nil, fmt.Errorf("max_leverage must be positive")
		}
		return MaxLeverageGuard{MaxLeverage: o.MaxLeverage}, nil

	case GuardCooldown:
		var o struct {
			MinInterval string `yaml:"min_interval"` // e.g. "5m", "1h"
		}
		if err := cfg.node.Decode(&o); err != nil {
			return nil, err
		}
		d, err := time.ParseDuration(o.MinInterval)
		if err != nil {
			return nil, fmt.Errorf("min_interval: %w", err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("min_interval must be positive")
		}
		return CooldownGuard{MinInterval: d}, nil

	case GuardSymbolWhitelist:
		var o struct {
			Symbols []string `yaml:"symbols"`
		}
		if err := cfg.node.Decode(&o); err != nil {
			return nil, err
		}
		if len(o.Symbols) == 0 {
			return nil, fmt.Errorf("symbols must not be empty")
		}
		return NewSymbolWhitelistGuard(o.Symbols), nil

	default:
		logger.Warn("unknown guard type, passing through",
			zap.String("type", cfg.Type))
		return passGuard{typ: cfg.Type}, nil
	}
}
