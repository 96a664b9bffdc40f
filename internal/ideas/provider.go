package ideas

import (
	"context"
	"fmt"
	"os"

	"github.com/dyluth/lanes/internal/config"
)

// FromConfig builds the configured generator. An empty provider disables generation.
func FromConfig(ctx context.Context, cfg config.IdeasConfig) (Generator, error) {
	switch cfg.Provider {
	case "":
		return Disabled, nil
	case "genai":
		key := os.Getenv(cfg.APIKeyEnv)
		if key == "" {
			return nil, fmt.Errorf("ideas.provider is genai but $%s is not set", cfg.APIKeyEnv)
		}
		return NewGenAIGenerator(ctx, key, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown ideas provider: %s", cfg.Provider)
	}
}
