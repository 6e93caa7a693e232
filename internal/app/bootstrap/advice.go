package bootstrap

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/wolfman30/mediq-platform/internal/advice"
	appconfig "github.com/wolfman30/mediq-platform/internal/config"
	"github.com/wolfman30/mediq-platform/pkg/logging"
)

// BuildAdviceClient returns the configured LLM client, wrapped with a
// fallback provider when ADVICE_FALLBACK is set. awsCfg may be nil when
// Bedrock is not used.
func BuildAdviceClient(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (advice.Client, error) {
	primary, err := buildProvider(ctx, cfg.AdviceProvider, cfg, awsCfg)
	if err != nil {
		return nil, err
	}
	if cfg.AdviceFallback == "" || cfg.AdviceFallback == cfg.AdviceProvider {
		return primary, nil
	}
	secondary, err := buildProvider(ctx, cfg.AdviceFallback, cfg, awsCfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: advice fallback: %w", err)
	}
	return advice.NewFallbackClient(primary, secondary, logger), nil
}

func buildProvider(ctx context.Context, name string, cfg *appconfig.Config, awsCfg *aws.Config) (advice.Client, error) {
	switch name {
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("bootstrap: advice provider gemini requires GEMINI_API_KEY")
		}
		return advice.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
	case "bedrock":
		if awsCfg == nil {
			return nil, fmt.Errorf("bootstrap: advice provider bedrock requires AWS configuration")
		}
		if cfg.BedrockModelID == "" {
			return nil, fmt.Errorf("bootstrap: advice provider bedrock requires BEDROCK_MODEL_ID")
		}
		return advice.NewBedrockClient(bedrockruntime.NewFromConfig(*awsCfg), cfg.BedrockModelID), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown advice provider %q", name)
	}
}
