package bootstrap

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/mediq-platform/internal/config"
	"github.com/wolfman30/mediq-platform/internal/quota"
	"github.com/wolfman30/mediq-platform/pkg/logging"
)

// QuotaDeps holds the optional backends a quota store may use.
type QuotaDeps struct {
	Redis  *redis.Client
	Pool   *pgxpool.Pool
	AWS    *aws.Config
	Logger *logging.Logger
}

// BuildQuotaStore picks the quota backend named by QUOTA_STORE. "auto"
// prefers Redis, then Postgres, then process memory.
func BuildQuotaStore(cfg *appconfig.Config, deps QuotaDeps) (quota.Store, error) {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}

	kind := cfg.QuotaStore
	if kind == "" || kind == "auto" {
		switch {
		case deps.Redis != nil:
			kind = "redis"
		case deps.Pool != nil:
			kind = "postgres"
		default:
			kind = "memory"
		}
	}

	switch kind {
	case "memory":
		logger.Warn("quota state kept in memory; counters reset on restart")
		return quota.NewMemoryStore(), nil
	case "redis":
		if deps.Redis == nil {
			return nil, fmt.Errorf("bootstrap: quota store redis requires REDIS_ADDR")
		}
		return quota.NewRedisStore(deps.Redis), nil
	case "postgres":
		if deps.Pool == nil {
			return nil, fmt.Errorf("bootstrap: quota store postgres requires DATABASE_URL")
		}
		return quota.NewPostgresStore(deps.Pool), nil
	case "dynamodb":
		if deps.AWS == nil {
			return nil, fmt.Errorf("bootstrap: quota store dynamodb requires AWS configuration")
		}
		return quota.NewDynamoStore(dynamodb.NewFromConfig(*deps.AWS), cfg.QuotaDynamoTable), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown quota store %q", kind)
	}
}
