package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port               string
	Env                string
	LogLevel           string
	DatabaseURL        string
	AuthJWTSecret      string
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int

	// Pricing (whole currency units)
	CommissionPercent    int
	GeneralDoctorPayout  int64
	GeneralStandardPrice int64
	GeneralPremiumPrice  int64
	SubscriptionPeriod   time.Duration

	// Advice quota
	QuotaStore       string
	QuotaDailyFree   int
	QuotaBurstLimit  int
	QuotaBurstWindow time.Duration
	QuotaDynamoTable string
	AdviceProvider   string
	AdviceFallback   string
	AdviceMaxTokens  int
	GeminiAPIKey     string
	GeminiModelID    string
	BedrockModelID   string
	AdviceTimeout    time.Duration

	// AWS
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	EventsQueueURL      string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Email notifications
	EmailProvider    string
	SendGridAPIKey   string
	EmailFromAddress string
	EmailFromName    string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		AuthJWTSecret:      getEnv("AUTH_JWT_SECRET", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", nil),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),

		CommissionPercent:    getEnvAsInt("COMMISSION_PERCENT", 30),
		GeneralDoctorPayout:  int64(getEnvAsInt("GENERAL_DOCTOR_PAYOUT", 1750)),
		GeneralStandardPrice: int64(getEnvAsInt("GENERAL_STANDARD_PRICE", 4000)),
		GeneralPremiumPrice:  int64(getEnvAsInt("GENERAL_PREMIUM_PRICE", 2500)),
		SubscriptionPeriod:   getEnvAsDuration("SUBSCRIPTION_PERIOD", 30*24*time.Hour),

		QuotaStore:       strings.ToLower(strings.TrimSpace(getEnv("QUOTA_STORE", "auto"))),
		QuotaDailyFree:   getEnvAsInt("QUOTA_DAILY_FREE", 5),
		QuotaBurstLimit:  getEnvAsInt("QUOTA_BURST_LIMIT", 30),
		QuotaBurstWindow: getEnvAsDuration("QUOTA_BURST_WINDOW", time.Hour),
		QuotaDynamoTable: getEnv("QUOTA_DYNAMO_TABLE", "advice_quota"),
		AdviceProvider:   strings.ToLower(strings.TrimSpace(getEnv("ADVICE_PROVIDER", "gemini"))),
		AdviceFallback:   strings.ToLower(strings.TrimSpace(getEnv("ADVICE_FALLBACK", ""))),
		AdviceMaxTokens:  getEnvAsInt("ADVICE_MAX_TOKENS", 800),
		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:    getEnv("GEMINI_MODEL_ID", "gemini-2.0-flash"),
		BedrockModelID:   getEnv("BEDROCK_MODEL_ID", ""),
		AdviceTimeout:    getEnvAsDuration("ADVICE_TIMEOUT", 20*time.Second),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		EventsQueueURL:      getEnv("EVENTS_QUEUE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		EmailProvider:    strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "stub"))),
		SendGridAPIKey:   getEnv("SENDGRID_API_KEY", ""),
		EmailFromAddress: getEnv("EMAIL_FROM_ADDRESS", ""),
		EmailFromName:    getEnv("EMAIL_FROM_NAME", "MedIQ"),
	}
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping empty entries.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
