package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Proposal providers.
const (
	ProviderHeuristic = "heuristic"
	ProviderBedrock   = "bedrock"
	ProviderOpenAI    = "openai"
)

type Config struct {
	DatabaseURL string // MAX_DATABASE_URL (optional, empty = in-memory store)
	HTTPAddr    string // MAX_HTTP_ADDR (default ":8080")
	NATSURL     string // MAX_NATS_URL (optional, empty = no events)
	AuthToken   string // MAX_AUTH_TOKEN (optional, empty = auth disabled)
	TuningFile  string // MAX_TUNING_FILE (optional TOML overrides)

	// Proposal source settings
	ProposalProvider string // MAX_PROPOSAL_PROVIDER (default "heuristic")
	ProposalRetries  int    // MAX_PROPOSAL_RETRIES (default 3)
	BedrockModel     string // MAX_BEDROCK_MODEL
	BedrockRegion    string // MAX_BEDROCK_REGION (default "us-east-1")
	OpenAIModel      string // MAX_OPENAI_MODEL (default "gpt-4o-mini")
	OpenAIBaseURL    string // MAX_OPENAI_BASE_URL (optional, for compatible gateways)
	OpenAIAPIKey     string // OPENAI_API_KEY

	// Background loops
	SweepInterval time.Duration // MAX_SWEEP_INTERVAL (default 30s; 0 = disabled)
	PresenceIdle  time.Duration // MAX_PRESENCE_IDLE (default 15m)

	// Market simulator
	MarketInterval time.Duration // MAX_MARKET_INTERVAL (default 5m; 0 = disabled)
	MarketBackfill bool          // MAX_MARKET_BACKFILL (default true; seeds a day of candles when none exist)

	// Execution hook
	ExecutionHook        string        // MAX_EXECUTION_HOOK (optional shell command run per queued trade)
	ExecutionHookTimeout time.Duration // MAX_EXECUTION_HOOK_TIMEOUT (default 30s)

	// Export settings
	ExportInterval   time.Duration // MAX_EXPORT_INTERVAL (default 5m; 0 = disabled)
	ExportS3Bucket   string        // MAX_EXPORT_S3_BUCKET (enables S3 when set)
	ExportS3Endpoint string        // MAX_EXPORT_S3_ENDPOINT (custom endpoint for MinIO)
	ExportS3Region   string        // MAX_EXPORT_S3_REGION (default "us-east-1")
	ExportS3Prefix   string        // MAX_EXPORT_S3_PREFIX (default "max/exports")
	ExportS3History  bool          // MAX_EXPORT_S3_HISTORY (keep timestamped copies)
	ExportGitRepo    string        // MAX_EXPORT_GIT_REPO (enables git when set; path to clone)
	ExportGitFile    string        // MAX_EXPORT_GIT_FILE (default "discussions.jsonl")
	ExportGitBranch  string        // MAX_EXPORT_GIT_BRANCH (default "main")
	ExportGitRemote  string        // MAX_EXPORT_GIT_REMOTE (optional; empty = commit locally only)
}

func Load() (*Config, error) {
	c := &Config{
		DatabaseURL:      os.Getenv("MAX_DATABASE_URL"),
		HTTPAddr:         envOrDefault("MAX_HTTP_ADDR", ":8080"),
		NATSURL:          os.Getenv("MAX_NATS_URL"),
		AuthToken:        os.Getenv("MAX_AUTH_TOKEN"),
		TuningFile:       os.Getenv("MAX_TUNING_FILE"),
		ProposalProvider: envOrDefault("MAX_PROPOSAL_PROVIDER", ProviderHeuristic),
		BedrockModel:     os.Getenv("MAX_BEDROCK_MODEL"),
		BedrockRegion:    envOrDefault("MAX_BEDROCK_REGION", "us-east-1"),
		OpenAIModel:      envOrDefault("MAX_OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:    os.Getenv("MAX_OPENAI_BASE_URL"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		ExecutionHook:    os.Getenv("MAX_EXECUTION_HOOK"),
		ExportS3Bucket:   os.Getenv("MAX_EXPORT_S3_BUCKET"),
		ExportS3Endpoint: os.Getenv("MAX_EXPORT_S3_ENDPOINT"),
		ExportS3Region:   envOrDefault("MAX_EXPORT_S3_REGION", "us-east-1"),
		ExportS3Prefix:   envOrDefault("MAX_EXPORT_S3_PREFIX", "max/exports"),
		ExportS3History:  os.Getenv("MAX_EXPORT_S3_HISTORY") == "true",
		ExportGitRepo:    os.Getenv("MAX_EXPORT_GIT_REPO"),
		ExportGitFile:    envOrDefault("MAX_EXPORT_GIT_FILE", "discussions.jsonl"),
		ExportGitBranch:  envOrDefault("MAX_EXPORT_GIT_BRANCH", "main"),
		ExportGitRemote:  os.Getenv("MAX_EXPORT_GIT_REMOTE"),
		MarketBackfill:   os.Getenv("MAX_MARKET_BACKFILL") != "false",
	}

	switch c.ProposalProvider {
	case ProviderHeuristic, ProviderBedrock, ProviderOpenAI:
	default:
		return nil, fmt.Errorf("MAX_PROPOSAL_PROVIDER: unknown provider %q", c.ProposalProvider)
	}
	if c.ProposalProvider == ProviderOpenAI && c.OpenAIAPIKey == "" && c.OpenAIBaseURL == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required for the openai provider")
	}

	retries, err := strconv.Atoi(envOrDefault("MAX_PROPOSAL_RETRIES", "3"))
	if err != nil || retries < 1 {
		return nil, fmt.Errorf("MAX_PROPOSAL_RETRIES: must be a positive integer")
	}
	c.ProposalRetries = retries

	for _, d := range []struct {
		key      string
		fallback string
		dst      *time.Duration
	}{
		{"MAX_SWEEP_INTERVAL", "30s", &c.SweepInterval},
		{"MAX_PRESENCE_IDLE", "15m", &c.PresenceIdle},
		{"MAX_EXPORT_INTERVAL", "5m", &c.ExportInterval},
		{"MAX_EXECUTION_HOOK_TIMEOUT", "30s", &c.ExecutionHookTimeout},
		{"MAX_MARKET_INTERVAL", "5m", &c.MarketInterval},
	} {
		v, err := time.ParseDuration(envOrDefault(d.key, d.fallback))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = v
	}

	return c, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
