package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// allEnvVars lists every env var Load reads; they are cleared between tests.
var allEnvVars = []string{
	"MAX_DATABASE_URL", "MAX_HTTP_ADDR", "MAX_NATS_URL", "MAX_AUTH_TOKEN", "MAX_TUNING_FILE",
	"MAX_PROPOSAL_PROVIDER", "MAX_PROPOSAL_RETRIES", "MAX_BEDROCK_MODEL", "MAX_BEDROCK_REGION",
	"MAX_OPENAI_MODEL", "MAX_OPENAI_BASE_URL", "OPENAI_API_KEY",
	"MAX_SWEEP_INTERVAL", "MAX_PRESENCE_IDLE",
	"MAX_EXPORT_INTERVAL", "MAX_EXPORT_S3_BUCKET", "MAX_EXPORT_S3_ENDPOINT",
	"MAX_EXPORT_S3_REGION", "MAX_EXPORT_S3_PREFIX", "MAX_EXPORT_S3_HISTORY", "MAX_EXPORT_GIT_REPO",
	"MAX_EXPORT_GIT_FILE", "MAX_EXPORT_GIT_BRANCH", "MAX_EXPORT_GIT_REMOTE",
	"MAX_EXECUTION_HOOK", "MAX_EXECUTION_HOOK_TIMEOUT",
	"MAX_MARKET_INTERVAL", "MAX_MARKET_BACKFILL",
}

func clearAllEnv(t *testing.T) {
	t.Helper()
	for _, key := range allEnvVars {
		t.Setenv(key, "")
	}
}

func TestLoad(t *testing.T) {
	for _, tc := range []struct {
		name         string
		env          map[string]string
		wantErr      bool
		wantHTTPAddr string
		wantProvider string
	}{
		{
			name:         "Defaults",
			env:          map[string]string{},
			wantHTTPAddr: ":8080",
			wantProvider: ProviderHeuristic,
		},
		{
			name: "Custom",
			env: map[string]string{
				"MAX_DATABASE_URL":      "postgres://db:5432/max",
				"MAX_HTTP_ADDR":         ":3000",
				"MAX_NATS_URL":          "nats://localhost:4222",
				"MAX_PROPOSAL_PROVIDER": "bedrock",
			},
			wantHTTPAddr: ":3000",
			wantProvider: ProviderBedrock,
		},
		{
			name:    "UnknownProvider",
			env:     map[string]string{"MAX_PROPOSAL_PROVIDER": "crystal-ball"},
			wantErr: true,
		},
		{
			name:    "OpenAIWithoutKey",
			env:     map[string]string{"MAX_PROPOSAL_PROVIDER": "openai"},
			wantErr: true,
		},
		{
			name: "OpenAIWithKey",
			env: map[string]string{
				"MAX_PROPOSAL_PROVIDER": "openai",
				"OPENAI_API_KEY":        "sk-test",
			},
			wantHTTPAddr: ":8080",
			wantProvider: ProviderOpenAI,
		},
		{
			name:    "BadRetries",
			env:     map[string]string{"MAX_PROPOSAL_RETRIES": "0"},
			wantErr: true,
		},
		{
			name:    "BadSweepInterval",
			env:     map[string]string{"MAX_SWEEP_INTERVAL": "soon"},
			wantErr: true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			clearAllEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.DatabaseURL != tc.env["MAX_DATABASE_URL"] {
				t.Errorf("DatabaseURL = %q, want %q", cfg.DatabaseURL, tc.env["MAX_DATABASE_URL"])
			}
			if cfg.HTTPAddr != tc.wantHTTPAddr {
				t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, tc.wantHTTPAddr)
			}
			if cfg.ProposalProvider != tc.wantProvider {
				t.Errorf("ProposalProvider = %q, want %q", cfg.ProposalProvider, tc.wantProvider)
			}
		})
	}
}

func TestLoadDurationsAndExportDefaults(t *testing.T) {
	clearAllEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SweepInterval != 30*time.Second {
		t.Errorf("SweepInterval = %v, want 30s", cfg.SweepInterval)
	}
	if cfg.PresenceIdle != 15*time.Minute {
		t.Errorf("PresenceIdle = %v, want 15m", cfg.PresenceIdle)
	}
	if cfg.ExportInterval != 5*time.Minute {
		t.Errorf("ExportInterval = %v, want 5m", cfg.ExportInterval)
	}
	if cfg.ExportS3Prefix != "max/exports" || cfg.ExportS3History {
		t.Errorf("ExportS3Prefix = %q, history = %v", cfg.ExportS3Prefix, cfg.ExportS3History)
	}
	if cfg.ExportGitBranch != "main" {
		t.Errorf("ExportGitBranch = %q", cfg.ExportGitBranch)
	}
	if cfg.ProposalRetries != 3 {
		t.Errorf("ProposalRetries = %d, want 3", cfg.ProposalRetries)
	}
	if cfg.ExecutionHook != "" || cfg.ExecutionHookTimeout != 30*time.Second {
		t.Errorf("ExecutionHook = %q, timeout = %v", cfg.ExecutionHook, cfg.ExecutionHookTimeout)
	}
	if cfg.MarketInterval != 5*time.Minute || !cfg.MarketBackfill {
		t.Errorf("MarketInterval = %v, backfill = %v", cfg.MarketInterval, cfg.MarketBackfill)
	}
}

func TestLoadExportDisabled(t *testing.T) {
	clearAllEnv(t)
	t.Setenv("MAX_EXPORT_INTERVAL", "0s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ExportInterval != 0 {
		t.Errorf("ExportInterval = %v, want 0 (disabled)", cfg.ExportInterval)
	}
}

func TestEnvOrDefault(t *testing.T) {
	for _, tc := range []struct {
		name     string
		key      string
		envVal   string
		fallback string
		want     string
	}{
		{"EmptyUsesDefault", "TEST_ENVDEFAULT_EMPTY", "", "default-val", "default-val"},
		{"SetUsesEnv", "TEST_ENVDEFAULT_SET", "custom", "default-val", "custom"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.envVal)
			got := envOrDefault(tc.key, tc.fallback)
			if got != tc.want {
				t.Errorf("envOrDefault(%q, %q) = %q, want %q", tc.key, tc.fallback, got, tc.want)
			}
		})
	}
}

func TestDefaultTuning(t *testing.T) {
	tu := DefaultTuning()
	if err := tu.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if tu.Rounds.MaxRounds != 2 {
		t.Errorf("MaxRounds = %d, want 2", tu.Rounds.MaxRounds)
	}
	if tu.Rounds.PendingTimeout != 5*time.Minute || tu.Rounds.RevisionTimeout != 10*time.Minute {
		t.Errorf("timeouts = %v/%v, want 5m/10m", tu.Rounds.PendingTimeout, tu.Rounds.RevisionTimeout)
	}
	if tu.Revision.MaxRevisions != 2 {
		t.Errorf("MaxRevisions = %d, want 2", tu.Revision.MaxRevisions)
	}
	if tu.Gate.ConfidenceThreshold != 65 {
		t.Errorf("ConfidenceThreshold = %v, want 65", tu.Gate.ConfidenceThreshold)
	}
	if tu.Scoring.ApprovalFloor() != 50 {
		t.Errorf("ApprovalFloor = %v, want 50", tu.Scoring.ApprovalFloor())
	}
}

func TestLoadTuning(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.toml")
	data := `
[rounds]
max_rounds = 3
pending_timeout = "90s"

[scoring]
approval_threshold = 65

[gate]
confidence_threshold = 70
min_interval = "10m"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	tu, err := LoadTuning(path)
	if err != nil {
		t.Fatalf("LoadTuning: %v", err)
	}
	if tu.Rounds.MaxRounds != 3 {
		t.Errorf("MaxRounds = %d, want 3", tu.Rounds.MaxRounds)
	}
	if tu.Rounds.PendingTimeout != 90*time.Second {
		t.Errorf("PendingTimeout = %v, want 90s", tu.Rounds.PendingTimeout)
	}
	if tu.Rounds.RevisionTimeout != 10*time.Minute {
		t.Errorf("RevisionTimeout = %v, want default 10m", tu.Rounds.RevisionTimeout)
	}
	if tu.Scoring.ApprovalThreshold != 65 {
		t.Errorf("ApprovalThreshold = %v, want 65", tu.Scoring.ApprovalThreshold)
	}
	if tu.Scoring.Weights.Confidence != 0.35 {
		t.Errorf("weights should keep defaults, got %+v", tu.Scoring.Weights)
	}
	if tu.Gate.MinInterval != 10*time.Minute {
		t.Errorf("MinInterval = %v, want 10m", tu.Gate.MinInterval)
	}
}

func TestLoadTuning_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(path, []byte("[rounds]\nmax_rounds = 0\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadTuning(path); err == nil {
		t.Fatal("expected validation error for max_rounds = 0")
	}
	if _, err := LoadTuning(filepath.Join(dir, "missing.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadTuning_EmptyPath(t *testing.T) {
	tu, err := LoadTuning("")
	if err != nil {
		t.Fatalf("LoadTuning(\"\"): %v", err)
	}
	if tu != DefaultTuning() {
		t.Errorf("expected defaults, got %+v", tu)
	}
}
