package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/petasbytes/recall-agent/internal/telemetry"
	"github.com/petasbytes/recall-agent/memory"
)

const (
	defaultTokenBudget   = 8000
	defaultMaxTokens     = 1024
	defaultMaxSteps      = 5
	defaultSaveDebounce  = 100 * time.Millisecond
	defaultSaveStaleness = time.Second
)

// Config holds the environment driven configuration for the agent.
type Config struct {
	ServiceName      string        `env:"AGT_SERVICE_NAME" envDefault:"recall-agent"`
	LogLevel         string        `env:"AGT_LOG_LEVEL" envDefault:"info"`
	DataDir          string        `env:"AGT_DATA_DIR" envDefault:"./.agent/db"`
	Model            string        `env:"AGT_MODEL"`
	TokenBudget      int           `env:"AGT_TOKEN_BUDGET" envDefault:"8000"`
	MaxTokens        int64         `env:"AGT_MAX_TOKENS" envDefault:"1024"`
	MaxSteps         int           `env:"AGT_MAX_STEPS" envDefault:"5"`
	SaveDebounce     time.Duration `env:"AGT_SAVE_DEBOUNCE" envDefault:"100ms"`
	SaveMaxStaleness time.Duration `env:"AGT_SAVE_MAX_STALENESS" envDefault:"1s"`
	SavePerStep      bool          `env:"AGT_SAVE_PER_STEP" envDefault:"true"`
	ResourceID       string        `env:"AGT_RESOURCE_ID" envDefault:"local-user"`
	ThreadID         string        `env:"AGT_THREAD_ID"`
	AgentName        string        `env:"AGT_AGENT_NAME" envDefault:"recall"`
	Instructions     string        `env:"AGT_INSTRUCTIONS" envDefault:"You are a helpful assistant with long-term memory of past conversations."`
	MemoryTokenLimit int           `env:"AGT_MEMORY_TOKEN_LIMIT" envDefault:"0"`
	ThreadCacheSize  int           `env:"AGT_THREAD_CACHE_SIZE" envDefault:"256"`
	MemoryConfigPath string        `env:"AGT_MEMORY_CONFIG"`
	AttachRoot       string        `env:"AGT_ATTACH_ROOT"`
	MetricsAddr      string        `env:"AGT_METRICS_ADDR"`
	OTLPEndpoint     string        `env:"AGT_OTLP_ENDPOINT"`
	VerboseWindow    bool          `env:"AGT_VERBOSE_WINDOW_LOGS"`

	// Model tiers reachable through the model_switch tool. Unset tiers run
	// on Model.
	ModelAdvanced  string `env:"AGT_MODEL_ADVANCED"`
	ModelEfficient string `env:"AGT_MODEL_EFFICIENT"`
	ModelReasoning string `env:"AGT_MODEL_REASONING"`

	// DebugArtifacts turns on every artifact flag that is not set explicitly.
	DebugArtifacts     bool   `env:"AGT_DEBUG_ARTIFACTS"`
	ObserveJSON        *bool  `env:"AGT_OBSERVE_JSON"`
	PersistAPIPayloads *bool  `env:"AGT_PERSIST_API_PAYLOADS"`
	ArtifactsDir       string `env:"AGT_ARTIFACTS_DIR" envDefault:".agent"`

	// Memory is the thread config loaded from MemoryConfigPath, overlaid on
	// memory.DefaultThreadConfig.
	Memory memory.ThreadConfig `env:"-"`
}

// Load reads .env (if present), parses AGT_* variables into Config and
// loads the optional memory config file.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}

	if cfg.TokenBudget <= 0 {
		cfg.TokenBudget = defaultTokenBudget
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = defaultMaxSteps
	}
	if cfg.SaveDebounce <= 0 {
		cfg.SaveDebounce = defaultSaveDebounce
	}
	if cfg.SaveMaxStaleness <= 0 {
		cfg.SaveMaxStaleness = defaultSaveStaleness
	}
	if cfg.MemoryTokenLimit < 0 {
		cfg.MemoryTokenLimit = 0
	}
	if strings.TrimSpace(cfg.ResourceID) == "" {
		return nil, fmt.Errorf("AGT_RESOURCE_ID must not be blank")
	}

	cfg.Memory = memory.DefaultThreadConfig()
	if cfg.MemoryConfigPath != "" {
		override, err := LoadMemoryConfig(cfg.MemoryConfigPath)
		if err != nil {
			return nil, err
		}
		cfg.Memory = cfg.Memory.Merge(override)
	}
	return cfg, nil
}

// Telemetry resolves the artifact flags into telemetry settings.
func (c *Config) Telemetry() telemetry.Settings {
	flag := func(v *bool) bool {
		if v != nil {
			return *v
		}
		return c.DebugArtifacts
	}
	return telemetry.Settings{
		Observe:         flag(c.ObserveJSON),
		PersistPayloads: flag(c.PersistAPIPayloads),
		Dir:             c.ArtifactsDir,
	}
}

// LoadMemoryConfig reads a YAML thread config file.
func LoadMemoryConfig(path string) (memory.ThreadConfig, error) {
	var tc memory.ThreadConfig
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return tc, fmt.Errorf("memory config file not found: %s", path)
		}
		return tc, err
	}
	if err := yaml.Unmarshal(b, &tc); err != nil {
		return tc, fmt.Errorf("parse memory config %s: %w", path, err)
	}
	return tc, nil
}
