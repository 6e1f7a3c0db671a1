package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the medrag configuration.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Auth        AuthConfig        `yaml:"auth"`
	Logging     LoggingConfig     `yaml:"logging"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Registry    RegistryConfig    `yaml:"registry"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	LLM         LLMConfig         `yaml:"llm"`
	Escalation  EscalationConfig  `yaml:"escalation"`
	Cache       CacheConfig       `yaml:"cache"`
	Answer      AnswerConfig      `yaml:"answer"`
	WriteBack   WriteBackConfig   `yaml:"write_back"`
	Events      EventsConfig      `yaml:"events"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
	// QueryTimeoutMs is the deadline of one query request.
	QueryTimeoutMs int `yaml:"query_timeout_ms"`
}

// VectorStoreConfig selects and configures the similarity index.
type VectorStoreConfig struct {
	Driver           string       `yaml:"driver"` // valkey, redis, qdrant, memory (default: valkey)
	Addrs            []string     `yaml:"addrs"`
	Password         string       `yaml:"password"`
	ReadinessTimeout int          `yaml:"readiness_timeout_sec"`
	Dimensions       int          `yaml:"dimensions"`
	HNSWM            int          `yaml:"hnsw_m"`
	HNSWEFConstruct  int          `yaml:"hnsw_ef_construction"`
	HNSWEFRuntime    int          `yaml:"hnsw_ef_runtime"`
	Qdrant           QdrantConfig `yaml:"qdrant"`
}

// QdrantConfig holds Qdrant connection settings.
type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	UseTLS     bool   `yaml:"use_tls"`
	APIKey     string `yaml:"api_key"`
	Collection string `yaml:"collection"`
}

// RegistryConfig selects the facility registry.
type RegistryConfig struct {
	Driver     string           `yaml:"driver"` // postgres, static (default: static)
	DSN        string           `yaml:"dsn"`
	Facilities []FacilityConfig `yaml:"facilities"`
}

// FacilityConfig is a statically registered facility.
type FacilityConfig struct {
	ID       string   `yaml:"id"`
	Name     string   `yaml:"name"`
	Address  string   `yaml:"address"`
	Patients []string `yaml:"patients"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider    string `yaml:"provider"`
	APIKey      string `yaml:"api_key"`
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	Dimensions  int    `yaml:"dimensions"`
	Instruction string `yaml:"instruction"`
	CacheTTLSec int    `yaml:"cache_ttl_sec"`
}

// LLMConfig holds the completion client settings.
type LLMConfig struct {
	APIKey       string  `yaml:"api_key"`
	BaseURL      string  `yaml:"base_url"`
	Model        string  `yaml:"model"`
	SystemPrompt string  `yaml:"system_prompt"`
	MaxTokens    int     `yaml:"max_tokens"`
	Temperature  float32 `yaml:"temperature"`
	TimeoutMs    int     `yaml:"timeout_ms"`
	Rate         float64 `yaml:"rate"` // requests per second, 0 = unlimited
	Burst        int     `yaml:"burst"`
}

// TierConfig holds one tier's scoring rules.
type TierConfig struct {
	Threshold float64 `yaml:"threshold"`
	MinScore  float64 `yaml:"min_score"`
}

// EscalationConfig tunes the escalation router.
type EscalationConfig struct {
	TopK          int        `yaml:"top_k"`
	TargetMatches int        `yaml:"target_matches"`
	TierTimeoutMs int        `yaml:"tier_timeout_ms"`
	DerivedMargin float64    `yaml:"derived_margin"`
	Patient       TierConfig `yaml:"patient"`
	Facility      TierConfig `yaml:"facility"`
	General       TierConfig `yaml:"general"`
}

// CacheConfig holds result cache settings.
type CacheConfig struct {
	TTLSec     int `yaml:"ttl_sec"`
	MaxEntries int `yaml:"max_entries"`
}

// AnswerConfig holds answer assembly settings.
type AnswerConfig struct {
	GroundingFloor float64 `yaml:"grounding_floor"`
	PreviewChars   int     `yaml:"preview_chars"`
}

// WriteBackConfig holds derived Q/A write-back settings.
type WriteBackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Policy     string `yaml:"policy"` // fallback_only, always
	TimeoutSec int    `yaml:"timeout_sec"`
}

// EventsConfig holds cross-replica invalidation settings. Empty URL disables it.
type EventsConfig struct {
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes YAML with env expansion, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	c.applyHTTPDefaults()
	c.applyStoreDefaults()
	c.applyProviderDefaults()
	c.applyRetrievalDefaults()
}

func (c *Config) applyHTTPDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.QueryTimeoutMs <= 0 {
		c.HTTP.QueryTimeoutMs = 30000
	}
}

func (c *Config) applyStoreDefaults() {
	vs := &c.VectorStore
	if vs.Driver == "" {
		vs.Driver = "valkey"
	}
	if vs.ReadinessTimeout <= 0 {
		vs.ReadinessTimeout = 10
	}
	if vs.HNSWM <= 0 {
		vs.HNSWM = 16
	}
	if vs.HNSWEFConstruct <= 0 {
		vs.HNSWEFConstruct = 200
	}
	if vs.Qdrant.Port <= 0 {
		vs.Qdrant.Port = 6334
	}
	if vs.Qdrant.Collection == "" {
		vs.Qdrant.Collection = "medrag_chunks"
	}
	if c.Registry.Driver == "" {
		c.Registry.Driver = "static"
	}
}

func (c *Config) applyProviderDefaults() {
	e := &c.Embedding
	if e.Provider == "" {
		e.Provider = "openai"
	}
	if e.Model == "" {
		e.Model = "text-embedding-3-small"
	}
	if e.Dimensions <= 0 {
		e.Dimensions = 1536
	}
	if e.CacheTTLSec <= 0 {
		e.CacheTTLSec = 7 * 24 * 3600
	}
	if c.VectorStore.Dimensions <= 0 {
		c.VectorStore.Dimensions = e.Dimensions
	}
	l := &c.LLM
	if l.Model == "" {
		l.Model = "gpt-4o-mini"
	}
	if l.MaxTokens <= 0 {
		l.MaxTokens = 1024
	}
	if l.TimeoutMs <= 0 {
		l.TimeoutMs = 20000
	}
	if l.Rate > 0 && l.Burst <= 0 {
		l.Burst = 1
	}
}

func (c *Config) applyRetrievalDefaults() {
	es := &c.Escalation
	if es.TopK <= 0 {
		es.TopK = 5
	}
	if es.TargetMatches <= 0 {
		es.TargetMatches = 8
	}
	if es.TierTimeoutMs <= 0 {
		es.TierTimeoutMs = 800
	}
	if es.DerivedMargin == 0 {
		es.DerivedMargin = 0.05
	}
	defaultTier(&es.Patient, 0.80, 0.50)
	defaultTier(&es.Facility, 0.75, 0.45)
	defaultTier(&es.General, 0.70, 0.40)

	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 900
	}
	if c.Cache.MaxEntries <= 0 {
		c.Cache.MaxEntries = 10000
	}
	if c.Answer.GroundingFloor == 0 {
		c.Answer.GroundingFloor = 0.5
	}
	if c.Answer.PreviewChars <= 0 {
		c.Answer.PreviewChars = 500
	}
	if c.WriteBack.Policy == "" {
		c.WriteBack.Policy = "fallback_only"
	}
	if c.WriteBack.TimeoutSec <= 0 {
		c.WriteBack.TimeoutSec = 10
	}
	if c.Events.Subject == "" {
		c.Events.Subject = "medrag.cache.invalidate"
	}
}

func defaultTier(t *TierConfig, threshold, minScore float64) {
	if t.Threshold == 0 {
		t.Threshold = threshold
	}
	if t.MinScore == 0 {
		t.MinScore = minScore
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	switch c.VectorStore.Driver {
	case "valkey", "redis":
		if len(c.VectorStore.Addrs) == 0 {
			return fmt.Errorf("vector_store.addrs is required for driver %q", c.VectorStore.Driver)
		}
	case "qdrant":
		if c.VectorStore.Qdrant.Host == "" {
			return fmt.Errorf("vector_store.qdrant.host is required")
		}
	case "memory":
	default:
		return fmt.Errorf("vector_store.driver must be valkey, redis, qdrant or memory, got %q", c.VectorStore.Driver)
	}
	if c.VectorStore.Dimensions != c.Embedding.Dimensions {
		return fmt.Errorf("vector_store.dimensions (%d) must match embedding.dimensions (%d)",
			c.VectorStore.Dimensions, c.Embedding.Dimensions)
	}

	switch c.Registry.Driver {
	case "postgres":
		if c.Registry.DSN == "" {
			return fmt.Errorf("registry.dsn is required for driver postgres")
		}
	case "static":
		for i, f := range c.Registry.Facilities {
			if f.ID == "" {
				return fmt.Errorf("registry.facilities[%d].id is required", i)
			}
		}
	default:
		return fmt.Errorf("registry.driver must be postgres or static, got %q", c.Registry.Driver)
	}

	for name, t := range map[string]TierConfig{
		"patient": c.Escalation.Patient, "facility": c.Escalation.Facility, "general": c.Escalation.General,
	} {
		if t.MinScore > t.Threshold {
			return fmt.Errorf("escalation.%s.min_score (%.2f) must not exceed threshold (%.2f)",
				name, t.MinScore, t.Threshold)
		}
	}

	switch c.WriteBack.Policy {
	case "fallback_only", "always":
	default:
		return fmt.Errorf("write_back.policy must be \"fallback_only\" or \"always\", got %q", c.WriteBack.Policy)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
