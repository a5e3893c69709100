package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string            `toml:"environment"` // "development" or "production"
	Server      ServerConfig      `toml:"server"`
	Logging     LoggingConfig     `toml:"logging"`
	Polygon     PolygonConfig     `toml:"polygon"`
	Gemini      GeminiConfig      `toml:"gemini"`
	Claude      ClaudeConfig      `toml:"claude"`
	LLM         LLMConfig         `toml:"llm"`
	WebSocket   WebSocketConfig   `toml:"websocket"`
	Pipeline    PipelineConfig    `toml:"pipeline"`
	Sessions    SessionsConfig    `toml:"sessions"`
	Definitions DefinitionsConfig `toml:"definitions"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"gt=0,lte=65535"`
	Host string `toml:"host" validate:"required"`
}

type LoggingConfig struct {
	Level       string   `toml:"level"`        // "debug", "info", "warn", "error"
	Format      string   `toml:"format"`       // "json" or "text"
	Output      []string `toml:"output"`       // "stdout", "file"
	TimeFormat  string   `toml:"time_format"`  // Time format for logs (default: "15:04:05.000")
	ClientDebug bool     `toml:"client_debug"` // Enable client-side debug console
}

// PolygonConfig contains Polygon.io API configuration
type PolygonConfig struct {
	APIKey         string `toml:"api_key" validate:"required"` // Polygon.io API key
	BaseURL        string `toml:"base_url"`                    // Override for testing (default: https://api.polygon.io)
	RateLimit      string `toml:"rate_limit"`                  // Minimum time between API requests (default: "150ms")
	RequestTimeout string `toml:"request_timeout"`             // HTTP request timeout (default: "30s")
}

// GeminiConfig contains Google Gemini API configuration for AI analysis
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`     // Google Gemini API key
	Model       string  `toml:"model"`       // Model for analysis operations (default: "gemini-3-flash-preview")
	Thinking    string  `toml:"thinking"`    // Default thinking level: NONE, LOW, NORMAL, MEDIUM, HIGH
	Timeout     string  `toml:"timeout"`     // Operation timeout as duration string (default: "5m")
	RateLimit   string  `toml:"rate_limit"`  // Rate limit duration string (default: "4s" for 15 RPM)
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0.7)
}

// ClaudeConfig contains Anthropic Claude API configuration for AI analysis
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`     // Anthropic API key
	Model       string  `toml:"model"`       // Model for analysis operations (default: "claude-haiku-3-5-20241022")
	Thinking    string  `toml:"thinking"`    // Default thinking level: NONE, LOW, NORMAL, MEDIUM, HIGH
	MaxTokens   int     `toml:"max_tokens"`  // Maximum tokens in response (default: 8192)
	Timeout     string  `toml:"timeout"`     // Operation timeout as duration string (default: "5m")
	RateLimit   string  `toml:"rate_limit"`  // Rate limit duration string (default: "1s")
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0.7)
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig contains unified configuration for all AI providers
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider"` // "gemini" or "claude" (default: "gemini")
	ChatModel       string      `toml:"chat_model"`       // Override model for chat turns (default: provider model)
}

// WebSocketConfig contains configuration for dashboard state streaming
type WebSocketConfig struct {
	// Whitelist of event types to broadcast. Empty list allows all events.
	AllowedEvents []string `toml:"allowed_events"`
	// Throttle intervals for high-frequency events. Map of event type to duration string.
	ThrottleIntervals map[string]string `toml:"throttle_intervals"`
	ReadBufferSize    int               `toml:"read_buffer_size"`
	WriteBufferSize   int               `toml:"write_buffer_size"`
}

// PipelineConfig contains tuning for the analysis pipeline
type PipelineConfig struct {
	FetchTimeout    string `toml:"fetch_timeout"`    // Market data fetch timeout (default: "60s")
	AnalysisTimeout string `toml:"analysis_timeout"` // Per AI analysis timeout (default: "3m")
	ChatTimeout     string `toml:"chat_timeout"`     // Chat turn timeout (default: "2m")
	DefaultTicker   string `toml:"default_ticker"`   // Ticker prefilled in the dashboard (default: "NVDA")
}

// SessionsConfig contains dashboard session lifecycle configuration
type SessionsConfig struct {
	IdleTTL         string `toml:"idle_ttl"`         // Evict sessions idle longer than this (default: "2h")
	JanitorSchedule string `toml:"janitor_schedule"` // Cron schedule for the session janitor (default: every 10 minutes)
	MaxSessions     int    `toml:"max_sessions"`     // Refuse new sessions beyond this count (default: 100)
}

// DefinitionsConfig contains configuration for prompt definition files
type DefinitionsConfig struct {
	Dir string `toml:"dir"` // Directory containing prompt definition files (YAML)
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability.
// Only user-facing settings should be exposed in auspex.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"stdout", "file"},
		},
		Polygon: PolygonConfig{
			APIKey:         "", // User must provide API key (POLYGON_API_KEY or config)
			BaseURL:        "https://api.polygon.io",
			RateLimit:      "150ms",
			RequestTimeout: "30s",
		},
		Gemini: GeminiConfig{
			APIKey:      "",
			Model:       "gemini-3-flash-preview",
			Thinking:    "NORMAL",
			Timeout:     "5m",
			RateLimit:   "4s", // Default to 4s (15 RPM) for free tier
			Temperature: 0.7,
		},
		Claude: ClaudeConfig{
			APIKey:      "",
			Model:       "claude-haiku-3-5-20241022",
			Thinking:    "NORMAL",
			MaxTokens:   8192,
			Timeout:     "5m",
			RateLimit:   "1s",
			Temperature: 0.7,
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderGemini,
		},
		WebSocket: WebSocketConfig{
			AllowedEvents: []string{},
			ThrottleIntervals: map[string]string{
				"slot_updated": "250ms", // Slot churn during a full run floods the socket otherwise
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		Pipeline: PipelineConfig{
			FetchTimeout:    "60s",
			AnalysisTimeout: "3m",
			ChatTimeout:     "2m",
			DefaultTicker:   "NVDA",
		},
		Sessions: SessionsConfig{
			IdleTTL:         "2h",
			JanitorSchedule: "*/10 * * * *",
			MaxSessions:     100,
		},
		Definitions: DefinitionsConfig{
			Dir: "./definitions",
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env -> CLI
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files with priority:
// default -> file1 -> file2 -> ... -> env -> CLI. Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	// Environment configuration (highest priority: AUSPEX_ENV, fallback: GO_ENV)
	if env := os.Getenv("AUSPEX_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("AUSPEX_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("AUSPEX_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Logging configuration
	if level := os.Getenv("AUSPEX_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("AUSPEX_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("AUSPEX_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range splitString(output, ",") {
			trimmed := trimSpace(o)
			if trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Polygon configuration
	if apiKey := os.Getenv("POLYGON_API_KEY"); apiKey != "" {
		config.Polygon.APIKey = apiKey
	}
	if apiKey := os.Getenv("AUSPEX_POLYGON_API_KEY"); apiKey != "" {
		config.Polygon.APIKey = apiKey // AUSPEX_ prefix takes priority
	}
	if baseURL := os.Getenv("AUSPEX_POLYGON_BASE_URL"); baseURL != "" {
		config.Polygon.BaseURL = baseURL
	}
	if rateLimit := os.Getenv("AUSPEX_POLYGON_RATE_LIMIT"); rateLimit != "" {
		if _, err := time.ParseDuration(rateLimit); err == nil {
			config.Polygon.RateLimit = rateLimit
		}
	}

	// Gemini configuration
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if apiKey := os.Getenv("AUSPEX_GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if model := os.Getenv("AUSPEX_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}
	if thinking := os.Getenv("AUSPEX_GEMINI_THINKING"); thinking != "" {
		config.Gemini.Thinking = thinking
	}
	if timeout := os.Getenv("AUSPEX_GEMINI_TIMEOUT"); timeout != "" {
		config.Gemini.Timeout = timeout
	}
	if rateLimit := os.Getenv("AUSPEX_GEMINI_RATE_LIMIT"); rateLimit != "" {
		config.Gemini.RateLimit = rateLimit
	}
	if temperature := os.Getenv("AUSPEX_GEMINI_TEMPERATURE"); temperature != "" {
		if t, err := strconv.ParseFloat(temperature, 32); err == nil {
			config.Gemini.Temperature = float32(t)
		}
	}

	// Claude configuration
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if apiKey := os.Getenv("AUSPEX_CLAUDE_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if model := os.Getenv("AUSPEX_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}
	if maxTokens := os.Getenv("AUSPEX_CLAUDE_MAX_TOKENS"); maxTokens != "" {
		if mt, err := strconv.Atoi(maxTokens); err == nil {
			config.Claude.MaxTokens = mt
		}
	}
	if timeout := os.Getenv("AUSPEX_CLAUDE_TIMEOUT"); timeout != "" {
		config.Claude.Timeout = timeout
	}

	// LLM provider configuration
	if provider := os.Getenv("AUSPEX_LLM_DEFAULT_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(provider)
	}
	if chatModel := os.Getenv("AUSPEX_LLM_CHAT_MODEL"); chatModel != "" {
		config.LLM.ChatModel = chatModel
	}

	// Pipeline configuration
	if fetchTimeout := os.Getenv("AUSPEX_PIPELINE_FETCH_TIMEOUT"); fetchTimeout != "" {
		if _, err := time.ParseDuration(fetchTimeout); err == nil {
			config.Pipeline.FetchTimeout = fetchTimeout
		}
	}
	if analysisTimeout := os.Getenv("AUSPEX_PIPELINE_ANALYSIS_TIMEOUT"); analysisTimeout != "" {
		if _, err := time.ParseDuration(analysisTimeout); err == nil {
			config.Pipeline.AnalysisTimeout = analysisTimeout
		}
	}
	if defaultTicker := os.Getenv("AUSPEX_PIPELINE_DEFAULT_TICKER"); defaultTicker != "" {
		config.Pipeline.DefaultTicker = defaultTicker
	}

	// Sessions configuration
	if idleTTL := os.Getenv("AUSPEX_SESSIONS_IDLE_TTL"); idleTTL != "" {
		if _, err := time.ParseDuration(idleTTL); err == nil {
			config.Sessions.IdleTTL = idleTTL
		}
	}
	if maxSessions := os.Getenv("AUSPEX_SESSIONS_MAX"); maxSessions != "" {
		if ms, err := strconv.Atoi(maxSessions); err == nil && ms > 0 {
			config.Sessions.MaxSessions = ms
		}
	}

	// Definitions configuration
	if dir := os.Getenv("AUSPEX_DEFINITIONS_DIR"); dir != "" {
		config.Definitions.Dir = dir
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	// Command-line flags have highest priority
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks required fields using go-playground/validator tags.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// Helper functions for string manipulation
func splitString(s, sep string) []string {
	result := []string{}
	start := 0
	for i := 0; i < len(s); i++ {
		if i+len(sep) <= len(s) && s[i:i+len(sep)] == sep {
			result = append(result, s[start:i])
			start = i + len(sep)
			i = start - 1
		}
	}
	result = append(result, s[start:])
	return result
}

func trimSpace(s string) string {
	start := 0
	end := len(s)
	for start < end && (s[start] == ' ' || s[start] == '\t' || s[start] == '\n' || s[start] == '\r') {
		start++
	}
	for end > start && (s[end-1] == ' ' || s[end-1] == '\t' || s[end-1] == '\n' || s[end-1] == '\r') {
		end--
	}
	return s[start:end]
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
