// =============================================================================
// agentwatch configuration loader
// =============================================================================
// YAML/JSON file + environment variable overrides.
//
// Usage:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("agentwatch.yaml").
//	    WithEnvPrefix("AGENTWATCH").
//	    Load()
//
// Precedence: defaults -> file -> environment
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete agentwatch configuration.
type Config struct {
	// Chat controls the conversation orchestrator.
	Chat ChatConfig `yaml:"chat" env:"CHAT"`

	// Participants are the conversational roles, in speaking order.
	// Lists cannot be expressed as flat environment variables.
	Participants []ParticipantConfig `yaml:"participants" env:"-"`

	// Assistant is the single participant used by the assistant console mode.
	Assistant ParticipantConfig `yaml:"assistant" env:"ASSISTANT"`

	// LLM is the completion provider.
	LLM LLMConfig `yaml:"llm" env:"LLM"`

	// Tools is the function catalog.
	Tools ToolsConfig `yaml:"tools" env:"TOOLS"`

	// Log is the zap logger.
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry is the OpenTelemetry pipeline.
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`

	// Metrics is the Prometheus scrape endpoint.
	Metrics MetricsConfig `yaml:"metrics" env:"METRICS"`
}

// ChatConfig configures conversation sessions.
type ChatConfig struct {
	// Hard cap on participant turns per session.
	MaxTurns int `yaml:"max_turns" env:"MAX_TURNS"`
	// When the termination policy runs: "message" or "round".
	TerminationCheck string `yaml:"termination_check" env:"TERMINATION_CHECK"`
	// Case-insensitive keywords that end a session.
	TerminationKeywords []string `yaml:"termination_keywords" env:"TERMINATION_KEYWORDS"`
	// Seed each new session with the previous transcript.
	CarryHistory bool `yaml:"carry_history" env:"CARRY_HISTORY"`
	// Upper bound on one session's wall time; zero disables it.
	SessionTimeout time.Duration `yaml:"session_timeout" env:"SESSION_TIMEOUT"`
}

// ParticipantConfig is the static definition of one conversational role.
type ParticipantConfig struct {
	ID           string `yaml:"id" env:"ID"`
	Name         string `yaml:"name" env:"NAME"`
	Instructions string `yaml:"instructions" env:"INSTRUCTIONS"`
}

// LLMConfig configures the completion provider.
type LLMConfig struct {
	// "azure" or "openai"
	Provider string `yaml:"provider" env:"PROVIDER"`
	// Model name, or deployment name for Azure.
	Model string `yaml:"model" env:"MODEL"`
	// Base URL; required for Azure, optional for OpenAI.
	Endpoint string `yaml:"endpoint" env:"ENDPOINT"`
	APIKey   string `yaml:"api_key" env:"API_KEY"`
	// Azure REST API version.
	APIVersion  string        `yaml:"api_version" env:"API_VERSION"`
	Timeout     time.Duration `yaml:"timeout" env:"TIMEOUT"`
	Temperature float64       `yaml:"temperature" env:"TEMPERATURE"`
	MaxTokens   int           `yaml:"max_tokens" env:"MAX_TOKENS"`
	// Client-side request rate; zero disables limiting.
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"REQUESTS_PER_SECOND"`
	Burst             int     `yaml:"burst" env:"BURST"`
	// Provider <-> tool round trips allowed within one turn.
	MaxToolRounds int `yaml:"max_tool_rounds" env:"MAX_TOOL_ROUNDS"`
	// Token budget for the transcript sent to the provider; zero disables trimming.
	ContextTokens int `yaml:"context_tokens" env:"CONTEXT_TOKENS"`
}

// ToolsConfig configures the function catalog.
type ToolsConfig struct {
	// Per-invocation timeout.
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// Register the sample Lights plugin.
	Lights bool `yaml:"lights" env:"LIGHTS"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	// debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// json, console
	Format           string   `yaml:"format" env:"FORMAT"`
	OutputPaths      []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	EnableCaller     bool     `yaml:"enable_caller" env:"ENABLE_CALLER"`
	EnableStacktrace bool     `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig configures the OpenTelemetry pipeline.
type TelemetryConfig struct {
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// console, otlp, langfuse
	Exporter string `yaml:"exporter" env:"EXPORTER"`
	// otlp, prometheus, console, none; empty follows Exporter.
	MetricsExporter string `yaml:"metrics_exporter" env:"METRICS_EXPORTER"`
	// host:port of an OTLP collector (for example an Aspire dashboard).
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// OTLP transport: grpc or http.
	OTLPProtocol string  `yaml:"otlp_protocol" env:"OTLP_PROTOCOL"`
	Insecure     bool    `yaml:"insecure" env:"INSECURE"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
	// Ship zap records through the OTel log bridge.
	ExportLogs bool `yaml:"export_logs" env:"EXPORT_LOGS"`
	// Record prompt and completion content on spans.
	SensitiveData bool           `yaml:"sensitive_data" env:"SENSITIVE_DATA"`
	Langfuse      LangfuseConfig `yaml:"langfuse" env:"LANGFUSE"`
}

// LangfuseConfig holds Langfuse OTLP/HTTP ingestion credentials.
type LangfuseConfig struct {
	Endpoint  string `yaml:"endpoint" env:"ENDPOINT"`
	PublicKey string `yaml:"public_key" env:"PUBLIC_KEY"`
	SecretKey string `yaml:"secret_key" env:"SECRET_KEY"`
}

// MetricsConfig configures the Prometheus scrape endpoint.
type MetricsConfig struct {
	Addr            string        `yaml:"addr" env:"ADDR"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// =============================================================================
// Loader
// =============================================================================

// Loader builds a Config (builder pattern).
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader creates a loader with the AGENTWATCH env prefix.
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "AGENTWATCH",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath sets the config file path.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator adds a validator run after all layers are applied.
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load resolves defaults -> file -> environment and runs validators.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile decodes a YAML file. JSON is a subset of YAML, so an
// env.local.json style file decodes through the same path.
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv walks struct fields recursively using their env tags.
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue, ok := os.LookupEnv(envKey)
		if !ok || envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// comma separated string slices
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// LoadFromEnv loads configuration from defaults and the environment only.
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}
