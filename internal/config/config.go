// File: internal/config/config.go
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	App() AppConfig
	LLM() LLMConfig
	Browser() BrowserConfig
	Artifacts() ArtifactsConfig
	Analysis() AnalysisConfig
	Instruction() InstructionConfig
	Apply() ApplyConfig
	Simulation() SimulationConfig
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg      LoggerConfig      `mapstructure:"logger" yaml:"logger"`
	AppCfg         AppConfig         `mapstructure:"app" yaml:"app"`
	LLMCfg         LLMConfig         `mapstructure:"llm" yaml:"llm"`
	BrowserCfg     BrowserConfig     `mapstructure:"browser" yaml:"browser"`
	ArtifactsCfg   ArtifactsConfig   `mapstructure:"artifacts" yaml:"artifacts"`
	AnalysisCfg    AnalysisConfig    `mapstructure:"analysis" yaml:"analysis"`
	InstructionCfg InstructionConfig `mapstructure:"instruction" yaml:"instruction"`
	ApplyCfg       ApplyConfig       `mapstructure:"apply" yaml:"apply"`
	SimulationCfg  SimulationConfig  `mapstructure:"simulation" yaml:"simulation"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig           { return c.LoggerCfg }
func (c *Config) App() AppConfig                 { return c.AppCfg }
func (c *Config) LLM() LLMConfig                 { return c.LLMCfg }
func (c *Config) Browser() BrowserConfig         { return c.BrowserCfg }
func (c *Config) Artifacts() ArtifactsConfig     { return c.ArtifactsCfg }
func (c *Config) Analysis() AnalysisConfig       { return c.AnalysisCfg }
func (c *Config) Instruction() InstructionConfig { return c.InstructionCfg }
func (c *Config) Apply() ApplyConfig             { return c.ApplyCfg }
func (c *Config) Simulation() SimulationConfig   { return c.SimulationCfg }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
	// Color renders the level in ANSI colour in console format.
	Color bool `mapstructure:"color" yaml:"color"`
}

// AppConfig points at the application under observation.
type AppConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// LLMProvider defines the supported LLM providers.
type LLMProvider string

const (
	// ProviderOpenAI covers any OpenAI compatible chat completions endpoint
	// (DeepInfra, OpenRouter, a local vLLM, ...).
	ProviderOpenAI LLMProvider = "openai"
	ProviderGemini LLMProvider = "gemini"
)

// LLMConfig holds the backend connection shared by both model slots.
type LLMConfig struct {
	BaseURL           string         `mapstructure:"base_url" yaml:"base_url"`
	APIKey            string         `mapstructure:"api_key" yaml:"-"`
	APITimeout        time.Duration  `mapstructure:"api_timeout" yaml:"api_timeout"`
	MaxRetries        int            `mapstructure:"max_retries" yaml:"max_retries"`
	MaxElapsed        time.Duration  `mapstructure:"max_elapsed" yaml:"max_elapsed"`
	RequestsPerMinute float64        `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	Vision            LLMModelConfig `mapstructure:"vision" yaml:"vision"`
	Code              LLMModelConfig `mapstructure:"code" yaml:"code"`
}

// LLMModelConfig defines the configuration for a single model slot.
type LLMModelConfig struct {
	Provider    LLMProvider `mapstructure:"provider" yaml:"provider"`
	Model       string      `mapstructure:"model" yaml:"model"`
	Temperature float64     `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int         `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// BrowserConfig holds settings for the headless capture browser.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	NoSandbox         bool          `mapstructure:"no_sandbox" yaml:"no_sandbox"`
	ExecPath          string        `mapstructure:"exec_path" yaml:"exec_path"`
	Args              []string      `mapstructure:"args" yaml:"args"`
	ViewportWidth     int           `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight    int           `mapstructure:"viewport_height" yaml:"viewport_height"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	NetworkIdleQuiet  time.Duration `mapstructure:"network_idle_quiet" yaml:"network_idle_quiet"`
	ScreenshotQuality int           `mapstructure:"screenshot_quality" yaml:"screenshot_quality"`
}

// ArtifactsConfig controls where run artifacts are written.
type ArtifactsConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// AnalysisConfig tunes the vision analysis request.
type AnalysisConfig struct {
	MaxLogChars int           `mapstructure:"max_log_chars" yaml:"max_log_chars"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// Strictness decides what a structurally incomplete instruction does to a run.
type Strictness string

const (
	StrictnessLenient Strictness = "lenient" // Missing segments are logged and recorded.
	StrictnessStrict  Strictness = "strict"  // Missing segments fail the run.
)

// InstructionConfig tunes instruction synthesis.
type InstructionConfig struct {
	Strictness Strictness    `mapstructure:"strictness" yaml:"strictness"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// ApplyConfig describes how the external code agent is launched.
type ApplyConfig struct {
	Agent     string   `mapstructure:"agent" yaml:"agent"`
	Model     string   `mapstructure:"model" yaml:"model"`
	ExtraArgs []string `mapstructure:"extra_args" yaml:"extra_args"`
	// SubprojectRoots are directories the agent should run inside when a
	// target file lives under them. The first match wins.
	SubprojectRoots []string      `mapstructure:"subproject_roots" yaml:"subproject_roots"`
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
	RecordGitHead   bool          `mapstructure:"record_git_head" yaml:"record_git_head"`
}

// SimulationConfig switches every external collaborator to a canned stand-in.
type SimulationConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "vibeloop")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.color", true)

	// -- App --
	v.SetDefault("app.url", "http://localhost:5173")

	// -- LLM --
	v.SetDefault("llm.base_url", "https://api.deepinfra.com/v1/openai")
	v.SetDefault("llm.api_timeout", "120s")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.max_elapsed", "2m")
	v.SetDefault("llm.requests_per_minute", 0)
	v.SetDefault("llm.vision.provider", string(ProviderOpenAI))
	v.SetDefault("llm.vision.model", "meta-llama/Llama-3.2-90B-Vision-Instruct")
	v.SetDefault("llm.vision.temperature", 0.2)
	v.SetDefault("llm.vision.max_tokens", 1200)
	v.SetDefault("llm.code.provider", string(ProviderOpenAI))
	v.SetDefault("llm.code.model", "Qwen/Qwen3-Coder-480B-A35B-Instruct-Turbo")
	v.SetDefault("llm.code.temperature", 0.1)
	v.SetDefault("llm.code.max_tokens", 2000)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.no_sandbox", false)
	v.SetDefault("browser.viewport_width", 1280)
	v.SetDefault("browser.viewport_height", 800)
	v.SetDefault("browser.navigation_timeout", "60s")
	v.SetDefault("browser.network_idle_quiet", "500ms")
	v.SetDefault("browser.screenshot_quality", 100)

	// -- Artifacts --
	v.SetDefault("artifacts.dir", "ai_loop_artifacts")

	// -- Analysis --
	v.SetDefault("analysis.max_log_chars", 20000)
	v.SetDefault("analysis.timeout", "5m")

	// -- Instruction --
	v.SetDefault("instruction.strictness", string(StrictnessLenient))
	v.SetDefault("instruction.timeout", "5m")

	// -- Apply --
	v.SetDefault("apply.agent", "aider")
	v.SetDefault("apply.model", "")
	v.SetDefault("apply.extra_args", []string{"--auto-test"})
	v.SetDefault("apply.subproject_roots", []string{"test-app"})
	v.SetDefault("apply.timeout", "30m")
	v.SetDefault("apply.record_git_head", true)

	// -- Simulation --
	v.SetDefault("simulation.enabled", false)
}

// BindEnv maps the variables the original scripts read onto config keys, next
// to the VIBELOOP_ prefixed names viper derives automatically.
func BindEnv(v *viper.Viper) {
	_ = v.BindEnv("llm.api_key", "VIBELOOP_LLM_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("llm.base_url", "VIBELOOP_LLM_BASE_URL", "OPENAI_API_BASE")
	_ = v.BindEnv("llm.vision.model", "VIBELOOP_LLM_VISION_MODEL", "VISION_MODEL")
	_ = v.BindEnv("llm.code.model", "VIBELOOP_LLM_CODE_MODEL", "CODE_MODEL_QWEN")
	_ = v.BindEnv("app.url", "VIBELOOP_APP_URL", "APP_URL")
}

// Decode unmarshals and path-expands the configuration without validating
// it, for callers such as doctor that report problems instead of refusing.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config

	BindEnv(v)

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	cfg, err := Decode(v)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// expandPaths resolves "~" in every path-valued setting.
func (c *Config) expandPaths() error {
	var err error
	if c.ArtifactsCfg.Dir, err = homedir.Expand(c.ArtifactsCfg.Dir); err != nil {
		return fmt.Errorf("artifacts.dir: %w", err)
	}
	if c.LoggerCfg.LogFile, err = homedir.Expand(c.LoggerCfg.LogFile); err != nil {
		return fmt.Errorf("logger.log_file: %w", err)
	}
	if c.BrowserCfg.ExecPath, err = homedir.Expand(c.BrowserCfg.ExecPath); err != nil {
		return fmt.Errorf("browser.exec_path: %w", err)
	}
	if c.ApplyCfg.Agent, err = homedir.Expand(c.ApplyCfg.Agent); err != nil {
		return fmt.Errorf("apply.agent: %w", err)
	}
	for i, root := range c.ApplyCfg.SubprojectRoots {
		if c.ApplyCfg.SubprojectRoots[i], err = homedir.Expand(root); err != nil {
			return fmt.Errorf("apply.subproject_roots[%d]: %w", i, err)
		}
		c.ApplyCfg.SubprojectRoots[i] = filepath.Clean(c.ApplyCfg.SubprojectRoots[i])
	}
	return nil
}

// AgentModel is the model the code agent is told to use. It falls back to the
// instruction model so both halves of the loop agree unless told otherwise.
func (c *Config) AgentModel() string {
	return AgentModel(c)
}

// AgentModel resolves the agent model for any configuration source.
func AgentModel(cfg Interface) string {
	if m := cfg.Apply().Model; m != "" {
		return m
	}
	return cfg.LLM().Code.Model
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.AppCfg.URL) == "" {
		return fmt.Errorf("app.url is a required configuration field")
	}
	if strings.TrimSpace(c.ArtifactsCfg.Dir) == "" {
		return fmt.Errorf("artifacts.dir is a required configuration field")
	}
	if err := c.LLMCfg.Validate(c.SimulationCfg.Enabled); err != nil {
		return fmt.Errorf("llm configuration invalid: %w", err)
	}
	if c.AnalysisCfg.MaxLogChars <= 0 {
		return fmt.Errorf("analysis.max_log_chars must be a positive integer")
	}
	switch c.InstructionCfg.Strictness {
	case StrictnessLenient, StrictnessStrict:
	default:
		return fmt.Errorf("instruction.strictness must be %q or %q, got %q", StrictnessLenient, StrictnessStrict, c.InstructionCfg.Strictness)
	}
	if c.ApplyCfg.Agent == "" && !c.SimulationCfg.Enabled {
		return fmt.Errorf("apply.agent is a required configuration field")
	}
	if c.BrowserCfg.NetworkIdleQuiet < 0 {
		return fmt.Errorf("browser.network_idle_quiet must not be negative")
	}
	return nil
}

// Validate checks the backend connection. The credential and endpoint are only
// required when a real backend will be contacted.
func (l *LLMConfig) Validate(simulated bool) error {
	if l.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	if l.Vision.Model == "" || l.Code.Model == "" {
		return fmt.Errorf("vision.model and code.model are required")
	}
	for name, m := range map[string]LLMModelConfig{"vision": l.Vision, "code": l.Code} {
		switch m.Provider {
		case ProviderOpenAI, ProviderGemini:
		default:
			return fmt.Errorf("%s.provider %q is not supported. Supported: [%s, %s]", name, m.Provider, ProviderOpenAI, ProviderGemini)
		}
	}
	if simulated {
		return nil
	}
	if l.APIKey == "" {
		return fmt.Errorf("api_key is required but not found. Ensure VIBELOOP_LLM_API_KEY or OPENAI_API_KEY is set")
	}
	if l.BaseURL == "" && (l.Vision.Provider == ProviderOpenAI || l.Code.Provider == ProviderOpenAI) {
		return fmt.Errorf("base_url is required for the %s provider", ProviderOpenAI)
	}
	return nil
}
