package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Agent     AgentConfig     `toml:"agent"`
	Browser   BrowserConfig   `toml:"browser"`
	Reports   ReportsConfig   `toml:"reports"`
	Oracle    OracleConfig    `toml:"oracle"`
	Gemini    GeminiConfig    `toml:"gemini"`
	Claude    ClaudeConfig    `toml:"claude"`
	Ollama    OllamaConfig    `toml:"ollama"`
	Healing   HealingConfig   `toml:"healing"`
	QoE       QoEConfig       `toml:"qoe"`
	Vision    VisionConfig    `toml:"vision"`
	Chaos     ChaosConfig     `toml:"chaos"`
	Dashboard DashboardConfig `toml:"dashboard"`
	Logging   LoggingConfig   `toml:"logging"`
}

// AgentConfig controls what the agent drives and when
type AgentConfig struct {
	TargetURL string `toml:"target_url" validate:"required,url"`
	Scenario  string `toml:"scenario"` // Path to a YAML scenario; empty runs the built-in scenario
	Schedule  string `toml:"schedule"` // Optional cron expression for repeated runs
}

type BrowserConfig struct {
	Headless       bool          `toml:"headless"`
	NoSandbox      bool          `toml:"no_sandbox"`
	DisableGPU     bool          `toml:"disable_gpu"`
	ViewportWidth  int           `toml:"viewport_width" validate:"gt=0"`
	ViewportHeight int           `toml:"viewport_height" validate:"gt=0"`
	StartupTimeout time.Duration `toml:"startup_timeout"`
	RecordVideo    bool          `toml:"record_video"`
}

// ReportsConfig locates report, screenshot and video artifacts
type ReportsConfig struct {
	Dir      string `toml:"dir" validate:"required"`
	VideoDir string `toml:"video_dir"` // Relative to Dir when not absolute (default: "videos")
}

// OracleProvider selects the vision backend consulted during self-healing
type OracleProvider string

const (
	OracleProviderGemini OracleProvider = "gemini"
	OracleProviderClaude OracleProvider = "claude"
	OracleProviderOllama OracleProvider = "ollama"
	OracleProviderNone   OracleProvider = "none"
)

type OracleConfig struct {
	Provider  OracleProvider `toml:"provider" validate:"oneof=gemini claude ollama none"`
	Timeout   time.Duration  `toml:"timeout"`
	RateLimit time.Duration  `toml:"rate_limit"` // Minimum spacing between hosted backend requests
}

// GeminiConfig contains Google Gemini API configuration for the hosted oracle
type GeminiConfig struct {
	APIKey  string `toml:"api_key"`
	Model   string `toml:"model"`
	BaseURL string `toml:"base_url"` // empty uses the public endpoint
}

// ClaudeConfig contains Anthropic Claude API configuration for the hosted oracle
type ClaudeConfig struct {
	APIKey    string `toml:"api_key"`
	Model     string `toml:"model"`
	MaxTokens int    `toml:"max_tokens"`
}

// OllamaConfig describes the locally hosted vision-language model
type OllamaConfig struct {
	URL          string        `toml:"url" validate:"required,url"`
	Model        string        `toml:"model" validate:"required"`
	ServeCommand []string      `toml:"serve_command"` // Launched when the server is unreachable; empty disables launching
	StartupWait  time.Duration `toml:"startup_wait"`
	PollInterval time.Duration `toml:"poll_interval"`
}

type HealingConfig struct {
	PrimaryTimeout time.Duration `toml:"primary_timeout"`
}

type QoEConfig struct {
	SettleDelay    time.Duration `toml:"settle_delay"`
	DRMSignatures  []string      `toml:"drm_signatures"`
	BufferSelector string        `toml:"buffer_selector"`
}

type VisionConfig struct {
	BlackThreshold float64 `toml:"black_threshold" validate:"gt=0,lte=1"`
}

type ChaosConfig struct {
	MenuSelector string        `toml:"menu_selector"`
	MenuDelay    time.Duration `toml:"menu_delay"`
}

// DashboardConfig configures the reporting service
type DashboardConfig struct {
	Host         string        `toml:"host"`
	Port         int           `toml:"port" validate:"gt=0,lt=65536"`
	PollInterval time.Duration `toml:"poll_interval"`
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			TargetURL: "http://localhost:5173",
		},
		Browser: BrowserConfig{
			Headless:       false,
			NoSandbox:      true,
			DisableGPU:     true,
			ViewportWidth:  1920,
			ViewportHeight: 1080,
			StartupTimeout: 30 * time.Second,
			RecordVideo:    true,
		},
		Reports: ReportsConfig{
			Dir:      "reports",
			VideoDir: "videos",
		},
		Oracle: OracleConfig{
			Provider:  OracleProviderGemini,
			Timeout:   30 * time.Second,
			RateLimit: 4 * time.Second, // 15 RPM free tier
		},
		Gemini: GeminiConfig{
			Model: "gemini-1.5-flash",
		},
		Claude: ClaudeConfig{
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 256,
		},
		Ollama: OllamaConfig{
			URL:          "http://127.0.0.1:11434",
			Model:        "llava",
			ServeCommand: []string{"ollama", "serve"},
			StartupWait:  30 * time.Second,
			PollInterval: time.Second,
		},
		Healing: HealingConfig{
			PrimaryTimeout: 2 * time.Second,
		},
		QoE: QoEConfig{
			SettleDelay:    time.Second,
			DRMSignatures:  []string{"DRM_LICENSE_INVALID", "Error 5001"},
			BufferSelector: ".animate-spin",
		},
		Vision: VisionConfig{
			BlackThreshold: 0.95,
		},
		Chaos: ChaosConfig{
			MenuSelector: "button:has(svg.lucide-bug)",
			MenuDelay:    500 * time.Millisecond,
		},
		Dashboard: DashboardConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			PollInterval: 2 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority: default -> file1 -> file2 -> ... -> env.
// CLI overrides are applied afterwards by the caller.
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

		// Unmarshal merges into the existing values
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if url := os.Getenv("VISIONONE_TARGET_URL"); url != "" {
		config.Agent.TargetURL = url
	}
	if scenario := os.Getenv("VISIONONE_SCENARIO"); scenario != "" {
		config.Agent.Scenario = scenario
	}
	if schedule := os.Getenv("VISIONONE_SCHEDULE"); schedule != "" {
		config.Agent.Schedule = schedule
	}
	if headless := os.Getenv("VISIONONE_HEADLESS"); headless != "" {
		if h, err := strconv.ParseBool(headless); err == nil {
			config.Browser.Headless = h
		}
	}
	if dir := os.Getenv("VISIONONE_REPORTS_DIR"); dir != "" {
		config.Reports.Dir = dir
	}

	if provider := os.Getenv("VISIONONE_ORACLE_PROVIDER"); provider != "" {
		config.Oracle.Provider = OracleProvider(strings.ToLower(provider))
	}
	if timeout := os.Getenv("VISIONONE_ORACLE_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Oracle.Timeout = d
		}
	}

	// Gemini: project-prefixed key wins over the plain variable
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if apiKey := os.Getenv("VISIONONE_GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if model := os.Getenv("VISIONONE_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}

	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if apiKey := os.Getenv("VISIONONE_CLAUDE_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if model := os.Getenv("VISIONONE_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}

	if url := os.Getenv("VISIONONE_OLLAMA_URL"); url != "" {
		config.Ollama.URL = url
	}
	if model := os.Getenv("VISIONONE_OLLAMA_MODEL"); model != "" {
		config.Ollama.Model = model
	}

	if threshold := os.Getenv("VISIONONE_BLACK_THRESHOLD"); threshold != "" {
		if t, err := strconv.ParseFloat(threshold, 64); err == nil {
			config.Vision.BlackThreshold = t
		}
	}

	if port := os.Getenv("VISIONONE_DASHBOARD_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Dashboard.Port = p
		}
	}
	if host := os.Getenv("VISIONONE_DASHBOARD_HOST"); host != "" {
		config.Dashboard.Host = host
	}

	if level := os.Getenv("VISIONONE_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("VISIONONE_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
}

// FlagOverrides carries command-line values; zero values leave the config untouched
type FlagOverrides struct {
	TargetURL string
	Headless  *bool
	Scenario  string
	Port      int
	Host      string
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, flags FlagOverrides) {
	if flags.TargetURL != "" {
		config.Agent.TargetURL = flags.TargetURL
	}
	if flags.Headless != nil {
		config.Browser.Headless = *flags.Headless
	}
	if flags.Scenario != "" {
		config.Agent.Scenario = flags.Scenario
	}
	if flags.Port > 0 {
		config.Dashboard.Port = flags.Port
	}
	if flags.Host != "" {
		config.Dashboard.Host = flags.Host
	}
}

// Validate checks struct constraints and the optional schedule
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Agent.Schedule != "" {
		if err := ValidateSchedule(c.Agent.Schedule); err != nil {
			return fmt.Errorf("invalid agent.schedule: %w", err)
		}
	}
	return nil
}

// ValidateSchedule validates a cron schedule expression and ensures minimum 5-minute interval
func ValidateSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	parts := strings.Fields(schedule)
	if len(parts) < 5 {
		return fmt.Errorf("invalid cron format: expected 5 fields")
	}

	minuteField := parts[0]
	if minuteField == "*" {
		return fmt.Errorf("schedule must have minimum 5-minute interval (every minute is not allowed)")
	}

	if strings.HasPrefix(minuteField, "*/") {
		interval, err := strconv.Atoi(strings.TrimPrefix(minuteField, "*/"))
		if err == nil && interval < 5 {
			return fmt.Errorf("schedule interval must be at least 5 minutes, got %d", interval)
		}
	}

	return nil
}

// VideoPath returns the directory session recordings are written to
func (c *Config) VideoPath() string {
	dir := c.Reports.VideoDir
	if dir == "" {
		dir = "videos"
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(c.Reports.Dir, dir)
}
