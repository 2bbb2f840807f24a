package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "http://localhost:5173", cfg.Agent.TargetURL)
	assert.Equal(t, OracleProviderGemini, cfg.Oracle.Provider)
	assert.Equal(t, 2*time.Second, cfg.Healing.PrimaryTimeout)
	assert.Equal(t, 0.95, cfg.Vision.BlackThreshold)
	assert.Equal(t, []string{"DRM_LICENSE_INVALID", "Error 5001"}, cfg.QoE.DRMSignatures)
	assert.Equal(t, ".animate-spin", cfg.QoE.BufferSelector)
	assert.Equal(t, "http://127.0.0.1:11434", cfg.Ollama.URL)
	assert.Equal(t, 30*time.Second, cfg.Ollama.StartupWait)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromFiles_LaterFileWins(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.toml")
	override := filepath.Join(dir, "override.toml")

	require.NoError(t, os.WriteFile(base, []byte(`
[agent]
target_url = "http://base.local:5173"

[oracle]
provider = "ollama"

[ollama]
model = "llava:13b"
`), 0644))
	require.NoError(t, os.WriteFile(override, []byte(`
[agent]
target_url = "http://override.local:5173"
`), 0644))

	cfg, err := LoadFromFiles(base, override)
	require.NoError(t, err)

	assert.Equal(t, "http://override.local:5173", cfg.Agent.TargetURL)
	assert.Equal(t, OracleProviderOllama, cfg.Oracle.Provider)
	assert.Equal(t, "llava:13b", cfg.Ollama.Model)
	// untouched sections keep defaults
	assert.Equal(t, 0.95, cfg.Vision.BlackThreshold)
}

func TestLoadFromFiles_MissingFile(t *testing.T) {
	_, err := LoadFromFiles(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoadFromFiles_EnvOverrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "plain-key")
	t.Setenv("VISIONONE_GEMINI_API_KEY", "prefixed-key")
	t.Setenv("VISIONONE_HEADLESS", "true")
	t.Setenv("VISIONONE_ORACLE_PROVIDER", "Claude")
	t.Setenv("VISIONONE_LOG_OUTPUT", "stdout, file")

	cfg, err := LoadFromFiles()
	require.NoError(t, err)

	assert.Equal(t, "prefixed-key", cfg.Gemini.APIKey)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, OracleProviderClaude, cfg.Oracle.Provider)
	assert.Equal(t, []string{"stdout", "file"}, cfg.Logging.Output)
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := NewDefaultConfig()
	headless := true

	ApplyFlagOverrides(cfg, FlagOverrides{
		TargetURL: "http://flag.local",
		Headless:  &headless,
		Port:      9090,
	})

	assert.Equal(t, "http://flag.local", cfg.Agent.TargetURL)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 9090, cfg.Dashboard.Port)
	assert.Equal(t, "0.0.0.0", cfg.Dashboard.Host)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"unknown provider", func(c *Config) { c.Oracle.Provider = "openai" }, true},
		{"bad target url", func(c *Config) { c.Agent.TargetURL = "not a url" }, true},
		{"threshold above one", func(c *Config) { c.Vision.BlackThreshold = 1.5 }, true},
		{"valid schedule", func(c *Config) { c.Agent.Schedule = "*/15 * * * *" }, false},
		{"schedule too frequent", func(c *Config) { c.Agent.Schedule = "*/2 * * * *" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateSchedule(t *testing.T) {
	assert.NoError(t, ValidateSchedule("0 */6 * * *"))
	assert.Error(t, ValidateSchedule("* * * * *"))
	assert.Error(t, ValidateSchedule("garbage"))
}

func TestVideoPath(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.Equal(t, filepath.Join("reports", "videos"), cfg.VideoPath())

	cfg.Reports.VideoDir = ""
	assert.Equal(t, filepath.Join("reports", "videos"), cfg.VideoPath())

	abs := filepath.Join(t.TempDir(), "rec")
	cfg.Reports.VideoDir = abs
	assert.Equal(t, abs, cfg.VideoPath())
}
