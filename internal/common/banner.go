package common

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner and the settings that shape a run
func PrintBanner(name string, config *Config, logger arbor.ILogger) {
	banner.PrintSimple(name, GetVersion())

	logger.Info().
		Str("target_url", config.Agent.TargetURL).
		Str("oracle", string(config.Oracle.Provider)).
		Bool("headless", config.Browser.Headless).
		Str("reports_dir", config.Reports.Dir).
		Msg("Configuration")
}
