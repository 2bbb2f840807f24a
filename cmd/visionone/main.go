package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/visionone/internal/app"
	"github.com/ternarybob/visionone/internal/common"
	"github.com/ternarybob/visionone/internal/services/scenario"
	"github.com/ternarybob/visionone/internal/services/scheduler"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles  configPaths
	targetURL    = flag.String("url", "", "Target application URL (overrides config)")
	headless     = flag.Bool("headless", false, "Run the browser headless (overrides config)")
	scenarioPath = flag.String("scenario", "", "Scenario YAML file (default: built-in demo scenario)")
	schedule     = flag.String("schedule", "", "Cron expression for repeated runs (overrides config)")
	showVersion  = flag.Bool("version", false, "Print version information")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("VisionOne version %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	// Auto-discover config file if not specified
	if len(configFiles) == 0 {
		if _, err := os.Stat("visionone.toml"); err == nil {
			configFiles = append(configFiles, "visionone.toml")
		} else if _, err := os.Stat("deployments/local/visionone.toml"); err == nil {
			configFiles = append(configFiles, "deployments/local/visionone.toml")
		}
	}

	// 1. defaults -> files -> env
	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		arbor.NewLogger().Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration files")
		os.Exit(1)
	}

	// 2. CLI overrides; -headless only applies when given
	overrides := common.FlagOverrides{TargetURL: *targetURL, Scenario: *scenarioPath}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "headless" {
			overrides.Headless = headless
		}
	})
	common.ApplyFlagOverrides(config, overrides)
	if *schedule != "" {
		config.Agent.Schedule = *schedule
	}

	// 3. logger, 4. banner
	logger := common.InitLogger(config, "visionone")
	common.PrintBanner("VISIONONE", config, logger)

	if err := config.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
		os.Exit(1)
	}

	s, err := loadScenario(config.Agent.Scenario)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load scenario")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if config.Agent.Schedule == "" {
		if err := runOnce(ctx, config, logger, s); err != nil {
			logger.Error().Err(err).Msg("Session failed")
			os.Exit(1)
		}
		return
	}

	sched := scheduler.NewService(logger)
	if err := sched.Start(config.Agent.Schedule, func() error {
		return runOnce(ctx, config, logger, s)
	}); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start scheduler")
		os.Exit(1)
	}

	logger.Info().Str("schedule", config.Agent.Schedule).Msg("Waiting for scheduled runs - Press Ctrl+C to stop")
	<-ctx.Done()

	logger.Info().Msg("Interrupt signal received")
	if err := sched.Stop(); err != nil {
		logger.Error().Err(err).Msg("Scheduler shutdown failed")
	}
}

// runOnce drives one independent session and reports where its summary was written
func runOnce(ctx context.Context, config *common.Config, logger arbor.ILogger, s *scenario.Scenario) error {
	agent := app.New(config, logger)
	err := agent.Run(ctx, s)
	if path := agent.ReportPath(); path != "" {
		logger.Info().Str("report", path).Msg("Session report written")
	}
	return err
}

func loadScenario(path string) (*scenario.Scenario, error) {
	if path == "" {
		return scenario.Default(), nil
	}
	return scenario.Load(path)
}
