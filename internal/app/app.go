// Package app wires the agent's components into one browser session.
package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/visionone/internal/common"
	"github.com/ternarybob/visionone/internal/interfaces"
	"github.com/ternarybob/visionone/internal/models"
	"github.com/ternarybob/visionone/internal/services/artifacts"
	"github.com/ternarybob/visionone/internal/services/chaos"
	"github.com/ternarybob/visionone/internal/services/healing"
	"github.com/ternarybob/visionone/internal/services/oracle"
	"github.com/ternarybob/visionone/internal/services/qoe"
	"github.com/ternarybob/visionone/internal/services/report"
	"github.com/ternarybob/visionone/internal/services/scenario"
	"github.com/ternarybob/visionone/internal/services/vision"
)

// Agent holds one session's components and dependencies.
// An Agent is single-use: Start, drive, Stop.
type Agent struct {
	Config *common.Config
	Logger arbor.ILogger

	Session  *report.Session
	Oracle   interfaces.Oracle
	Engine   *healing.Engine
	Analyzer *qoe.Analyzer
	Trigger  *chaos.Trigger

	launch    launchFunc
	newOracle func(ctx context.Context) interfaces.Oracle

	driver    driver
	recording recording
	page      interfaces.Page

	stopOnce   sync.Once
	reportPath string
	stopErr    error
}

// New creates an agent backed by a local Chrome instance
func New(cfg *common.Config, logger arbor.ILogger) *Agent {
	a := &Agent{
		Config: cfg,
		Logger: logger,
		launch: launchChrome(cfg, logger),
	}
	a.newOracle = func(ctx context.Context) interfaces.Oracle {
		return oracle.New(ctx, a.Config, a.Logger)
	}
	return a
}

// Page returns the driven page, nil before Start
func (a *Agent) Page() interfaces.Page {
	return a.page
}

// ReportPath returns the finalized report path, empty before Stop
func (a *Agent) ReportPath() string {
	return a.reportPath
}

// Start opens the report, launches the browser, starts recording and navigates to the target.
// On failure the session is torn down before the error is returned.
func (a *Agent) Start(ctx context.Context) error {
	cfg := a.Config
	a.Session = report.NewSession(cfg.Reports.Dir, a.Logger)

	a.Logger.Info().Str("target_url", cfg.Agent.TargetURL).Msg("Starting VisionOne session")

	drv, err := a.launch(ctx)
	if err != nil {
		return a.failStart(fmt.Errorf("failed to launch browser: %w", err))
	}
	a.driver = drv
	a.page = drv.Page()

	if cfg.Browser.RecordVideo {
		rec, err := drv.Record(cfg.VideoPath())
		if err != nil {
			a.Logger.Warn().Err(err).Msg("Session recording unavailable")
		} else {
			a.recording = rec
		}
	}

	a.initServices(ctx)

	if err := a.page.Navigate(ctx, cfg.Agent.TargetURL); err != nil {
		a.Logger.Error().Err(err).Msg("Failed to reach target")
		return a.failStart(err)
	}

	a.Logger.Info().Msg("Browser launched and navigated to target")
	a.Session.LogEvent(models.EventSessionStarted, models.StatusSuccess, "")
	return nil
}

func (a *Agent) failStart(err error) error {
	a.Session.LogEvent(models.EventSessionStart, models.StatusFailed, err.Error())
	a.Session.MarkFailed()
	if stopErr := a.Stop(); stopErr != nil {
		a.Logger.Warn().Err(stopErr).Msg("Teardown after failed start reported an error")
	}
	return err
}

// initServices builds the healing, QoE and chaos components around the page
func (a *Agent) initServices(ctx context.Context) {
	cfg := a.Config

	a.Oracle = a.newOracle(ctx)
	a.Logger.Info().Str("oracle", a.Oracle.Name()).Msg("Vision oracle ready")

	capturer := artifacts.NewCapturer(a.page, cfg.Reports.Dir, a.Logger)
	detector := vision.NewDetector(cfg.Vision.BlackThreshold, a.Logger)

	a.Engine = healing.NewEngine(a.page, a.Oracle, capturer, a.Session, cfg.Healing.PrimaryTimeout, a.Logger)
	a.Analyzer = qoe.NewAnalyzer(a.page, detector, capturer, a.Session, cfg.QoE, a.Logger)
	a.Trigger = chaos.NewTrigger(a.page, a.Session, cfg.Chaos, a.Logger)
}

// Stop tears the session down exactly once: recording, browser, then the report.
// Later calls return the first call's result.
func (a *Agent) Stop() error {
	a.stopOnce.Do(func() {
		a.stopErr = a.teardown()
	})
	return a.stopErr
}

func (a *Agent) teardown() error {
	if a.recording != nil {
		filename, err := a.recording.Stop()
		if err != nil {
			a.Logger.Error().Err(err).Msg("Could not finish session recording")
		}
		if filename != "" {
			a.Session.SetVideo(filename)
			a.Session.LogEvent(models.EventVideoCapture, models.StatusSuccess,
				fmt.Sprintf("Session recording saved: %s", filename))
		}
	}

	if a.driver != nil {
		a.driver.Close()
	}

	if a.Session == nil {
		return nil
	}

	path, err := a.Session.Finalize()
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	a.reportPath = path
	a.Logger.Info().Str("path", path).Msg("Session ended, report saved")
	return nil
}

// Run executes one complete session: Start, the scenario, then Stop.
// A scenario error marks the report Failed and is returned after teardown.
func (a *Agent) Run(ctx context.Context, s *scenario.Scenario) (err error) {
	if err := a.Start(ctx); err != nil {
		return err
	}

	defer func() {
		if stopErr := a.Stop(); stopErr != nil && err == nil {
			err = stopErr
		}
	}()

	runner := scenario.NewRunner(a.page, a.Engine, a.Analyzer, a.Trigger, a.Session, a.Config.Agent.TargetURL, a.Logger)
	if err := runner.Run(ctx, s); err != nil {
		a.Session.MarkFailed()
		return err
	}
	return nil
}
