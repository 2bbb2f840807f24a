package scenario

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/visionone/internal/interfaces"
	"github.com/ternarybob/visionone/internal/models"
)

// DefaultWaitTimeout applies to wait_url steps without a timeout
const DefaultWaitTimeout = 5 * time.Second

// Clicker performs self-healing clicks
type Clicker interface {
	Click(ctx context.Context, target models.InteractionTarget) models.Outcome
}

// Inspector runs QoE inspections
type Inspector interface {
	Inspect(ctx context.Context) models.Verdict
}

// Injector triggers chaos modes
type Injector interface {
	Inject(ctx context.Context, mode string) error
}

// Runner executes scenario steps strictly in order.
// Page-level steps (navigate, fill, wait_url, reload) abort the run on error;
// click, inspect and chaos results are recorded by their components and the run continues.
type Runner struct {
	page      interfaces.Page
	clicker   Clicker
	inspector Inspector
	injector  Injector
	recorder  interfaces.SessionRecorder
	baseURL   string
	logger    arbor.ILogger
}

// NewRunner creates a runner; relative navigate URLs resolve against baseURL
func NewRunner(
	page interfaces.Page,
	clicker Clicker,
	inspector Inspector,
	injector Injector,
	recorder interfaces.SessionRecorder,
	baseURL string,
	logger arbor.ILogger,
) *Runner {
	return &Runner{
		page:      page,
		clicker:   clicker,
		inspector: inspector,
		injector:  injector,
		recorder:  recorder,
		baseURL:   baseURL,
		logger:    logger,
	}
}

// Run executes every step of s and returns the first page-level error
func (r *Runner) Run(ctx context.Context, s *Scenario) error {
	r.logger.Info().Str("scenario", s.Name).Int("steps", len(s.Steps)).Msg("Running scenario")

	for i, step := range s.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}

		r.logger.Debug().Int("step", i+1).Str("action", step.String()).Msg("Scenario step")

		if err := r.runStep(ctx, step); err != nil {
			err = fmt.Errorf("step %d (%s): %w", i+1, step, err)
			r.recorder.LogEvent(models.EventScenarioStep, models.StatusFailed, err.Error())
			return err
		}
	}

	r.logger.Info().Str("scenario", s.Name).Msg("Scenario complete")
	return nil
}

func (r *Runner) runStep(ctx context.Context, step Step) error {
	switch step.Action {
	case ActionNavigate:
		target, err := r.resolve(step.URL)
		if err != nil {
			return err
		}
		return r.page.Navigate(ctx, target)

	case ActionFill:
		return r.page.Fill(ctx, step.Selector, step.Value)

	case ActionClick:
		r.clicker.Click(ctx, models.InteractionTarget{Locator: step.Selector, Description: step.Description})

	case ActionWaitURL:
		timeout := step.Timeout
		if timeout <= 0 {
			timeout = DefaultWaitTimeout
		}
		return r.page.WaitForURL(ctx, step.Pattern, timeout)

	case ActionSleep:
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(step.Duration):
		}

	case ActionInspect:
		r.inspector.Inspect(ctx)

	case ActionChaos:
		// recorded by the injector; a failed injection does not stop the run
		_ = r.injector.Inject(ctx, step.Mode)

	case ActionReload:
		return r.page.Reload(ctx)

	default:
		return fmt.Errorf("unknown action %q", step.Action)
	}
	return nil
}

// resolve turns a step URL into an absolute URL; empty means the base URL
func (r *Runner) resolve(ref string) (string, error) {
	if ref == "" {
		return r.baseURL, nil
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", ref, err)
	}
	if u.IsAbs() || r.baseURL == "" {
		return u.String(), nil
	}
	base, err := url.Parse(r.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", r.baseURL, err)
	}
	return base.ResolveReference(u).String(), nil
}
