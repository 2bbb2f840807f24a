// Package healing clicks elements by selector and recovers from broken selectors
// using a screenshot oracle and a text heuristic over the DOM.
package healing

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/visionone/internal/interfaces"
	"github.com/ternarybob/visionone/internal/models"
	"github.com/ternarybob/visionone/internal/services/locator"
)

// DefaultPrimaryTimeout bounds the wait for the deterministic selector
const DefaultPrimaryTimeout = 2 * time.Second

const promptTemplate = "I am trying to click a button described as '%s' but the selector '%s' failed. " +
	"Look at this screenshot. Is the button visible? If yes, what is the exact text on it? " +
	"Reply ONLY with the exact text I should search for. If not found, say 'NOT_FOUND'."

var (
	errNotFound   = errors.New("heuristic fallback failed: element not found by text")
	errNotVisible = errors.New("heuristic fallback failed: element not visible")
)

// Capturer saves a named screenshot and returns its path, or "" on failure
type Capturer interface {
	Capture(ctx context.Context, name string) string
}

// Engine performs self-healing clicks and records each as one test in the session
type Engine struct {
	page           interfaces.Page
	oracle         interfaces.Oracle
	capturer       Capturer
	recorder       interfaces.SessionRecorder
	primaryTimeout time.Duration
	validate       *validator.Validate
	logger         arbor.ILogger
}

// NewEngine creates an engine; a non-positive primaryTimeout uses DefaultPrimaryTimeout
func NewEngine(
	page interfaces.Page,
	oracle interfaces.Oracle,
	capturer Capturer,
	recorder interfaces.SessionRecorder,
	primaryTimeout time.Duration,
	logger arbor.ILogger,
) *Engine {
	if primaryTimeout <= 0 {
		primaryTimeout = DefaultPrimaryTimeout
	}
	return &Engine{
		page:           page,
		oracle:         oracle,
		capturer:       capturer,
		recorder:       recorder,
		primaryTimeout: primaryTimeout,
		validate:       validator.New(),
		logger:         logger,
	}
}

// Prompt builds the oracle question for a failed selector
func Prompt(description, selector string) string {
	return fmt.Sprintf(promptTemplate, description, selector)
}

// Click validates target and attempts the interaction
func (e *Engine) Click(ctx context.Context, target models.InteractionTarget) models.Outcome {
	if err := e.validate.Struct(target); err != nil {
		err = fmt.Errorf("invalid interaction target: %w", err)
		e.recorder.RecordFail()
		e.recorder.LogEvent(models.EventSmartClick, models.StatusFail, err.Error())
		return models.Outcome{Status: models.OutcomeFail, Err: err}
	}
	return e.AttemptInteraction(ctx, target.Locator, target.Description)
}

// AttemptInteraction clicks selector, falling back to a healed click on an element whose
// text matches the oracle's suggestion or, failing that, the description itself.
func (e *Engine) AttemptInteraction(ctx context.Context, selector, description string) models.Outcome {
	e.logger.Info().Str("selector", selector).Str("description", description).Msg("Attempting click")

	err := e.primaryClick(ctx, selector)
	if err == nil {
		e.recorder.RecordPass()
		e.recorder.LogEvent(models.EventSmartClick, models.StatusSuccess, "Clicked "+selector)
		return models.Outcome{Status: models.OutcomeSuccess, Selector: selector}
	}
	e.logger.Warn().Err(err).Str("selector", selector).Msg("Selector failed, attempting self-healing")

	screenshotPath := e.capturer.Capture(ctx, "fail_"+description)
	screenshot := ""
	if screenshotPath != "" {
		screenshot = filepath.Base(screenshotPath)
	}

	searchText := description
	if screenshotPath != "" {
		if answer, ok := e.oracle.Query(ctx, Prompt(description, selector), screenshotPath); ok {
			if text, usable := NormalizeAnswer(answer); usable {
				searchText = text
				e.logger.Info().Str("oracle", e.oracle.Name()).Str("search_text", searchText).Msg("Oracle suggested search text")
			}
		}
	}

	healed, err := e.healClick(ctx, searchText)
	if err != nil {
		e.logger.Error().
			Err(err).
			Str("description", description).
			Str("search_text", searchText).
			Msg("Smart click failed")

		e.recorder.RecordFail()
		e.recorder.LogEvent(models.EventSmartClick, models.StatusFail, fmt.Sprintf("%s. Screenshot: %s", err, screenshot))
		e.capturer.Capture(ctx, "critical_fail_"+description)

		return models.Outcome{
			Status:     models.OutcomeFail,
			SearchText: searchText,
			Screenshot: screenshot,
			Err:        err,
		}
	}

	e.logger.Info().
		Str("search_text", searchText).
		Str("selector", healed.Selector).
		Str("strategy", string(healed.Strategy)).
		Msg("Self-healed click")

	e.recorder.RecordHeal()
	e.recorder.LogEvent(models.EventSmartClick, models.StatusHealed, fmt.Sprintf("Clicked via text: %s. Screenshot: %s", searchText, screenshot))

	return models.Outcome{
		Status:     models.OutcomeHealed,
		SearchText: searchText,
		Selector:   healed.Selector,
		Screenshot: screenshot,
	}
}

func (e *Engine) primaryClick(ctx context.Context, selector string) error {
	if strings.TrimSpace(selector) == "" {
		return errors.New("no selector")
	}
	if err := e.page.WaitVisible(ctx, selector, e.primaryTimeout); err != nil {
		return err
	}
	return e.page.Click(ctx, selector)
}

// healClick resolves searchText against a DOM snapshot and clicks the match if it is visible
func (e *Engine) healClick(ctx context.Context, searchText string) (*locator.Match, error) {
	html, err := e.page.HTML(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := locator.ParseHTML(html)
	if err != nil {
		return nil, err
	}

	match := locator.Resolve(doc, locator.RoleButton, searchText)
	if match == nil {
		return nil, errNotFound
	}

	// Only the first match in document order is considered. A hidden duplicate earlier in
	// the DOM (e.g. a collapsed mobile nav) fails the heal rather than trying later matches.
	visible, err := e.page.IsVisible(ctx, match.Selector)
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, errNotVisible
	}

	if err := e.page.ScrollIntoView(ctx, match.Selector); err != nil {
		return nil, err
	}
	if err := e.page.ForceClick(ctx, match.Selector); err != nil {
		return nil, err
	}
	return match, nil
}
