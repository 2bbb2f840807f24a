// Package chaos injects faults through the application's built-in chaos menu.
package chaos

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/visionone/internal/common"
	"github.com/ternarybob/visionone/internal/interfaces"
	"github.com/ternarybob/visionone/internal/models"
	"github.com/ternarybob/visionone/internal/services/locator"
)

// Modes offered by the chaos menu
const (
	ModeTriggerBuffering = "Trigger Buffering"
	ModeStopBuffering    = "Stop Buffering"
	ModeTriggerDRMError  = "Trigger DRM Error"
	ModeAudioSyncIssue   = "Audio Sync Issue"
	ModeUICrash          = "UI Crash"
	ModeReset            = "Reset Simulation"
)

// KnownModes lists the menu entries in display order
var KnownModes = []string{
	ModeTriggerBuffering,
	ModeStopBuffering,
	ModeTriggerDRMError,
	ModeAudioSyncIssue,
	ModeUICrash,
	ModeReset,
}

var errMenuNotVisible = errors.New("chaos menu not visible")

// Trigger opens the chaos menu and clicks a mode. Injections are logged but never counted as tests.
type Trigger struct {
	page         interfaces.Page
	recorder     interfaces.SessionRecorder
	menuSelector string
	menuDelay    time.Duration
	logger       arbor.ILogger
}

// NewTrigger creates a trigger from the chaos configuration section
func NewTrigger(page interfaces.Page, recorder interfaces.SessionRecorder, cfg common.ChaosConfig, logger arbor.ILogger) *Trigger {
	return &Trigger{
		page:         page,
		recorder:     recorder,
		menuSelector: cfg.MenuSelector,
		menuDelay:    cfg.MenuDelay,
		logger:       logger,
	}
}

// Inject selects mode from the chaos menu and records the result
func (t *Trigger) Inject(ctx context.Context, mode string) error {
	t.logger.Info().Str("mode", mode).Msg("Triggering chaos")

	if err := t.inject(ctx, mode); err != nil {
		t.logger.Error().Err(err).Str("mode", mode).Msg("Chaos injection failed")
		t.recorder.LogEvent(models.EventChaosInjection, models.StatusFail, err.Error())
		return err
	}

	t.recorder.LogEvent(models.EventChaosInjection, models.StatusSuccess, mode)
	return nil
}

func (t *Trigger) inject(ctx context.Context, mode string) error {
	visible, err := t.page.IsVisible(ctx, t.menuSelector)
	if err != nil {
		return err
	}
	if !visible {
		return errMenuNotVisible
	}

	if err := t.page.Click(ctx, t.menuSelector); err != nil {
		return fmt.Errorf("failed to open chaos menu: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(t.menuDelay):
	}

	html, err := t.page.HTML(ctx)
	if err != nil {
		return err
	}
	doc, err := locator.ParseHTML(html)
	if err != nil {
		return err
	}

	match := locator.Resolve(doc, locator.RoleNone, mode)
	if match == nil {
		return fmt.Errorf("chaos mode %q not found in menu", mode)
	}
	if err := t.page.Click(ctx, match.Selector); err != nil {
		return fmt.Errorf("failed to select chaos mode %q: %w", mode, err)
	}
	return nil
}
