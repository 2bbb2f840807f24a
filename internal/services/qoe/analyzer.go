// Package qoe inspects the playback page for DRM errors, buffering and black frames.
package qoe

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/visionone/internal/common"
	"github.com/ternarybob/visionone/internal/interfaces"
	"github.com/ternarybob/visionone/internal/models"
)

// Classifier decides whether a screenshot is a black frame
type Classifier interface {
	Classify(path string) (bool, float64)
}

// Capturer saves a named screenshot and returns its path, or "" on failure
type Capturer interface {
	Capture(ctx context.Context, name string) string
}

// Analyzer runs QoE inspections; every inspection counts as one test
type Analyzer struct {
	page           interfaces.Page
	classifier     Classifier
	capturer       Capturer
	recorder       interfaces.SessionRecorder
	settleDelay    time.Duration
	drmSignatures  []string
	bufferSelector string
	logger         arbor.ILogger
}

// NewAnalyzer creates an analyzer from the qoe configuration section
func NewAnalyzer(
	page interfaces.Page,
	classifier Classifier,
	capturer Capturer,
	recorder interfaces.SessionRecorder,
	cfg common.QoEConfig,
	logger arbor.ILogger,
) *Analyzer {
	return &Analyzer{
		page:           page,
		classifier:     classifier,
		capturer:       capturer,
		recorder:       recorder,
		settleDelay:    cfg.SettleDelay,
		drmSignatures:  cfg.DRMSignatures,
		bufferSelector: cfg.BufferSelector,
		logger:         logger,
	}
}

// Inspect checks page text, the loading indicator and the current frame.
// A black frame is not reported when a DRM error is already on screen: the error
// overlay itself renders near-black.
func (a *Analyzer) Inspect(ctx context.Context) models.Verdict {
	a.logger.Info().Msg("Analyzing video stream quality")

	if a.settleDelay > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(a.settleDelay):
		}
	}

	var verdict models.Verdict

	if a.hasDRMError(ctx) {
		a.logger.Error().Msg("DRM error detected")
		verdict.Issues = append(verdict.Issues, models.IssueDRMError)
	}

	if a.isBuffering(ctx) {
		a.logger.Warn().Str("selector", a.bufferSelector).Msg("Buffering detected")
		verdict.Issues = append(verdict.Issues, models.IssueBuffering)
	}

	path := a.capturer.Capture(ctx, "qoe_analysis")
	if path != "" {
		verdict.Screenshot = filepath.Base(path)

		isBlack, ratio := a.classifier.Classify(path)
		verdict.BlackRatio = ratio
		blackPct := fmt.Sprintf("%.1f%%", ratio*100)

		switch {
		case isBlack && verdict.Has(models.IssueDRMError):
			a.logger.Info().Str("black_ratio", blackPct).Msg("Black frame attributed to DRM error overlay")
		case isBlack:
			a.logger.Error().Str("black_ratio", blackPct).Msg("Black screen detected")
			verdict.Issues = append(verdict.Issues, models.IssueBlackScreen)
		default:
			a.logger.Info().Str("black_ratio", blackPct).Msg("Visual check passed")
		}
	}

	if verdict.Healthy() {
		a.recorder.RecordPass()
		a.recorder.LogEvent(models.EventQoEAnalysis, models.StatusPass, "Screenshot: "+verdict.Screenshot)
	} else {
		a.recorder.RecordFail()
		a.recorder.LogEvent(models.EventQoEAnalysis, models.StatusIssuesFound,
			fmt.Sprintf("%s. Screenshot: %s", verdict.String(), verdict.Screenshot))
	}

	return verdict
}

func (a *Analyzer) hasDRMError(ctx context.Context) bool {
	text, err := a.page.Text(ctx)
	if err != nil {
		a.logger.Warn().Err(err).Msg("DRM check skipped: page text unavailable")
		return false
	}
	for _, signature := range a.drmSignatures {
		if signature != "" && strings.Contains(text, signature) {
			return true
		}
	}
	return false
}

func (a *Analyzer) isBuffering(ctx context.Context) bool {
	if a.bufferSelector == "" {
		return false
	}
	visible, err := a.page.IsVisible(ctx, a.bufferSelector)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Buffering check skipped")
		return false
	}
	return visible
}
