// Package browser drives a Chrome session through chromedp.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/visionone/internal/common"
)

// Browser owns one Chrome process and the single tab the agent drives
type Browser struct {
	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc
	ctx           context.Context
	logger        arbor.ILogger
	page          *Page
}

// allocatorOptions builds Chrome flags from the browser configuration
func allocatorOptions(cfg common.BrowserConfig) []chromedp.ExecAllocatorOption {
	return append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", cfg.DisableGPU),
		chromedp.Flag("no-sandbox", cfg.NoSandbox),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("autoplay-policy", "no-user-gesture-required"),
		chromedp.WindowSize(cfg.ViewportWidth, cfg.ViewportHeight),
	)
}

// Launch starts Chrome and verifies it answers within cfg.StartupTimeout
func Launch(ctx context.Context, cfg common.BrowserConfig, logger arbor.ILogger) (*Browser, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocatorOptions(cfg)...)

	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(s string, i ...interface{}) {
			logger.Debug().Msgf("chromedp: "+s, i...)
		}),
	)

	b := &Browser{
		allocCancel:   allocCancel,
		browserCancel: browserCancel,
		ctx:           browserCtx,
		logger:        logger,
	}

	startup := cfg.StartupTimeout
	if startup <= 0 {
		startup = 30 * time.Second
	}
	testCtx, testCancel := context.WithTimeout(browserCtx, startup)
	defer testCancel()

	if err := chromedp.Run(testCtx,
		chromedp.EmulateViewport(int64(cfg.ViewportWidth), int64(cfg.ViewportHeight)),
		chromedp.Navigate("about:blank"),
	); err != nil {
		b.Close()
		return nil, fmt.Errorf("browser failed startup test: %w", err)
	}

	b.page = newPage(browserCtx, logger)

	logger.Info().
		Bool("headless", cfg.Headless).
		Int("width", cfg.ViewportWidth).
		Int("height", cfg.ViewportHeight).
		Msg("Browser started")

	return b, nil
}

// Page returns the tab driven by the agent
func (b *Browser) Page() *Page {
	return b.page
}

// Context returns the chromedp context of the tab
func (b *Browser) Context() context.Context {
	return b.ctx
}

// Close shuts down the tab and the Chrome process
func (b *Browser) Close() {
	if b.browserCancel != nil {
		b.browserCancel()
		b.browserCancel = nil
	}
	if b.allocCancel != nil {
		b.allocCancel()
		b.allocCancel = nil
	}
	b.logger.Debug().Msg("Browser closed")
}
