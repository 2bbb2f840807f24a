package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/visionone/internal/interfaces"
	"github.com/tidwall/match"
)

const (
	defaultActionTimeout = 30 * time.Second
	urlPollInterval      = 100 * time.Millisecond
)

// Page implements interfaces.Page over a chromedp tab
type Page struct {
	ctx    context.Context
	logger arbor.ILogger
}

var _ interfaces.Page = (*Page)(nil)

func newPage(ctx context.Context, logger arbor.ILogger) *Page {
	return &Page{ctx: ctx, logger: logger}
}

// run executes actions on the tab, bounded by timeout and cancelled with ctx
func (p *Page) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := p.run(ctx, defaultActionTimeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (p *Page) Reload(ctx context.Context) error {
	if err := p.run(ctx, defaultActionTimeout, chromedp.Reload()); err != nil {
		return fmt.Errorf("failed to reload: %w", err)
	}
	return nil
}

// Fill clears the field and types value so framework-managed inputs see key events
func (p *Page) Fill(ctx context.Context, selector, value string) error {
	err := p.run(ctx, defaultActionTimeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.SetValue(selector, "", chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("failed to fill %s: %w", selector, err)
	}
	return nil
}

func (p *Page) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	if err := p.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("element %s not visible within %s: %w", selector, timeout, err)
	}
	return nil
}

func (p *Page) Click(ctx context.Context, selector string) error {
	if err := p.run(ctx, defaultActionTimeout, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("failed to click %s: %w", selector, err)
	}
	return nil
}

// WaitForURL polls the location until it matches pattern ("**/watch/*")
func (p *Page) WaitForURL(ctx context.Context, pattern string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var location string

	for {
		if err := p.run(ctx, defaultActionTimeout, chromedp.Location(&location)); err != nil {
			return fmt.Errorf("failed to read location: %w", err)
		}
		if MatchURL(location, pattern) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("url %s did not match %s within %s", location, pattern, timeout)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(urlPollInterval):
		}
	}
}

// MatchURL reports whether url matches a wildcard pattern; "*" spans any characters
func MatchURL(url, pattern string) bool {
	return match.Match(url, pattern)
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, defaultActionTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to snapshot DOM: %w", err)
	}
	return html, nil
}

func (p *Page) Text(ctx context.Context) (string, error) {
	var text string
	if err := p.run(ctx, defaultActionTimeout, chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &text)); err != nil {
		return "", fmt.Errorf("failed to read page text: %w", err)
	}
	return text, nil
}

// visibleScript mirrors the usual visibility rule: attached, non-empty box, not visibility:hidden
const visibleScript = `(function(sel) {
	const el = document.querySelector(sel);
	if (!el) return false;
	const style = window.getComputedStyle(el);
	if (style.visibility === 'hidden' || style.display === 'none') return false;
	const rect = el.getBoundingClientRect();
	return rect.width > 0 && rect.height > 0;
})(%s)`

func (p *Page) IsVisible(ctx context.Context, selector string) (bool, error) {
	arg, err := json.Marshal(selector)
	if err != nil {
		return false, fmt.Errorf("failed to encode selector: %w", err)
	}

	var visible bool
	if err := p.run(ctx, defaultActionTimeout, chromedp.Evaluate(fmt.Sprintf(visibleScript, arg), &visible)); err != nil {
		return false, fmt.Errorf("failed to check visibility of %s: %w", selector, err)
	}
	return visible, nil
}

func (p *Page) ScrollIntoView(ctx context.Context, selector string) error {
	if err := p.run(ctx, defaultActionTimeout, chromedp.ScrollIntoView(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("failed to scroll to %s: %w", selector, err)
	}
	return nil
}

const forceClickScript = `(function(sel) {
	const el = document.querySelector(sel);
	if (!el) return false;
	el.click();
	return true;
})(%s)`

// ForceClick dispatches click() on the element, ignoring overlays that would intercept the pointer
func (p *Page) ForceClick(ctx context.Context, selector string) error {
	arg, err := json.Marshal(selector)
	if err != nil {
		return fmt.Errorf("failed to encode selector: %w", err)
	}

	var clicked bool
	if err := p.run(ctx, defaultActionTimeout, chromedp.Evaluate(fmt.Sprintf(forceClickScript, arg), &clicked)); err != nil {
		return fmt.Errorf("failed to click %s: %w", selector, err)
	}
	if !clicked {
		return fmt.Errorf("element %s no longer attached", selector)
	}
	return nil
}

// Screenshot writes a PNG of the viewport
func (p *Page) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := p.run(ctx, defaultActionTimeout, chromedp.CaptureScreenshot(&buf)); err != nil {
		return fmt.Errorf("failed to capture screenshot: %w", err)
	}
	if err := os.WriteFile(path, buf, 0644); err != nil {
		return fmt.Errorf("failed to write screenshot: %w", err)
	}
	return nil
}
