package interfaces

import (
	"context"
	"time"
)

// Page is the browser-control surface driven by the agent.
// All selectors are CSS selectors resolved against the current document.
type Page interface {
	// Navigate loads url and waits for the document to be ready
	Navigate(ctx context.Context, url string) error

	// Reload reloads the current document
	Reload(ctx context.Context) error

	// Fill replaces the value of the first element matching selector
	Fill(ctx context.Context, selector, value string) error

	// WaitVisible blocks until selector is visible or timeout elapses
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error

	// Click performs a pointer click on the first element matching selector
	Click(ctx context.Context, selector string) error

	// WaitForURL blocks until the current URL matches a glob pattern ("**/watch/*")
	WaitForURL(ctx context.Context, pattern string, timeout time.Duration) error

	// HTML returns a snapshot of the serialized document
	HTML(ctx context.Context) (string, error)

	// Text returns the rendered text of the document body
	Text(ctx context.Context) (string, error)

	// IsVisible reports whether the first element matching selector is rendered and visible.
	// A selector with no match is not visible and is not an error.
	IsVisible(ctx context.Context, selector string) (bool, error)

	// ScrollIntoView scrolls the first element matching selector into the viewport
	ScrollIntoView(ctx context.Context, selector string) error

	// ForceClick dispatches a DOM-level click, bypassing pointer interception
	ForceClick(ctx context.Context, selector string) error

	// Screenshot writes a PNG of the current viewport to path
	Screenshot(ctx context.Context, path string) error
}
