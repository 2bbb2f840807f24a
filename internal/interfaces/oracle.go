package interfaces

import "context"

// Oracle answers free-form questions about a screenshot.
// Every failure (missing backend, transport error, bad response) is reported as ok=false;
// callers never see an error.
type Oracle interface {
	Query(ctx context.Context, prompt, imagePath string) (answer string, ok bool)

	// Name identifies the backend in logs ("gemini", "claude", "ollama", "none")
	Name() string
}
