// Package oracle answers questions about screenshots using a vision-language model.
package oracle

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/visionone/internal/common"
	"github.com/ternarybob/visionone/internal/interfaces"
	"golang.org/x/time/rate"
)

// APIError represents a non-200 response from an inference endpoint
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("oracle API error: %s (status %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// New builds the oracle selected by cfg.Oracle.Provider.
// Hosted backends without an API key degrade to None with a warning.
func New(ctx context.Context, cfg *common.Config, logger arbor.ILogger) interfaces.Oracle {
	switch cfg.Oracle.Provider {
	case common.OracleProviderGemini:
		if cfg.Gemini.APIKey == "" {
			logger.Warn().Msg("GEMINI_API_KEY not set: self-healing will fall back to the element description")
			return None{}
		}
		o, err := NewGemini(ctx, cfg, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("Gemini oracle unavailable")
			return None{}
		}
		return o

	case common.OracleProviderClaude:
		if cfg.Claude.APIKey == "" {
			logger.Warn().Msg("ANTHROPIC_API_KEY not set: self-healing will fall back to the element description")
			return None{}
		}
		return NewClaude(cfg, logger)

	case common.OracleProviderOllama:
		o := NewOllama(cfg, logger)
		if err := o.EnsureServer(ctx); err != nil {
			logger.Error().Err(err).Str("url", cfg.Ollama.URL).Msg("Ollama startup failed")
		}
		return o
	}

	return None{}
}

// None never answers
type None struct{}

func (None) Query(context.Context, string, string) (string, bool) { return "", false }

func (None) Name() string { return string(common.OracleProviderNone) }

// newLimiter spaces requests at least every interval; zero disables throttling
func newLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// screenshot reads an image that must exist before querying and sniffs its MIME type
func screenshot(path string) ([]byte, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("screenshot unavailable: %w", err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("screenshot is empty: %s", path)
	}
	return data, http.DetectContentType(data), nil
}

// withTimeout bounds a single query; a zero timeout leaves ctx untouched
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
