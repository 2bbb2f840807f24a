package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/visionone/internal/common"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// Gemini queries a hosted Gemini model with the prompt and screenshot
type Gemini struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	limiter *rate.Limiter
	logger  arbor.ILogger
}

// NewGemini creates a Gemini oracle; cfg.Gemini.APIKey must be set
func NewGemini(ctx context.Context, cfg *common.Config, logger arbor.ILogger) (*Gemini, error) {
	if cfg.Gemini.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required (set GEMINI_API_KEY or gemini.api_key)")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.Gemini.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: cfg.Gemini.BaseURL,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := cfg.Gemini.Model
	if model == "" {
		model = "gemini-1.5-flash"
	}

	logger.Debug().
		Str("model", model).
		Str("timeout", cfg.Oracle.Timeout.String()).
		Msg("Gemini oracle initialized")

	return &Gemini{
		client:  client,
		model:   model,
		timeout: cfg.Oracle.Timeout,
		limiter: newLimiter(cfg.Oracle.RateLimit),
		logger:  logger,
	}, nil
}

func (g *Gemini) Name() string { return string(common.OracleProviderGemini) }

// Query sends the prompt and image; any failure is logged and reported as absent
func (g *Gemini) Query(ctx context.Context, prompt, imagePath string) (string, bool) {
	data, mimeType, err := screenshot(imagePath)
	if err != nil {
		g.logger.Warn().Err(err).Msg("Gemini query skipped")
		return "", false
	}

	if err := g.limiter.Wait(ctx); err != nil {
		g.logger.Warn().Err(err).Msg("Gemini query cancelled while throttled")
		return "", false
	}

	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(prompt),
			genai.NewPartFromBytes(data, mimeType),
		}, genai.RoleUser),
	}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		g.logger.Error().Err(err).Str("model", g.model).Msg("Gemini query failed")
		return "", false
	}
	if resp == nil || len(resp.Candidates) == 0 {
		g.logger.Warn().Str("model", g.model).Msg("Gemini returned no candidates")
		return "", false
	}

	answer := resp.Text()
	g.logger.Debug().
		Str("model", g.model).
		Str("answer", answer).
		Str("duration", time.Since(start).String()).
		Msg("Gemini answered")

	return answer, true
}
