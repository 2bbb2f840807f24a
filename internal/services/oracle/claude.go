package oracle

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/visionone/internal/common"
	"golang.org/x/time/rate"
)

// Claude queries a hosted Anthropic model with the screenshot and prompt
type Claude struct {
	client    anthropic.Client
	model     string
	maxTokens int
	timeout   time.Duration
	limiter   *rate.Limiter
	logger    arbor.ILogger
}

// NewClaude creates a Claude oracle. Extra request options (base URL, retries) are passed to the SDK client.
func NewClaude(cfg *common.Config, logger arbor.ILogger, opts ...option.RequestOption) *Claude {
	model := cfg.Claude.Model
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	maxTokens := cfg.Claude.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 256
	}

	client := anthropic.NewClient(append([]option.RequestOption{option.WithAPIKey(cfg.Claude.APIKey)}, opts...)...)

	logger.Debug().
		Str("model", model).
		Int("max_tokens", maxTokens).
		Msg("Claude oracle initialized")

	return &Claude{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
		timeout:   cfg.Oracle.Timeout,
		limiter:   newLimiter(cfg.Oracle.RateLimit),
		logger:    logger,
	}
}

func (c *Claude) Name() string { return string(common.OracleProviderClaude) }

// Query sends the image and prompt; any failure is logged and reported as absent
func (c *Claude) Query(ctx context.Context, prompt, imagePath string) (string, bool) {
	data, mimeType, err := screenshot(imagePath)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Claude query skipped")
		return "", false
	}

	if err := c.limiter.Wait(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("Claude query cancelled while throttled")
		return "", false
	}

	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(c.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64(mimeType, base64.StdEncoding.EncodeToString(data)),
				anthropic.NewTextBlock(prompt),
			),
		},
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		c.logger.Error().Err(err).Str("model", c.model).Msg("Claude query failed")
		return "", false
	}

	var answer strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			answer.WriteString(block.Text)
		}
	}
	if answer.Len() == 0 {
		c.logger.Warn().Str("model", c.model).Msg("Claude returned no text")
		return "", false
	}

	c.logger.Debug().Str("model", c.model).Str("answer", answer.String()).Msg("Claude answered")
	return answer.String(), true
}
