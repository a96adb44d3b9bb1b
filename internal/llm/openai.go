package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/Epistemic-Technology/rfp-mcp/internal/logger"
)

// ErrNotConfigured is returned when an LLM call is requested without an API
// key or model.
var ErrNotConfigured = errors.New("llm provider is not configured")

// Completer is a text-in, text-out model.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Describer answers a prompt about one image.
type Describer interface {
	DescribeImage(ctx context.Context, prompt string, png []byte) (string, error)
}

// Config selects the endpoint and models. BaseURL points at any
// OpenAI-compatible API, e.g. AnythingLLM's /api/v1/openai.
type Config struct {
	BaseURL         string `yaml:"base_url"`
	APIKey          string `yaml:"api_key"`
	Model           string `yaml:"model"`
	VisionModel     string `yaml:"vision_model"`
	TokensPerSecond int    `yaml:"tokens_per_second"`
	BurstTokens     int    `yaml:"burst_tokens"`
	MaxRetries      int    `yaml:"max_retries"`
	MaxWorkers      int    `yaml:"max_workers"`
}

// Enabled reports whether text completion can be attempted.
func (c Config) Enabled() bool {
	return c.APIKey != "" && c.Model != ""
}

// OpenAICompleter calls the chat completions API.
type OpenAICompleter struct {
	client      openai.Client
	model       string
	visionModel string
	limiter     *Limiter
	log         logger.Logger
}

var (
	_ Completer = (*OpenAICompleter)(nil)
	_ Describer = (*OpenAICompleter)(nil)
)

func NewOpenAICompleter(cfg Config, log logger.Logger) (*OpenAICompleter, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAICompleter{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		visionModel: cfg.VisionModel,
		limiter:     NewLimiter(cfg.TokensPerSecond, cfg.BurstTokens, cfg.MaxRetries),
		log:         log.With("llm"),
	}, nil
}

// HasVision reports whether a vision model is configured.
func (c *OpenAICompleter) HasVision() bool {
	return c.visionModel != ""
}

func (c *OpenAICompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	c.log.Debug("Calling %s with %d prompt chars", c.model, len(prompt))
	return RateLimitedCall(ctx, c.limiter, EstimateTokens(system, prompt), c.log, func(ctx context.Context) (string, error) {
		resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model: shared.ChatModel(c.model),
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(system),
				openai.UserMessage(prompt),
			},
			Temperature: openai.Float(0),
		})
		if err != nil {
			return "", err
		}
		return firstChoice(resp)
	})
}

func (c *OpenAICompleter) DescribeImage(ctx context.Context, prompt string, png []byte) (string, error) {
	if c.visionModel == "" {
		return "", ErrNotConfigured
	}
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
	// images are billed roughly by tile; a rendered page is a handful of tiles
	const imageTokens = 1500
	return RateLimitedCall(ctx, c.limiter, EstimateTokens(prompt)+imageTokens, c.log, func(ctx context.Context) (string, error) {
		resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model: shared.ChatModel(c.visionModel),
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
					openai.TextContentPart(prompt),
					openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
				}),
			},
		})
		if err != nil {
			return "", err
		}
		return firstChoice(resp)
	})
}

func firstChoice(resp *openai.ChatCompletion) (string, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", ErrMalformedResponse)
	}
	return resp.Choices[0].Message.Content, nil
}
