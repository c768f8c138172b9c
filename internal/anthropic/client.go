package anthropic

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"egl-chat-backend/internal/prompt"
	"egl-chat-backend/internal/relay"
)

const (
	DefaultModel   = "claude-3-haiku-20240307"
	DefaultTimeout = 60 * time.Second
)

// Client wraps the Anthropic SDK client. It is safe for concurrent use and
// holds no per-call state.
type Client struct {
	sdk     sdkanthropic.Client
	persona prompt.Persona
	model   sdkanthropic.Model
	timeout time.Duration
}

// Option configures the Client.
type Option func(*clientConfig)

type clientConfig struct {
	model   string
	timeout time.Duration
	reqOpts []option.RequestOption
}

// WithModel overrides the persona's model.
func WithModel(model string) Option {
	return func(c *clientConfig) {
		if model != "" {
			c.model = model
		}
	}
}

// WithTimeout bounds each completion. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = d
	}
}

// WithRequestOptions passes options through to the SDK client.
func WithRequestOptions(opts ...option.RequestOption) Option {
	return func(c *clientConfig) {
		c.reqOpts = append(c.reqOpts, opts...)
	}
}

// NewClient creates a client that sends the persona's system instruction
// and sampling settings with every completion.
func NewClient(apiKey string, persona prompt.Persona, opts ...Option) *Client {
	cfg := clientConfig{
		model:   persona.Model,
		timeout: DefaultTimeout,
	}
	if cfg.model == "" {
		cfg.model = DefaultModel
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	reqOpts := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, cfg.reqOpts...)

	return &Client{
		sdk:     sdkanthropic.NewClient(reqOpts...),
		persona: persona,
		model:   sdkanthropic.Model(cfg.model),
		timeout: cfg.timeout,
	}
}

// Complete sends message as a single user turn and returns the first text
// block of the reply. Every failure is reported as relay.KindCallFailed.
func (c *Client) Complete(ctx context.Context, message string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	msg, err := c.sdk.Messages.New(ctx, c.params(message))
	if err != nil {
		return "", callFailed(err)
	}
	if len(msg.Content) == 0 {
		return "", callFailed(errors.New("empty completion"))
	}
	block := msg.Content[0]
	if block.Type != "text" {
		return "", callFailed(fmt.Errorf("first content block is %q, not text", block.Type))
	}
	return block.Text, nil
}

func (c *Client) params(message string) sdkanthropic.MessageNewParams {
	return sdkanthropic.MessageNewParams{
		Model:       c.model,
		MaxTokens:   int64(c.persona.Style.MaxTokens),
		Temperature: sdkanthropic.Float(c.persona.Style.Temperature),
		System: []sdkanthropic.TextBlockParam{
			{Text: c.persona.System},
		},
		Messages: []sdkanthropic.MessageParam{
			sdkanthropic.NewUserMessage(sdkanthropic.NewTextBlock(message)),
		},
	}
}

func callFailed(err error) error {
	return &relay.Error{Kind: relay.KindCallFailed, Backend: relay.BackendClaude, Err: err}
}
