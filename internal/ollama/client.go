package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"golang.org/x/oauth2"

	"egl-chat-backend/internal/relay"
)

const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultTimeout = 30 * time.Second

	maxErrorBody = 4 << 10
)

// Client talks to an Ollama server. It makes one attempt per call.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures the Client.
type Option func(*Client)

// WithTimeout bounds each call to the server.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithAPIKey sends the key as a bearer token, for servers behind an
// authenticating proxy. An empty key is ignored.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		if key == "" {
			return
		}
		base := c.httpClient.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		c.httpClient.Transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: key, TokenType: "Bearer"}),
			Base:   base,
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client. Apply it before other options.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	// Nil when the server answered without generated text.
	Response *string `json:"response"`
	Error    string  `json:"error,omitempty"`
}

// Generate runs a single non-streaming generation and returns the
// response text.
func (c *Client) Generate(ctx context.Context, prompt, model string) (string, error) {
	body, err := json.Marshal(generateRequest{Model: model, Prompt: prompt, Stream: false})
	if err != nil {
		return "", callFailed(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", callFailed(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &relay.Error{
			Kind:    relay.KindHTTP,
			Backend: relay.BackendOllama,
			Status:  resp.StatusCode,
			Err:     fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(b))),
		}
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		// The client deadline can also fire while the body is being read.
		if isTimeout(err) {
			return "", classify(err)
		}
		return "", callFailed(fmt.Errorf("decode response: %w", err))
	}
	if out.Response == nil {
		if out.Error != "" {
			return "", callFailed(fmt.Errorf("response field missing: %s", out.Error))
		}
		return "", callFailed(errors.New("response field missing"))
	}
	return *out.Response, nil
}

func callFailed(err error) error {
	return &relay.Error{Kind: relay.KindCallFailed, Backend: relay.BackendOllama, Err: err}
}

// classify narrows a transport error to a relay kind.
func classify(err error) error {
	switch {
	case isTimeout(err):
		return &relay.Error{Kind: relay.KindTimeout, Backend: relay.BackendOllama, Err: err}
	case isUnavailable(err):
		return &relay.Error{Kind: relay.KindUnavailable, Backend: relay.BackendOllama, Err: err}
	default:
		return callFailed(err)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isUnavailable(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}
