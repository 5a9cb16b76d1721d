// Package textgen is a client for a remote text-generation service.
//
// The service accepts POST {"model": ..., "prompt": ...} with a bearer API key
// and answers {"text": ...}.
package textgen

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// ErrDisabled is returned by Generate when the client has no API key.
var ErrDisabled = errors.New("text generation disabled")

// Config holds the remote service details.
type Config struct {
	URL     string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client calls the text-generation service.
type Client struct {
	cfg Config
}

type generateRequest struct {
	Model  string `json:"model,omitempty"`
	Prompt string `json:"prompt"`
}

type generateResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// NewClient creates a new Client. A zero timeout means ten seconds.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{cfg: cfg}
}

// Enabled reports whether the client is configured to reach the service.
func (c *Client) Enabled() bool {
	return c != nil && c.cfg.APIKey != "" && c.cfg.URL != ""
}

// Generate sends prompt and returns the generated text, trimmed.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if !c.Enabled() {
		return "", ErrDisabled
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	timeout := c.cfg.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}

	agent := fiber.Post(c.cfg.URL)
	agent.Set(fiber.HeaderAuthorization, "Bearer "+c.cfg.APIKey)
	agent.JSON(generateRequest{Model: c.cfg.Model, Prompt: prompt})
	agent.Timeout(timeout)

	var resp generateResponse
	code, _, errs := agent.Struct(&resp)
	if len(errs) > 0 {
		return "", fmt.Errorf("text generation request failed: %w", errors.Join(errs...))
	}
	if code != fiber.StatusOK {
		return "", fmt.Errorf("text generation returned status %d: %s", code, resp.Error)
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", errors.New("text generation returned an empty text")
	}
	return text, nil
}
