// Package llm holds the multimodal model providers used for focus analysis.
package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/joescharf/focus/internal/screen"
)

// APIError is a provider error carrying the HTTP status when one is known.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s API call: %s", e.Provider, e.Message)
	}
	return fmt.Sprintf("%s API call: status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// HTTPStatus returns the HTTP status code of the failed call.
func (e *APIError) HTTPStatus() int { return e.StatusCode }

// Client wraps the Anthropic API for screen analysis.
type Client struct {
	api       *anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewClient creates an Anthropic client with the given API key and model.
// SDK retries are off; the analysis pipeline owns retry and backoff. Extra
// request options are appended, which lets tests point it at a fake server.
func NewClient(apiKey, model string, extra ...option.RequestOption) *Client {
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	opts = append(opts, extra...)
	client := anthropic.NewClient(opts...)
	return &Client{
		api:       &client,
		model:     anthropic.Model(model),
		maxTokens: 1024,
	}
}

// Infer sends the prompt followed by each image as an inline base64 block and
// returns the text of the first text block in the reply.
func (c *Client) Infer(ctx context.Context, prompt string, images []screen.Image) (string, error) {
	blocks := []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(prompt)}
	for _, img := range images {
		blocks = append(blocks, anthropic.NewImageBlockBase64(img.MimeType, base64.StdEncoding.EncodeToString(img.Data)))
	}

	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(blocks...),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", &APIError{Provider: "anthropic", StatusCode: apiErr.StatusCode, Message: apiErr.Error()}
		}
		return "", fmt.Errorf("anthropic API call: %w", err)
	}

	for _, block := range msg.Content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in API response")
}

// ValidateKey makes a minimal call to confirm the configured key is accepted.
func (c *Client) ValidateKey(ctx context.Context) error {
	_, err := c.Infer(ctx, "Hello", nil)
	return err
}
