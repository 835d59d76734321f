package aiparse

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-intake/internal/resilience"
	"github.com/sells-group/lead-intake/pkg/anthropic"
	"github.com/sells-group/lead-intake/pkg/openai"
)

// Options tune a provider request.
type Options struct {
	Model       string
	MaxTokens   int64
	Temperature float64
}

// AnthropicCompleter adapts an anthropic.Client to Completer.
type AnthropicCompleter struct {
	client anthropic.Client
	opts   Options
}

// NewAnthropicCompleter creates an AnthropicCompleter.
func NewAnthropicCompleter(client anthropic.Client, opts Options) *AnthropicCompleter {
	if opts.Model == "" {
		opts.Model = anthropic.DefaultModel
	}
	return &AnthropicCompleter{client: client, opts: opts}
}

// Complete implements Completer.
func (c *AnthropicCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	temp := c.opts.Temperature
	resp, err := c.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       c.opts.Model,
		MaxTokens:   c.opts.MaxTokens,
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: &temp,
	})
	if err != nil {
		return "", classify(err, anthropic.StatusCode(err))
	}
	if resp == nil {
		return "", eris.New("aiparse: nil anthropic response")
	}
	return resp.Text(), nil
}

// OpenAICompleter adapts an openai.Client to Completer.
type OpenAICompleter struct {
	client openai.Client
	opts   Options
}

// NewOpenAICompleter creates an OpenAICompleter.
func NewOpenAICompleter(client openai.Client, opts Options) *OpenAICompleter {
	return &OpenAICompleter{client: client, opts: opts}
}

// Complete implements Completer. JSON-object mode is requested so the
// reply needs no fence stripping, though Parse strips fences regardless.
func (c *OpenAICompleter) Complete(ctx context.Context, prompt string) (string, error) {
	temp := c.opts.Temperature
	resp, err := c.client.Complete(ctx, openai.CompletionRequest{
		Model:       c.opts.Model,
		Prompt:      prompt,
		MaxTokens:   c.opts.MaxTokens,
		Temperature: &temp,
		JSONObject:  true,
	})
	if err != nil {
		return "", classify(err, openai.StatusCode(err))
	}
	return resp.Content, nil
}

// classify marks provider errors with a transient HTTP status so the
// breaker counts them as outages rather than bad requests.
func classify(err error, status int) error {
	if resilience.IsTransientHTTPStatus(status) {
		return resilience.NewTransientError(err, status)
	}
	return err
}
