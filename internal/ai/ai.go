// Package ai talks to an OpenAI-compatible chat completions endpoint to
// answer command questions and write skill profiles.
package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/chris/mergen/internal/config"
	"github.com/chris/mergen/pkg/models"
)

var (
	// ErrDisabled means AI features are switched off in the configuration
	ErrDisabled = errors.New("ai is disabled by configuration")
	// ErrUnavailable means the service cannot be used right now: no
	// credential, rate limited or a server-side failure
	ErrUnavailable = errors.New("ai service unavailable")
	// ErrUnauthenticated means the credential was rejected
	ErrUnauthenticated = errors.New("ai credential rejected")
	// ErrTransport covers network failures, timeouts, cancellation and
	// malformed responses
	ErrTransport = errors.New("ai transport error")
)

const defaultMaxTokens = 2048

type chatCompletions interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Client sends masked text to the summarizer. Callers bound each call with
// a context deadline; the client never retries on its own.
type Client struct {
	completions chatCompletions
	model       string
	maxTokens   int64
	enabled     bool
}

// New builds a client from cfg. Extra options are appended after the ones
// derived from cfg, so tests can point it at a local server.
func New(cfg *config.Config, extra ...option.RequestOption) *Client {
	c := &Client{
		model:     strings.TrimSpace(cfg.Model),
		maxTokens: defaultMaxTokens,
		enabled:   cfg.AIEnabled,
	}
	if c.model == "" {
		c.model = config.DefaultModel
	}

	if !cfg.HasCredential() {
		return c
	}

	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	opts = append(opts, extra...)

	client := openai.NewClient(opts...)
	c.completions = &client.Chat.Completions
	return c
}

// Ask sends a masked question and returns the raw answer text
func (c *Client) Ask(ctx context.Context, maskedQuestion string) (string, error) {
	return c.complete(ctx, askPrompt(maskedQuestion))
}

// Profile asks for an updated skill profile given the previous report and
// the masked commands run since.
func (c *Client) Profile(ctx context.Context, previous string, commands []string) (string, error) {
	return c.complete(ctx, profilePrompt(previous, commands))
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	if !c.enabled {
		return "", ErrDisabled
	}
	if c.completions == nil {
		return "", fmt.Errorf("%w: no API key configured", ErrUnavailable)
	}

	completion, err := c.completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               shared.ChatModel(c.model),
		MaxCompletionTokens: openai.Int(c.maxTokens),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", classify(ctx, err)
	}

	if completion == nil || len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: response has no choices", ErrTransport)
	}
	text := strings.TrimSpace(completion.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("%w: empty response", ErrTransport)
	}

	return text, nil
}

// classify maps SDK and context errors onto the package sentinels while
// keeping the original error in the chain.
func classify(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", ErrTransport, ctxErr)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
			return fmt.Errorf("%w: %w", ErrUnauthenticated, err)
		case apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500:
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
	}

	return fmt.Errorf("%w: %w", ErrTransport, err)
}

func askPrompt(question string) string {
	return fmt.Sprintf("You are a Linux expert. Reply in exactly this format:\n"+
		"```bash\nCOMMAND\n```\n"+
		"Category: [%s]\n"+
		"EXPLANATION\n"+
		"Question: %s", strings.Join(models.Categories, ", "), question)
}

func profilePrompt(previous string, commands []string) string {
	var sb strings.Builder
	sb.WriteString("You are a cybersecurity career coach. ")
	sb.WriteString("Look at the user's shell commands and analyse their skills, focus areas and gaps.\n")
	sb.WriteString("--- PREVIOUS PROFILE ---\n")
	sb.WriteString(previous)
	sb.WriteString("\n--- NEW COMMANDS ---\n")
	for _, cmd := range commands {
		sb.WriteString("- ")
		sb.WriteString(cmd)
		sb.WriteString("\n")
	}
	sb.WriteString("Answer in Markdown with the sections ## General Profile, ## Strengths, ## Gaps and ## Recommendations.")
	return sb.String()
}
