package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/auspex/internal/common"
)

// claudeProvider holds the lazily created Anthropic client. The SDK client
// is a value type, so a flag tracks whether it has been built.
type claudeProvider struct {
	config *common.ClaudeConfig
	logger arbor.ILogger
	client anthropic.Client
	ready  bool
}

func (c *claudeProvider) ensure() (anthropic.Client, error) {
	if c.ready {
		return c.client, nil
	}
	if c.config.APIKey == "" {
		return anthropic.Client{}, fmt.Errorf("Anthropic API key not configured")
	}

	c.client = anthropic.NewClient(
		option.WithAPIKey(c.config.APIKey),
	)
	c.ready = true
	return c.client, nil
}

func (c *claudeProvider) reset() {
	c.client = anthropic.Client{}
	c.ready = false
}

func (c *claudeProvider) generate(ctx context.Context, f *ProviderFactory, request *ContentRequest, model string) (*ContentResponse, error) {
	client, err := c.ensure()
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = c.config.Model
	}

	messages, systemText, err := convertMessagesToClaude(request.Messages)
	if err != nil {
		return nil, fmt.Errorf("failed to convert messages: %w", err)
	}
	if request.SystemInstruction != "" {
		systemText = request.SystemInstruction
	}

	maxTokens := request.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.config.MaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
	}

	temp := request.Temperature
	if temp <= 0 {
		temp = c.config.Temperature
	}
	if temp > 0 {
		params.Temperature = anthropic.Float(float64(temp))
	}

	if systemText != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: systemText},
		}
	}

	var resp *anthropic.Message
	err = f.callWithRetry(ctx, ProviderClaude, func() error {
		var callErr error
		resp, callErr = client.Messages.New(ctx, params)
		return callErr
	})
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("empty response from Claude API")
	}

	return &ContentResponse{
		Text:     text.String(),
		Provider: ProviderClaude,
		Model:    model,
	}, nil
}
