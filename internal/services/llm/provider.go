package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/auspex/internal/common"
	"github.com/ternarybob/auspex/internal/interfaces"
)

// ProviderType identifies which vendor serves a request.
type ProviderType string

const (
	ProviderGemini ProviderType = "gemini"
	ProviderClaude ProviderType = "claude"
)

// vendorPrefixes maps model-string prefixes to their vendor. Requests may
// name models with or without the prefix.
var vendorPrefixes = map[string]ProviderType{
	"claude/":    ProviderClaude,
	"anthropic/": ProviderClaude,
	"gemini/":    ProviderGemini,
	"google/":    ProviderGemini,
}

// ContentRequest is a provider-agnostic generation request. Analysis prompts
// set OutputSchema to force structured JSON; chat turns leave it nil.
type ContentRequest struct {
	Messages          []interfaces.Message
	Model             string
	Temperature       float32
	MaxTokens         int
	SystemInstruction string
	ThinkingLevel     string                 // Gemini extended-thinking level, ignored by Claude
	OutputSchema      map[string]interface{} // JSON schema for structured output (Gemini only)
}

// ContentResponse carries the generated text plus which vendor and model
// produced it.
type ContentResponse struct {
	Text     string
	Provider ProviderType
	Model    string
}

// ProviderFactory routes generation requests to the vendor named by the
// request's model string. Clients are created lazily on first use.
type ProviderFactory struct {
	llmConfig *common.LLMConfig
	logger    arbor.ILogger
	gemini    *geminiProvider
	claude    *claudeProvider
	retry     *RetryConfig
}

// NewProviderFactory wires the vendor configs into a routing factory.
func NewProviderFactory(
	geminiConfig *common.GeminiConfig,
	claudeConfig *common.ClaudeConfig,
	llmConfig *common.LLMConfig,
	logger arbor.ILogger,
) *ProviderFactory {
	return &ProviderFactory{
		llmConfig: llmConfig,
		logger:    logger,
		gemini:    &geminiProvider{config: geminiConfig, logger: logger},
		claude:    &claudeProvider{config: claudeConfig, logger: logger},
		retry:     NewDefaultRetryConfig(),
	}
}

// DetectProvider resolves the vendor for a model string. An explicit
// "vendor/" prefix wins, then the model-name family, then the configured
// default provider.
func (f *ProviderFactory) DetectProvider(model string) ProviderType {
	if model == "" {
		return ProviderType(f.llmConfig.DefaultProvider)
	}

	lower := strings.ToLower(model)
	for prefix, vendor := range vendorPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return vendor
		}
	}
	if strings.HasPrefix(lower, "claude-") {
		return ProviderClaude
	}
	if strings.HasPrefix(lower, "gemini-") {
		return ProviderGemini
	}

	return ProviderType(f.llmConfig.DefaultProvider)
}

// NormalizeModel strips the vendor prefix, if any, from a model string.
func (f *ProviderFactory) NormalizeModel(model string) string {
	lower := strings.ToLower(model)
	for prefix := range vendorPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return model[len(prefix):]
		}
	}
	return model
}

// GetDefaultModel returns the configured model for a vendor.
func (f *ProviderFactory) GetDefaultModel(provider ProviderType) string {
	if provider == ProviderClaude {
		return f.claude.config.Model
	}
	return f.gemini.config.Model
}

// GenerateContent routes the request to its vendor and returns the reply.
func (f *ProviderFactory) GenerateContent(ctx context.Context, request *ContentRequest) (*ContentResponse, error) {
	provider := f.DetectProvider(request.Model)
	model := f.NormalizeModel(request.Model)

	f.logger.Debug().
		Str("provider", string(provider)).
		Str("model", model).
		Int("message_count", len(request.Messages)).
		Msg("Generating content with provider")

	if provider == ProviderClaude {
		return f.claude.generate(ctx, f, request, model)
	}
	return f.gemini.generate(ctx, f, request, model)
}

// callWithRetry runs an API call, retrying rate-limit failures with the
// vendor-suggested delay when the error carries one.
func (f *ProviderFactory) callWithRetry(ctx context.Context, vendor ProviderType, call func() error) error {
	var lastErr error
	for attempt := 0; attempt <= f.retry.MaxRetries; attempt++ {
		lastErr = call()
		if lastErr == nil {
			return nil
		}
		if attempt == f.retry.MaxRetries {
			break
		}

		var backoff time.Duration
		if IsRateLimitError(lastErr) {
			backoff = f.retry.CalculateBackoff(attempt, ExtractRetryDelay(lastErr))
		} else {
			backoff = time.Duration(attempt+1) * 2 * time.Second
		}

		f.logger.Warn().
			Str("provider", string(vendor)).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Err(lastErr).
			Msg("Retrying provider API call")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("%s API call failed after %d retries: %w", vendor, f.retry.MaxRetries, lastErr)
}

// Close drops the cached vendor clients.
func (f *ProviderFactory) Close() error {
	f.gemini.reset()
	f.claude.reset()
	return nil
}
