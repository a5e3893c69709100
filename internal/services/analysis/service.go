// Package analysis implements the AI analysis flows behind the pipeline:
// technical levels, key takeaways, options wall detection, and chat turns.
// Prompt text and output schemas come from the definitions service; model
// calls route through the provider factory.
package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/auspex/internal/common"
	"github.com/ternarybob/auspex/internal/interfaces"
	"github.com/ternarybob/auspex/internal/services/definitions"
	"github.com/ternarybob/auspex/internal/services/llm"
	"github.com/ternarybob/auspex/pkg/models"
)

// Service implements interfaces.AnalysisService.
type Service struct {
	factory     *llm.ProviderFactory
	definitions *definitions.Service
	llmConfig   *common.LLMConfig
	logger      arbor.ILogger
}

var _ interfaces.AnalysisService = (*Service)(nil)

// NewService creates the analysis service.
func NewService(factory *llm.ProviderFactory, defs *definitions.Service, llmConfig *common.LLMConfig, logger arbor.ILogger) *Service {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &Service{
		factory:     factory,
		definitions: defs,
		llmConfig:   llmConfig,
		logger:      logger,
	}
}

// AnalyzeTA computes pivot levels from the previous session's prices.
// Fully deterministic: the same inputs always produce the same levels.
func (s *Service) AnalyzeTA(ctx context.Context, input interfaces.PivotInput) (*models.PivotLevels, error) {
	if input.PreviousDayHigh == 0 && input.PreviousDayLow == 0 && input.PreviousDayClose == 0 {
		return nil, fmt.Errorf("no previous-day prices available for pivot calculation")
	}
	if input.PreviousDayHigh < input.PreviousDayLow {
		return nil, fmt.Errorf("invalid previous-day range: high %.2f below low %.2f", input.PreviousDayHigh, input.PreviousDayLow)
	}

	levels := ComputePivotLevels(input)

	s.logger.Debug().
		Float64("pivot", levels.PivotPoint).
		Float64("s1", levels.Support1).
		Float64("r1", levels.Resistance1).
		Msg("Computed pivot levels")

	return levels, nil
}

// generate runs one definition through the provider factory and returns the
// raw response text with any markdown code fences stripped.
func (s *Service) generate(ctx context.Context, defName string, vars map[string]string, history []interfaces.Message) (string, error) {
	def, err := s.definitions.Get(defName)
	if err != nil {
		return "", err
	}

	messages := make([]interfaces.Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, interfaces.Message{Role: "user", Content: def.Render(vars)})

	model := def.Model
	if model == "" {
		model = s.factory.GetDefaultModel(llm.ProviderType(s.llmConfig.DefaultProvider))
	}

	resp, err := s.factory.GenerateContent(ctx, &llm.ContentRequest{
		Messages:          messages,
		Model:             model,
		Temperature:       def.Temperature,
		MaxTokens:         def.MaxTokens,
		SystemInstruction: def.System,
		ThinkingLevel:     def.ThinkingLevel,
		OutputSchema:      def.OutputSchema,
	})
	if err != nil {
		return "", err
	}

	return extractJSON(resp.Text), nil
}

// extractJSON strips markdown code fences that some models wrap around
// structured output.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.Contains(text, "```json") {
		start := strings.Index(text, "```json") + 7
		if end := strings.Index(text[start:], "```"); end != -1 {
			return strings.TrimSpace(text[start : start+end])
		}
	}
	if strings.HasPrefix(text, "```") {
		start := strings.Index(text, "\n")
		if start != -1 {
			body := text[start+1:]
			if end := strings.LastIndex(body, "```"); end != -1 {
				return strings.TrimSpace(body[:end])
			}
		}
	}

	return text
}
