package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ternarybob/auspex/internal/interfaces"
	"github.com/ternarybob/auspex/internal/services/llm"
)

// Chat turn failure kinds. The chatbot layer maps each to a distinct
// apology message, so the distinction is part of the contract.
var (
	// ErrChatUnparsable means the model's output was not valid JSON.
	ErrChatUnparsable = errors.New("chat output is not valid JSON")
	// ErrChatEmptyResponse means the output parsed but carried no response text.
	ErrChatEmptyResponse = errors.New("chat output missing response text")
)

// chatOutput is the structured shape every chat turn must produce.
type chatOutput struct {
	Response string `json:"response"`
}

// ChatTurn answers one user message grounded in the active ticker's
// analysis context. The model must return a non-empty response string;
// anything else is an error the chatbot layer converts to an apology.
func (s *Service) ChatTurn(ctx context.Context, input interfaces.ChatTurnInput) (string, error) {
	if strings.TrimSpace(input.UserInput) == "" {
		return "", fmt.Errorf("chat input is empty")
	}

	history := make([]interfaces.Message, 0, len(input.ChatHistory)+1)
	for _, msg := range input.ChatHistory {
		role := "user"
		if msg.Role == "model" {
			role = "assistant"
		}
		history = append(history, interfaces.Message{Role: role, Content: msg.Content})
	}

	vars := map[string]string{
		"ticker":           input.Ticker,
		"snapshot":         input.StockSnapshotJSON,
		"ai_ta":            input.AnalyzedTAJSON,
		"key_takeaways":    input.KeyTakeawaysJSON,
		"options_analysis": input.OptionsAnalysisJSON,
	}

	// History carries prior turns; the rendered prompt carries the context
	// plus the new user message.
	def, err := s.definitions.Get("chat")
	if err != nil {
		return "", err
	}
	prompt := def.Render(vars) + "\n\nUser message:\n" + input.UserInput

	messages := make([]interfaces.Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, interfaces.Message{Role: "user", Content: prompt})

	model := def.Model
	if model == "" {
		model = s.llmConfig.ChatModel
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
		return "", fmt.Errorf("chat turn failed: %w", err)
	}

	var out chatOutput
	if err := json.Unmarshal([]byte(extractJSON(resp.Text)), &out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrChatUnparsable, err)
	}

	if strings.TrimSpace(out.Response) == "" {
		return "", ErrChatEmptyResponse
	}

	s.logger.Debug().
		Str("ticker", input.Ticker).
		Int("history_len", len(input.ChatHistory)).
		Msg("Completed chat turn")

	return out.Response, nil
}
