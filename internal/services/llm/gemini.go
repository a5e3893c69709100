package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/ternarybob/auspex/internal/common"
)

// geminiProvider holds the lazily created Gemini client.
type geminiProvider struct {
	config *common.GeminiConfig
	logger arbor.ILogger
	client *genai.Client
}

func (g *geminiProvider) ensure(ctx context.Context) (*genai.Client, error) {
	if g.client != nil {
		return g.client, nil
	}
	if g.config.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key not configured")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  g.config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	g.client = client
	return client, nil
}

func (g *geminiProvider) reset() {
	g.client = nil
}

func (g *geminiProvider) generate(ctx context.Context, f *ProviderFactory, request *ContentRequest, model string) (*ContentResponse, error) {
	client, err := g.ensure(ctx)
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = g.config.Model
	}

	contents, systemText, err := convertMessagesToGemini(request.Messages)
	if err != nil {
		return nil, fmt.Errorf("failed to convert messages: %w", err)
	}
	if request.SystemInstruction != "" {
		systemText = request.SystemInstruction
	}

	temp := request.Temperature
	if temp <= 0 {
		temp = g.config.Temperature
	}
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(temp),
	}
	if systemText != "" {
		config.SystemInstruction = genai.NewContentFromText(systemText, genai.RoleUser)
	}
	if level := parseGeminiThinkingLevel(request.ThinkingLevel); level != "" {
		config.ThinkingConfig = &genai.ThinkingConfig{ThinkingLevel: level}
	}

	// A schema forces JSON output matching it. A bad schema degrades to
	// free-form text rather than failing the whole request.
	if len(request.OutputSchema) > 0 {
		schema, schemaErr := convertToGenaiSchema(request.OutputSchema)
		if schemaErr != nil {
			g.logger.Error().Err(schemaErr).Msg("Failed to convert output schema")
		} else if schema != nil {
			config.ResponseMIMEType = "application/json"
			config.ResponseSchema = schema
			g.logger.Debug().
				Str("schema_type", string(schema.Type)).
				Msg("Using structured JSON output with schema")
		}
	}

	var resp *genai.GenerateContentResponse
	err = f.callWithRetry(ctx, ProviderGemini, func() error {
		var callErr error
		resp, callErr = client.Models.GenerateContent(ctx, model, contents, config)
		return callErr
	})
	if err != nil {
		return nil, err
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("empty response from Gemini API")
	}
	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("empty text in Gemini response")
	}

	return &ContentResponse{
		Text:     text,
		Provider: ProviderGemini,
		Model:    model,
	}, nil
}

func parseGeminiThinkingLevel(level string) genai.ThinkingLevel {
	switch strings.ToUpper(level) {
	case "MINIMAL":
		return genai.ThinkingLevelMinimal
	case "LOW":
		return genai.ThinkingLevelLow
	case "MEDIUM":
		return genai.ThinkingLevelMedium
	case "HIGH":
		return genai.ThinkingLevelHigh
	default:
		return ""
	}
}

// convertToGenaiSchema builds a genai.Schema from the generic map form used
// by YAML prompt definitions. Recurses through items and properties.
func convertToGenaiSchema(schemaMap map[string]interface{}) (*genai.Schema, error) {
	if len(schemaMap) == 0 {
		return nil, nil
	}

	schema := &genai.Schema{}

	if typeStr, ok := schemaMap["type"].(string); ok {
		switch strings.ToLower(typeStr) {
		case "object":
			schema.Type = genai.TypeObject
		case "array":
			schema.Type = genai.TypeArray
		case "string":
			schema.Type = genai.TypeString
		case "number":
			schema.Type = genai.TypeNumber
		case "integer":
			schema.Type = genai.TypeInteger
		case "boolean":
			schema.Type = genai.TypeBoolean
		}
	}

	if desc, ok := schemaMap["description"].(string); ok {
		schema.Description = desc
	}

	schema.Enum = toStringSlice(schemaMap["enum"])
	schema.Required = toStringSlice(schemaMap["required"])

	if f, ok := toFloat(schemaMap["minimum"]); ok {
		schema.Minimum = &f
	}
	if f, ok := toFloat(schemaMap["maximum"]); ok {
		schema.Maximum = &f
	}

	if itemsMap, ok := schemaMap["items"].(map[string]interface{}); ok {
		items, err := convertToGenaiSchema(itemsMap)
		if err != nil {
			return nil, fmt.Errorf("failed to convert items schema: %w", err)
		}
		schema.Items = items
	}

	if propsMap, ok := schemaMap["properties"].(map[string]interface{}); ok {
		schema.Properties = make(map[string]*genai.Schema, len(propsMap))
		for name, val := range propsMap {
			propMap, ok := val.(map[string]interface{})
			if !ok {
				continue
			}
			prop, err := convertToGenaiSchema(propMap)
			if err != nil {
				return nil, fmt.Errorf("failed to convert property '%s': %w", name, err)
			}
			schema.Properties[name] = prop
		}
	}

	return schema, nil
}

// toStringSlice accepts the two shapes YAML decoding produces for string
// lists.
func toStringSlice(v interface{}) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []interface{}:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
