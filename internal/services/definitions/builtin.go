package definitions

// builtinDefinitions returns the compiled-in prompt definitions. YAML files
// in the definitions directory override entries with the same name.
func builtinDefinitions() map[string]*Definition {
	defs := []*Definition{
		{
			Name:        "key_takeaways",
			Description: "Synthesized key takeaways across price action, indicators, and levels",
			Temperature: 0.4,
			System: "You are a senior market analyst writing concise takeaways for an " +
				"analysis dashboard. Each takeaway is one or two sentences.",
			Prompt: `Produce key takeaways for {{ticker}} from the data below. Cover five categories: price action, trend, volatility, momentum, and chart patterns.

Stock snapshot:
{{snapshot}}

Standard technical indicators:
{{standard_ta}}

AI technical levels:
{{ai_ta}}

Market status:
{{market_status}}

Each takeaway is one or two full sentences. The volatility takeaway must be at least five words and reference concrete indicator values where available. Assign each takeaway a sentiment. Respond with JSON only.`,
			OutputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"priceAction", "trend", "volatility", "momentum", "patterns"},
				"properties": map[string]interface{}{
					"priceAction": takeawaySchema("Price action takeaway"),
					"trend":       takeawaySchema("Trend takeaway"),
					"volatility":  takeawaySchema("Volatility takeaway"),
					"momentum":    takeawaySchema("Momentum takeaway"),
					"patterns":    takeawaySchema("Chart patterns takeaway"),
				},
			},
		},
		{
			Name:        "options_walls",
			Description: "Call and put wall identification from an options chain snapshot",
			Temperature: 0.2,
			System: "You are an options market analyst. You identify strikes with " +
				"concentrated open interest and volume that act as price magnets or barriers.",
			Prompt: `Identify the significant call walls and put walls for {{ticker}} from the options chain below. The underlying trades at {{current_price}}.

Options chain:
{{options_chain}}

Report at most three walls per side, ordered from most to least significant. A wall needs meaningful open interest or volume concentration at its strike. If no strike qualifies on a side, return an empty list for that side. Respond with JSON only.`,
			OutputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"callWalls", "putWalls"},
				"properties": map[string]interface{}{
					"callWalls": map[string]interface{}{
						"type":  "array",
						"items": wallSchema(),
					},
					"putWalls": map[string]interface{}{
						"type":  "array",
						"items": wallSchema(),
					},
				},
			},
		},
		{
			Name:        "chat",
			Description: "Conversational turn grounded in the active ticker's analysis data",
			Temperature: 0.7,
			System: "You are a knowledgeable, friendly stock analysis assistant. Ground " +
				"every answer in the supplied analysis data for the active ticker. If the " +
				"data does not answer the question, say so rather than speculating. Keep " +
				"answers short and conversational.",
			Prompt: `The user is looking at the analysis dashboard for {{ticker}}.

Stock snapshot:
{{snapshot}}

AI technical levels:
{{ai_ta}}

Key takeaways:
{{key_takeaways}}

Options wall analysis:
{{options_analysis}}

Answer the user's latest message using this data and the conversation so far. Respond with JSON only.`,
			OutputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"response"},
				"properties": map[string]interface{}{
					"response": map[string]interface{}{
						"type":        "string",
						"description": "The assistant's reply to the user",
					},
				},
			},
		},
	}

	byName := make(map[string]*Definition, len(defs))
	for _, def := range defs {
		byName[def.Name] = def
	}
	return byName
}

func takeawaySchema(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"description": description,
		"required":    []string{"takeaway", "sentiment"},
		"properties": map[string]interface{}{
			"takeaway": map[string]interface{}{"type": "string"},
			"sentiment": map[string]interface{}{
				"type": "string",
				"enum": []string{
					"bullish", "bearish", "neutral", "positive", "negative",
					"high", "low", "increasing", "decreasing",
					"strong", "weak", "moderate", "stable",
				},
			},
		},
	}
}

func wallSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []string{"strike", "openInterest", "type"},
		"properties": map[string]interface{}{
			"strike":       map[string]interface{}{"type": "number"},
			"openInterest": map[string]interface{}{"type": "number"},
			"volume":       map[string]interface{}{"type": "number"},
			"type":         map[string]interface{}{"type": "string", "enum": []string{"call", "put"}},
		},
	}
}
