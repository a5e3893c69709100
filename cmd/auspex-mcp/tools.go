package main

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createAnalyzeStockTool returns the analyze_stock tool definition
func createAnalyzeStockTool() mcp.Tool {
	return mcp.NewTool("analyze_stock",
		mcp.WithDescription("Run the full analysis pipeline (market data fetch, pivot levels, AI technical analysis) for a stock ticker and return the results"),
		mcp.WithString("ticker",
			mcp.Required(),
			mcp.Description("Stock ticker symbol (e.g. NVDA, AAPL, BRK.B)"),
		),
		mcp.WithNumber("wait_seconds",
			mcp.Description("Maximum seconds to wait for the pipeline to finish (default: 120)"),
		),
	)
}

// createGetPipelineStateTool returns the get_pipeline_state tool definition
func createGetPipelineStateTool() mcp.Tool {
	return mcp.NewTool("get_pipeline_state",
		mcp.WithDescription("Get the current pipeline, tab, and chatbot state of the analysis session, including which actions are currently enabled"),
	)
}

// createGetSlotTool returns the get_slot tool definition
func createGetSlotTool() mcp.Tool {
	return mcp.NewTool("get_slot",
		mcp.WithDescription("Get a single result slot as raw JSON. Slots hold sentinel statuses until their stage has run"),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Slot name: marketStatus, stockSnapshot, standardTAs, optionsChain, aiAnalyzedTA, aiKeyTakeaways, aiOptionsAnalysis"),
		),
	)
}

// createGetPivotLevelsTool returns the get_pivot_levels tool definition
func createGetPivotLevelsTool() mcp.Tool {
	return mcp.NewTool("get_pivot_levels",
		mcp.WithDescription("Get the classic pivot point levels (PP, S1-S3, R1-R3) computed from the previous trading day. Requires a completed analysis run"),
	)
}

// createKeyTakeawaysTool returns the generate_key_takeaways tool definition
func createKeyTakeawaysTool() mcp.Tool {
	return mcp.NewTool("generate_key_takeaways",
		mcp.WithDescription("Generate AI key takeaways (price action, trend, volatility, momentum, patterns) for the analyzed ticker. Requires a completed analysis run"),
		mcp.WithNumber("wait_seconds",
			mcp.Description("Maximum seconds to wait for generation (default: 120)"),
		),
	)
}

// createOptionsAnalysisTool returns the analyze_options tool definition
func createOptionsAnalysisTool() mcp.Tool {
	return mcp.NewTool("analyze_options",
		mcp.WithDescription("Identify call and put walls in the options chain for the analyzed ticker. Requires a completed analysis run"),
		mcp.WithNumber("wait_seconds",
			mcp.Description("Maximum seconds to wait for the analysis (default: 120)"),
		),
	)
}

// createAskAssistantTool returns the ask_assistant tool definition
func createAskAssistantTool() mcp.Tool {
	return mcp.NewTool("ask_assistant",
		mcp.WithDescription("Ask the analysis chatbot a question. The assistant answers with whatever analysis results the session currently holds as context"),
		mcp.WithString("message",
			mcp.Required(),
			mcp.Description("Question to ask about the analyzed stock"),
		),
		mcp.WithNumber("wait_seconds",
			mcp.Description("Maximum seconds to wait for a reply (default: 60)"),
		),
	)
}
