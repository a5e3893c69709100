package main

import (
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	arbor_models "github.com/ternarybob/arbor/models"
	"github.com/ternarybob/auspex/internal/common"
)

func main() {
	// The MCP server is a thin client over a running auspex instance. It
	// owns one dashboard session and exposes the analysis pipeline as tools.
	baseURL := os.Getenv("AUSPEX_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	// Minimal logging to avoid cluttering MCP stdio
	logger := arbor.NewLogger().WithConsoleWriter(arbor_models.WriterConfiguration{
		Type:             arbor_models.LogWriterTypeConsole,
		TimeFormat:       "15:04:05",
		DisableTimestamp: false,
	}).WithLevelFromString("warn")

	client := newAPIClient(baseURL)

	mcpServer := server.NewMCPServer(
		"auspex",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	// Pipeline tools
	mcpServer.AddTool(createAnalyzeStockTool(), handleAnalyzeStock(client, logger))
	mcpServer.AddTool(createGetPipelineStateTool(), handleGetPipelineState(client, logger))
	mcpServer.AddTool(createGetSlotTool(), handleGetSlot(client, logger))
	mcpServer.AddTool(createGetPivotLevelsTool(), handleGetPivotLevels(client, logger))

	// Deep-dive tools
	mcpServer.AddTool(createKeyTakeawaysTool(), handleKeyTakeaways(client, logger))
	mcpServer.AddTool(createOptionsAnalysisTool(), handleOptionsAnalysis(client, logger))

	// Chatbot tool
	mcpServer.AddTool(createAskAssistantTool(), handleAskAssistant(client, logger))

	// Start server (blocks on stdio)
	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Fatal().Err(err).Msg("MCP server failed")
	}
}
