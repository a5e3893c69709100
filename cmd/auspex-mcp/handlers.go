package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/auspex/internal/pipeline"
	"github.com/ternarybob/auspex/pkg/models"
)

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(format string, args ...interface{}) *mcp.CallToolResult {
	return textResult(fmt.Sprintf("Error: "+format, args...))
}

// handleAnalyzeStock implements the analyze_stock tool
func handleAnalyzeStock(client *apiClient, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ticker, err := request.RequireString("ticker")
		if err != nil || ticker == "" {
			return errorResult("ticker parameter is required"), nil
		}
		waitSeconds := request.GetInt("wait_seconds", 120)

		if err := client.setTicker(ctx, ticker); err != nil {
			logger.Error().Err(err).Str("ticker", ticker).Msg("Set ticker failed")
			return errorResult("%v", err), nil
		}
		if err := client.startAnalysis(ctx); err != nil {
			logger.Error().Err(err).Str("ticker", ticker).Msg("Start analysis failed")
			return errorResult("%v", err), nil
		}

		snap, err := client.waitForIdle(ctx, time.Duration(waitSeconds)*time.Second)
		if err != nil {
			if snap != nil {
				return textResult(fmt.Sprintf("%v\n\n%s", err, formatSnapshot(snap))), nil
			}
			return errorResult("%v", err), nil
		}
		return textResult(formatAnalysisResults(ctx, client, snap)), nil
	}
}

// handleGetPipelineState implements the get_pipeline_state tool
func handleGetPipelineState(client *apiClient, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		snap, err := client.snapshot(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("Snapshot failed")
			return errorResult("%v", err), nil
		}
		return textResult(formatSnapshot(snap)), nil
	}
}

// handleGetSlot implements the get_slot tool
func handleGetSlot(client *apiClient, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := request.RequireString("name")
		if err != nil || name == "" {
			return errorResult("name parameter is required"), nil
		}

		payload, err := client.slot(ctx, name)
		if err != nil {
			logger.Error().Err(err).Str("slot", name).Msg("Slot fetch failed")
			return errorResult("%v", err), nil
		}
		return textResult(fmt.Sprintf("```json\n%s\n```", payload)), nil
	}
}

// handleGetPivotLevels implements the get_pivot_levels tool
func handleGetPivotLevels(client *apiClient, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		payload, err := client.slot(ctx, pipeline.SlotAIAnalyzedTA)
		if err != nil {
			logger.Error().Err(err).Msg("Pivot slot fetch failed")
			return errorResult("%v", err), nil
		}
		if !pipeline.DataReady(payload) {
			return textResult("No pivot levels available yet. Run analyze_stock first."), nil
		}

		var pivots models.PivotLevels
		if err := json.Unmarshal([]byte(payload), &pivots); err != nil {
			return errorResult("failed to parse pivot levels: %v", err), nil
		}
		return textResult(formatPivotLevels(&pivots)), nil
	}
}

// handleKeyTakeaways implements the generate_key_takeaways tool
func handleKeyTakeaways(client *apiClient, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		waitSeconds := request.GetInt("wait_seconds", 120)

		if err := client.generateKeyTakeaways(ctx); err != nil {
			logger.Error().Err(err).Msg("Key takeaways trigger failed")
			return errorResult("%v", err), nil
		}
		if _, err := client.waitForIdle(ctx, time.Duration(waitSeconds)*time.Second); err != nil {
			return errorResult("%v", err), nil
		}

		payload, err := client.slot(ctx, pipeline.SlotAIKeyTakeaways)
		if err != nil {
			return errorResult("%v", err), nil
		}
		if !pipeline.DataReady(payload) {
			return textResult(fmt.Sprintf("Key takeaways did not complete:\n```json\n%s\n```", payload)), nil
		}

		var takeaways models.KeyTakeaways
		if err := json.Unmarshal([]byte(payload), &takeaways); err != nil {
			return errorResult("failed to parse key takeaways: %v", err), nil
		}
		return textResult(formatKeyTakeaways(&takeaways)), nil
	}
}

// handleOptionsAnalysis implements the analyze_options tool
func handleOptionsAnalysis(client *apiClient, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		waitSeconds := request.GetInt("wait_seconds", 120)

		if err := client.analyzeOptions(ctx); err != nil {
			logger.Error().Err(err).Msg("Options analysis trigger failed")
			return errorResult("%v", err), nil
		}
		if _, err := client.waitForIdle(ctx, time.Duration(waitSeconds)*time.Second); err != nil {
			return errorResult("%v", err), nil
		}

		payload, err := client.slot(ctx, pipeline.SlotAIOptionsWalls)
		if err != nil {
			return errorResult("%v", err), nil
		}
		if !pipeline.DataReady(payload) {
			return textResult(fmt.Sprintf("Options analysis did not complete:\n```json\n%s\n```", payload)), nil
		}

		var walls models.OptionsWalls
		if err := json.Unmarshal([]byte(payload), &walls); err != nil {
			return errorResult("failed to parse options walls: %v", err), nil
		}
		return textResult(formatOptionsWalls(&walls)), nil
	}
}

// handleAskAssistant implements the ask_assistant tool
func handleAskAssistant(client *apiClient, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		message, err := request.RequireString("message")
		if err != nil || message == "" {
			return errorResult("message parameter is required"), nil
		}
		waitSeconds := request.GetInt("wait_seconds", 60)

		before, err := client.chatHistory(ctx)
		if err != nil {
			return errorResult("%v", err), nil
		}

		if err := client.submitChat(ctx, message); err != nil {
			logger.Error().Err(err).Msg("Chat submit failed")
			return errorResult("%v", err), nil
		}

		reply, err := waitForReply(ctx, client, len(before), time.Duration(waitSeconds)*time.Second)
		if err != nil {
			return errorResult("%v", err), nil
		}
		return textResult(reply), nil
	}
}

// waitForReply polls the chat history until a model reply lands after the
// submitted user turn.
func waitForReply(ctx context.Context, client *apiClient, priorLen int, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)

	for {
		history, err := client.chatHistory(ctx)
		if err != nil {
			return "", err
		}
		for _, msg := range history[min(priorLen, len(history)):] {
			if msg.Role == models.ChatRoleModel {
				return msg.Content, nil
			}
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("no assistant reply after %s", timeout)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
}
