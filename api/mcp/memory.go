package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/loomworks/loom/pkg/memory"
)

var (
	rememberToolName    = "memory_remember"
	rememberDescription = "Store a conversation turn in the user's long-term memory. The turn text is broken into atomic fact candidates and each is written to the appropriate memory backend. Use this after a turn that reveals something worth remembering about the user."

	recallToolName    = "memory_recall"
	recallDescription = "Retrieve the most relevant memories about a user for a query. Returns a ranked, deduplicated excerpt merged from both memory backends. Use this before answering to ground the response in what is known about the user."
)

// RememberInput represents the input arguments for the memory_remember tool.
type RememberInput struct {
	UserID    string `json:"user_id" jsonschema:"the user the turn belongs to"`
	SessionID string `json:"session_id,omitempty" jsonschema:"the conversation session identifier"`
	Role      string `json:"role" jsonschema:"who authored the turn: user or assistant"`
	Text      string `json:"text" jsonschema:"the raw turn text to extract facts from"`
}

// RememberOutput represents the structured output of a remember call.
type RememberOutput struct {
	Candidates int                  `json:"candidates"`
	Results    []memory.WriteResult `json:"results,omitempty"`
}

// RecallInput represents the input arguments for the memory_recall tool.
type RecallInput struct {
	UserID     string `json:"user_id" jsonschema:"the user to recall memories for"`
	Query      string `json:"query" jsonschema:"the query text to rank memories against"`
	MaxEntries int    `json:"max_entries,omitempty" jsonschema:"maximum number of entries to return (default: 10)"`
}

// RecallOutput represents the structured output of a recall.
type RecallOutput struct {
	Context memory.MergedContext `json:"context"`
}

// handleRemember processes a remember request via MCP.
func (s *Server) handleRemember(ctx context.Context, _ *mcp.CallToolRequest, input RememberInput) (*mcp.CallToolResult, RememberOutput, error) {
	if input.UserID == "" {
		return toolError("user_id is required"), RememberOutput{}, nil
	}

	turn := memory.ConversationTurn{
		UserID:    input.UserID,
		SessionID: input.SessionID,
		Role:      input.Role,
		Text:      input.Text,
		Timestamp: time.Now(),
	}

	results, err := s.config.Coordinator.Remember(ctx, turn)
	if err != nil {
		return toolError(fmt.Sprintf("Remember failed: %v", err)), RememberOutput{}, nil
	}

	output := RememberOutput{
		Candidates: len(results),
		Results:    results,
	}

	return structuredResult(output), output, nil
}

// handleRecall processes a recall request via MCP.
func (s *Server) handleRecall(ctx context.Context, _ *mcp.CallToolRequest, input RecallInput) (*mcp.CallToolResult, RecallOutput, error) {
	if input.UserID == "" {
		return toolError("user_id is required"), RecallOutput{}, nil
	}

	s.config.Logger.Debug("MCP recall request",
		"user_id", input.UserID,
		"query", input.Query,
	)

	merged, err := s.config.Coordinator.Recall(ctx, input.UserID, input.Query, input.MaxEntries)
	if err != nil {
		return toolError(fmt.Sprintf("Recall failed: %v", err)), RecallOutput{}, nil
	}

	output := RecallOutput{Context: merged}

	return structuredResult(output), output, nil
}

func toolError(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// structuredResult serializes the structured output as JSON for the text
// field. Per MCP spec: tools returning structured content should also
// return serialized JSON in a TextContent block for backwards compatibility.
func structuredResult(output any) *mcp.CallToolResult {
	jsonBytes, err := json.Marshal(output)
	if err != nil {
		return toolError(fmt.Sprintf("Failed to serialize results: %v", err))
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}
}
