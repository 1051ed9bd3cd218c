package classify_tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/gokturkhatay/smartinbox/internal/classify"
	"github.com/gokturkhatay/smartinbox/internal/server"
	"github.com/gokturkhatay/smartinbox/internal/tools/common"
)

// RegisterClassifyTools registers all classification tools with the MCP server
func RegisterClassifyTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	// Classify a single email
	classifyEmailTool := mcp.NewTool("classify_email",
		mcp.WithDescription("Classify an email into an inbox category (work, personal, social, promotions, updates, finance, newsletters, primary) using semantic similarity"),
		mcp.WithString("subject",
			mcp.Description("Email subject line"),
		),
		mcp.WithString("sender",
			mcp.Description("Sender email address (e.g., 'alerts@bank.com')"),
		),
		mcp.WithString("sender_name",
			mcp.Description("Sender display name (e.g., 'Acme Bank'). Preferred over the address for classification."),
		),
		mcp.WithString("content",
			mcp.Description("Email body text. Only the beginning of long bodies is used."),
		),
	)

	s.AddTool(classifyEmailTool, common.InstrumentedToolHandler(
		"classify_email", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleClassifyEmail(ctx, request, sc)
		}))

	// Classify a batch of emails in one call
	classifyBatchTool := mcp.NewTool("classify_batch",
		mcp.WithDescription("Classify multiple emails in a single call. Results are returned in input order, one per message, identical to classifying each message individually."),
		mcp.WithString("messages",
			mcp.Required(),
			mcp.Description("JSON array of message objects, each with optional subject, sender, sender_name and content fields. Accepts the array directly or as a JSON-encoded string."),
		),
	)

	s.AddTool(classifyBatchTool, common.InstrumentedToolHandler(
		"classify_batch", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleClassifyBatch(ctx, request, sc)
		}))

	// List the category taxonomy
	listCategoriesTool := mcp.NewTool("list_categories",
		mcp.WithDescription("List the inbox category taxonomy with per-category description, display color and exemplar count"),
	)

	s.AddTool(listCategoriesTool, common.InstrumentedToolHandler(
		"list_categories", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListCategories(ctx, request, sc)
		}))

	return nil
}

func handleClassifyEmail(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	engine := sc.Engine()
	if engine == nil {
		return mcp.NewToolResultError("classification engine is not configured (is the embedding provider reachable?)"), nil
	}

	msg := messageFromArgs(args)

	result, err := engine.Classify(ctx, msg)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to classify email: %v", err)), nil
	}

	out, _ := json.MarshalIndent(result, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func handleClassifyBatch(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	engine := sc.Engine()
	if engine == nil {
		return mcp.NewToolResultError("classification engine is not configured (is the embedding provider reachable?)"), nil
	}

	msgs, err := parseMessages(args["messages"])
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	results, err := engine.ClassifyBatch(ctx, msgs)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to classify batch of %d messages: %v", len(msgs), err)), nil
	}
	if results == nil {
		results = []classify.Result{}
	}

	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func handleListCategories(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	all := classify.AllCategories()
	categories := make([]map[string]interface{}, 0, len(all))
	for _, c := range all {
		categories = append(categories, map[string]interface{}{
			"name":           c.String(),
			"description":    c.Description(),
			"color":          c.Color(),
			"scored":         c.Scored(),
			"exemplar_count": len(c.Exemplars()),
		})
	}

	out, _ := json.MarshalIndent(categories, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

// messageFromArgs builds a classification message from individual string
// arguments. Missing and non-string values become empty fields; the engine
// handles fully empty messages via its confidence fallback.
func messageFromArgs(args map[string]interface{}) classify.Message {
	str := func(key string) string {
		if v, ok := args[key].(string); ok {
			return v
		}
		return ""
	}
	return classify.Message{
		Subject:    str("subject"),
		Sender:     str("sender"),
		SenderName: str("sender_name"),
		Content:    str("content"),
	}
}

// parseMessages accepts the messages argument either as a JSON array of
// objects or as a JSON-encoded string holding the same array. An empty
// array is valid and classifies to an empty result list.
func parseMessages(param interface{}) ([]classify.Message, error) {
	if param == nil {
		return nil, fmt.Errorf("messages is required")
	}

	var raw []byte
	switch v := param.(type) {
	case string:
		raw = []byte(v)
	case []interface{}:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("messages could not be encoded: %v", err)
		}
		raw = encoded
	default:
		return nil, fmt.Errorf("messages must be an array of message objects or a JSON string")
	}

	var msgs []classify.Message
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil, fmt.Errorf("messages must be a JSON array of objects with subject/sender/sender_name/content fields: %v", err)
	}
	return msgs, nil
}
