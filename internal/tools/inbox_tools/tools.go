package inbox_tools

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/gokturkhatay/smartinbox/internal/classify"
	"github.com/gokturkhatay/smartinbox/internal/gmail"
	"github.com/gokturkhatay/smartinbox/internal/google"
	"github.com/gokturkhatay/smartinbox/internal/inbox"
	"github.com/gokturkhatay/smartinbox/internal/instrumentation"
	"github.com/gokturkhatay/smartinbox/internal/server"
	"github.com/gokturkhatay/smartinbox/internal/store"
	"github.com/gokturkhatay/smartinbox/internal/tools/batch"
	"github.com/gokturkhatay/smartinbox/internal/tools/common"
)

// RegisterInboxTools registers the sync and feedback tools with the MCP server
func RegisterInboxTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	// Sync inbox tool
	syncInboxTool := mcp.NewTool("sync_inbox",
		mcp.WithDescription("Sync the Gmail inbox: classify messages not yet seen, store the results locally and optionally apply SmartInbox category labels in Gmail"),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
		mcp.WithNumber("max_results",
			mcp.Description("Maximum number of inbox messages to list (default: 50)"),
		),
		mcp.WithBoolean("apply_labels",
			mcp.Description("Apply a SmartInbox/<category> label to each classified message (default: false)"),
		),
	)

	s.AddTool(syncInboxTool, common.InstrumentedToolHandlerWithService(
		"sync_inbox", instrumentation.ServiceGmail, instrumentation.OperationSync, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleSyncInbox(ctx, request, sc)
		}))

	// Record feedback tool (supports single or multiple messages)
	recordFeedbackTool := mcp.NewTool("record_feedback",
		mcp.WithDescription("Record a human category correction for one or more messages. The stored classification is updated and the correction feeds the per-domain preference statistics."),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
		mcp.WithString("gmail_id",
			mcp.Required(),
			mcp.Description("Gmail message ID (string) or array of message IDs to correct"),
		),
		mcp.WithString("corrected_category",
			mcp.Required(),
			mcp.Description("The category the message(s) actually belong to (work, personal, social, promotions, updates, finance, newsletters, primary)"),
		),
		mcp.WithString("original_category",
			mcp.Description("The category being corrected. Defaults to the stored classification of each message."),
		),
	)

	s.AddTool(recordFeedbackTool, common.InstrumentedToolHandler(
		"record_feedback", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleRecordFeedback(ctx, request, sc)
		}))

	// Feedback stats tool
	feedbackStatsTool := mcp.NewTool("feedback_stats",
		mcp.WithDescription("Summarize the recorded category corrections for an account: total count, most frequent original→corrected pairs and per-sender-domain preferred categories"),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
	)

	s.AddTool(feedbackStatsTool, common.InstrumentedToolHandler(
		"feedback_stats", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleFeedbackStats(ctx, request, sc)
		}))

	return nil
}

func handleSyncInbox(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.ResolveAccount(ctx, args)

	engine := sc.Engine()
	if engine == nil {
		return mcp.NewToolResultError("classification engine is not configured (is the embedding provider reachable?)"), nil
	}
	st := sc.Store()
	if st == nil {
		return mcp.NewToolResultError("local store is not configured"), nil
	}

	client := sc.GmailClientForAccount(account)
	if client == nil {
		return mcp.NewToolResultError(google.GetAuthenticationErrorMessage(account)), nil
	}

	opts := inbox.Options{Account: account}
	if v, ok := args["max_results"].(float64); ok {
		opts.MaxMessages = int64(v)
	}
	if v, ok := args["apply_labels"].(bool); ok {
		opts.ApplyLabels = v
	}

	syncer := inbox.New(client, engine, st, nil)

	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceGmail, instrumentation.OperationSync)
	summary, err := syncer.Sync(ctx, opts)
	if err != nil {
		instrumentation.SetSpanError(span, err)
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	span.End()

	if metrics := sc.Metrics(); metrics != nil {
		status := instrumentation.StatusSuccess
		if err != nil {
			status = instrumentation.StatusError
		}
		metrics.RecordSyncRun(ctx, status)
		if summary != nil {
			metrics.RecordSyncMessages(ctx, instrumentation.SyncResultClassified, summary.Classified)
			metrics.RecordSyncMessages(ctx, instrumentation.SyncResultSkipped, summary.Skipped)
			metrics.RecordSyncMessages(ctx, instrumentation.SyncResultLabeled, summary.Labeled)
		}
	}

	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Sync failed for account %s: %v", account, err)), nil
	}

	out, _ := json.MarshalIndent(summary, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func handleRecordFeedback(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.ResolveAccount(ctx, args)

	st := sc.Store()
	if st == nil {
		return mcp.NewToolResultError("local store is not configured"), nil
	}

	gmailIDs, err := batch.ParseStringOrArray(args["gmail_id"], "gmail_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	correctedArg, _ := args["corrected_category"].(string)
	corrected, err := classify.ParseCategory(correctedArg)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid corrected_category: %v", err)), nil
	}

	var original classify.Category
	originalGiven := false
	if v, ok := args["original_category"].(string); ok && v != "" {
		original, err = classify.ParseCategory(v)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid original_category: %v", err)), nil
		}
		originalGiven = true
	}

	metrics := sc.Metrics()

	results := batch.ProcessBatch(ctx, gmailIDs, func(id string) (string, error) {
		fb := store.Feedback{
			Account:           account,
			GmailID:           id,
			CorrectedCategory: corrected.String(),
		}

		if originalGiven {
			fb.OriginalCategory = original.String()
		} else {
			cls, err := st.GetClassification(ctx, account, id)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return "", fmt.Errorf("no stored classification; pass original_category explicitly")
				}
				return "", err
			}
			fb.OriginalCategory = cls.Category
		}

		// Enrich the correction with message metadata when the message
		// was synced; feedback on unsynced messages is still recorded.
		if msg, err := st.GetMessage(ctx, account, id); err == nil {
			fb.Subject = msg.Subject
			fb.Sender = msg.Sender
		}

		if err := st.RecordFeedback(ctx, fb); err != nil {
			return "", err
		}

		if metrics != nil {
			result := instrumentation.FeedbackCorrected
			if fb.OriginalCategory == fb.CorrectedCategory {
				result = instrumentation.FeedbackConfirmed
			}
			metrics.RecordFeedback(ctx, result)
		}

		return fmt.Sprintf("corrected %s → %s", fb.OriginalCategory, fb.CorrectedCategory), nil
	})

	return mcp.NewToolResultText(batch.FormatResults(results)), nil
}

func handleFeedbackStats(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.ResolveAccount(ctx, args)

	st := sc.Store()
	if st == nil {
		return mcp.NewToolResultError("local store is not configured"), nil
	}

	stats, err := st.FeedbackStats(ctx, account)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to load feedback stats: %v", err)), nil
	}

	out, _ := json.MarshalIndent(stats, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

// Compile-time check that the Gmail client still satisfies the syncer's
// mailbox dependency; sync_inbox hands it over directly.
var _ inbox.Mailbox = (*gmail.Client)(nil)
