package inbox

import (
	"context"
	"fmt"
	"time"

	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/gokturkhatay/smartinbox/internal/classify"
	"github.com/gokturkhatay/smartinbox/internal/gmail"
	"github.com/gokturkhatay/smartinbox/internal/logging"
	"github.com/gokturkhatay/smartinbox/internal/store"
)

// DefaultMaxMessages bounds a sync run when the caller does not set a
// limit of its own.
const DefaultMaxMessages = 50

// Mailbox is the slice of the Gmail client the syncer depends on.
// *gmail.Client satisfies it; tests substitute a fake.
type Mailbox interface {
	ListInboxMessageIDs(maxResults int64) ([]string, error)
	GetMessage(messageID string) (*gmailapi.Message, error)
	ApplyCategoryLabel(messageID string, category classify.Category) error
}

// Options controls a single sync run.
type Options struct {
	// Account selects the token/store namespace. Empty means "default".
	Account string

	// MaxMessages caps how many inbox messages are listed. Zero or
	// negative falls back to DefaultMaxMessages.
	MaxMessages int64

	// ApplyLabels mirrors each classification onto Gmail as a
	// SmartInbox/<category> label.
	ApplyLabels bool
}

// Summary reports what a sync run did. All counters are always
// present so JSON consumers see a stable shape.
type Summary struct {
	Account    string         `json:"account"`
	Listed     int            `json:"listed"`
	New        int            `json:"new"`
	Classified int            `json:"classified"`
	Skipped    int            `json:"skipped"`
	Labeled    int            `json:"labeled"`
	Categories map[string]int `json:"categories"`
	DurationMS int64          `json:"duration_ms"`
}

// Syncer pulls inbox messages through the classification engine and
// into the local store.
type Syncer struct {
	mailbox Mailbox
	engine  *classify.Engine
	store   *store.Store
	logger  logging.Logger
}

// New creates a Syncer. A nil logger falls back to the default
// structured logger.
func New(mailbox Mailbox, engine *classify.Engine, st *store.Store, logger logging.Logger) *Syncer {
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	return &Syncer{
		mailbox: mailbox,
		engine:  engine,
		store:   st,
		logger:  logger,
	}
}

// Sync lists inbox messages, classifies the ones not yet in the store
// and persists message metadata plus classification for each.
//
// API failures (listing, fetching, classification, storage) abort the
// run. A message whose payload cannot be parsed is logged and skipped;
// the rest of the batch still goes through.
func (s *Syncer) Sync(ctx context.Context, opts Options) (*Summary, error) {
	account := opts.Account
	if account == "" {
		account = "default"
	}
	maxMessages := opts.MaxMessages
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}

	start := time.Now()
	summary := &Summary{
		Account:    account,
		Categories: make(map[string]int),
	}

	ids, err := s.mailbox.ListInboxMessageIDs(maxMessages)
	if err != nil {
		return nil, fmt.Errorf("listing inbox messages: %w", err)
	}
	summary.Listed = len(ids)

	fresh, err := s.store.FilterNewMessageIDs(ctx, account, ids)
	if err != nil {
		return nil, fmt.Errorf("filtering stored messages: %w", err)
	}
	summary.New = len(fresh)

	s.logger.Info("inbox sync started",
		logging.Account(account),
		"listed", summary.Listed,
		"new", summary.New)

	items, err := s.fetchMessages(ctx, account, fresh, summary)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		summary.DurationMS = time.Since(start).Milliseconds()
		s.logger.Info("inbox sync complete",
			logging.Account(account),
			"classified", 0,
			"skipped", summary.Skipped)
		return summary, nil
	}

	batch := make([]classify.Message, len(items))
	for i, it := range items {
		batch[i] = classify.Message{
			Subject:    it.msg.Subject,
			Sender:     it.msg.Sender,
			SenderName: it.msg.SenderName,
			Content:    it.msg.Body,
		}
	}
	results, err := s.engine.ClassifyBatch(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("classifying %d messages: %w", len(batch), err)
	}

	model := s.engine.ModelVersion()
	for i, it := range items {
		res := results[i]
		if err := s.persist(ctx, account, it, res, model); err != nil {
			return nil, err
		}
		summary.Classified++
		summary.Categories[res.Category.String()]++
		s.logger.Debug("message classified",
			logging.Account(account),
			"message_id", it.id,
			logging.Category(res.Category.String()),
			logging.Confidence(res.Confidence),
			logging.Domain(it.msg.Sender))

		if !opts.ApplyLabels {
			continue
		}
		if err := s.mailbox.ApplyCategoryLabel(it.id, res.Category); err != nil {
			s.logger.Warn("failed to apply category label",
				logging.Account(account),
				"message_id", it.id,
				logging.Category(res.Category.String()),
				logging.Err(err))
			continue
		}
		summary.Labeled++
	}

	summary.DurationMS = time.Since(start).Milliseconds()
	s.logger.Info("inbox sync complete",
		logging.Account(account),
		logging.Model(model),
		"classified", summary.Classified,
		"skipped", summary.Skipped,
		"labeled", summary.Labeled)
	return summary, nil
}

type pendingMessage struct {
	id  string
	msg *gmail.Message
}

// fetchMessages retrieves and parses each listed message. Fetch errors
// propagate; parse errors only drop the affected message.
func (s *Syncer) fetchMessages(ctx context.Context, account string, ids []string, summary *Summary) ([]pendingMessage, error) {
	items := make([]pendingMessage, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw, err := s.mailbox.GetMessage(id)
		if err != nil {
			return nil, fmt.Errorf("fetching message %s: %w", id, err)
		}
		msg, err := gmail.ParseMessage(raw)
		if err != nil {
			summary.Skipped++
			s.logger.Warn("skipping unparseable message",
				logging.Account(account),
				"message_id", id,
				logging.Err(err))
			continue
		}
		items = append(items, pendingMessage{id: id, msg: msg})
	}
	return items, nil
}

func (s *Syncer) persist(ctx context.Context, account string, it pendingMessage, res classify.Result, model string) error {
	msg := store.Message{
		Account:    account,
		GmailID:    it.id,
		ThreadID:   it.msg.ThreadID,
		Subject:    it.msg.Subject,
		Sender:     it.msg.Sender,
		SenderName: it.msg.SenderName,
		Snippet:    it.msg.Snippet,
		ReceivedAt: it.msg.ReceivedAt,
	}
	if err := s.store.UpsertMessage(ctx, msg); err != nil {
		return fmt.Errorf("storing message %s: %w", it.id, err)
	}

	cls := store.Classification{
		Account:      account,
		GmailID:      it.id,
		Category:     res.Category.String(),
		Confidence:   res.Confidence,
		Labels:       res.LabelNames(),
		Reason:       res.Reason,
		ModelVersion: model,
	}
	if err := s.store.RecordClassification(ctx, cls); err != nil {
		return fmt.Errorf("recording classification for %s: %w", it.id, err)
	}
	return nil
}
