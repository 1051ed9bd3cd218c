package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Message is one synced inbox message. Classification lives in a
// separate row (see Classification); a message may exist without one
// when sync persisted it but classification failed.
type Message struct {
	Account    string
	GmailID    string
	ThreadID   string
	Subject    string
	Sender     string
	SenderName string
	Snippet    string
	ReceivedAt time.Time
	SyncedAt   time.Time
}

// UpsertMessage inserts or refreshes a synced message.
func (s *Store) UpsertMessage(ctx context.Context, msg Message) error {
	if msg.Account == "" || msg.GmailID == "" {
		return fmt.Errorf("upsert message: account and gmail id are required")
	}
	syncedAt := msg.SyncedAt
	if syncedAt.IsZero() {
		syncedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO messages
		(account, gmail_id, thread_id, subject, sender, sender_name, snippet, received_at, synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.Account, msg.GmailID, msg.ThreadID, msg.Subject, msg.Sender, msg.SenderName,
		msg.Snippet, formatTime(msg.ReceivedAt), syncedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upsert message %s: %w", msg.GmailID, err)
	}
	return nil
}

// GetMessage retrieves a synced message.
// Returns sql.ErrNoRows if the message is not in the store.
func (s *Store) GetMessage(ctx context.Context, account, gmailID string) (*Message, error) {
	var msg Message
	var receivedAt, syncedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT account, gmail_id, thread_id, subject, sender, sender_name, snippet, received_at, synced_at
		FROM messages WHERE account = ? AND gmail_id = ?`,
		account, gmailID,
	).Scan(&msg.Account, &msg.GmailID, &msg.ThreadID, &msg.Subject, &msg.Sender,
		&msg.SenderName, &msg.Snippet, &receivedAt, &syncedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get message %s: %w", gmailID, err)
	}
	msg.ReceivedAt = parseTime(receivedAt)
	msg.SyncedAt = parseTime(syncedAt)
	return &msg, nil
}

// HasMessage reports whether a message has already been synced.
func (s *Store) HasMessage(ctx context.Context, account, gmailID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM messages WHERE account = ? AND gmail_id = ?",
		account, gmailID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check message %s: %w", gmailID, err)
	}
	return true, nil
}

// FilterNewMessageIDs returns the subset of gmailIDs not yet in the
// store for the account, preserving input order. Sync uses it to skip
// already-classified mail.
func (s *Store) FilterNewMessageIDs(ctx context.Context, account string, gmailIDs []string) ([]string, error) {
	if len(gmailIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(gmailIDs)), ",")
	args := make([]any, 0, len(gmailIDs)+1)
	args = append(args, account)
	for _, id := range gmailIDs {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT gmail_id FROM messages WHERE account = ? AND gmail_id IN ("+placeholders+")",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("filter messages: %w", err)
	}
	defer rows.Close()

	known := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		known[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	var fresh []string
	for _, id := range gmailIDs {
		if !known[id] {
			fresh = append(fresh, id)
		}
	}
	return fresh, nil
}

// MessageCount returns the number of synced messages for the account.
func (s *Store) MessageCount(ctx context.Context, account string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM messages WHERE account = ?", account,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339, s)
	return t
}
