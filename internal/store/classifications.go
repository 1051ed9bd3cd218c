package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Classification is the engine's verdict for one message. ModelVersion
// records which embedding model produced it, so stale verdicts can be
// identified after a provider change.
type Classification struct {
	Account      string
	GmailID      string
	Category     string
	Confidence   int
	Labels       []string
	Reason       string
	ModelVersion string
	ClassifiedAt time.Time
}

// RecordClassification inserts or replaces the verdict for a message.
func (s *Store) RecordClassification(ctx context.Context, c Classification) error {
	if c.Account == "" || c.GmailID == "" {
		return fmt.Errorf("record classification: account and gmail id are required")
	}
	labels, err := json.Marshal(c.Labels)
	if err != nil {
		return fmt.Errorf("marshal labels: %w", err)
	}
	classifiedAt := c.ClassifiedAt
	if classifiedAt.IsZero() {
		classifiedAt = time.Now()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO classifications
		(account, gmail_id, category, confidence, labels, reason, model_version, classified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Account, c.GmailID, c.Category, c.Confidence, string(labels), c.Reason,
		c.ModelVersion, classifiedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("record classification %s: %w", c.GmailID, err)
	}
	return nil
}

// GetClassification retrieves the verdict for a message.
// Returns sql.ErrNoRows if the message has no classification.
func (s *Store) GetClassification(ctx context.Context, account, gmailID string) (*Classification, error) {
	var c Classification
	var labels, classifiedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT account, gmail_id, category, confidence, labels, reason, model_version, classified_at
		FROM classifications WHERE account = ? AND gmail_id = ?`,
		account, gmailID,
	).Scan(&c.Account, &c.GmailID, &c.Category, &c.Confidence, &labels, &c.Reason,
		&c.ModelVersion, &classifiedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get classification %s: %w", gmailID, err)
	}
	if err := json.Unmarshal([]byte(labels), &c.Labels); err != nil {
		return nil, fmt.Errorf("unmarshal labels for %s: %w", gmailID, err)
	}
	c.ClassifiedAt = parseTime(classifiedAt)
	return &c, nil
}

// SetCategory overrides the stored category for a message, keeping the
// rest of the verdict intact. Feedback recording uses it so the store
// reflects the human correction.
func (s *Store) SetCategory(ctx context.Context, account, gmailID, category string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE classifications SET category = ? WHERE account = ? AND gmail_id = ?",
		category, account, gmailID,
	)
	if err != nil {
		return fmt.Errorf("set category %s: %w", gmailID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CategoryCount pairs a category with how many messages landed in it.
type CategoryCount struct {
	Category string
	Count    int64
}

// CategoryCounts returns the classification distribution for the
// account, most populated category first.
func (s *Store) CategoryCounts(ctx context.Context, account string) ([]CategoryCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, COUNT(*) AS n FROM classifications
		WHERE account = ?
		GROUP BY category
		ORDER BY n DESC, category ASC`,
		account,
	)
	if err != nil {
		return nil, fmt.Errorf("query category counts: %w", err)
	}
	defer rows.Close()

	var counts []CategoryCount
	for rows.Next() {
		var cc CategoryCount
		if err := rows.Scan(&cc.Category, &cc.Count); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		counts = append(counts, cc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return counts, nil
}
