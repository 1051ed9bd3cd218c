package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Feedback is one human category correction. Corrections are the only
// training signal the system keeps: they both fix the stored verdict
// and accumulate into per-sender-domain preferences.
type Feedback struct {
	Account           string
	GmailID           string
	OriginalCategory  string
	CorrectedCategory string
	Subject           string
	Sender            string
	SenderDomain      string
	CreatedAt         time.Time
}

// CorrectionPair counts how often one category was corrected into
// another.
type CorrectionPair struct {
	Original  string `json:"original"`
	Corrected string `json:"corrected"`
	Count     int64  `json:"count"`
}

// DomainPreference is the category a sender domain's mail was most
// often corrected into.
type DomainPreference struct {
	Domain   string `json:"domain"`
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

// FeedbackStats summarizes the corrections recorded for an account.
type FeedbackStats struct {
	Total             int64              `json:"total"`
	TopCorrections    []CorrectionPair   `json:"top_corrections"`
	DomainPreferences []DomainPreference `json:"domain_preferences"`
}

// feedbackStatsLimit caps the correction pairs and domain preferences
// returned by FeedbackStats.
const feedbackStatsLimit = 10

// RecordFeedback stores a correction and updates the message's stored
// category to match. The sender domain is derived from the sender
// address when not given. A feedback row is written even when the
// message itself was never synced; only stored verdicts get updated.
func (s *Store) RecordFeedback(ctx context.Context, fb Feedback) error {
	if fb.Account == "" {
		return fmt.Errorf("record feedback: account is required")
	}
	if fb.OriginalCategory == "" || fb.CorrectedCategory == "" {
		return fmt.Errorf("record feedback: original and corrected categories are required")
	}
	domain := fb.SenderDomain
	if domain == "" {
		domain = SenderDomain(fb.Sender)
	}
	createdAt := fb.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO feedback
		(account, gmail_id, original_category, corrected_category, subject, sender, sender_domain, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		fb.Account, fb.GmailID, fb.OriginalCategory, fb.CorrectedCategory,
		fb.Subject, fb.Sender, domain, createdAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}

	if fb.GmailID != "" {
		_, err = tx.ExecContext(ctx,
			"UPDATE classifications SET category = ? WHERE account = ? AND gmail_id = ?",
			fb.CorrectedCategory, fb.Account, fb.GmailID,
		)
		if err != nil {
			return fmt.Errorf("apply correction to %s: %w", fb.GmailID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit feedback: %w", err)
	}
	return nil
}

// FeedbackStats aggregates the account's corrections: the total count,
// the most frequent original→corrected pairs and, per sender domain,
// the category its mail was most often corrected into.
func (s *Store) FeedbackStats(ctx context.Context, account string) (*FeedbackStats, error) {
	stats := &FeedbackStats{}

	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM feedback WHERE account = ?", account,
	).Scan(&stats.Total)
	if err != nil {
		return nil, fmt.Errorf("count feedback: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT original_category, corrected_category, COUNT(*) AS n
		FROM feedback
		WHERE account = ?
		GROUP BY original_category, corrected_category
		ORDER BY n DESC, original_category ASC, corrected_category ASC
		LIMIT ?`,
		account, feedbackStatsLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("query corrections: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p CorrectionPair
		if err := rows.Scan(&p.Original, &p.Corrected, &p.Count); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		stats.TopCorrections = append(stats.TopCorrections, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	prefs, err := s.domainPreferences(ctx, account)
	if err != nil {
		return nil, err
	}
	stats.DomainPreferences = prefs
	return stats, nil
}

// domainPreferences picks, for each sender domain, the category with
// the most corrections, keeping the most corrected domains first.
func (s *Store) domainPreferences(ctx context.Context, account string) ([]DomainPreference, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sender_domain, corrected_category, COUNT(*) AS n
		FROM feedback
		WHERE account = ? AND sender_domain != ''
		GROUP BY sender_domain, corrected_category
		ORDER BY n DESC, sender_domain ASC, corrected_category ASC`,
		account,
	)
	if err != nil {
		return nil, fmt.Errorf("query domain preferences: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	var prefs []DomainPreference
	for rows.Next() {
		var p DomainPreference
		if err := rows.Scan(&p.Domain, &p.Category, &p.Count); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		// Rows arrive count-descending, so the first row per domain is
		// its preferred category.
		if seen[p.Domain] {
			continue
		}
		seen[p.Domain] = true
		prefs = append(prefs, p)
		if len(prefs) == feedbackStatsLimit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return prefs, nil
}

// SenderDomain extracts the domain part of an email address, or ""
// when there is none.
func SenderDomain(sender string) string {
	if i := strings.LastIndex(sender, "@"); i >= 0 && i < len(sender)-1 {
		return sender[i+1:]
	}
	return ""
}
