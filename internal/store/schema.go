package store

// schemaSQL defines the SQLite schema.
// Tables:
//   - messages: synced inbox snapshot per account
//   - classifications: engine verdicts, one row per message
//   - feedback: human category corrections
const schemaSQL = `
CREATE TABLE IF NOT EXISTS messages (
    account TEXT NOT NULL,
    gmail_id TEXT NOT NULL,
    thread_id TEXT NOT NULL DEFAULT '',
    subject TEXT NOT NULL DEFAULT '',
    sender TEXT NOT NULL DEFAULT '',
    sender_name TEXT NOT NULL DEFAULT '',
    snippet TEXT NOT NULL DEFAULT '',
    received_at TEXT NOT NULL DEFAULT '',
    synced_at TEXT NOT NULL,
    PRIMARY KEY (account, gmail_id)
);

CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(account, sender);

CREATE TABLE IF NOT EXISTS classifications (
    account TEXT NOT NULL,
    gmail_id TEXT NOT NULL,
    category TEXT NOT NULL,
    confidence INTEGER NOT NULL DEFAULT 0,
    labels TEXT NOT NULL DEFAULT '[]',
    reason TEXT NOT NULL DEFAULT '',
    model_version TEXT NOT NULL DEFAULT '',
    classified_at TEXT NOT NULL,
    PRIMARY KEY (account, gmail_id)
);

CREATE INDEX IF NOT EXISTS idx_classifications_category ON classifications(account, category);

CREATE TABLE IF NOT EXISTS feedback (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    account TEXT NOT NULL,
    gmail_id TEXT NOT NULL DEFAULT '',
    original_category TEXT NOT NULL,
    corrected_category TEXT NOT NULL,
    subject TEXT NOT NULL DEFAULT '',
    sender TEXT NOT NULL DEFAULT '',
    sender_domain TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_feedback_account ON feedback(account);
CREATE INDEX IF NOT EXISTS idx_feedback_domain ON feedback(account, sender_domain);
`

// initSchema creates the tables and indexes if they don't exist.
func (s *Store) initSchema() error {
	_, err := s.db.Exec(schemaSQL)
	return err
}
