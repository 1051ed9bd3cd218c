package cmd

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/spf13/cobra"

	"github.com/gokturkhatay/smartinbox/internal/classify"
	"github.com/gokturkhatay/smartinbox/internal/embeddings"
	"github.com/gokturkhatay/smartinbox/internal/gmail"
	"github.com/gokturkhatay/smartinbox/internal/inbox"
	"github.com/gokturkhatay/smartinbox/internal/store"
)

func newSyncCmd() *cobra.Command {
	var (
		account     string
		maxMessages int64
		applyLabels bool
		dbPath      string
		// Embedding provider settings
		embedderName   string
		embeddingModel string
		ollamaURL      string
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch and classify new Gmail inbox messages",
		Long: `Scan the Gmail inbox for messages not yet in the local store, classify
them and persist message metadata plus classification. With --apply-labels
each classified message also gets a SmartInbox/<category> label in Gmail.

Requires a stored Google token; run 'smartinbox auth' first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			client, err := gmail.NewClientForAccount(ctx, account)
			if err != nil {
				return fmt.Errorf("failed to create Gmail client for account %s: %w", account, err)
			}

			if dbPath == "" {
				dbPath, err = store.DefaultPath()
				if err != nil {
					return fmt.Errorf("failed to resolve database path: %w", err)
				}
			}
			st, err := store.Open(dbPath)
			if err != nil {
				return fmt.Errorf("failed to open store at %s: %w", dbPath, err)
			}
			defer st.Close()

			cfg := resolveEmbedderConfig(cmd, embedderName, embeddingModel, ollamaURL)
			embedder, err := embeddings.NewEmbedder(cfg)
			if err != nil {
				return err
			}
			defer embedder.Close()

			syncer := inbox.New(client, classify.NewEngine(embedder), st, nil)
			summary, err := syncer.Sync(ctx, inbox.Options{
				Account:     account,
				MaxMessages: maxMessages,
				ApplyLabels: applyLabels,
			})
			if err != nil {
				return fmt.Errorf("sync failed: %w", err)
			}

			log.Printf("Listed %d inbox messages, %d new", summary.Listed, summary.New)
			log.Printf("Classified %d, skipped %d, labeled %d (%dms)",
				summary.Classified, summary.Skipped, summary.Labeled, summary.DurationMS)
			for _, line := range categoryCounts(summary.Categories) {
				log.Printf("  %s", line)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "default", "Google account name to use (default: 'default')")
	cmd.Flags().Int64Var(&maxMessages, "max", inbox.DefaultMaxMessages, "Maximum number of inbox messages to list")
	cmd.Flags().BoolVar(&applyLabels, "apply-labels", false, "Apply SmartInbox category labels to classified messages in Gmail")
	cmd.Flags().StringVar(&dbPath, "db", "", "Path to the local SQLite database (default: ~/.cache/smartinbox/smartinbox.db)")
	addEmbedderFlags(cmd, &embedderName, &embeddingModel, &ollamaURL)

	return cmd
}

// categoryCounts renders a category histogram in stable order.
func categoryCounts(counts map[string]int) []string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("%s: %d", name, counts[name]))
	}
	return lines
}
