package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gokturkhatay/smartinbox/internal/classify"
	"github.com/gokturkhatay/smartinbox/internal/embeddings"
)

func newClassifyCmd() *cobra.Command {
	var (
		subject    string
		sender     string
		senderName string
		content    string
		fromStdin  bool
		asJSON     bool
		// Embedding provider settings
		embedderName   string
		embeddingModel string
		ollamaURL      string
	)

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify a single message into an inbox category",
		Long: `Classify one message given on the command line and print the selected
category, confidence, secondary labels and the similarity trace.

The message body can be passed with --content or piped via --stdin:

  smartinbox classify --subject "Invoice #4711" --sender billing@acme.com
  cat mail.txt | smartinbox classify --stdin --subject "Weekly digest" --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if fromStdin && content != "" {
				return fmt.Errorf("--content and --stdin are mutually exclusive")
			}
			if fromStdin {
				slurp, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("failed to read message content from stdin: %w", err)
				}
				content = string(slurp)
			}
			if subject == "" && sender == "" && strings.TrimSpace(content) == "" {
				return fmt.Errorf("nothing to classify: provide at least one of --subject, --sender, --content or --stdin")
			}

			cfg := resolveEmbedderConfig(cmd, embedderName, embeddingModel, ollamaURL)
			embedder, err := embeddings.NewEmbedder(cfg)
			if err != nil {
				return err
			}
			defer embedder.Close()

			engine := classify.NewEngine(embedder)
			result, err := engine.Classify(context.Background(), classify.Message{
				Subject:    subject,
				Sender:     sender,
				SenderName: senderName,
				Content:    content,
			})
			if err != nil {
				return fmt.Errorf("classification failed: %w", err)
			}

			if asJSON {
				return printJSON(cmd.OutOrStdout(), result)
			}
			printResult(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "Message subject line")
	cmd.Flags().StringVar(&sender, "sender", "", "Sender email address")
	cmd.Flags().StringVar(&senderName, "sender-name", "", "Sender display name")
	cmd.Flags().StringVar(&content, "content", "", "Message body text")
	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "Read the message body from stdin instead of --content")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	addEmbedderFlags(cmd, &embedderName, &embeddingModel, &ollamaURL)

	return cmd
}

func printResult(w io.Writer, result classify.Result) {
	fmt.Fprintf(w, "Category:   %s\n", result.Category)
	fmt.Fprintf(w, "Confidence: %d\n", result.Confidence)
	fmt.Fprintf(w, "Labels:     %s\n", strings.Join(result.LabelNames(), ", "))
	fmt.Fprintf(w, "Reason:     %s\n", result.Reason)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// addEmbedderFlags registers the embedding provider flags shared by the
// classify, sync and serve commands.
func addEmbedderFlags(cmd *cobra.Command, provider, model, ollamaURL *string) {
	cmd.Flags().StringVar(provider, "embedder", embeddings.ProviderOllama, "Embedding provider: ollama or voyage. Can also use SMARTINBOX_EMBEDDER env var.")
	cmd.Flags().StringVar(model, "embedding-model", "", "Embedding model override. Can also use SMARTINBOX_EMBEDDING_MODEL env var.")
	cmd.Flags().StringVar(ollamaURL, "ollama-url", "", "Ollama endpoint, e.g. http://localhost:11434. Can also use OLLAMA_HOST env var.")
}

// resolveEmbedderConfig layers explicit flag values over the environment
// defaults. Environment variables only apply when the flag was not
// explicitly set.
func resolveEmbedderConfig(cmd *cobra.Command, provider, model, ollamaURL string) embeddings.Config {
	cfg := embeddings.DefaultConfig()
	if cmd.Flags().Changed("embedder") {
		cfg.Provider = provider
	}
	if cmd.Flags().Changed("embedding-model") {
		cfg.Model = model
	}
	if cmd.Flags().Changed("ollama-url") {
		cfg.OllamaURL = ollamaURL
	}
	return cfg
}
