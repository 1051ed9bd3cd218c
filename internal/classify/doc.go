// Package classify implements semantic email classification.
//
// Each message is routed to one of a fixed set of inbox categories
// (work, personal, social, promotions, updates, finance, newsletters,
// primary) by comparing an embedding of the message text against
// pre-computed embeddings of hand-written category exemplars. No
// per-user rules or training are involved; the category set is fixed
// at build time.
//
// The package is organized around three pieces:
//   - Category: the closed set of categories, each carrying its
//     exemplar descriptions and display metadata
//   - Registry: lazily embeds the exemplars once per process and
//     caches one vector per category
//   - Engine: composes message fields into a single text, embeds it,
//     scores it against every category and applies the decision
//     policy to produce a Result
//
// Classification is deterministic for a fixed embedding model: the
// same input always yields the same category, confidence and labels.
// Low-confidence messages fall back to the "primary" category rather
// than being forced into a topical bucket.
//
// Example usage:
//
//	embedder, err := embeddings.NewEmbedder(embeddings.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	engine := classify.NewEngine(embedder)
//
//	result, err := engine.Classify(ctx, classify.Message{
//	    Subject: "Sprint planning tomorrow 10am",
//	    Sender:  "alice@example.com",
//	    Content: "Please review the backlog before the meeting",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Category, result.Confidence)
package classify
