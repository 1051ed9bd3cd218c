package classify

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/gokturkhatay/smartinbox/internal/embeddings"
)

// Message carries the fields of one email that feed classification.
// Every field is optional; empty fields are omitted from the composite
// text rather than treated as errors.
type Message struct {
	Subject    string `json:"subject"`
	Sender     string `json:"sender"`
	Content    string `json:"content"`
	SenderName string `json:"sender_name,omitempty"`
}

// Calibration holds the model-specific constants that turn raw cosine
// similarity into user-facing confidence. The defaults are tuned for
// small local embedding models, which produce lower absolute
// similarities than large hosted ones; swapping providers means
// re-tuning these values, never the decision algorithm.
type Calibration struct {
	// SimilarityScale multiplies raw cosine similarity before rounding
	// to an integer confidence.
	SimilarityScale float64

	// ConfidenceCeiling caps reported confidence. The engine never
	// claims certainty from similarity alone.
	ConfidenceCeiling int

	// FallbackThreshold is the confidence below which the engine gives
	// up on topical routing and files the message under primary.
	FallbackThreshold int

	// FallbackConfidence is the confidence reported on that fallback.
	FallbackConfidence int

	// LabelThreshold is compared against similarity*SimilarityScale to
	// decide whether a non-selected category still qualifies as a
	// secondary label.
	LabelThreshold float64
}

// Default calibration values, tuned for the all-minilm model family.
const (
	DefaultSimilarityScale    = 150
	DefaultConfidenceCeiling  = 95
	DefaultFallbackThreshold  = 30
	DefaultFallbackConfidence = 50
	DefaultLabelThreshold     = 40
)

// DefaultCalibration returns the calibration used when none is given.
func DefaultCalibration() Calibration {
	return Calibration{
		SimilarityScale:    DefaultSimilarityScale,
		ConfidenceCeiling:  DefaultConfidenceCeiling,
		FallbackThreshold:  DefaultFallbackThreshold,
		FallbackConfidence: DefaultFallbackConfidence,
		LabelThreshold:     DefaultLabelThreshold,
	}
}

// maxContentRunes bounds how much body text is embedded. Exemplar
// matching is dominated by the opening of a message, and long bodies
// add embedding latency without improving routing.
const maxContentRunes = 1500

// reasonTopCategories is how many ranked categories the Reason trace
// includes.
const reasonTopCategories = 3

// Engine classifies messages against the category registry. It holds
// no per-call state: once the registry is ready, concurrent calls are
// independent and safe.
type Engine struct {
	embedder    embeddings.Embedder
	registry    *Registry
	calibration Calibration
}

// NewEngine creates an engine with default calibration.
func NewEngine(embedder embeddings.Embedder) *Engine {
	return NewEngineWithCalibration(embedder, DefaultCalibration())
}

// NewEngineWithCalibration creates an engine with custom calibration.
func NewEngineWithCalibration(embedder embeddings.Embedder, cal Calibration) *Engine {
	return NewEngineWithLogger(embedder, cal, slog.Default())
}

// NewEngineWithLogger creates an engine with custom calibration. The
// logger is handed to the category registry, which logs its one-time
// initialization.
func NewEngineWithLogger(embedder embeddings.Embedder, cal Calibration, logger *slog.Logger) *Engine {
	return &Engine{
		embedder:    embedder,
		registry:    NewRegistryWithLogger(embedder, logger),
		calibration: cal,
	}
}

// Calibration returns the engine's calibration constants.
func (e *Engine) Calibration() Calibration {
	return e.calibration
}

// ModelVersion reports the identifier of the embedding model behind
// the engine, for stamping stored classifications.
func (e *Engine) ModelVersion() string {
	return e.embedder.ModelVersion()
}

// Ready reports whether the category registry has been initialized.
func (e *Engine) Ready() bool {
	return e.registry.Ready()
}

// Warmup initializes the category registry ahead of the first
// classification call so that the first request does not pay the
// exemplar embedding cost. Calling it is optional; classification
// initializes lazily on first use either way.
func (e *Engine) Warmup(ctx context.Context) error {
	return e.registry.EnsureReady(ctx)
}

// Classify routes one message to a category. It never fails on odd
// input: a message with all fields empty still produces a result
// (typically primary via the confidence fallback). The only error
// condition is an unavailable embedding provider, reported with
// ErrProviderUnavailable in the chain.
func (e *Engine) Classify(ctx context.Context, msg Message) (Result, error) {
	vectors, err := e.registry.snapshot(ctx)
	if err != nil {
		return Result{}, err
	}

	vec, err := e.embedder.Embed(ctx, ComposeText(msg))
	if err != nil {
		return Result{}, fmt.Errorf("embed message text: %w: %w", ErrProviderUnavailable, err)
	}

	return e.decide(vec, vectors), nil
}

// ClassifyBatch routes many messages with a single provider round
// trip. For every index i the result equals what Classify would return
// for msgs[i]; output order matches input order; an empty input yields
// an empty output without touching the provider.
func (e *Engine) ClassifyBatch(ctx context.Context, msgs []Message) ([]Result, error) {
	if len(msgs) == 0 {
		return []Result{}, nil
	}

	vectors, err := e.registry.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(msgs))
	for i, m := range msgs {
		texts[i] = ComposeText(m)
	}

	vecs, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed message batch: %w: %w", ErrProviderUnavailable, err)
	}
	if len(vecs) != len(msgs) {
		return nil, fmt.Errorf("embed message batch: %w: got %d vectors for %d messages",
			ErrProviderUnavailable, len(vecs), len(msgs))
	}

	results := make([]Result, len(msgs))
	for i, vec := range vecs {
		results[i] = e.decide(vec, vectors)
	}
	return results, nil
}

// categoryScore pairs a category with its raw cosine similarity.
type categoryScore struct {
	category   Category
	similarity float64
}

// decide applies the decision policy to an already-embedded message:
// score every category, pick the best, convert to confidence, apply
// the low-confidence fallback and collect secondary labels. Ties on
// similarity resolve to the category earlier in canonical order.
func (e *Engine) decide(vec []float32, vectors map[Category][]float32) Result {
	scores := make([]categoryScore, 0, len(taxonomy))
	bestCat := taxonomy[0]
	bestSim := math.Inf(-1)
	for _, c := range taxonomy {
		sim := CosineSimilarity(vec, vectors[c])
		scores = append(scores, categoryScore{category: c, similarity: sim})
		if sim > bestSim {
			bestSim = sim
			bestCat = c
		}
	}

	cal := e.calibration
	confidence := clampInt(int(math.Round(bestSim*cal.SimilarityScale)), 0, cal.ConfidenceCeiling)

	category := bestCat
	if confidence < cal.FallbackThreshold {
		category = CategoryPrimary
		confidence = cal.FallbackConfidence
	}

	labels := []Category{category}
	for _, s := range scores {
		if s.category == category {
			continue
		}
		if s.similarity*cal.SimilarityScale >= cal.LabelThreshold {
			labels = append(labels, s.category)
		}
	}

	return Result{
		Category:   category,
		Confidence: confidence,
		Labels:     labels,
		Reason:     reasonString(scores),
	}
}

// reasonString formats the top-ranked categories with their raw
// similarities, e.g. "Semantic: work=0.62, updates=0.41, finance=0.30".
func reasonString(scores []categoryScore) string {
	ranked := make([]categoryScore, len(scores))
	copy(ranked, scores)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].similarity > ranked[j].similarity
	})
	n := reasonTopCategories
	if len(ranked) < n {
		n = len(ranked)
	}
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = fmt.Sprintf("%s=%.2f", ranked[i].category, ranked[i].similarity)
	}
	return "Semantic: " + strings.Join(parts, ", ")
}

// ComposeText builds the composite string that gets embedded for a
// message. Lines are included only when their source field is
// non-empty and are joined with newlines:
//
//	Subject: <subject>
//	From: <sender name, or the local part of the sender address>
//	Content: <body, truncated to the first 1500 characters>
//
// A message with no usable fields yields an empty string. The empty
// string is still embedded; such messages normally land in primary
// through the confidence fallback.
func ComposeText(msg Message) string {
	var parts []string
	if msg.Subject != "" {
		parts = append(parts, "Subject: "+msg.Subject)
	}
	switch {
	case msg.SenderName != "":
		parts = append(parts, "From: "+msg.SenderName)
	case msg.Sender != "":
		local, _, _ := strings.Cut(msg.Sender, "@")
		parts = append(parts, "From: "+local)
	}
	if msg.Content != "" {
		parts = append(parts, "Content: "+truncateRunes(msg.Content, maxContentRunes))
	}
	return strings.Join(parts, "\n")
}

// truncateRunes shortens s to at most n characters, counting runes so
// multi-byte text is never split mid-character.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
