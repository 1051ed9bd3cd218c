package classify

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testDims is the vector dimension the fake embedder produces: one
// axis per scored category plus a slack axis that lets a test vector
// hit exact target similarities while keeping unit length.
const testDims = 8

// fakeEmbedder returns canned vectors keyed by exact input text and
// counts provider calls. Unknown texts resolve to the zero vector.
type fakeEmbedder struct {
	mu         sync.Mutex
	vectors    map[string][]float32
	err        error
	embedCalls int
	batchCalls int
	lastBatch  []string
}

func newFakeEmbedder() *fakeEmbedder {
	f := &fakeEmbedder{vectors: make(map[string][]float32)}
	// Category prototypes are one-hot basis vectors, so a message
	// vector's cosine similarity against category i is simply its i-th
	// component (once the message vector has unit length).
	for i, c := range taxonomy {
		basis := make([]float32, testDims)
		basis[i] = 1
		f.vectors[strings.Join(categoryExemplars[c], " ")] = basis
	}
	return f
}

func (f *fakeEmbedder) lookup(text string) []float32 {
	if v, ok := f.vectors[text]; ok {
		return v
	}
	return make([]float32, testDims)
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embedCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.lookup(text), nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchCalls++
	f.lastBatch = append([]string(nil), texts...)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = f.lookup(text)
	}
	return out, nil
}

func (f *fakeEmbedder) ModelVersion() string { return "fake-model" }
func (f *fakeEmbedder) Dimensions() int      { return testDims }
func (f *fakeEmbedder) Close() error         { return nil }

func (f *fakeEmbedder) setError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeEmbedder) calls() (embed, batch int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.embedCalls, f.batchCalls
}

// messageVec builds a unit vector whose cosine similarity against each
// category's basis vector equals the given value. The squared
// similarities must sum to less than 1 so the slack axis can absorb
// the remainder.
func messageVec(t *testing.T, sims map[Category]float64) []float32 {
	t.Helper()
	v := make([]float32, testDims)
	var sum float64
	for i, c := range taxonomy {
		s := sims[c]
		v[i] = float32(s)
		sum += s * s
	}
	require.Less(t, sum, 1.0, "similarity targets leave no room for the slack axis")
	v[testDims-1] = float32(math.Sqrt(1 - sum))
	return v
}

// addMessage registers a message's composite text with the fake so
// classifying it produces the given per-category similarities.
func addMessage(t *testing.T, f *fakeEmbedder, msg Message, sims map[Category]float64) {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vectors[ComposeText(msg)] = messageVec(t, sims)
}

func TestComposeText(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want string
	}{
		{
			name: "all fields present prefers sender name",
			msg: Message{
				Subject:    "Sprint planning",
				Sender:     "alice@example.com",
				SenderName: "Alice Smith",
				Content:    "See you at 10am",
			},
			want: "Subject: Sprint planning\nFrom: Alice Smith\nContent: See you at 10am",
		},
		{
			name: "sender address falls back to local part",
			msg: Message{
				Subject: "Hi",
				Sender:  "bob.jones@corp.example.com",
				Content: "Hello",
			},
			want: "Subject: Hi\nFrom: bob.jones\nContent: Hello",
		},
		{
			name: "sender without at sign used whole",
			msg:  Message{Sender: "postmaster"},
			want: "From: postmaster",
		},
		{
			name: "subject only",
			msg:  Message{Subject: "Invoice attached"},
			want: "Subject: Invoice attached",
		},
		{
			name: "content only",
			msg:  Message{Content: "plain body"},
			want: "Content: plain body",
		},
		{
			name: "all fields empty",
			msg:  Message{},
			want: "",
		},
		{
			name: "empty subject omitted entirely",
			msg:  Message{Subject: "", Content: "body"},
			want: "Content: body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComposeText(tt.msg))
		})
	}
}

func TestComposeTextTruncatesContent(t *testing.T) {
	long := strings.Repeat("x", 2000)
	got := ComposeText(Message{Content: long})
	assert.Equal(t, "Content: "+strings.Repeat("x", 1500), got)

	// Truncation counts characters, not bytes: multi-byte runes are
	// never split.
	multi := strings.Repeat("é", 1600)
	got = ComposeText(Message{Content: multi})
	assert.Equal(t, "Content: "+strings.Repeat("é", 1500), got)

	short := strings.Repeat("x", 1500)
	assert.Equal(t, "Content: "+short, ComposeText(Message{Content: short}))
}

func TestClassifyWorkEmail(t *testing.T) {
	fake := newFakeEmbedder()
	msg := Message{
		Subject: "Sprint planning tomorrow 10am",
		Sender:  "alice@example.com",
		Content: "Please review the backlog before the meeting",
	}
	addMessage(t, fake, msg, map[Category]float64{
		CategoryWork:     0.62,
		CategoryUpdates:  0.41,
		CategoryFinance:  0.30,
		CategoryPersonal: 0.05,
	})

	engine := NewEngine(fake)
	result, err := engine.Classify(context.Background(), msg)
	require.NoError(t, err)

	assert.Equal(t, CategoryWork, result.Category)
	assert.Equal(t, 93, result.Confidence)
	assert.GreaterOrEqual(t, result.Confidence, DefaultFallbackThreshold)
	assert.Equal(t, []Category{CategoryWork, CategoryUpdates, CategoryFinance}, result.Labels)
	assert.Equal(t, "Semantic: work=0.62, updates=0.41, finance=0.30", result.Reason)
}

func TestClassifyEmptyMessageFallsBackToPrimary(t *testing.T) {
	fake := newFakeEmbedder()
	engine := NewEngine(fake)

	// An all-empty message embeds the empty string, which the fake maps
	// to the zero vector: every similarity is 0 and the confidence
	// fallback kicks in.
	result, err := engine.Classify(context.Background(), Message{})
	require.NoError(t, err)

	assert.Equal(t, CategoryPrimary, result.Category)
	assert.Equal(t, DefaultFallbackConfidence, result.Confidence)
	assert.Equal(t, []Category{CategoryPrimary}, result.Labels)
	assert.True(t, result.HasLabel(CategoryPrimary))
}

func TestClassifyLowConfidenceFallsBackToPrimary(t *testing.T) {
	fake := newFakeEmbedder()
	msg := Message{Subject: "zzz"}
	addMessage(t, fake, msg, map[Category]float64{
		CategoryWork:   0.15,
		CategorySocial: 0.10,
	})

	engine := NewEngine(fake)
	result, err := engine.Classify(context.Background(), msg)
	require.NoError(t, err)

	// 0.15 * 150 rounds to 23, below the fallback threshold.
	assert.Equal(t, CategoryPrimary, result.Category)
	assert.Equal(t, 50, result.Confidence)
	assert.Equal(t, []Category{CategoryPrimary}, result.Labels)
	assert.True(t, strings.HasPrefix(result.Reason, "Semantic: work=0.15"), "reason was %q", result.Reason)
}

func TestClassifyNegativeSimilaritiesFallBack(t *testing.T) {
	fake := newFakeEmbedder()
	msg := Message{Subject: "anti"}
	sims := make(map[Category]float64)
	for _, c := range ScoredCategories() {
		sims[c] = -0.2
	}
	addMessage(t, fake, msg, sims)

	engine := NewEngine(fake)
	result, err := engine.Classify(context.Background(), msg)
	require.NoError(t, err)

	assert.Equal(t, CategoryPrimary, result.Category)
	assert.Equal(t, 50, result.Confidence)
}

func TestClassifyConfidenceCeiling(t *testing.T) {
	fake := newFakeEmbedder()
	msg := Message{Subject: "very worky work"}
	addMessage(t, fake, msg, map[Category]float64{
		CategoryWork: 0.9,
	})

	engine := NewEngine(fake)
	result, err := engine.Classify(context.Background(), msg)
	require.NoError(t, err)

	// 0.9 * 150 = 135, capped at the ceiling.
	assert.Equal(t, CategoryWork, result.Category)
	assert.Equal(t, DefaultConfidenceCeiling, result.Confidence)
}

func TestClassifyConfidenceRounds(t *testing.T) {
	tests := []struct {
		name string
		sim  float64
		want int
	}{
		{name: "rounds down", sim: 0.229, want: 34}, // 34.35
		{name: "rounds up", sim: 0.231, want: 35},   // 34.65
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeEmbedder()
			msg := Message{Subject: "boundary"}
			addMessage(t, fake, msg, map[Category]float64{CategoryWork: tt.sim})

			engine := NewEngine(fake)
			result, err := engine.Classify(context.Background(), msg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Confidence)
		})
	}
}

func TestClassifyTieBreaksByCanonicalOrder(t *testing.T) {
	fake := newFakeEmbedder()
	msg := Message{Subject: "ambiguous"}
	addMessage(t, fake, msg, map[Category]float64{
		CategoryPersonal: 0.5,
		CategorySocial:   0.5,
	})

	engine := NewEngine(fake)
	result, err := engine.Classify(context.Background(), msg)
	require.NoError(t, err)

	// personal precedes social in canonical order, so it wins the tie.
	assert.Equal(t, CategoryPersonal, result.Category)
	assert.Equal(t, []Category{CategoryPersonal, CategorySocial}, result.Labels)
	assert.Contains(t, result.Reason, "personal=0.50, social=0.50")
}

func TestClassifyResultInvariants(t *testing.T) {
	fake := newFakeEmbedder()
	engine := NewEngine(fake)

	msgs := []Message{
		{},
		{Subject: "hello"},
		{Subject: "work stuff", Content: "meeting"},
	}
	addMessage(t, fake, msgs[1], map[Category]float64{CategoryPersonal: 0.4})
	addMessage(t, fake, msgs[2], map[Category]float64{CategoryWork: 0.7, CategoryUpdates: 0.3})

	for i, msg := range msgs {
		result, err := engine.Classify(context.Background(), msg)
		require.NoError(t, err, "message %d", i)

		assert.GreaterOrEqual(t, result.Confidence, 0, "message %d", i)
		assert.LessOrEqual(t, result.Confidence, 100, "message %d", i)
		assert.NotEmpty(t, result.Labels, "message %d", i)
		assert.True(t, result.HasLabel(result.Category), "message %d: category %q missing from labels %v",
			i, result.Category, result.Labels)
		assert.True(t, result.Category.Valid(), "message %d", i)

		seen := make(map[Category]bool)
		for _, l := range result.Labels {
			assert.False(t, seen[l], "message %d: duplicate label %q", i, l)
			seen[l] = true
		}
	}
}

func TestClassifyIsIdempotent(t *testing.T) {
	fake := newFakeEmbedder()
	msg := Message{Subject: "repeat", Content: "same input"}
	addMessage(t, fake, msg, map[Category]float64{
		CategoryNewsletters: 0.45,
		CategoryUpdates:     0.31,
	})

	engine := NewEngine(fake)
	first, err := engine.Classify(context.Background(), msg)
	require.NoError(t, err)
	second, err := engine.Classify(context.Background(), msg)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestClassifyProviderErrorSurfaces(t *testing.T) {
	fake := newFakeEmbedder()
	engine := NewEngine(fake)

	// Warm the registry so the failure hits the message embedding, not
	// initialization.
	require.NoError(t, engine.Warmup(context.Background()))

	fake.setError(fmt.Errorf("model not loaded"))
	_, err := engine.Classify(context.Background(), Message{Subject: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.Contains(t, err.Error(), "model not loaded")
	assert.NotErrorIs(t, err, ErrNotInitialized)
}

func TestClassifyRecoversAfterFailedInitialization(t *testing.T) {
	fake := newFakeEmbedder()
	fake.setError(errors.New("connection refused"))
	engine := NewEngine(fake)

	_, err := engine.Classify(context.Background(), Message{Subject: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.False(t, engine.Ready())

	// Once the provider heals, the same engine classifies without a
	// restart.
	fake.setError(nil)
	msg := Message{Subject: "retry"}
	addMessage(t, fake, msg, map[Category]float64{CategoryUpdates: 0.5})

	result, err := engine.Classify(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, CategoryUpdates, result.Category)
	assert.True(t, engine.Ready())
}

func TestClassifyBatchMatchesSingle(t *testing.T) {
	fake := newFakeEmbedder()
	engine := NewEngine(fake)

	msgs := []Message{
		{Subject: "Sprint planning", Content: "backlog review"},
		{Subject: "50% off everything"},
		{Subject: "Your statement is ready", Sender: "bank@example.com"},
		{},
		{Subject: "Weekly digest", SenderName: "The Roundup"},
	}
	addMessage(t, fake, msgs[0], map[Category]float64{CategoryWork: 0.6, CategoryUpdates: 0.3})
	addMessage(t, fake, msgs[1], map[Category]float64{CategoryPromotions: 0.55})
	addMessage(t, fake, msgs[2], map[Category]float64{CategoryFinance: 0.5, CategoryUpdates: 0.35})
	addMessage(t, fake, msgs[4], map[Category]float64{CategoryNewsletters: 0.48})

	singles := make([]Result, len(msgs))
	for i, m := range msgs {
		r, err := engine.Classify(context.Background(), m)
		require.NoError(t, err)
		singles[i] = r
	}

	batch, err := engine.ClassifyBatch(context.Background(), msgs)
	require.NoError(t, err)
	require.Len(t, batch, len(msgs))

	for i := range msgs {
		assert.Equal(t, singles[i], batch[i], "index %d diverges between batch and single paths", i)
	}
}

func TestClassifyBatchPreservesOrderAndDuplicates(t *testing.T) {
	fake := newFakeEmbedder()
	engine := NewEngine(fake)

	shared := Message{Subject: "Team offsite", Content: "agenda attached"}
	addMessage(t, fake, shared, map[Category]float64{CategoryWork: 0.58})
	promo := Message{Subject: "Flash sale"}
	addMessage(t, fake, promo, map[Category]float64{CategoryPromotions: 0.52})

	msgs := []Message{shared, promo, {}, shared, promo}
	results, err := engine.ClassifyBatch(context.Background(), msgs)
	require.NoError(t, err)
	require.Len(t, results, 5)

	// Near-identical inputs get identical routing, in input order.
	assert.Equal(t, results[0], results[3])
	assert.Equal(t, results[1], results[4])
	assert.Equal(t, CategoryWork, results[0].Category)
	assert.Equal(t, CategoryPromotions, results[1].Category)
	assert.Equal(t, CategoryPrimary, results[2].Category)
}

func TestClassifyBatchUsesSingleProviderCall(t *testing.T) {
	fake := newFakeEmbedder()
	engine := NewEngine(fake)
	require.NoError(t, engine.Warmup(context.Background()))

	embedBefore, batchBefore := fake.calls()

	msgs := []Message{
		{Subject: "one"},
		{Subject: "two"},
		{Subject: "three"},
	}
	_, err := engine.ClassifyBatch(context.Background(), msgs)
	require.NoError(t, err)

	embedAfter, batchAfter := fake.calls()
	assert.Equal(t, embedBefore, embedAfter, "batch path must not use single embeds")
	assert.Equal(t, batchBefore+1, batchAfter, "batch path must make exactly one provider call")
}

func TestClassifyBatchEmptyInput(t *testing.T) {
	fake := newFakeEmbedder()
	engine := NewEngine(fake)

	results, err := engine.ClassifyBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)

	results, err = engine.ClassifyBatch(context.Background(), []Message{})
	require.NoError(t, err)
	assert.Empty(t, results)

	// No provider traffic at all, not even registry initialization.
	embed, batch := fake.calls()
	assert.Zero(t, embed)
	assert.Zero(t, batch)
}

func TestClassifyBatchProviderErrorSurfaces(t *testing.T) {
	fake := newFakeEmbedder()
	engine := NewEngine(fake)
	require.NoError(t, engine.Warmup(context.Background()))

	fake.setError(errors.New("boom"))
	_, err := engine.ClassifyBatch(context.Background(), []Message{{Subject: "x"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestEngineCalibrationOverrides(t *testing.T) {
	fake := newFakeEmbedder()
	msg := Message{Subject: "tuned"}
	addMessage(t, fake, msg, map[Category]float64{CategoryWork: 0.5})

	cal := Calibration{
		SimilarityScale:    100,
		ConfidenceCeiling:  80,
		FallbackThreshold:  60,
		FallbackConfidence: 10,
		LabelThreshold:     45,
	}
	engine := NewEngineWithCalibration(fake, cal)
	assert.Equal(t, cal, engine.Calibration())

	result, err := engine.Classify(context.Background(), msg)
	require.NoError(t, err)

	// 0.5 * 100 = 50, under the raised fallback threshold.
	assert.Equal(t, CategoryPrimary, result.Category)
	assert.Equal(t, 10, result.Confidence)
}
