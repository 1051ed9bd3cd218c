package classify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/gokturkhatay/smartinbox/internal/embeddings"
	"github.com/gokturkhatay/smartinbox/internal/logging"
)

// initState tracks the registry lifecycle: Uninitialized until first
// use, Initializing while the exemplar batch is in flight, Ready once
// every category vector is cached. A failed attempt returns to
// Uninitialized so a later call can retry.
type initState int

const (
	stateUninitialized initState = iota
	stateInitializing
	stateReady
)

// Registry owns the embedding vectors for the fixed category taxonomy.
// Vectors are computed exactly once per process, from a single batch
// call covering all categories, and are immutable afterward. After the
// registry is Ready its vectors are shared read-only state, safe for
// unsynchronized concurrent reads.
type Registry struct {
	embedder embeddings.Embedder
	logger   *slog.Logger

	group singleflight.Group

	mu      sync.RWMutex
	state   initState
	vectors map[Category][]float32
}

// NewRegistry creates a registry backed by the given embedder. The
// exemplar vectors are not computed until first use.
func NewRegistry(embedder embeddings.Embedder) *Registry {
	return NewRegistryWithLogger(embedder, slog.Default())
}

// NewRegistryWithLogger creates a registry with a custom logger.
func NewRegistryWithLogger(embedder embeddings.Embedder, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		embedder: embedder,
		logger:   logger,
		vectors:  make(map[Category][]float32),
	}
}

// Ready reports whether the exemplar vectors have been computed.
func (r *Registry) Ready() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state == stateReady
}

// EnsureReady computes the category vectors on first call and is a
// no-op afterward. Concurrent first callers share a single in-flight
// embedding call; none of them can observe a partially populated
// registry. On failure the registry rolls back to its uninitialized
// state, the error is returned to every waiter, and the next call
// retries from scratch.
func (r *Registry) EnsureReady(ctx context.Context) error {
	r.mu.RLock()
	ready := r.state == stateReady
	r.mu.RUnlock()
	if ready {
		return nil
	}

	// Waiters joining an in-flight initialization share the first
	// caller's context; if that caller cancels, everyone receives the
	// error and a later call starts over.
	_, err, _ := r.group.Do("init", func() (any, error) {
		return nil, r.initialize(ctx)
	})
	return err
}

// initialize embeds every category's exemplars in one batch call and
// caches the resulting vectors. Exemplars are joined with spaces into
// one string per category so each category is represented by a single
// vector.
func (r *Registry) initialize(ctx context.Context) error {
	r.mu.Lock()
	if r.state == stateReady {
		r.mu.Unlock()
		return nil
	}
	r.state = stateInitializing
	r.mu.Unlock()

	cats := ScoredCategories()
	texts := make([]string, len(cats))
	for i, c := range cats {
		texts[i] = strings.Join(categoryExemplars[c], " ")
	}

	vecs, err := r.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		r.rollback()
		return fmt.Errorf("embed category exemplars: %w: %w", ErrProviderUnavailable, err)
	}
	if len(vecs) != len(cats) {
		r.rollback()
		return fmt.Errorf("embed category exemplars: %w: got %d vectors for %d categories",
			ErrProviderUnavailable, len(vecs), len(cats))
	}

	byCategory := make(map[Category][]float32, len(cats))
	for i, c := range cats {
		byCategory[c] = vecs[i]
	}

	r.mu.Lock()
	r.vectors = byCategory
	r.state = stateReady
	r.mu.Unlock()

	r.logger.Info("category registry initialized",
		"categories", len(cats),
		logging.Model(r.embedder.ModelVersion()),
		"dimensions", r.embedder.Dimensions())
	return nil
}

func (r *Registry) rollback() {
	r.mu.Lock()
	r.state = stateUninitialized
	r.mu.Unlock()
}

// VectorFor returns the cached vector for a scored category,
// initializing the registry if needed. The returned slice is shared
// read-only state; callers must not modify it.
func (r *Registry) VectorFor(ctx context.Context, c Category) ([]float32, error) {
	vectors, err := r.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	vec, ok := vectors[c]
	if !ok {
		return nil, fmt.Errorf("%w: no vector for category %q", ErrNotInitialized, c)
	}
	return vec, nil
}

// snapshot returns the full category→vector map, initializing the
// registry if needed. The map is never mutated once the registry is
// Ready, so the reference can be used without further locking.
func (r *Registry) snapshot(ctx context.Context) (map[Category][]float32, error) {
	if err := r.EnsureReady(ctx); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.state != stateReady {
		return nil, ErrNotInitialized
	}
	return r.vectors, nil
}
