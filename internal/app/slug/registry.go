package slug

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/sifan077/linkpulse/internal/app/apperror"
	infraPrometheus "github.com/sifan077/linkpulse/internal/infra/prometheus"
	"go.uber.org/zap"
)

const (
	DefaultMaxAttempts         = 5
	defaultFilterCapacity      = 100_000
	defaultFilterFalsePositive = 0.01

	// Filter skips have their own budget per store attempt, so a crowded
	// filter can delay allocation but never exhaust it.
	filterSkipsPerAttempt = 4

	// Above this estimated false positive rate the filter is ignored.
	saturatedFalsePositive = 0.5
)

// Reserver atomically claims slug in the store, returning
// apperror.ErrSlugTaken when another link already owns it.
type Reserver func(ctx context.Context, slug string) error

// RegistryConfig drives how a Registry generates and tracks slugs.
type RegistryConfig struct {
	Length              int
	MaxAttempts         int
	FilterCapacity      uint
	FilterFalsePositive float64
	Logger              *zap.Logger
	Metrics             *infraPrometheus.Metrics

	// Generator overrides random candidate generation (tests).
	Generator func(length int) (string, error)
}

// Registry allocates slugs. Uniqueness is enforced by the Reserver; the
// Bloom filter only lets the registry skip candidates that are probably taken.
type Registry struct {
	length      int
	maxAttempts int
	generate    func(length int) (string, error)
	logger      *zap.Logger
	metrics     *infraPrometheus.Metrics

	mu        sync.RWMutex
	filter    *bloom.BloomFilter
	saturated bool
}

// NewRegistry builds a registry with an empty filter.
func NewRegistry(cfg RegistryConfig) *Registry {
	length := cfg.Length
	if length <= 0 {
		length = DefaultLength
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	capacity := cfg.FilterCapacity
	if capacity == 0 {
		capacity = defaultFilterCapacity
	}
	fp := cfg.FilterFalsePositive
	if fp <= 0 || fp >= 1 {
		fp = defaultFilterFalsePositive
	}
	gen := cfg.Generator
	if gen == nil {
		gen = Generate
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Registry{
		length:      length,
		maxAttempts: attempts,
		generate:    gen,
		logger:      logger,
		metrics:     cfg.Metrics,
		filter:      bloom.NewWithEstimates(capacity, fp),
	}
}

// Allocate returns the slug claimed through reserve. A custom slug is
// validated and reserved exactly once; otherwise random candidates are tried
// up to the configured number of attempts.
func (r *Registry) Allocate(ctx context.Context, custom string, reserve Reserver) (string, error) {
	if custom != "" {
		return r.allocateCustom(ctx, Normalize(custom), reserve)
	}

	useFilter := !r.Saturated()
	skips := 0
	for attempt := 1; attempt <= r.maxAttempts; {
		candidate, err := r.generate(r.length)
		if err != nil {
			return "", err
		}

		if useFilter && r.MightBeTaken(candidate) {
			skips++
			r.logger.Debug("skipping probably taken slug",
				zap.String("slug", candidate), zap.Int("attempt", attempt), zap.Int("skips", skips))
			if skips >= filterSkipsPerAttempt*r.maxAttempts {
				useFilter = false
			}
			continue
		}

		err = reserve(ctx, candidate)
		if err == nil {
			r.MarkTaken(candidate)
			return candidate, nil
		}
		if !errors.Is(err, apperror.ErrSlugTaken) {
			return "", err
		}

		r.MarkTaken(candidate)
		r.metrics.SlugCollision()
		r.logger.Debug("generated slug collided",
			zap.String("slug", candidate), zap.Int("attempt", attempt))
		attempt++
	}

	return "", fmt.Errorf("slug: %d attempts: %w", r.maxAttempts, apperror.ErrAllocationExhausted)
}

func (r *Registry) allocateCustom(ctx context.Context, custom string, reserve Reserver) (string, error) {
	if err := Validate(custom); err != nil {
		return "", err
	}
	if err := reserve(ctx, custom); err != nil {
		if errors.Is(err, apperror.ErrSlugTaken) {
			r.MarkTaken(custom)
			return "", fmt.Errorf("slug %q: %w", custom, apperror.ErrSlugTaken)
		}
		return "", err
	}
	r.MarkTaken(custom)
	return custom, nil
}

// MarkTaken records slugs known to be reserved.
func (r *Registry) MarkTaken(slugs ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range slugs {
		r.filter.AddString(s)
	}
	r.saturated = estimatedFalsePositive(r.filter) > saturatedFalsePositive
}

// Saturated reports whether the filter holds so many slugs that it answers
// "probably taken" for most candidates. Allocation then goes straight to the store.
func (r *Registry) Saturated() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.saturated
}

func estimatedFalsePositive(f *bloom.BloomFilter) float64 {
	fill := float64(f.BitSet().Count()) / float64(f.Cap())
	return math.Pow(fill, float64(f.K()))
}

// MightBeTaken reports whether slug was probably reserved before.
func (r *Registry) MightBeTaken(slug string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.filter.TestString(slug)
}
