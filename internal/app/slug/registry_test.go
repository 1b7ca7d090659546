package slug

import (
	"context"
	"errors"
	"testing"

	"github.com/sifan077/linkpulse/internal/app/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequence(values ...string) func(int) (string, error) {
	i := 0
	return func(int) (string, error) {
		v := values[i%len(values)]
		i++
		return v, nil
	}
}

func TestRegistry_AllocateGenerated(t *testing.T) {
	r := NewRegistry(RegistryConfig{Generator: sequence("abc123")})

	var reserved []string
	got, err := r.Allocate(context.Background(), "", func(ctx context.Context, s string) error {
		reserved = append(reserved, s)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "abc123", got)
	assert.Equal(t, []string{"abc123"}, reserved)
	assert.True(t, r.MightBeTaken("abc123"))
}

func TestRegistry_AllocateRetriesCollisions(t *testing.T) {
	taken := map[string]bool{"aaaaaa": true, "bbbbbb": true}
	r := NewRegistry(RegistryConfig{Generator: sequence("aaaaaa", "bbbbbb", "cccccc")})

	attempts := 0
	got, err := r.Allocate(context.Background(), "", func(ctx context.Context, s string) error {
		attempts++
		if taken[s] {
			return apperror.ErrSlugTaken
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "cccccc", got)
	assert.Equal(t, 3, attempts)
}

func TestRegistry_AllocateSkipsKnownSlugs(t *testing.T) {
	r := NewRegistry(RegistryConfig{Generator: sequence("known1", "fresh1")})
	r.MarkTaken("known1")

	var reserved []string
	got, err := r.Allocate(context.Background(), "", func(ctx context.Context, s string) error {
		reserved = append(reserved, s)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh1", got)
	assert.Equal(t, []string{"fresh1"}, reserved)
}

func TestRegistry_AllocateExhausted(t *testing.T) {
	r := NewRegistry(RegistryConfig{MaxAttempts: 4, Generator: sequence("a1a1a1", "b2b2b2", "c3c3c3", "d4d4d4")})

	attempts := 0
	_, err := r.Allocate(context.Background(), "", func(ctx context.Context, s string) error {
		attempts++
		return apperror.ErrSlugTaken
	})
	assert.ErrorIs(t, err, apperror.ErrAllocationExhausted)
	assert.Equal(t, 4, attempts)
}

func TestRegistry_AllocateCustom(t *testing.T) {
	r := NewRegistry(RegistryConfig{})
	ctx := context.Background()

	got, err := r.Allocate(ctx, "My-Link", func(ctx context.Context, s string) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, "my-link", got)

	calls := 0
	_, err = r.Allocate(ctx, "taken", func(ctx context.Context, s string) error {
		calls++
		return apperror.ErrSlugTaken
	})
	assert.ErrorIs(t, err, apperror.ErrSlugTaken)
	assert.Equal(t, 1, calls, "custom slugs are never substituted")

	_, err = r.Allocate(ctx, "no", func(ctx context.Context, s string) error {
		t.Fatal("invalid slug must not reach the store")
		return nil
	})
	assert.ErrorIs(t, err, apperror.ErrInvalidSlug)
}

func TestRegistry_AllocatePropagatesStoreErrors(t *testing.T) {
	boom := errors.New("connection refused")
	r := NewRegistry(RegistryConfig{Generator: sequence("zzz999")})

	_, err := r.Allocate(context.Background(), "", func(ctx context.Context, s string) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestRegistry_SaturatedFilterNeverExhaustsAllocation(t *testing.T) {
	r := NewRegistry(RegistryConfig{FilterCapacity: 1000})
	for i := 0; i < 10_000; i++ {
		s, err := Generate(DefaultLength)
		require.NoError(t, err)
		r.MarkTaken(s)
	}
	require.True(t, r.Saturated())

	calls := 0
	for i := 0; i < 100; i++ {
		_, err := r.Allocate(context.Background(), "", func(ctx context.Context, s string) error {
			calls++
			return nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 100, calls)
}

func TestRegistry_FilterSkipsDoNotSpendStoreAttempts(t *testing.T) {
	r := NewRegistry(RegistryConfig{MaxAttempts: 2, Generator: sequence("known1", "known2", "known3", "fresh1")})
	r.MarkTaken("known1", "known2", "known3")
	require.False(t, r.Saturated())

	var reserved []string
	got, err := r.Allocate(context.Background(), "", func(ctx context.Context, s string) error {
		reserved = append(reserved, s)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh1", got)
	assert.Equal(t, []string{"fresh1"}, reserved)
}

func TestRegistry_FilterSkipBudgetFallsBackToStore(t *testing.T) {
	r := NewRegistry(RegistryConfig{MaxAttempts: 1, Generator: sequence("known1")})
	r.MarkTaken("known1")

	calls := 0
	_, err := r.Allocate(context.Background(), "", func(ctx context.Context, s string) error {
		calls++
		return apperror.ErrSlugTaken
	})
	assert.ErrorIs(t, err, apperror.ErrAllocationExhausted)
	assert.Equal(t, 1, calls, "the store decides once the skip budget is spent")
}

func TestRegistry_RejectsReservedCustomSlug(t *testing.T) {
	r := NewRegistry(RegistryConfig{})
	_, err := r.Allocate(context.Background(), "Health", func(ctx context.Context, s string) error {
		t.Fatal("reserved slug must not reach the store")
		return nil
	})
	assert.ErrorIs(t, err, apperror.ErrInvalidSlug)
}
