package vision

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/campusworks/maintenance-reporter/pkg/util"
)

type stubAnalyzer struct {
	description string
	err         error
	calls       int
}

func (s *stubAnalyzer) Describe(_ context.Context, _ []byte, _ string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.description, nil
}

type stubCache struct {
	values map[string]string
	getErr error
	setErr error
	sets   int
}

func newStubCache() *stubCache {
	return &stubCache{values: map[string]string{}}
}

func (s *stubCache) Get(_ context.Context, key string) *redis.StringCmd {
	if s.getErr != nil {
		return redis.NewStringResult("", s.getErr)
	}
	val, ok := s.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(val, nil)
}

func (s *stubCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	s.sets++
	if s.setErr != nil {
		return redis.NewStatusResult("", s.setErr)
	}
	s.values[key] = value.(string)
	return redis.NewStatusResult("OK", nil)
}

func cachedWith(next Analyzer, cache resultCache) *CachedAnalyzer {
	return &CachedAnalyzer{next: next, client: cache, ttl: time.Minute, logger: zap.NewNop()}
}

func TestCachedAnalyzerMemoizesByImageDigest(t *testing.T) {
	model := &stubAnalyzer{description: "Ceiling fan blade is severely bent."}
	cache := newStubCache()
	analyzer := cachedWith(model, cache)

	ctx := context.Background()
	image := []byte("jpeg-bytes")

	first, err := analyzer.Describe(ctx, image, "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, model.description, first)
	assert.Equal(t, 1, model.calls)
	assert.Equal(t, 1, cache.sets)

	// Resubmitting the same photo is served from the cache.
	second, err := analyzer.Describe(ctx, image, "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, model.calls)

	// A different photo keys differently and hits the model again.
	_, err = analyzer.Describe(ctx, []byte("other-bytes"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, 2, model.calls)
}

func TestCachedAnalyzerDegradesOnCacheErrors(t *testing.T) {
	model := &stubAnalyzer{description: "Light tube is not working."}
	cache := newStubCache()
	cache.getErr = errors.New("connection refused")
	cache.setErr = errors.New("connection refused")
	analyzer := cachedWith(model, cache)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		description, err := analyzer.Describe(ctx, []byte("jpeg-bytes"), "image/jpeg")
		require.NoError(t, err)
		assert.Equal(t, model.description, description)
	}
	// With the cache unreachable every call falls through to the model.
	assert.Equal(t, 2, model.calls)
}

func TestCachedAnalyzerDisabled(t *testing.T) {
	model := &stubAnalyzer{description: "Socket is sparking."}

	analyzer := NewCachedAnalyzer(model, nil, time.Minute, zap.NewNop())
	_, err := analyzer.Describe(context.Background(), []byte("jpeg-bytes"), "image/jpeg")
	require.NoError(t, err)
	_, err = analyzer.Describe(context.Background(), []byte("jpeg-bytes"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, 2, model.calls)

	zeroTTL := &CachedAnalyzer{next: model, client: newStubCache(), logger: zap.NewNop()}
	_, err = zeroTTL.Describe(context.Background(), []byte("jpeg-bytes"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, 3, model.calls)
}

func TestCachedAnalyzerDoesNotCacheFailures(t *testing.T) {
	model := &stubAnalyzer{err: apperrors.NewAnalysisFailure(errors.New("model unavailable"))}
	cache := newStubCache()
	analyzer := cachedWith(model, cache)

	_, err := analyzer.Describe(context.Background(), []byte("jpeg-bytes"), "image/jpeg")
	require.Error(t, err)
	assert.Empty(t, cache.values)
	assert.Zero(t, cache.sets)
}
