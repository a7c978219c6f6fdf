package retrieval

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEmbedder struct {
	called bool
	err    error
}

func (e *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.called = true
	if e.err != nil {
		return nil, e.err
	}
	return []float32{1, 2, 3}, nil
}

type stubRepo struct {
	results   []*SearchResult
	err       error
	lastLimit int
}

func (r *stubRepo) Search(ctx context.Context, queryVector []float32, limit int) ([]*SearchResult, error) {
	r.lastLimit = limit
	if r.err != nil {
		return nil, r.err
	}
	if limit < len(r.results) {
		return r.results[:limit], nil
	}
	return r.results, nil
}

func (r *stubRepo) GetChunk(ctx context.Context, id uuid.UUID) (mo.Option[*ChunkRecord], error) {
	return mo.None[*ChunkRecord](), nil
}

func newTestService(repo Repository, embedder Embedder) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, embedder, WithServiceLogger(logger))
}

func TestService_RetrieveUsesDefaultTopK(t *testing.T) {
	repo := &stubRepo{
		results: []*SearchResult{
			{ChunkID: uuid.New(), Ordinal: 0, Text: "annual leave", Score: 0.9},
		},
	}
	embedder := &stubEmbedder{}
	svc := newTestService(repo, embedder)

	results, err := svc.Retrieve(context.Background(), "annual leave days", 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, DefaultTopK, repo.lastLimit)
	assert.True(t, embedder.called)
}

func TestService_RetrieveReturnsAtMostK(t *testing.T) {
	results := make([]*SearchResult, 10)
	for i := range results {
		results[i] = &SearchResult{ChunkID: uuid.New(), Ordinal: i, Score: 1.0 - float64(i)*0.05}
	}
	repo := &stubRepo{results: results}
	svc := newTestService(repo, &stubEmbedder{})

	got, err := svc.Retrieve(context.Background(), "query", 3)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	// kがインデックス件数を超える場合は全件
	got, err = svc.Retrieve(context.Background(), "query", 100)
	require.NoError(t, err)
	assert.Len(t, got, 10)
}

func TestService_RetrieveEmptyIndexReturnsNoResults(t *testing.T) {
	repo := &stubRepo{}
	svc := newTestService(repo, &stubEmbedder{})

	results, err := svc.Retrieve(context.Background(), "anything", 4)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestService_RetrieveRejectsEmptyQuery(t *testing.T) {
	svc := newTestService(&stubRepo{}, &stubEmbedder{})

	_, err := svc.Retrieve(context.Background(), "", 4)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRetrieval)
}

func TestService_RetrieveWrapsEmbedderFailure(t *testing.T) {
	embedder := &stubEmbedder{err: errors.New("embedding service down")}
	svc := newTestService(&stubRepo{}, embedder)

	_, err := svc.Retrieve(context.Background(), "query", 4)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRetrieval)
}

func TestService_RetrieveWrapsRepositoryFailure(t *testing.T) {
	repo := &stubRepo{err: errors.New("index corrupted")}
	svc := newTestService(repo, &stubEmbedder{})

	_, err := svc.Retrieve(context.Background(), "query", 4)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRetrieval)
}
