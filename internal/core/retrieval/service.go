package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// DefaultTopK は検索件数のデフォルト値
const DefaultTopK = 4

// ErrRetrieval はインデックス照会の失敗を表す
// 呼び出し側は致命的エラーではなく「結果なし」として扱ってよい
var ErrRetrieval = errors.New("retrieval failed")

// Service はクエリ文字列に対するtop-k類似検索を提供する
type Service struct {
	repo     Repository
	embedder Embedder
	logger   *slog.Logger
}

type ServiceOption func(*Service)

// WithServiceLogger は Service にロガーを設定する
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService は新しいServiceを作成する
func NewService(repo Repository, embedder Embedder, opts ...ServiceOption) *Service {
	svc := &Service{
		repo:     repo,
		embedder: embedder,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(svc)
	}

	if svc.logger == nil {
		svc.logger = slog.Default()
	}

	return svc
}

// Retrieve はクエリに類似するチャンクを最大k件返す
// kが0以下の場合はDefaultTopKを使う。結果件数は min(k, インデックス件数)
func (s *Service) Retrieve(ctx context.Context, query string, k int) ([]*SearchResult, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: query is empty", ErrRetrieval)
	}
	if k <= 0 {
		k = DefaultTopK
	}

	queryVector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to embed query: %v", ErrRetrieval, err)
	}

	results, err := s.repo.Search(ctx, queryVector, k)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetrieval, err)
	}

	s.logger.Debug("retrieval completed",
		"query", query,
		"requested", k,
		"returned", len(results),
	)

	return results, nil
}
