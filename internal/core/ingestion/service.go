package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var (
	// ErrIngestion はドキュメントの読み込み・分割に失敗した場合のエラー
	ErrIngestion = errors.New("document ingestion failed")

	// ErrIndexBuild は埋め込み生成または永続化に失敗した場合のエラー
	// 部分的なインデックスを残さないため、構築全体を中断する
	ErrIndexBuild = errors.New("index build failed")
)

// Service はベクトルインデックスのbuild-or-loadを提供する
// 永続化済みインデックスがあればそれを使い、なければドキュメントから構築する
type Service struct {
	repo         Repository
	embedder     Embedder
	chunker      *Chunker
	documentPath string
	logger       *slog.Logger

	// buildMu は初回起動時の同時構築を直列化する
	buildMu sync.Mutex
}

type ServiceOption func(*Service)

// WithServiceLogger は Service にロガーを設定する
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService は新しいServiceを作成する
func NewService(
	repo Repository,
	embedder Embedder,
	chunker *Chunker,
	documentPath string,
	opts ...ServiceOption,
) *Service {
	svc := &Service{
		repo:         repo,
		embedder:     embedder,
		chunker:      chunker,
		documentPath: documentPath,
		logger:       slog.Default(),
	}

	for _, opt := range opts {
		opt(svc)
	}

	if svc.logger == nil {
		svc.logger = slog.Default()
	}

	return svc
}

// EnsureIndex はインデックスを構築または読み込み、その統計を返す
// 同時に呼ばれても構築は一度だけ実行される
func (s *Service) EnsureIndex(ctx context.Context) (*IndexStats, error) {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	exists, err := s.repo.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to check index existence: %v", ErrIndexBuild, err)
	}

	if exists {
		count, err := s.repo.Count(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to count chunks: %v", ErrIndexBuild, err)
		}
		s.logger.Info("loaded persisted index",
			"chunks", count,
			"dimension", s.embedder.Dimension(),
		)
		return &IndexStats{
			ChunkCount: count,
			Dimension:  s.embedder.Dimension(),
			Rebuilt:    false,
		}, nil
	}

	return s.build(ctx)
}

// build はドキュメントを読み込み、分割・埋め込み・永続化を行う
func (s *Service) build(ctx context.Context) (*IndexStats, error) {
	doc, err := LoadDocument(s.documentPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIngestion, err)
	}

	chunks, err := s.chunker.Split(doc.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIngestion, err)
	}
	if len(chunks) == 0 {
		s.logger.Warn("document produced no chunks", "path", s.documentPath)
		return nil, fmt.Errorf("%w: document %s produced no chunks", ErrIngestion, s.documentPath)
	}

	s.logger.Info("building vector index",
		"path", s.documentPath,
		"chunks", len(chunks),
		"model", s.embedder.Metadata().ModelName,
	)

	if err := s.embedAll(ctx, chunks); err != nil {
		// 一部だけ埋め込まれた不整合なコーパスを残さない
		return nil, fmt.Errorf("%w: %v", ErrIndexBuild, err)
	}

	if err := s.repo.SaveAll(ctx, s.embedder.Metadata(), chunks); err != nil {
		return nil, fmt.Errorf("%w: failed to persist index: %v", ErrIndexBuild, err)
	}

	s.logger.Info("vector index built", "chunks", len(chunks))

	return &IndexStats{
		ChunkCount: len(chunks),
		Dimension:  s.embedder.Dimension(),
		Rebuilt:    true,
	}, nil
}

// embedAll は全チャンクの埋め込みをバッチで生成する
func (s *Service) embedAll(ctx context.Context, chunks []*Chunk) error {
	batchSize := s.embedder.MaxBatchSize()
	if batchSize <= 0 {
		batchSize = 1
	}

	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		texts := make([]string, 0, end-start)
		for _, chunk := range chunks[start:end] {
			texts = append(texts, chunk.Text)
		}

		vectors, err := s.embedder.BatchEmbed(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed chunks [%d:%d]: %w", start, end, err)
		}
		if len(vectors) != len(texts) {
			return fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts))
		}

		for i, vector := range vectors {
			if len(vector) != s.embedder.Dimension() {
				return fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(vector), s.embedder.Dimension())
			}
			chunks[start+i].Embedding = vector
		}
	}

	return nil
}
