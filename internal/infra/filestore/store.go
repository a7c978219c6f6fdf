package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"github.com/jinford/docchat/internal/core/ingestion"
	"github.com/jinford/docchat/internal/core/retrieval"
)

// Store はベクトルインデックスを単一のJSONファイルに永続化する
// 書き込みは全件置き換えのみで、一時ファイルへの書き出しとrenameにより
// 原子的に行う。読み込み後はメモリ上にキャッシュし、読み取り専用で共有する
type Store struct {
	path string

	mu     sync.RWMutex
	cached *indexFile
}

// indexFile は永続化フォーマット
type indexFile struct {
	Model     string        `json:"model"`
	Dimension int           `json:"dimension"`
	Chunks    []chunkRecord `json:"chunks"`
}

type chunkRecord struct {
	ID          uuid.UUID `json:"id"`
	Ordinal     int       `json:"ordinal"`
	Text        string    `json:"text"`
	StartOffset int       `json:"start_offset"`
	EndOffset   int       `json:"end_offset"`
	Embedding   []float32 `json:"embedding"`
}

// New は新しい Store を作成する
func New(path string) *Store {
	return &Store{path: path}
}

// Exists は永続化済みインデックスが存在するかを返す
func (s *Store) Exists(ctx context.Context) (bool, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat index file: %w", err)
	}
	return info.Size() > 0, nil
}

// SaveAll はインデックス全体を原子的に書き込む
func (s *Store) SaveAll(ctx context.Context, meta ingestion.Metadata, chunks []*ingestion.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file := &indexFile{
		Model:     meta.ModelName,
		Dimension: meta.Dimension,
		Chunks:    make([]chunkRecord, 0, len(chunks)),
	}
	for _, chunk := range chunks {
		file.Chunks = append(file.Chunks, chunkRecord{
			ID:          chunk.ID,
			Ordinal:     chunk.Ordinal,
			Text:        chunk.Text,
			StartOffset: chunk.StartOffset,
			EndOffset:   chunk.EndOffset,
			Embedding:   chunk.Embedding,
		})
	}

	data, err := json.Marshal(file)
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	// 同一ディレクトリ内の一時ファイルに書いてからrenameする
	// 途中で失敗しても壊れたインデックスが残らない
	tmp, err := os.CreateTemp(dir, ".index-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp index file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write index: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp index file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace index file: %w", err)
	}

	s.cached = file
	return nil
}

// Count は永続化済みチャンク数を返す
func (s *Store) Count(ctx context.Context) (int, error) {
	file, err := s.load()
	if err != nil {
		return 0, err
	}
	return len(file.Chunks), nil
}

// Search はクエリベクトルに対するコサイン類似検索を行う
// 類似度降順、同点は出現順（Ordinal昇順）で安定にソートする
func (s *Store) Search(ctx context.Context, queryVector []float32, limit int) ([]*retrieval.SearchResult, error) {
	file, err := s.load()
	if err != nil {
		return nil, err
	}

	if len(file.Chunks) == 0 {
		return nil, nil
	}
	if file.Dimension > 0 && len(queryVector) != file.Dimension {
		return nil, fmt.Errorf("query vector dimension mismatch: got %d, want %d", len(queryVector), file.Dimension)
	}

	results := make([]*retrieval.SearchResult, 0, len(file.Chunks))
	for _, record := range file.Chunks {
		results = append(results, &retrieval.SearchResult{
			ChunkID: record.ID,
			Ordinal: record.Ordinal,
			Text:    record.Text,
			Score:   cosineSimilarity(queryVector, record.Embedding),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if limit > 0 && limit < len(results) {
		results = results[:limit]
	}
	return results, nil
}

// GetChunk はチャンクIDで単一チャンクを取得する
func (s *Store) GetChunk(ctx context.Context, id uuid.UUID) (mo.Option[*retrieval.ChunkRecord], error) {
	file, err := s.load()
	if err != nil {
		return mo.None[*retrieval.ChunkRecord](), err
	}

	for _, record := range file.Chunks {
		if record.ID == id {
			return mo.Some(&retrieval.ChunkRecord{
				ID:      record.ID,
				Ordinal: record.Ordinal,
				Text:    record.Text,
			}), nil
		}
	}
	return mo.None[*retrieval.ChunkRecord](), nil
}

// load はインデックスファイルを読み込み、メモリ上にキャッシュする
func (s *Store) load() (*indexFile, error) {
	s.mu.RLock()
	if s.cached != nil {
		defer s.mu.RUnlock()
		return s.cached, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached != nil {
		return s.cached, nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			// 未構築は空インデックスとして扱う
			return &indexFile{}, nil
		}
		return nil, fmt.Errorf("failed to read index file: %w", err)
	}

	var file indexFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal index file: %w", err)
	}

	s.cached = &file
	return s.cached, nil
}

// cosineSimilarity は2つのベクトルのコサイン類似度を計算する
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// インターフェース実装の確認
var (
	_ ingestion.Repository = (*Store)(nil)
	_ retrieval.Repository = (*Store)(nil)
)
