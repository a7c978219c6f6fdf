package retrieval

import "github.com/google/uuid"

// SearchResult は類似検索で得られたチャンクとその関連度を表す
type SearchResult struct {
	ChunkID uuid.UUID
	Ordinal int
	Text    string
	Score   float64 // コサイン類似度（高いほど関連）
}

// ChunkRecord は永続化済みチャンクの読み出し結果を表す
type ChunkRecord struct {
	ID      uuid.UUID
	Ordinal int
	Text    string
}
