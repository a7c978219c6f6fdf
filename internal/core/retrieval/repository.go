package retrieval

import (
	"context"

	"github.com/google/uuid"
	"github.com/samber/mo"
)

// Repository はベクトルインデックスに対する照会インターフェース
// インデックス構築後は読み取り専用で、全セッションから共有される
type Repository interface {
	// Search はクエリベクトルに最も近いチャンクをlimit件まで返す
	// 結果は類似度降順、同点はドキュメント内の出現順で安定
	// インデックスが空の場合は空のスライスを返す（エラーにはしない）
	Search(ctx context.Context, queryVector []float32, limit int) ([]*SearchResult, error)

	// GetChunk はチャンクIDで単一チャンクを取得する
	GetChunk(ctx context.Context, id uuid.UUID) (mo.Option[*ChunkRecord], error)
}

// Embedder はクエリテキストをベクトルに変換する
// インデックス構築時と同一のモデルでなければならない
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
