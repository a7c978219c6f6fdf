package ingestion

import "context"

// Repository はベクトルインデックスの永続化層インターフェース
// 全件書き込みのみをサポートし、個別チャンクの更新・削除は提供しない
type Repository interface {
	// Exists は永続化済みインデックスが存在するかを返す
	Exists(ctx context.Context) (bool, error)

	// SaveAll はインデックス全体を原子的に書き込む
	// 既存の内容は完全に置き換えられる
	SaveAll(ctx context.Context, meta Metadata, chunks []*Chunk) error

	// Count は永続化済みチャンク数を返す
	Count(ctx context.Context) (int, error)
}

// Embedder はテキストをベクトルに変換する外部能力のインターフェース
type Embedder interface {
	// Embed は単一テキストの埋め込みを生成する
	Embed(ctx context.Context, text string) ([]float32, error)

	// BatchEmbed は複数テキストの埋め込みを一括生成する
	BatchEmbed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension はベクトル次元数を返す
	Dimension() int

	// MaxBatchSize は一括処理の最大件数を返す
	MaxBatchSize() int

	// Metadata はモデル情報を返す
	Metadata() Metadata
}
