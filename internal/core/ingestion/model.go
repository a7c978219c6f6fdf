package ingestion

import "github.com/google/uuid"

// Document は取り込み対象の単一ドキュメントを表す
type Document struct {
	Path    string // 読み込み元のファイルパス
	Content string // 正規化済みのテキスト本文
}

// Chunk は検索単位となるドキュメント断片を表す
// インデックス構築時に一度だけ生成され、以後は不変
type Chunk struct {
	ID          uuid.UUID // チャンク識別子
	Ordinal     int       // ドキュメント内の出現順序（0始まり）
	Text        string    // チャンク本文（必ず非空）
	StartOffset int       // 元テキスト内の開始バイトオフセット
	EndOffset   int       // 元テキスト内の終了バイトオフセット（排他的）
	Embedding   []float32 // 埋め込みベクトル
}

// Metadata は埋め込みモデルの情報を表す
// インデックスと一緒に永続化し、構築時と照会時のモデル不一致を検出する
type Metadata struct {
	ModelName string
	Dimension int
}

// IndexStats はEnsureIndexの結果を表す
type IndexStats struct {
	ChunkCount int
	Dimension  int
	Rebuilt    bool // 今回の呼び出しで構築した場合 true
}
