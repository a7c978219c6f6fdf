package chat

import (
	"context"

	"github.com/google/uuid"

	"github.com/jinford/docchat/internal/core/ingestion"
	"github.com/jinford/docchat/internal/core/retrieval"
)

// Role は会話ターンの発話者を表す
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn はセッション内の1発話を表す
type Turn struct {
	Role    Role
	Content string
}

// AskParams は質問応答のパラメータを表す
type AskParams struct {
	SessionID string // 会話セッション識別子
	Utterance string // ユーザーの発話（省略形・指示語を含みうる）
}

// AskResult は質問応答の結果を表す
type AskResult struct {
	Answer       string            // アシスタントの回答
	UsedFallback bool              // 回答がフォールバック文だった場合 true
	Sources      []SourceReference // 回答の根拠となったチャンク
}

// SourceReference は回答の根拠となったチャンク参照を表す
type SourceReference struct {
	ChunkID uuid.UUID
	Ordinal int
	Score   float64
}

// CompletionRequest はLLM呼び出しのリクエストを表す
type CompletionRequest struct {
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// CompletionResponse はLLM呼び出しの結果を表す
type CompletionResponse struct {
	Content    string
	TokensUsed int
	Model      string
}

// LLMClient はLLM通信インターフェース
type LLMClient interface {
	GenerateCompletion(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

// Indexer はインデックスのbuild-or-loadを提供する
type Indexer interface {
	EnsureIndex(ctx context.Context) (*ingestion.IndexStats, error)
}

// Retriever はクエリに対するtop-k類似検索を提供する
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]*retrieval.SearchResult, error)
}
