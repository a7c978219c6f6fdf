package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jinford/docchat/internal/core/retrieval"
)

// turnState はターン処理の進行段階を表す
// 遷移は received → reformulated → retrieved → answered → recorded の一方向のみ
type turnState string

const (
	stateReceived     turnState = "received"
	stateReformulated turnState = "reformulated"
	stateRetrieved    turnState = "retrieved"
	stateAnswered     turnState = "answered"
	stateRecorded     turnState = "recorded"
)

// Service は会話パイプライン全体を編成する
// Reformulator → Retriever → Synthesizer → Session Memory の順に1ターンを処理する
type Service struct {
	indexer       Indexer
	retriever     Retriever
	llm           LLMClient
	sessions      *SessionStore
	topK          int
	historyWindow int
	temperature   float64
	maxTokens     int
	logger        *slog.Logger
}

type ServiceOption func(*Service)

// WithTopK は検索チャンク数を設定する
func WithTopK(k int) ServiceOption {
	return func(s *Service) {
		s.topK = k
	}
}

// WithHistoryWindow はプロンプトに含める直近ターン数を設定する（0で無制限）
func WithHistoryWindow(n int) ServiceOption {
	return func(s *Service) {
		s.historyWindow = n
	}
}

// WithTemperature はLLM呼び出しのtemperatureを設定する
func WithTemperature(t float64) ServiceOption {
	return func(s *Service) {
		s.temperature = t
	}
}

// WithMaxTokens はLLM出力の最大トークン数を設定する
func WithMaxTokens(n int) ServiceOption {
	return func(s *Service) {
		s.maxTokens = n
	}
}

// WithServiceLogger は Service にロガーを設定する
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService は新しいServiceを作成する
func NewService(
	indexer Indexer,
	retriever Retriever,
	llm LLMClient,
	sessions *SessionStore,
	opts ...ServiceOption,
) *Service {
	svc := &Service{
		indexer:       indexer,
		retriever:     retriever,
		llm:           llm,
		sessions:      sessions,
		topK:          4,
		historyWindow: 12,
		temperature:   0.2,
		maxTokens:     1024,
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		opt(svc)
	}

	if svc.logger == nil {
		svc.logger = slog.Default()
	}

	return svc
}

// Ask はユーザー発話に対してRAGベースで回答を生成し、ターンを記録する
//
// 回答が生成されるまでターンは記録されない（部分書き込みなし）。
// 致命的な段階失敗時はセッションを壊さず、定型のエラー回答を返す。
func (s *Service) Ask(ctx context.Context, params AskParams) (*AskResult, error) {
	if strings.TrimSpace(params.Utterance) == "" {
		return nil, ErrEmptyUtterance
	}
	if params.SessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrSession)
	}

	sess := s.sessions.GetOrCreate(params.SessionID)

	// 同一セッションの二重送信を直列化する
	sess.BeginTurn()
	defer sess.EndTurn()

	state := stateReceived
	logger := s.logger.With("sessionID", params.SessionID)

	// インデックス未構築ならここで構築する（構築自体はIndexer側で直列化される）
	stats, err := s.indexer.EnsureIndex(ctx)
	if err != nil {
		logger.Error("index unavailable", "state", string(state), "error", err)
		return s.abortTurn(), nil
	}
	if stats.ChunkCount == 0 {
		logger.Warn("index is empty, synthesis will fall back")
	}

	history := sess.Recent(s.historyWindow)

	// 1. クエリ書き換え（失敗時は生の発話にフォールバック）
	query := s.reformulate(ctx, logger, history, params.Utterance)
	state = stateReformulated

	// 2. 類似検索（失敗は「結果なし」として続行）
	chunks := s.retrieve(ctx, logger, query)
	state = stateRetrieved

	// 3. 回答生成（空コンテキストでも実行し、フォールバック文はモデルの指示に委ねる）
	answerPrompt := BuildAnswerPrompt(query, chunks, history)
	resp, err := s.llm.GenerateCompletion(ctx, CompletionRequest{
		Prompt:      answerPrompt,
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
	})
	if err != nil {
		logger.Error("answer synthesis failed", "state", string(state), "error", err)
		return s.abortTurn(), nil
	}
	answer := strings.TrimSpace(resp.Content)
	state = stateAnswered

	// 4. ターン記録（ユーザー発話と回答をペアで追記）
	sess.Append(RoleUser, params.Utterance)
	sess.Append(RoleAssistant, answer)
	state = stateRecorded

	sources := make([]SourceReference, 0, len(chunks))
	for _, chunk := range chunks {
		sources = append(sources, SourceReference{
			ChunkID: chunk.ChunkID,
			Ordinal: chunk.Ordinal,
			Score:   chunk.Score,
		})
	}

	usedFallback := strings.Contains(answer, FallbackAnswer)

	logger.Info("ask completed",
		"state", string(state),
		"turns", sess.Len(),
		"sources", len(sources),
		"usedFallback", usedFallback,
	)

	return &AskResult{
		Answer:       answer,
		UsedFallback: usedFallback,
		Sources:      sources,
	}, nil
}

// reformulate は履歴を使って発話を自己完結クエリに書き換える
// 履歴が空なら書き換え不要。LLM失敗時は生の発話で続行する
func (s *Service) reformulate(ctx context.Context, logger *slog.Logger, history []Turn, utterance string) string {
	if len(history) == 0 {
		return utterance
	}

	resp, err := s.llm.GenerateCompletion(ctx, CompletionRequest{
		Prompt:      BuildReformulatePrompt(history, utterance),
		Temperature: 0, // 書き換えは決定的に
		MaxTokens:   256,
	})
	if err != nil {
		logger.Warn("query reformulation failed, using raw utterance", "error", err)
		return utterance
	}

	query := strings.TrimSpace(resp.Content)
	if query == "" {
		return utterance
	}
	return query
}

// retrieve は類似検索を実行する。失敗は「結果なし」に落とす
func (s *Service) retrieve(ctx context.Context, logger *slog.Logger, query string) []*retrieval.SearchResult {
	results, err := s.retriever.Retrieve(ctx, query, s.topK)
	if err != nil {
		logger.Warn("retrieval failed, continuing with empty context", "error", err)
		return nil
	}
	return results
}

// abortTurn はターン中断時の結果を組み立てる。セッションには何も記録しない
func (s *Service) abortTurn() *AskResult {
	return &AskResult{
		Answer:       ErrorAnswer,
		UsedFallback: false,
		Sources:      nil,
	}
}
