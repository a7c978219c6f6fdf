package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/docchat/internal/core/ingestion"
	"github.com/jinford/docchat/internal/core/retrieval"
)

type stubIndexer struct {
	stats ingestion.IndexStats
	err   error
	calls atomic.Int32
}

func (i *stubIndexer) EnsureIndex(ctx context.Context) (*ingestion.IndexStats, error) {
	i.calls.Add(1)
	if i.err != nil {
		return nil, i.err
	}
	stats := i.stats
	return &stats, nil
}

type stubRetriever struct {
	mu      sync.Mutex
	results []*retrieval.SearchResult
	err     error
	queries []string
	lastK   int
}

func (r *stubRetriever) Retrieve(ctx context.Context, query string, k int) ([]*retrieval.SearchResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, query)
	r.lastK = k
	if r.err != nil {
		return nil, r.err
	}
	return r.results, nil
}

func (r *stubRetriever) lastQuery() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queries) == 0 {
		return ""
	}
	return r.queries[len(r.queries)-1]
}

// scriptedLLM はプロンプト種別ごとに応答を切り替えるLLMスタブ
type scriptedLLM struct {
	reformulate func(prompt string) (string, error)
	answer      func(prompt string) (string, error)
}

func (l *scriptedLLM) GenerateCompletion(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	var (
		content string
		err     error
	)
	if strings.Contains(req.Prompt, "## Rewritten query") {
		if l.reformulate == nil {
			return CompletionResponse{}, errors.New("unexpected reformulate call")
		}
		content, err = l.reformulate(req.Prompt)
	} else {
		if l.answer == nil {
			return CompletionResponse{}, errors.New("unexpected answer call")
		}
		content, err = l.answer(req.Prompt)
	}
	if err != nil {
		return CompletionResponse{}, err
	}
	return CompletionResponse{Content: content, Model: "stub-llm"}, nil
}

func newChatService(indexer Indexer, retriever Retriever, llm LLMClient, store *SessionStore) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(indexer, retriever, llm, store, WithServiceLogger(logger))
}

func handbookChunks() []*retrieval.SearchResult {
	return []*retrieval.SearchResult{
		{ChunkID: uuid.New(), Ordinal: 0, Text: "Annual leave is 20 days. Sick leave is 10 days.", Score: 0.88},
	}
}

func TestService_AskAnswersFromRetrievedContext(t *testing.T) {
	retriever := &stubRetriever{results: handbookChunks()}
	llm := &scriptedLLM{
		answer: func(prompt string) (string, error) {
			require.Contains(t, prompt, "Annual leave is 20 days.")
			return "You get 20 days of annual leave.", nil
		},
	}
	store := NewSessionStore()
	svc := newChatService(&stubIndexer{stats: ingestion.IndexStats{ChunkCount: 1}}, retriever, llm, store)

	result, err := svc.Ask(context.Background(), AskParams{
		SessionID: "s1",
		Utterance: "How many annual leave days?",
	})
	require.NoError(t, err)
	assert.Contains(t, result.Answer, "20 days")
	assert.False(t, result.UsedFallback)
	require.Len(t, result.Sources, 1)
	assert.Equal(t, 0, result.Sources[0].Ordinal)

	// ターンがペアで記録される
	turns := store.GetOrCreate("s1").Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, RoleUser, turns[0].Role)
	assert.Equal(t, RoleAssistant, turns[1].Role)
}

func TestService_AskResolvesFollowUpAgainstHistory(t *testing.T) {
	retriever := &stubRetriever{results: handbookChunks()}
	reformulated := "How many sick leave days are provided?"
	llm := &scriptedLLM{
		reformulate: func(prompt string) (string, error) {
			// 履歴が書き換えプロンプトに含まれている
			require.Contains(t, prompt, "How many annual leave days?")
			return reformulated, nil
		},
		answer: func(prompt string) (string, error) {
			if strings.Contains(prompt, "sick leave days") {
				return "Sick leave is 10 days.", nil
			}
			return "You get 20 days of annual leave.", nil
		},
	}
	store := NewSessionStore()
	svc := newChatService(&stubIndexer{stats: ingestion.IndexStats{ChunkCount: 1}}, retriever, llm, store)

	ctx := context.Background()

	// ターン1: 履歴がないため書き換えは走らない
	first, err := svc.Ask(ctx, AskParams{SessionID: "s1", Utterance: "How many annual leave days?"})
	require.NoError(t, err)
	assert.Contains(t, first.Answer, "20 days")
	assert.Equal(t, "How many annual leave days?", retriever.lastQuery())

	// ターン2: 省略形の発話が履歴で自己完結クエリに解決される
	second, err := svc.Ask(ctx, AskParams{SessionID: "s1", Utterance: "What about sick leave?"})
	require.NoError(t, err)
	assert.Contains(t, second.Answer, "10 days")
	assert.Equal(t, reformulated, retriever.lastQuery())
}

func TestService_AskFallsBackToRawUtteranceWhenReformulationFails(t *testing.T) {
	retriever := &stubRetriever{results: handbookChunks()}
	llm := &scriptedLLM{
		reformulate: func(prompt string) (string, error) {
			return "", errors.New("model timeout")
		},
		answer: func(prompt string) (string, error) {
			return "You get 20 days of annual leave.", nil
		},
	}
	store := NewSessionStore()
	svc := newChatService(&stubIndexer{stats: ingestion.IndexStats{ChunkCount: 1}}, retriever, llm, store)

	ctx := context.Background()
	_, err := svc.Ask(ctx, AskParams{SessionID: "s1", Utterance: "How many annual leave days?"})
	require.NoError(t, err)

	// 書き換え失敗時は生の発話で検索する
	result, err := svc.Ask(ctx, AskParams{SessionID: "s1", Utterance: "What about sick leave?"})
	require.NoError(t, err)
	assert.NotEqual(t, ErrorAnswer, result.Answer)
	assert.Equal(t, "What about sick leave?", retriever.lastQuery())
}

func TestService_AskEmptyRetrievalYieldsFallbackAnswer(t *testing.T) {
	retriever := &stubRetriever{} // 結果なし
	llm := &scriptedLLM{
		answer: func(prompt string) (string, error) {
			require.Contains(t, prompt, "(no relevant excerpts found)")
			// モデルはコンテキスト不足の指示に従いフォールバック文を返す
			return FallbackAnswer, nil
		},
	}
	store := NewSessionStore()
	svc := newChatService(&stubIndexer{}, retriever, llm, store)

	result, err := svc.Ask(context.Background(), AskParams{
		SessionID: "s1",
		Utterance: "What's the office wifi password?",
	})
	require.NoError(t, err)
	assert.Equal(t, FallbackAnswer, result.Answer)
	assert.True(t, result.UsedFallback)
	assert.Empty(t, result.Sources)
}

func TestService_AskRetrievalFailureIsTreatedAsNoResults(t *testing.T) {
	retriever := &stubRetriever{err: errors.New("index query failed")}
	llm := &scriptedLLM{
		answer: func(prompt string) (string, error) {
			return FallbackAnswer, nil
		},
	}
	store := NewSessionStore()
	svc := newChatService(&stubIndexer{stats: ingestion.IndexStats{ChunkCount: 1}}, retriever, llm, store)

	result, err := svc.Ask(context.Background(), AskParams{SessionID: "s1", Utterance: "Anything?"})
	require.NoError(t, err)
	assert.True(t, result.UsedFallback)
}

func TestService_AskSynthesisFailureAbortsTurnWithoutRecording(t *testing.T) {
	retriever := &stubRetriever{results: handbookChunks()}
	llm := &scriptedLLM{
		answer: func(prompt string) (string, error) {
			return "", errors.New("model unavailable")
		},
	}
	store := NewSessionStore()
	svc := newChatService(&stubIndexer{stats: ingestion.IndexStats{ChunkCount: 1}}, retriever, llm, store)

	result, err := svc.Ask(context.Background(), AskParams{SessionID: "s1", Utterance: "How many annual leave days?"})
	require.NoError(t, err)
	assert.Equal(t, ErrorAnswer, result.Answer)

	// 失敗したターンは記録されない
	assert.Equal(t, 0, store.GetOrCreate("s1").Len())
}

func TestService_AskIndexUnavailableReturnsErrorAnswer(t *testing.T) {
	indexer := &stubIndexer{err: errors.New("storage unwritable")}
	store := NewSessionStore()
	svc := newChatService(indexer, &stubRetriever{}, &scriptedLLM{}, store)

	result, err := svc.Ask(context.Background(), AskParams{SessionID: "s1", Utterance: "Hello?"})
	require.NoError(t, err)
	assert.Equal(t, ErrorAnswer, result.Answer)
	assert.Equal(t, 0, store.GetOrCreate("s1").Len())
}

func TestService_AskValidatesInput(t *testing.T) {
	svc := newChatService(&stubIndexer{}, &stubRetriever{}, &scriptedLLM{}, NewSessionStore())

	_, err := svc.Ask(context.Background(), AskParams{SessionID: "s1", Utterance: "   "})
	assert.ErrorIs(t, err, ErrEmptyUtterance)

	_, err = svc.Ask(context.Background(), AskParams{SessionID: "", Utterance: "Hello"})
	assert.ErrorIs(t, err, ErrSession)
}

func TestService_ConcurrentAsksOnSameSessionAreSerialized(t *testing.T) {
	retriever := &stubRetriever{results: handbookChunks()}
	llm := &scriptedLLM{
		reformulate: func(prompt string) (string, error) { return "query", nil },
		answer:      func(prompt string) (string, error) { return "An answer.", nil },
	}
	store := NewSessionStore()
	svc := newChatService(&stubIndexer{stats: ingestion.IndexStats{ChunkCount: 1}}, retriever, llm, store)

	const turns = 8
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Ask(context.Background(), AskParams{SessionID: "s1", Utterance: "How many annual leave days?"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	recorded := store.GetOrCreate("s1").Turns()
	require.Len(t, recorded, turns*2)
	for i := 0; i < len(recorded); i += 2 {
		assert.Equal(t, RoleUser, recorded[i].Role)
		assert.Equal(t, RoleAssistant, recorded[i+1].Role)
	}
}
