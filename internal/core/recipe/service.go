package recipe

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/jinford/docchat/internal/core/intent"
)

// DefaultSuggestionLimit はローカル候補のデフォルト件数
const DefaultSuggestionLimit = 3

// DefaultExternalLimit は外部API検索のデフォルト件数
const DefaultExternalLimit = 5

// Service はレシピ提案を提供する（周辺機能）
// 組み込みコーパスに対する類似検索と外部APIの検索を組み合わせる
type Service struct {
	embedder Embedder
	api      APIClient // nilなら外部検索をスキップ
	corpus   []Recipe
	logger   *slog.Logger

	// コーパスの埋め込みは初回利用時に一度だけ生成する
	prepareOnce sync.Once
	prepareErr  error
	vectors     [][]float32
}

type ServiceOption func(*Service)

// WithAPIClient は外部レシピAPIクライアントを設定する
func WithAPIClient(api APIClient) ServiceOption {
	return func(s *Service) {
		s.api = api
	}
}

// WithCorpus は組み込みコーパスを差し替える
func WithCorpus(corpus []Recipe) ServiceOption {
	return func(s *Service) {
		s.corpus = corpus
	}
}

// WithServiceLogger は Service にロガーを設定する
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService は新しいServiceを作成する
func NewService(embedder Embedder, opts ...ServiceOption) *Service {
	svc := &Service{
		embedder: embedder,
		corpus:   BuiltinRecipes,
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

// Suggest はレシピ要求の発話に対して候補を返す
// レシピ要求以外の意図の場合は空の結果を返す
func (s *Service) Suggest(ctx context.Context, query string) (*SuggestResult, error) {
	if intent.Classify(query) != intent.RecipeRequest {
		return &SuggestResult{}, nil
	}

	local, err := s.suggestLocal(ctx, query, DefaultSuggestionLimit)
	if err != nil {
		return nil, err
	}

	result := &SuggestResult{Local: local}

	if s.api != nil {
		external, err := s.api.SearchRecipes(ctx, query, DefaultExternalLimit)
		if err != nil {
			// 外部APIの障害はローカル候補だけで続行する
			s.logger.Warn("external recipe search failed", "error", err)
		} else {
			result.External = external
		}
	}

	return result, nil
}

// suggestLocal は組み込みコーパスに対するコサイン類似検索を行う
func (s *Service) suggestLocal(ctx context.Context, query string, limit int) ([]Suggestion, error) {
	if err := s.prepare(ctx); err != nil {
		return nil, err
	}

	queryVector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed recipe query: %w", err)
	}

	suggestions := make([]Suggestion, 0, len(s.corpus))
	for i, r := range s.corpus {
		suggestions = append(suggestions, Suggestion{
			Recipe: r,
			Score:  cosineSimilarity(queryVector, s.vectors[i]),
		})
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Score > suggestions[j].Score
	})

	if limit > 0 && limit < len(suggestions) {
		suggestions = suggestions[:limit]
	}
	return suggestions, nil
}

// prepare はコーパス全件の埋め込みを一度だけ生成する
func (s *Service) prepare(ctx context.Context) error {
	s.prepareOnce.Do(func() {
		texts := make([]string, 0, len(s.corpus))
		for _, r := range s.corpus {
			texts = append(texts, r.Description)
		}

		vectors, err := s.embedder.BatchEmbed(ctx, texts)
		if err != nil {
			s.prepareErr = fmt.Errorf("failed to embed recipe corpus: %w", err)
			return
		}
		if len(vectors) != len(texts) {
			s.prepareErr = fmt.Errorf("embedder returned %d vectors for %d recipes", len(vectors), len(texts))
			return
		}
		s.vectors = vectors
	})
	return s.prepareErr
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
