package spoonacular

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jinford/docchat/internal/core/recipe"
)

const (
	// DefaultBaseURL はSpoonacular APIのエンドポイント
	DefaultBaseURL = "https://api.spoonacular.com"

	// DefaultTimeout はAPI呼び出しのタイムアウト
	DefaultTimeout = 10 * time.Second
)

// ErrAPIKeyNotSet はAPIキーが設定されていない場合のエラー
var ErrAPIKeyNotSet = errors.New("Spoonacular API key not set")

// Client はSpoonacular複合検索APIのクライアント
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

type clientOptions struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// ClientOption は Client のオプション設定
type ClientOption func(*clientOptions)

// WithBaseURL はエンドポイントを上書きする（テスト用）
func WithBaseURL(baseURL string) ClientOption {
	return func(o *clientOptions) {
		o.baseURL = baseURL
	}
}

// WithTimeout はタイムアウトを上書きする
func WithTimeout(timeout time.Duration) ClientOption {
	return func(o *clientOptions) {
		o.timeout = timeout
	}
}

// NewClient は新しい Client を作成する
func NewClient(apiKey string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	options := clientOptions{
		baseURL: DefaultBaseURL,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &Client{
		httpClient: &http.Client{Timeout: options.timeout},
		baseURL:    options.baseURL,
		apiKey:     apiKey,
	}, nil
}

// searchResponse はcomplexSearchのレスポンス形式
type searchResponse struct {
	Results []struct {
		Title   string `json:"title"`
		Summary string `json:"summary"`
	} `json:"results"`
}

// SearchRecipes はcomplexSearchエンドポイントでレシピを検索する
func (c *Client) SearchRecipes(ctx context.Context, query string, limit int) ([]recipe.Recipe, error) {
	if limit <= 0 {
		limit = 5
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("number", strconv.Itoa(limit))
	params.Set("addRecipeInformation", "true")
	params.Set("apiKey", c.apiKey)

	endpoint := fmt.Sprintf("%s/recipes/complexSearch?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build recipe search request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("recipe search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("recipe search returned status %d", resp.StatusCode)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode recipe search response: %w", err)
	}

	recipes := make([]recipe.Recipe, 0, len(body.Results))
	for _, result := range body.Results {
		recipes = append(recipes, recipe.Recipe{
			Name:        result.Title,
			Description: result.Summary,
		})
	}
	return recipes, nil
}

// インターフェース実装の確認
var _ recipe.APIClient = (*Client)(nil)
