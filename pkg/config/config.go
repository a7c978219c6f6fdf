package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// ログ設定
	Log LogConfig

	// OpenAI設定（Embeddings + LLM）
	OpenAI OpenAIConfig

	// ベクトルインデックス設定
	Index IndexConfig

	// チャンク分割設定
	Chunking ChunkingConfig

	// 会話パイプライン設定
	Chat ChatConfig

	// Database設定（VECTOR_STORE=postgres の場合のみ使用）
	Database DatabaseConfig

	// レシピ検索設定（周辺機能）
	Recipe RecipeConfig
}

// LogConfig はロガー設定
type LogConfig struct {
	Level  string // "debug" / "info" / "warn" / "error"
	Format string // "json" or "text"
}

// OpenAIConfig はOpenAI API設定
type OpenAIConfig struct {
	APIKey             string
	EmbeddingModel     string
	EmbeddingDimension int
	LLMModel           string
	Temperature        float64
	MaxTokens          int
	TimeoutSeconds     int
}

// IndexConfig はベクトルインデックスの保存先設定
type IndexConfig struct {
	// Store はバックエンド種別（"file" or "postgres"）
	Store string
	// DocumentPath はコーパスとなる単一ドキュメントのパス
	DocumentPath string
	// StoragePath はファイルストア使用時の永続化先
	StoragePath string
}

// ChunkingConfig はチャンク分割パラメータ（トークン単位）
type ChunkingConfig struct {
	ChunkSize int
	Overlap   int
}

// ChatConfig は会話パイプライン設定
type ChatConfig struct {
	// TopK は検索するチャンク数
	TopK int
	// HistoryWindow はプロンプトに含める直近ターン数（0で無制限）
	HistoryWindow int
}

// DatabaseConfig はデータベース接続設定
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RecipeConfig はレシピ検索（Spoonacular API）設定
type RecipeConfig struct {
	APIKey  string
	BaseURL string
}

// Load は環境変数または.envファイルから設定を読み込みます
func Load(envFilePath string) (*Config, error) {
	// .envファイルが存在する場合は読み込む
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルが存在しない場合はエラーとしない（環境変数のみで動作可能）
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		OpenAI: OpenAIConfig{
			APIKey:             getEnv("OPENAI_API_KEY", ""),
			EmbeddingModel:     getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingDimension: getEnvAsInt("OPENAI_EMBEDDING_DIMENSION", 1536),
			LLMModel:           getEnv("OPENAI_LLM_MODEL", "gpt-4o-mini"),
			Temperature:        getEnvAsFloat("OPENAI_TEMPERATURE", 0.2),
			MaxTokens:          getEnvAsInt("OPENAI_MAX_TOKENS", 1024),
			TimeoutSeconds:     getEnvAsInt("OPENAI_TIMEOUT_SECONDS", 60),
		},
		Index: IndexConfig{
			Store:        getEnv("VECTOR_STORE", "file"),
			DocumentPath: getEnv("DOCUMENT_PATH", "handbook.md"),
			StoragePath:  getEnv("INDEX_STORAGE_PATH", "./index/chunks.json"),
		},
		Chunking: ChunkingConfig{
			ChunkSize: getEnvAsInt("CHUNK_SIZE", 1000),
			Overlap:   getEnvAsInt("CHUNK_OVERLAP", 100),
		},
		Chat: ChatConfig{
			TopK:          getEnvAsInt("CHAT_TOP_K", 4),
			HistoryWindow: getEnvAsInt("CHAT_HISTORY_WINDOW", 12),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "docchat"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "docchat"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Recipe: RecipeConfig{
			APIKey:  getEnv("SPOONACULAR_API_KEY", ""),
			BaseURL: getEnv("SPOONACULAR_BASE_URL", "https://api.spoonacular.com"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Index.Store != "file" && c.Index.Store != "postgres" {
		return fmt.Errorf("invalid VECTOR_STORE %q: must be \"file\" or \"postgres\"", c.Index.Store)
	}
	if c.Chunking.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.Chunking.ChunkSize)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE), got %d", c.Chunking.Overlap)
	}
	if c.Chat.TopK <= 0 {
		return fmt.Errorf("CHAT_TOP_K must be at least 1, got %d", c.Chat.TopK)
	}
	return nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt は環境変数を整数として取得します
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat は環境変数を浮動小数点数として取得します
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
