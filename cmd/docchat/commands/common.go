package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jinford/docchat/internal/core/chat"
	"github.com/jinford/docchat/internal/core/ingestion"
	"github.com/jinford/docchat/internal/core/recipe"
	"github.com/jinford/docchat/internal/core/retrieval"
	"github.com/jinford/docchat/internal/infra/filestore"
	"github.com/jinford/docchat/internal/infra/openai"
	"github.com/jinford/docchat/internal/infra/postgres"
	"github.com/jinford/docchat/internal/infra/spoonacular"
	"github.com/jinford/docchat/internal/platform/logger"
	"github.com/jinford/docchat/pkg/config"
	"github.com/jinford/docchat/pkg/db"
)

// AppContext はコマンド実行に必要な共通コンテキストを保持する
type AppContext struct {
	Config    *config.Config
	Logger    *slog.Logger
	Indexer   *ingestion.Service
	Retriever *retrieval.Service
	Chat      *chat.Service
	Recipes   *recipe.Service

	database *db.DB
}

// NewAppContext は設定を読み込み、依存関係を組み立てて AppContext を作成する
func NewAppContext(ctx context.Context, envFile string) (*AppContext, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	appLogger := logger.New(logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
	})

	if cfg.OpenAI.APIKey == "" {
		return nil, openai.ErrAPIKeyNotSet
	}

	embedder := openai.NewEmbedder(cfg.OpenAI.APIKey,
		openai.WithEmbeddingModel(cfg.OpenAI.EmbeddingModel),
		openai.WithEmbeddingDimension(cfg.OpenAI.EmbeddingDimension),
		openai.WithEmbeddingTimeout(time.Duration(cfg.OpenAI.TimeoutSeconds)*time.Second),
	)

	llmClient, err := openai.NewClient(cfg.OpenAI.APIKey,
		openai.WithModel(cfg.OpenAI.LLMModel),
		openai.WithTimeout(time.Duration(cfg.OpenAI.TimeoutSeconds)*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	app := &AppContext{
		Config: cfg,
		Logger: appLogger,
	}

	// ベクトルストアのバックエンドを選択する
	var (
		indexRepo  ingestion.Repository
		searchRepo retrieval.Repository
	)
	switch cfg.Index.Store {
	case "postgres":
		database, err := db.New(ctx, db.ConnectionParams{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		app.database = database
		repo := postgres.NewRepository(database.Pool)
		indexRepo, searchRepo = repo, repo
	default:
		store := filestore.New(cfg.Index.StoragePath)
		indexRepo, searchRepo = store, store
	}

	chunker, err := ingestion.NewChunker(
		ingestion.WithChunkSize(cfg.Chunking.ChunkSize),
		ingestion.WithOverlap(cfg.Chunking.Overlap),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create chunker: %w", err)
	}

	app.Indexer = ingestion.NewService(indexRepo, embedder, chunker, cfg.Index.DocumentPath,
		ingestion.WithServiceLogger(appLogger),
	)

	app.Retriever = retrieval.NewService(searchRepo, embedder,
		retrieval.WithServiceLogger(appLogger),
	)

	app.Chat = chat.NewService(app.Indexer, app.Retriever, llmClient, chat.NewSessionStore(),
		chat.WithTopK(cfg.Chat.TopK),
		chat.WithHistoryWindow(cfg.Chat.HistoryWindow),
		chat.WithTemperature(cfg.OpenAI.Temperature),
		chat.WithMaxTokens(cfg.OpenAI.MaxTokens),
		chat.WithServiceLogger(appLogger),
	)

	recipeOpts := []recipe.ServiceOption{recipe.WithServiceLogger(appLogger)}
	if cfg.Recipe.APIKey != "" {
		apiClient, err := spoonacular.NewClient(cfg.Recipe.APIKey,
			spoonacular.WithBaseURL(cfg.Recipe.BaseURL),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create recipe API client: %w", err)
		}
		recipeOpts = append(recipeOpts, recipe.WithAPIClient(apiClient))
	}
	app.Recipes = recipe.NewService(embedder, recipeOpts...)

	return app, nil
}

// Close はAppContextが保持するリソースをクリーンアップする
func (ac *AppContext) Close() {
	if ac.database != nil {
		ac.database.Close()
	}
}

// NewSessionID は新しいセッションIDを生成する
func NewSessionID() string {
	return uuid.New().String()
}
