package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	"github.com/samber/mo"

	"github.com/jinford/docchat/internal/core/ingestion"
	"github.com/jinford/docchat/internal/core/retrieval"
)

// Repository はpgvectorを使ったベクトルインデックス実装
// ファイルストアと同じ契約（全件置き換えのみ、照会は読み取り専用）に従う
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository は新しい Repository を返す
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EnsureSchema はvector拡張とテーブルを作成する
// dimensionは埋め込みモデルの次元数と一致させる
func (r *Repository) EnsureSchema(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("dimension must be positive, got %d", dimension)
	}

	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS index_metadata (
			singleton boolean PRIMARY KEY DEFAULT true CHECK (singleton),
			model text NOT NULL,
			dimension integer NOT NULL
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS document_chunks (
			id uuid PRIMARY KEY,
			ordinal integer NOT NULL UNIQUE,
			content text NOT NULL,
			start_offset integer NOT NULL,
			end_offset integer NOT NULL,
			embedding vector(%d) NOT NULL
		)`, dimension),
	}

	for _, stmt := range statements {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

// Exists は永続化済みインデックスが存在するかを返す
func (r *Repository) Exists(ctx context.Context) (bool, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM document_chunks`).Scan(&count)
	if err != nil {
		// テーブル未作成は「存在しない」として扱う
		if isUndefinedTable(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check index existence: %w", err)
	}
	return count > 0, nil
}

// SaveAll はインデックス全体をトランザクション内で置き換える
func (r *Repository) SaveAll(ctx context.Context, meta ingestion.Metadata, chunks []*ingestion.Chunk) error {
	if err := r.EnsureSchema(ctx, meta.Dimension); err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM document_chunks`); err != nil {
		return fmt.Errorf("failed to clear chunks: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO index_metadata (singleton, model, dimension) VALUES (true, $1, $2)
		 ON CONFLICT (singleton) DO UPDATE SET model = $1, dimension = $2`,
		meta.ModelName, meta.Dimension,
	); err != nil {
		return fmt.Errorf("failed to save index metadata: %w", err)
	}

	for _, chunk := range chunks {
		if _, err := tx.Exec(ctx,
			`INSERT INTO document_chunks (id, ordinal, content, start_offset, end_offset, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			chunk.ID, chunk.Ordinal, chunk.Text, chunk.StartOffset, chunk.EndOffset,
			pgvector.NewVector(chunk.Embedding),
		); err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", chunk.Ordinal, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit index: %w", err)
	}
	return nil
}

// Count は永続化済みチャンク数を返す
func (r *Repository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM document_chunks`).Scan(&count)
	if err != nil {
		if isUndefinedTable(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}

// Search はコサイン距離による最近傍検索を行う
// 類似度降順、同点は出現順で安定
func (r *Repository) Search(ctx context.Context, queryVector []float32, limit int) ([]*retrieval.SearchResult, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, ordinal, content, 1 - (embedding <=> $1) AS score
		 FROM document_chunks
		 ORDER BY embedding <=> $1, ordinal
		 LIMIT $2`,
		pgvector.NewVector(queryVector), limit,
	)
	if err != nil {
		if isUndefinedTable(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer rows.Close()

	var results []*retrieval.SearchResult
	for rows.Next() {
		var result retrieval.SearchResult
		if err := rows.Scan(&result.ChunkID, &result.Ordinal, &result.Text, &result.Score); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		results = append(results, &result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate search results: %w", err)
	}
	return results, nil
}

// GetChunk はチャンクIDで単一チャンクを取得する
func (r *Repository) GetChunk(ctx context.Context, id uuid.UUID) (mo.Option[*retrieval.ChunkRecord], error) {
	var record retrieval.ChunkRecord
	err := r.pool.QueryRow(ctx,
		`SELECT id, ordinal, content FROM document_chunks WHERE id = $1`, id,
	).Scan(&record.ID, &record.Ordinal, &record.Text)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isUndefinedTable(err) {
			return mo.None[*retrieval.ChunkRecord](), nil
		}
		return mo.None[*retrieval.ChunkRecord](), fmt.Errorf("failed to get chunk: %w", err)
	}
	return mo.Some(&record), nil
}

// isUndefinedTable はundefined_table(42P01)エラーかを判定する
func isUndefinedTable(err error) bool {
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "42P01"
	}
	return false
}

// インターフェース実装の確認
var (
	_ ingestion.Repository = (*Repository)(nil)
	_ retrieval.Repository = (*Repository)(nil)
)
