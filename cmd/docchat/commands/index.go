package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// IndexAction はベクトルインデックスを構築（または読み込み確認）する
func IndexAction(ctx context.Context, cmd *cli.Command) error {
	app, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer app.Close()

	stats, err := app.Indexer.EnsureIndex(ctx)
	if err != nil {
		return fmt.Errorf("failed to ensure index: %w", err)
	}

	if stats.Rebuilt {
		fmt.Printf("Index built: %d chunks (dimension %d)\n", stats.ChunkCount, stats.Dimension)
	} else {
		fmt.Printf("Index already present: %d chunks (dimension %d)\n", stats.ChunkCount, stats.Dimension)
	}
	return nil
}
