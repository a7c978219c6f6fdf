package commands

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/jinford/docchat/internal/tui"
)

// ChatAction は対話型のチャット画面を起動する
// 1回の起動が1セッションに対応する
func ChatAction(ctx context.Context, cmd *cli.Command) error {
	app, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer app.Close()

	// 起動時にインデックスを準備しておく（初回質問を待たせない）
	if _, err := app.Indexer.EnsureIndex(ctx); err != nil {
		return fmt.Errorf("failed to ensure index: %w", err)
	}

	model := tui.New(app.Chat, NewSessionID())
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("chat UI failed: %w", err)
	}
	return nil
}
