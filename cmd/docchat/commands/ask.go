package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/jinford/docchat/internal/core/chat"
)

// AskAction は単発の質問に回答する
// --session を指定すると同一セッションの履歴を引き継げる
func AskAction(ctx context.Context, cmd *cli.Command) error {
	app, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer app.Close()

	sessionID := cmd.String("session")
	if sessionID == "" {
		sessionID = NewSessionID()
	}

	result, err := app.Chat.Ask(ctx, chat.AskParams{
		SessionID: sessionID,
		Utterance: cmd.String("question"),
	})
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	fmt.Println(result.Answer)
	if cmd.Bool("show-sources") && len(result.Sources) > 0 {
		fmt.Println("\nSources:")
		for _, src := range result.Sources {
			fmt.Printf("  chunk %d (score %.3f)\n", src.Ordinal, src.Score)
		}
	}
	return nil
}
