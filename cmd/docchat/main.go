package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/jinford/docchat/cmd/docchat/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 構造化ログの設定（AppContext初期化前のエラーも拾えるように）
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	envFlag := &cli.StringFlag{
		Name:  "env",
		Usage: "環境変数ファイルパス",
		Value: ".env",
	}

	app := &cli.Command{
		Name:  "docchat",
		Usage: "単一ドキュメントに対する会話型の質問応答アシスタント",
		Commands: []*cli.Command{
			{
				Name:   "index",
				Usage:  "ベクトルインデックスを構築する（既存なら何もしない）",
				Flags:  []cli.Flag{envFlag},
				Action: commands.IndexAction,
			},
			{
				Name:  "ask",
				Usage: "単発の質問に回答する",
				Flags: []cli.Flag{
					envFlag,
					&cli.StringFlag{
						Name:     "question",
						Aliases:  []string{"q"},
						Usage:    "質問文",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "session",
						Usage: "セッションID（省略時は新規セッション）",
					},
					&cli.BoolFlag{
						Name:  "show-sources",
						Usage: "根拠となったチャンクを表示する",
					},
				},
				Action: commands.AskAction,
			},
			{
				Name:   "chat",
				Usage:  "対話型チャット画面を起動する",
				Flags:  []cli.Flag{envFlag},
				Action: commands.ChatAction,
			},
			{
				Name:  "recipes",
				Usage: "レシピ候補を検索する",
				Flags: []cli.Flag{
					envFlag,
					&cli.StringFlag{
						Name:     "query",
						Aliases:  []string{"q"},
						Usage:    "検索クエリ",
						Required: true,
					},
				},
				Action: commands.RecipesAction,
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
