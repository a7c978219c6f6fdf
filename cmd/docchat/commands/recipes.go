package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// RecipesAction はレシピ候補を検索する（周辺機能）
func RecipesAction(ctx context.Context, cmd *cli.Command) error {
	app, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer app.Close()

	result, err := app.Recipes.Suggest(ctx, cmd.String("query"))
	if err != nil {
		return fmt.Errorf("recipe suggestion failed: %w", err)
	}

	if len(result.Local) == 0 && len(result.External) == 0 {
		fmt.Println("No recipe suggestions. Try a query like \"a quick chocolate recipe\".")
		return nil
	}

	if len(result.Local) > 0 {
		fmt.Println("Suggestions:")
		for _, s := range result.Local {
			fmt.Printf("  %s (score %.2f): %s\n", s.Recipe.Name, s.Score, s.Recipe.Description)
		}
	}
	if len(result.External) > 0 {
		fmt.Println("\nFrom Spoonacular:")
		for _, r := range result.External {
			fmt.Printf("  %s\n", r.Name)
		}
	}
	return nil
}
