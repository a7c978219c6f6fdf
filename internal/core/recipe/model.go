package recipe

import "context"

// Recipe は1件のレシピを表す
type Recipe struct {
	Name        string
	Description string
}

// Suggestion はローカルコーパスからの類似レシピ候補を表す
type Suggestion struct {
	Recipe Recipe
	Score  float64
}

// SuggestResult はレシピ検索の結果を表す
type SuggestResult struct {
	// Local は組み込みコーパスからの類似候補
	Local []Suggestion
	// External は外部API（Spoonacular）からの検索結果
	// APIキー未設定やAPI障害時は空になる
	External []Recipe
}

// APIClient は外部レシピAPIのインターフェース
type APIClient interface {
	SearchRecipes(ctx context.Context, query string, limit int) ([]Recipe, error)
}

// Embedder はレシピ説明文をベクトルに変換する
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	BatchEmbed(ctx context.Context, texts []string) ([][]float32, error)
}

// BuiltinRecipes は組み込みのレシピコーパス
var BuiltinRecipes = []Recipe{
	{Name: "Chocolate Cake", Description: "A rich chocolate dessert."},
	{Name: "Vanilla Ice Cream", Description: "A creamy vanilla treat."},
	{Name: "Apple Pie", Description: "A classic dessert with apples."},
	{Name: "Vegetable Stir Fry", Description: "A healthy stir fry with mixed vegetables."},
	{Name: "Chicken Curry", Description: "A flavorful spicy chicken curry."},
	{Name: "Caesar Salad", Description: "A fresh salad with romaine lettuce and Caesar dressing."},
	{Name: "Gluten-Free Pancakes", Description: "Fluffy pancakes made without gluten."},
	{Name: "Vegetarian Tacos", Description: "Tacos filled with seasoned vegetables and beans."},
	{Name: "Spaghetti Carbonara", Description: "A creamy pasta dish with eggs, cheese, and pancetta."},
	{Name: "Beef Stew", Description: "A hearty stew made with tender beef and vegetables."},
}
