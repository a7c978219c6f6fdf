package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Intent
	}{
		{name: "レシピ要求", input: "Can you suggest a pasta recipe?", want: RecipeRequest},
		{name: "材料の問い合わせ", input: "What do I need for pancakes?", want: IngredientQuery},
		{name: "食事制限", input: "Show me vegan options", want: DietaryPreferences},
		{name: "調理時間", input: "Something quick for dinner", want: CookingTime},
		{name: "栄養情報", input: "How many calories does this have?", want: NutritionalInfo},
		{name: "挨拶", input: "Hello there!", want: Greeting},
		{name: "大文字小文字を区別しない", input: "A RECIPE please", want: RecipeRequest},
		{name: "該当なし", input: "What is the refund policy?", want: Unknown},
		{name: "空入力", input: "", want: Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.input))
		})
	}
}

func TestClassify_EarlierIntentWins(t *testing.T) {
	// "recipe" と "quick" の両方を含む場合は表の先頭側が優先される
	assert.Equal(t, RecipeRequest, Classify("a quick recipe please"))
}
