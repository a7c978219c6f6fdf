package intent

import "strings"

// Intent はユーザー発話の意図分類を表す
type Intent string

const (
	RecipeRequest      Intent = "recipe_request"
	IngredientQuery    Intent = "ingredient_query"
	DietaryPreferences Intent = "dietary_preferences"
	CookingTime        Intent = "cooking_time"
	NutritionalInfo    Intent = "nutritional_info"
	Greeting           Intent = "greeting"
	Unknown            Intent = "unknown"
)

// キーワード表は先に並んだ意図ほど優先される
var keywordTable = []struct {
	intent   Intent
	keywords []string
}{
	{RecipeRequest, []string{"recipe", "cook", "bake", "prepare", "dish", "food"}},
	{IngredientQuery, []string{"ingredient", "what do i need", "what's in", "needed for"}},
	{DietaryPreferences, []string{"vegan", "gluten-free", "vegetarian", "low-carb", "diet"}},
	{CookingTime, []string{"quick", "time", "fast", "easy"}},
	{NutritionalInfo, []string{"calories", "nutrition", "healthy", "nutritional value"}},
	{Greeting, []string{"hello", "hi", "hey", "good morning", "good evening"}},
}

// Classify はキーワード一致でユーザー発話の意図を判定する
// どのキーワードにも一致しない場合は Unknown を返す
func Classify(input string) Intent {
	lowered := strings.ToLower(input)
	for _, entry := range keywordTable {
		for _, keyword := range entry.keywords {
			if strings.Contains(lowered, keyword) {
				return entry.intent
			}
		}
	}
	return Unknown
}
