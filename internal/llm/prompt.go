package llm

import (
	"fmt"
	"strings"

	"github.com/forcetech/cookvision/internal/i18n"
)

// PantryStaples are assumed to be in every kitchen and never count as missing.
var PantryStaples = []string{
	"salt", "pepper", "sugar",
	"oil", "olive oil", "vegetable oil",
	"water",
	"spices", "herbs",
	"flour", "rice", "pasta",
	"vinegar", "soy sauce",
}

const analysisPrompt = `You are a helpful culinary assistant that analyzes fridge contents from images.

IMPORTANT: All product names, recipe names, ingredients, and instructions MUST be in %[1]s.

IMPORTANT ASSUMPTION: Everyone has these basic pantry items at home (do NOT count these as missing):
- Salt, pepper, sugar
- Cooking oil (vegetable, olive, etc.)
- Water
- Basic spices and herbs
- Flour, rice, pasta (common staples)
- Vinegar, soy sauce (common condiments)

Analyze this image of a fridge and:
1. Identify all visible food products and ingredients
2. Suggest recipes in TWO categories:

"completeRecipes" (3 recipes): can be made with ONLY the visible ingredients and basic pantry items.
"needMoreRecipes" (2 recipes): more elaborate dishes needing 1-2 additional ingredients. List what is missing and suggest alternatives made from available ingredients.

If the image does not show food or a fridge, answer with a single sentence and no JSON.

Respond ONLY with valid JSON in this exact format, no additional text:
{
  "products": [
    {"id": "1", "name": "product name", "confidence": 0.95, "emoji": "🥚"}
  ],
  "completeRecipes": [
    {
      "id": "1",
      "name": "Recipe Name",
      "ingredients": ["200g ingredient1", "2 tbsp ingredient2", "salt and pepper to taste"],
      "availableIngredients": ["ingredient1", "ingredient2", "salt", "pepper"],
      "missingIngredients": [],
      "instructions": "1. Step one...\n2. Step two...",
      "prepTime": "20 min",
      "difficulty": "easy",
      "imageSearchTerm": "short english dish name"
    }
  ],
  "needMoreRecipes": [
    {
      "id": "4",
      "name": "Recipe Name",
      "ingredients": ["200g ingredient1", "100g missing ingredient"],
      "availableIngredients": ["ingredient1"],
      "missingIngredients": ["missing ingredient"],
      "substitution": {"original": "missing ingredient", "replacement": "available substitute", "reason": "why this works"},
      "alternatives": [
        {"name": "Simpler Alternative", "description": "Uses only available ingredients", "missingIngredient": "what the main recipe needs"}
      ],
      "instructions": "1. Step one...\n2. Step two...",
      "prepTime": "30 min",
      "difficulty": "medium",
      "imageSearchTerm": "short english dish name"
    }
  ]
}

Instructions must include exact quantities, numbered steps, temperatures, timing and heat levels.
Give 1-2 alternatives for each needMore recipe; each must be a different complete dish using only available ingredients.
If no substitution is possible, set "substitution" to null.
The "difficulty" field must be one of: "easy", "medium", "hard".
"imageSearchTerm" is always in English.
Look for items on all shelves, in door compartments and drawers.

REMEMBER: All text content except "imageSearchTerm" MUST be in %[1]s.`

const suggestionPrompt = `Given these ingredients: %[2]s

IMPORTANT: All recipe names, ingredients, and instructions MUST be in %[1]s.

ASSUMPTION: Basic pantry items are available (salt, pepper, oil, sugar, water, basic spices).

Suggest 5 recipes:
- First 3: can be made with ONLY the given ingredients and basic pantry items
- Last 2: need 1-2 additional ingredients (include alternatives)

Each recipe uses the fields id, name, ingredients, availableIngredients, missingIngredients,
instructions, prepTime, difficulty ("easy", "medium" or "hard") and imageSearchTerm (English).

Respond ONLY with a valid JSON array. All text except imageSearchTerm MUST be in %[1]s.`

func buildAnalysisPrompt(language string) string {
	return fmt.Sprintf(analysisPrompt, i18n.EnglishName(language))
}

func buildSuggestionPrompt(products []Product, language string) string {
	names := make([]string, 0, len(products))
	for _, p := range products {
		if name := strings.TrimSpace(p.Name); name != "" {
			names = append(names, name)
		}
	}
	return fmt.Sprintf(suggestionPrompt, i18n.EnglishName(language), strings.Join(names, ", "))
}

// isPantryStaple reports whether an ingredient is one of PantryStaples,
// ignoring case and a trailing "to taste".
func isPantryStaple(ingredient string) bool {
	ing := strings.ToLower(strings.TrimSpace(ingredient))
	ing = strings.TrimSpace(strings.TrimSuffix(ing, "to taste"))
	for _, staple := range PantryStaples {
		if ing == staple {
			return true
		}
	}
	return false
}
