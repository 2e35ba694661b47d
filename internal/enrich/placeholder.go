package enrich

import (
	"strings"

	"github.com/forcetech/cookvision/internal/llm"
)

// Placeholder is drawn instead of a photo.
type Placeholder struct {
	Gradient [3]string
	Icon     string
}

var (
	completeGradient = [3]string{"#4CAF50", "#388E3C", "#2E7D32"}
	needMoreGradient = [3]string{"#FF9800", "#F57C00", "#E65100"}
)

var iconRules = []struct {
	icon     string
	keywords []string
}{
	{"🍲", []string{"soup", "zupa", "суп", "suppe", "broth", "stew", "barszcz", "борщ"}},
	{"🥗", []string{"salad", "sałat", "салат", "salat"}},
	{"🍝", []string{"pasta", "spaghetti", "makaron", "паста", "nudel", "noodle", "lasagn"}},
	{"🍳", []string{"egg", "omelet", "jaj", "яй", "яєч", "omelett", "ei "}},
	{"🥩", []string{"meat", "steak", "beef", "pork", "chicken", "mięs", "kurczak", "м'яс", "курк", "fleisch", "hähnchen"}},
	{"🐟", []string{"fish", "salmon", "tuna", "ryb", "łosoś", "риб", "fisch", "lachs"}},
	{"🍰", []string{"cake", "dessert", "pancake", "ciast", "deser", "naleśnik", "торт", "десерт", "kuchen", "pfannkuchen"}},
	{"🍞", []string{"bread", "toast", "sandwich", "chleb", "kanapk", "хліб", "бутерброд", "brot"}},
}

const defaultIcon = "🍽️"

// PlaceholderFor picks a gradient by recipe category and an icon by
// keywords in the recipe name.
func PlaceholderFor(recipe llm.Recipe) Placeholder {
	p := Placeholder{Gradient: completeGradient, Icon: defaultIcon}
	if recipe.Category == llm.CategoryNeedMore {
		p.Gradient = needMoreGradient
	}

	name := strings.ToLower(recipe.Name + " " + recipe.ImageSearchTerm + " ")
	for _, rule := range iconRules {
		for _, kw := range rule.keywords {
			if strings.Contains(name, kw) {
				p.Icon = rule.icon
				return p
			}
		}
	}
	return p
}
