package categorize

import (
	"strings"
	"unicode"
)

// Category groups listings for the filter bar.
type Category string

const (
	Electronics  Category = "Electronics"
	Fashion      Category = "Fashion"
	HomeGarden   Category = "Home & Garden"
	Collectibles Category = "Collectibles"
	Sports       Category = "Sports"
	ToysGames    Category = "Toys & Games"
	Other        Category = "Other"
)

// AllCategories returns all categories in canonical order.
func AllCategories() []Category {
	return []Category{Electronics, Fashion, HomeGarden, Collectibles, Sports, ToysGames, Other}
}

var categoryKeywords = map[Category][]string{
	Electronics: {
		"laptop", "phone", "camera", "headphones", "speaker", "monitor",
		"keyboard", "mouse", "gpu", "graphics card", "ssd", "console",
		"tablet", "drone", "projector", "smart watch", "charger", "tv",
	},
	Fashion: {
		"jacket", "sneakers", "shoes", "watch", "wristwatch", "handbag",
		"dress", "jeans", "sunglasses", "coat", "boots", "scarf", "belt",
	},
	HomeGarden: {
		"espresso", "air fryer", "vacuum", "skillet", "cookware", "lamp",
		"sofa", "mattress", "garden", "drill", "power tools", "sewing",
		"blender", "kettle", "rug", "curtain",
	},
	Collectibles: {
		"vintage", "vinyl", "records", "trading cards", "comic", "coin",
		"stamp", "antique", "retro", "memorabilia", "first edition",
		"turntable", "record player", "film lens", "instant camera",
	},
	Sports: {
		"bike", "bicycle", "golf", "tennis", "skis", "snowboard", "kayak",
		"dumbbell", "treadmill", "scooter", "hiking", "fishing", "surfboard",
	},
	ToysGames: {
		"lego", "board game", "puzzle", "action figure", "doll", "plush",
		"model train", "rc car", "chess", "nerf", "playset",
	},
}

// Classify picks a category for a listing from its title and description.
// Title matches are weighted 2x. Falls back to Other.
func Classify(title, description string) Category {
	titleTokens := tokenize(title)
	descTokens := tokenize(description)
	titleLower := strings.ToLower(title)
	descLower := strings.ToLower(description)

	var bestCat Category
	bestScore := 0

	for _, cat := range AllCategories() {
		score := 0
		for _, kw := range categoryKeywords[cat] {
			if !strings.Contains(kw, " ") {
				for _, t := range titleTokens {
					if t == kw {
						score += 2
					}
				}
				for _, t := range descTokens {
					if t == kw {
						score++
					}
				}
			} else {
				if strings.Contains(titleLower, kw) {
					score += 2
				}
				if strings.Contains(descLower, kw) {
					score++
				}
			}
		}
		if score > bestScore {
			bestScore = score
			bestCat = cat
		}
	}

	if bestScore == 0 {
		return Other
	}
	return bestCat
}

func tokenize(s string) []string {
	var tokens []string
	for _, word := range strings.Fields(strings.ToLower(s)) {
		word = strings.TrimFunc(word, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if word != "" {
			tokens = append(tokens, word)
		}
	}
	return tokens
}
