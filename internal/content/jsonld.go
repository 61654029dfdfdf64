package content

import (
	"encoding/json"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/titanous/json5"
)

const recipeType = "Recipe"

// Node is the subset of a schema.org Recipe the normalizer reads. Fields stay
// untyped because sites disagree on shapes (string vs list vs object).
type Node struct {
	Type             any            `mapstructure:"@type"`
	Name             any            `mapstructure:"name"`
	Image            any            `mapstructure:"image"`
	RecipeIngredient any            `mapstructure:"recipeIngredient"`
	TotalTime        any            `mapstructure:"totalTime"`
	CookTime         any            `mapstructure:"cookTime"`
	PrepTime         any            `mapstructure:"prepTime"`
	Nutrition        map[string]any `mapstructure:"nutrition"`
	RecipeCategory   any            `mapstructure:"recipeCategory"`
	Keywords         any            `mapstructure:"keywords"`
	RecipeCuisine    any            `mapstructure:"recipeCuisine"`
	SuitableForDiet  any            `mapstructure:"suitableForDiet"`
}

// ParseBlocks decodes structured-data script payloads. Blocks that fail both
// the strict and the lenient parser are dropped; the second return value
// counts them.
func ParseBlocks(raws []string) ([]any, int) {
	var out []any
	dropped := 0
	for _, raw := range raws {
		payload, ok := parseBlock(raw)
		if !ok {
			dropped++
			continue
		}
		if payload == nil {
			continue
		}
		out = append(out, payload)
	}
	return out, dropped
}

func parseBlock(raw string) (any, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	var payload any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		// trailing commas and comments show up in hand-written blocks
		payload = nil
		if err := json5.Unmarshal([]byte(raw), &payload); err != nil {
			return nil, false
		}
	}
	return payload, true
}

// FindRecipeNode returns the first object typed Recipe, looking at each block
// and one level into its @graph (or the block itself when it is an array).
func FindRecipeNode(blocks []any) map[string]any {
	for _, block := range blocks {
		switch t := block.(type) {
		case map[string]any:
			if graph, ok := t["@graph"].([]any); ok {
				if node := firstRecipe(graph); node != nil {
					return node
				}
				continue
			}
			if isRecipeType(t["@type"]) {
				return t
			}
		case []any:
			if node := firstRecipe(t); node != nil {
				return node
			}
		}
	}
	return nil
}

func firstRecipe(items []any) map[string]any {
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if isRecipeType(m["@type"]) {
			return m
		}
	}
	return nil
}

func isRecipeType(t any) bool {
	switch v := t.(type) {
	case string:
		return v == recipeType
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s == recipeType {
				return true
			}
		}
	}
	return false
}

// DecodeNode maps a raw Recipe object onto Node.
func DecodeNode(raw map[string]any) (*Node, error) {
	if raw == nil {
		return nil, nil
	}
	var node Node
	if nutrition, ok := raw["nutrition"]; ok {
		if _, isMap := nutrition.(map[string]any); !isMap {
			raw = withoutKey(raw, "nutrition")
		}
	}
	if err := mapstructure.Decode(raw, &node); err != nil {
		return nil, err
	}
	return &node, nil
}

func withoutKey(m map[string]any, key string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if k == key {
			continue
		}
		out[k] = v
	}
	return out
}
