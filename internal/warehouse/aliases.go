package warehouse

import (
	"encoding/json"
	"fmt"
	"os"
)

// DefaultAliases returns the built-in alias table covering the label variants
// seen in historical data. Entries are data, not code: new branches or newly
// discovered spellings belong here (or in the override file), never in a
// per-branch predicate.
func DefaultAliases() map[string]string {
	return map[string]string{
		"G.Kannur":        "Kannur Branch",
		"GKannur":         "Kannur Branch",
		"Kannur":          "Kannur Branch",
		"Kannur Branch":   "Kannur Branch",
		"Edapally":        "Edapally Branch",
		"Edapally Branch": "Edapally Branch",
		// Edappal is a different branch from Edapally. Keeping both in the
		// table means neither ever falls through to the substring tier.
		"Edappal":               "Edappal Branch",
		"Edappal Branch":        "Edappal Branch",
		"Perinthalmanna":        "Perinthalmanna Branch",
		"Perinthalmanna Branch": "Perinthalmanna Branch",
		"G.Perinthalmanna":      "Perinthalmanna Branch",
		"Kottakkal":             "Kottakkal Branch",
		"Kottakkal Branch":      "Kottakkal Branch",
		"Main":                  "Main Warehouse",
		"Main Warehouse":        "Main Warehouse",
		"Central Warehouse":     "Main Warehouse",
	}
}

// LoadAliases merges alias overrides from a JSON file (label -> canonical)
// over the defaults. An empty path returns the defaults unchanged.
func LoadAliases(path string) (map[string]string, error) {
	aliases := DefaultAliases()
	if path == "" {
		return aliases, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("warehouse: read alias file: %w", err)
	}
	var overrides map[string]string
	if err := json.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("warehouse: parse alias file: %w", err)
	}
	for label, canonical := range overrides {
		aliases[label] = canonical
	}
	return aliases, nil
}
