package warehouse

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanonicalize(t *testing.T) {
	r := NewResolver(DefaultAliases())

	require.Equal(t, "Kannur Branch", r.Canonicalize("G.Kannur"))
	require.Equal(t, "Kannur Branch", r.Canonicalize("  GKannur "))
	require.Equal(t, "Kannur Branch", r.Canonicalize("kannur"))
	require.Equal(t, "Perinthalmanna Branch", r.Canonicalize("PERINTHALMANNA"))

	// Unknown labels become their own canonical form.
	require.Equal(t, "Tirur Branch", r.Canonicalize(" Tirur Branch "))
	require.Equal(t, "", r.Canonicalize("   "))
}

func TestMatchesTiers(t *testing.T) {
	r := NewResolver(nil)

	// Tier 1: folded equality.
	require.True(t, r.Matches("Kannur Branch", "kannur branch"))
	// Tier 2: suffix-stripped base equality.
	require.True(t, r.Matches("Kannur Branch", "Kannur Warehouse"))
	require.True(t, r.Matches("Kannur", "Kannur Branch"))
	// Tier 3: substring containment of base names.
	require.True(t, r.Matches("G.Kannur", "kannur"))
	require.True(t, r.Matches("GKannur", "Kannur Branch"))

	require.False(t, r.Matches("Edapally", "Edappal"))
	require.False(t, r.Matches("Edapally Branch", "Edappal Branch"))
	require.False(t, r.Matches("Kannur", ""))
	require.True(t, r.Matches("", ""))
}

func TestMatchesSymmetry(t *testing.T) {
	r := NewResolver(DefaultAliases())
	labels := []string{
		"G.Kannur", "Kannur Branch", "GKannur", "kannur",
		"Edapally", "Edappal", "Perinthalmanna Branch", "Main Warehouse",
		"", "Tirur",
	}
	for _, a := range labels {
		for _, b := range labels {
			require.Equal(t, r.Matches(a, b), r.Matches(b, a), "Matches(%q,%q)", a, b)
		}
	}
}

func TestSameUsesAliases(t *testing.T) {
	r := NewResolver(DefaultAliases())
	// "Central Warehouse" and "Main" only connect through the alias table;
	// none of the fuzzy tiers relate them.
	require.False(t, r.Matches("Central Warehouse", "Main"))
	require.True(t, r.Same("Central Warehouse", "Main"))
	require.False(t, r.Same("Edapally", "Edappal Branch"))
}

func TestLoadAliasesMissingFile(t *testing.T) {
	_, err := LoadAliases("/nonexistent/aliases.json")
	require.Error(t, err)

	aliases, err := LoadAliases("")
	require.NoError(t, err)
	require.Equal(t, "Kannur Branch", aliases["G.Kannur"])
}
