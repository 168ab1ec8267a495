// Package warehouse maps free-text warehouse labels to canonical branch
// identities. Every movement path depends on the resolver, so all of its
// functions are pure, deterministic and total.
package warehouse

import (
	"strings"

	"golang.org/x/text/cases"
)

var fold = cases.Fold()

// Resolver answers canonical-identity questions for warehouse labels using a
// many-to-one alias table. Unknown labels are not rejected; they become their
// own canonical form.
type Resolver struct {
	aliases map[string]string
	folded  map[string]string
}

// NewResolver builds a Resolver from an alias table mapping label variants to
// their canonical display label. A nil table yields a resolver that only
// trims and fuzzy-matches.
func NewResolver(aliases map[string]string) *Resolver {
	r := &Resolver{
		aliases: make(map[string]string, len(aliases)),
		folded:  make(map[string]string, len(aliases)),
	}
	for label, canonical := range aliases {
		label = strings.TrimSpace(label)
		canonical = strings.TrimSpace(canonical)
		if label == "" || canonical == "" {
			continue
		}
		r.aliases[label] = canonical
		r.folded[fold.String(label)] = canonical
	}
	return r
}

// Canonicalize resolves a label to its canonical display form. Lookup order:
// exact alias hit, case-insensitive alias hit, then the trimmed input itself.
func (r *Resolver) Canonicalize(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return ""
	}
	if canonical, ok := r.aliases[label]; ok {
		return canonical
	}
	if canonical, ok := r.folded[fold.String(label)]; ok {
		return canonical
	}
	return label
}

// Matches reports whether two labels refer to the same warehouse. After case
// folding and trimming both sides it checks, in order: equality, equality of
// the base names once a trailing "branch"/"warehouse" suffix is stripped, and
// substring containment of one base name in the other. The substring tier is
// the least precise and exists because historical data carries labels such as
// "G.Kannur" and "kannur" for one physical location.
func (r *Resolver) Matches(a, b string) bool {
	fa := fold.String(strings.TrimSpace(a))
	fb := fold.String(strings.TrimSpace(b))
	if fa == "" || fb == "" {
		return fa == fb
	}
	if fa == fb {
		return true
	}
	ba := baseName(fa)
	bb := baseName(fb)
	if ba == "" || bb == "" {
		return false
	}
	if ba == bb {
		return true
	}
	return strings.Contains(ba, bb) || strings.Contains(bb, ba)
}

// Same reports whether two labels canonicalize to matching warehouses. It
// canonicalizes both sides first so alias-table knowledge takes precedence
// over the fuzzy tiers.
func (r *Resolver) Same(a, b string) bool {
	return r.Matches(r.Canonicalize(a), r.Canonicalize(b))
}

var labelSuffixes = []string{"branch", "warehouse"}

// baseName strips a trailing "branch" or "warehouse" word from an already
// folded label.
func baseName(folded string) string {
	for _, suffix := range labelSuffixes {
		if trimmed, ok := strings.CutSuffix(folded, suffix); ok {
			return strings.TrimSpace(strings.TrimRight(trimmed, " .-_"))
		}
	}
	return folded
}
