package atomspace

import "github.com/agnivade/levenshtein"

// Pattern is a predicate object describing structural filters over atoms.
// Every non-nil clause must hold for an atom to match (spec.md §4.3). There
// is no variable binding or unification here — purely filter-based, as
// spec.md requires; richer matching belongs to a higher layer.
type Pattern struct {
	typ            *string
	name           *string
	truthValueMin  *float64
	attentionMin   *float64
	nameLike       *string
	nameLikeMaxDist int
}

// NewPattern returns an empty pattern that matches every atom until clauses
// are added via its chainable builder methods.
func NewPattern() Pattern { return Pattern{} }

// Type restricts matches to atoms whose type tag equals t.
func (p Pattern) Type(t string) Pattern { p.typ = &t; return p }

// Name restricts matches to atoms whose name equals n.
func (p Pattern) Name(n string) Pattern { p.name = &n; return p }

// TruthValueMin restricts matches to atoms whose truth-value strength is
// at least s.
func (p Pattern) TruthValueMin(s float64) Pattern { p.truthValueMin = &s; return p }

// AttentionMin restricts matches to atoms whose STI is at least a.
func (p Pattern) AttentionMin(a float64) Pattern { p.attentionMin = &a; return p }

// NameLike is a supplemental clause (SPEC_FULL.md §4.3) restricting matches
// to atoms whose name is within maxDistance Levenshtein edits of n. It is
// additive: a pattern with no NameLike clause behaves exactly per spec.md.
func (p Pattern) NameLike(n string, maxDistance int) Pattern {
	p.nameLike = &n
	p.nameLikeMaxDist = maxDistance
	return p
}

// matches evaluates every set clause against the snapshot. Type/Name are
// normally pre-filtered by the store's bitmap indices before this is called,
// but matches is self-sufficient so it can also be used to re-check a
// candidate pulled from a narrower index.
func (p Pattern) matches(a Atom) bool {
	if p.typ != nil && a.Type != *p.typ {
		return false
	}
	if p.name != nil && a.Name != *p.name {
		return false
	}
	if p.truthValueMin != nil && a.TruthValue.Strength < *p.truthValueMin {
		return false
	}
	if p.attentionMin != nil && a.Attention.STI < *p.attentionMin {
		return false
	}
	if p.nameLike != nil {
		if levenshtein.ComputeDistance(a.Name, *p.nameLike) > p.nameLikeMaxDist {
			return false
		}
	}
	return true
}
