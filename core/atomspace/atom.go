// Package atomspace implements the hypergraph knowledge store: atoms, their
// truth values and importance triples, the arena-backed store that owns
// them, pattern queries over them, and the event bus that reports mutations.
//
// Grounded on core/_opencog.disabled/atomspace.go (AtomSpace/Atom/Link/
// TruthValue/AttentionValue) and other_examples' cogpy/Erebus atomspace
// (content-hash dedup key, byType/byName index maps), generalized from a
// map-keyed graph of live pointers to an arena of records addressed by
// Handle, per the cyclic-object-graph note in spec.md Design Notes §9.
package atomspace

import (
	"fmt"
	"math"
)

// Handle is the stable, opaque identity of an atom. It is an index into the
// store's arena plus a generation counter, so a handle from a removed (and
// later reused) slot never silently aliases a different atom.
type Handle struct {
	idx uint32
	gen uint32
}

// IsZero reports whether h is the zero Handle (never issued by a store).
func (h Handle) IsZero() bool { return h.idx == 0 && h.gen == 0 }

func (h Handle) String() string { return fmt.Sprintf("%d.%d", h.idx, h.gen) }

// TruthValue is the (strength, confidence) pair carried by every atom.
// Strength is the estimated probability the assertion holds; confidence is
// the weight of evidence behind it. Both are held in [0, 1].
type TruthValue struct {
	Strength   float64
	Confidence float64
}

// Clamp returns tv with both fields clamped into [0, 1].
func (tv TruthValue) Clamp() TruthValue {
	return TruthValue{
		Strength:   clamp01(tv.Strength),
		Confidence: clamp01(tv.Confidence),
	}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		panic("atomspace: non-finite truth value component")
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// DefaultTruthValue is assigned to atoms added without an explicit tv: fully
// believed, but with zero evidential weight, matching the teacher's
// `&TruthValue{Strength: 1.0, Confidence: 0.0}` default in AddAtom/AddLink.
var DefaultTruthValue = TruthValue{Strength: 1.0, Confidence: 0.0}

// AttentionValue is an atom's importance triple: short-term, long-term, and
// the very-long-term protection flag. STI is bounded by the attention bank's
// configured clamp range; LTI is unbounded below at zero.
type AttentionValue struct {
	STI  float64
	LTI  float64
	VLTI bool
}

// Atom is a read-only, owned snapshot of a stored atom. It is never a live
// reference into the store's arena: callers may hold it across further
// mutations without fear of seeing a half-written record, and subscribers
// receive exactly this type on every event (spec.md §6.2).
type Atom struct {
	Handle     Handle
	Type       string
	Name       string
	Outgoing   []Handle
	Incoming   []Handle
	TruthValue TruthValue
	Attention  AttentionValue
	CreatedAt  int64 // unix nanos; see store.go's clock field
	Metadata   map[string]any
}

// IsNode reports whether the atom has an empty outgoing sequence.
func (a Atom) IsNode() bool { return len(a.Outgoing) == 0 }

// IsLink reports whether the atom has a non-empty outgoing sequence.
func (a Atom) IsLink() bool { return len(a.Outgoing) > 0 }

// Built-in type tags. The set is open: Store.Add accepts any non-empty string,
// these are simply the ones spec.md names as pre-interned.
const (
	TypeConcept     = "CONCEPT"
	TypePredicate   = "PREDICATE"
	TypeVariable    = "VARIABLE"
	TypeLink        = "LINK"
	TypeInheritance = "INHERITANCE"
	TypeSimilarity  = "SIMILARITY"
	TypeEvaluation  = "EVALUATION"
	TypeExecution   = "EXECUTION"
	TypeImplication = "IMPLICATION"
)
