// Package inference implements the probabilistic truth-value calculus (a
// simplified PLN) and the forward-chaining inference agent that runs it
// over a store's implication links.
//
// Grounded on core/_opencog.disabled/atomspace.go's ComputeTruthValue
// (and/or/not fusion over (strength, confidence) pairs), generalized to the
// full operator table spec.md specifies.
package inference

import "github.com/cogpy/atomspace/core/atomspace"

// TV is a local alias for the truth-value pair the calculus operates on, to
// avoid every call site spelling out atomspace.TruthValue.
type TV = atomspace.TruthValue

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Deduction computes A→C from A→B and B→C.
func Deduction(ab, bc TV) TV {
	return TV{
		Strength:   clamp01(ab.Strength * bc.Strength),
		Confidence: clamp01(0.9 * min(ab.Confidence, bc.Confidence)),
	}
}

// Induction computes B→A from A→B and a prior probability of B.
func Induction(ab TV, priorB float64) TV {
	return TV{
		Strength:   clamp01(ab.Strength * priorB),
		Confidence: clamp01(0.8 * ab.Confidence),
	}
}

// Abduction computes A→B from B→C, A→C and a prior probability of B.
func Abduction(bc, ac TV, priorB float64) TV {
	return TV{
		Strength:   clamp01(min(1, bc.Strength*ac.Strength/max(0.01, priorB))),
		Confidence: clamp01(0.7 * min(bc.Confidence, ac.Confidence)),
	}
}

// Revision combines two truth values for the same statement.
func Revision(a, b TV) TV {
	denom := a.Confidence + b.Confidence
	strength := 0.5
	if denom != 0 {
		strength = (a.Strength*a.Confidence + b.Strength*b.Confidence) / denom
	}
	return TV{
		Strength:   clamp01(strength),
		Confidence: clamp01(min(1, denom)),
	}
}

// Conjunction computes A∧B assuming independence 0.8.
func Conjunction(a, b TV) TV {
	return TV{
		Strength:   clamp01(a.Strength * b.Strength),
		Confidence: clamp01(0.8 * min(a.Confidence, b.Confidence)),
	}
}

// Disjunction computes A∨B assuming independence 0.8.
func Disjunction(a, b TV) TV {
	return TV{
		Strength:   clamp01(a.Strength + b.Strength - a.Strength*b.Strength),
		Confidence: clamp01(0.8 * min(a.Confidence, b.Confidence)),
	}
}

// Negation computes ¬A.
func Negation(a TV) TV {
	return TV{
		Strength:   clamp01(1 - a.Strength),
		Confidence: clamp01(a.Confidence),
	}
}

// ModusPonens computes B from A and A→B.
func ModusPonens(a, ab TV) TV {
	return TV{
		Strength:   clamp01(a.Strength * ab.Strength),
		Confidence: clamp01(0.95 * min(a.Confidence, ab.Confidence)),
	}
}
