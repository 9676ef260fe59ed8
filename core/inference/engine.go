package inference

import (
	"iter"

	"github.com/cogpy/atomspace/core/atomspace"
	"go.uber.org/zap"
)

// store is the narrow surface the inference engine needs from
// atomspace.Store.
type store interface {
	Get(h atomspace.Handle) (atomspace.Atom, bool)
	Add(typ, name string, outgoing []atomspace.Handle, tv *atomspace.TruthValue) atomspace.Handle
	SetTruthValue(h atomspace.Handle, tv atomspace.TruthValue) bool
	ByType(tag string) iter.Seq[atomspace.Handle]
	PatternMatch(p atomspace.Pattern) iter.Seq[atomspace.Handle]
}

// Config holds the inference agent's thresholds (spec.md §4.5/§6.3).
type Config struct {
	InferenceDepth int
	MinConfidence  float64
	MinStrength    float64
	MaxInferences  int
}

// DefaultConfig returns the engine's default configuration.
func DefaultConfig() Config {
	return Config{
		InferenceDepth: 3,
		MinConfidence:  0.1,
		MinStrength:    0.01,
		MaxInferences:  100,
	}
}

// DeductionKind records whether a forward-chaining step produced a new
// implication atom or refined an existing one.
type DeductionKind string

const (
	DeductionNew    DeductionKind = "deduction-new"
	DeductionUpdate DeductionKind = "deduction-update"
)

// DeductionRecord is emitted for every accepted deduction step during
// forwardChain.
type DeductionRecord struct {
	Kind   DeductionKind
	Handle atomspace.Handle
	From1  atomspace.Handle
	From2  atomspace.Handle
	TV     TV
}

// Engine is the distinguished inference agent: a simplified probabilistic
// calculus over typed implication links, forward-chained to a fixed-point
// or a budget. Grounded on ComputeTruthValue in
// core/_opencog.disabled/atomspace.go, generalized to the PLN operator
// table and the bucket-then-scan shape of PatternMatcher.matchClause.
type Engine struct {
	cfg Config
	st  store
	log *zap.Logger
}

// New creates an inference engine over st.
func New(cfg Config, st store, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{cfg: cfg, st: st, log: log}
}

// ForwardChain runs up to maxIterations rounds of deduction over implication
// links, stopping early if a round finds nothing new or the inference
// budget is exhausted. It returns every accepted deduction record across
// all rounds.
func (e *Engine) ForwardChain(maxIterations int) []DeductionRecord {
	var records []DeductionRecord
	performed := 0

	for iter := 0; iter < maxIterations; iter++ {
		links := e.implicationLinks()
		byAntecedent := make(map[atomspace.Handle][]atomspace.Atom)
		for _, l := range links {
			if len(l.Outgoing) != 2 {
				continue // ill-formed premise: wrong arity, silently skipped
			}
			byAntecedent[l.Outgoing[0]] = append(byAntecedent[l.Outgoing[0]], l)
		}

		roundRecords := e.chainRound(links, byAntecedent, &performed)
		if len(roundRecords) == 0 {
			break
		}
		records = append(records, roundRecords...)
		if performed >= e.cfg.MaxInferences {
			break
		}
	}
	return records
}

func (e *Engine) implicationLinks() []atomspace.Atom {
	var out []atomspace.Atom
	for h := range e.st.ByType(atomspace.TypeImplication) {
		if a, ok := e.st.Get(h); ok {
			out = append(out, a)
		}
	}
	return out
}

func (e *Engine) chainRound(links []atomspace.Atom, byAntecedent map[atomspace.Handle][]atomspace.Atom, performed *int) []DeductionRecord {
	var records []DeductionRecord

	for _, l1 := range links {
		if len(l1.Outgoing) != 2 {
			continue
		}
		if *performed >= e.cfg.MaxInferences {
			break
		}
		mid := l1.Outgoing[1]
		for _, l2 := range byAntecedent[mid] {
			if *performed >= e.cfg.MaxInferences {
				break
			}
			if l1.TruthValue.Confidence < e.cfg.MinConfidence || l2.TruthValue.Confidence < e.cfg.MinConfidence {
				continue
			}
			out := Deduction(l1.TruthValue, l2.TruthValue)
			if out.Strength < e.cfg.MinStrength || out.Confidence < e.cfg.MinConfidence {
				continue
			}

			from, to := l1.Outgoing[0], l2.Outgoing[1]
			existing, found := e.findImplication(from, to)
			switch {
			case !found:
				h := e.st.Add(atomspace.TypeImplication, "", []atomspace.Handle{from, to}, &atomspace.TruthValue{
					Strength: out.Strength, Confidence: out.Confidence,
				})
				records = append(records, DeductionRecord{Kind: DeductionNew, Handle: h, From1: l1.Handle, From2: l2.Handle, TV: out})
			case existing.TruthValue.Confidence < out.Confidence:
				// Overwrite outright: existing.Handle is a known atom whose
				// truth value forward chaining has just recomputed, not a new
				// fact colliding on (type,name,outgoing), so the generic
				// dedup-merge in Add (average strength, max confidence) is
				// the wrong rule here (spec.md §4.5 step 4).
				e.st.SetTruthValue(existing.Handle, atomspace.TruthValue{Strength: out.Strength, Confidence: out.Confidence})
				records = append(records, DeductionRecord{Kind: DeductionUpdate, Handle: existing.Handle, From1: l1.Handle, From2: l2.Handle, TV: out})
			default:
				// existing confidence already ≥ the new one: skip.
				continue
			}
			*performed++
		}
	}
	return records
}

func (e *Engine) findImplication(from, to atomspace.Handle) (atomspace.Atom, bool) {
	for h := range e.st.ByType(atomspace.TypeImplication) {
		a, ok := e.st.Get(h)
		if !ok || len(a.Outgoing) != 2 {
			continue
		}
		if a.Outgoing[0] == from && a.Outgoing[1] == to {
			return a, true
		}
	}
	return atomspace.Atom{}, false
}

// Query collects every atom matching pattern and combines their truth
// values left-to-right by the revision rule, returning (0,0) if no atom
// matches.
func (e *Engine) Query(p atomspace.Pattern) TV {
	var combined TV
	any := false
	for h := range e.st.PatternMatch(p) {
		a, ok := e.st.Get(h)
		if !ok {
			continue
		}
		if !any {
			combined = a.TruthValue
			any = true
			continue
		}
		combined = Revision(combined, a.TruthValue)
	}
	if !any {
		return TV{}
	}
	return combined
}
