package inference

import (
	"testing"

	"github.com/cogpy/atomspace/core/atomspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForwardChainDeducesCatToAnimal(t *testing.T) {
	s := atomspace.New(atomspace.DefaultConfig(), nil)
	cat := s.Add(atomspace.TypeConcept, "cat", nil, nil)
	mammal := s.Add(atomspace.TypeConcept, "mammal", nil, nil)
	animal := s.Add(atomspace.TypeConcept, "animal", nil, nil)

	s.Add(atomspace.TypeImplication, "", []atomspace.Handle{cat, mammal}, &atomspace.TruthValue{Strength: 0.9, Confidence: 0.9})
	s.Add(atomspace.TypeImplication, "", []atomspace.Handle{mammal, animal}, &atomspace.TruthValue{Strength: 0.95, Confidence: 0.95})

	eng := New(DefaultConfig(), s, nil)
	records := eng.ForwardChain(5)
	require.NotEmpty(t, records)

	var found *atomspace.Atom
	for h := range s.ByType(atomspace.TypeImplication) {
		a, _ := s.Get(h)
		if len(a.Outgoing) == 2 && a.Outgoing[0] == cat && a.Outgoing[1] == animal {
			atomCopy := a
			found = &atomCopy
		}
	}
	require.NotNil(t, found, "expected a cat->animal implication to be derived")
	assert.InDelta(t, 0.855, found.TruthValue.Strength, 1e-9)
	assert.InDelta(t, 0.81, found.TruthValue.Confidence, 1e-9)
}

func TestForwardChainOverwritesLowerConfidenceExisting(t *testing.T) {
	s := atomspace.New(atomspace.DefaultConfig(), nil)
	cat := s.Add(atomspace.TypeConcept, "cat", nil, nil)
	mammal := s.Add(atomspace.TypeConcept, "mammal", nil, nil)
	animal := s.Add(atomspace.TypeConcept, "animal", nil, nil)

	s.Add(atomspace.TypeImplication, "", []atomspace.Handle{cat, mammal}, &atomspace.TruthValue{Strength: 0.9, Confidence: 0.9})
	s.Add(atomspace.TypeImplication, "", []atomspace.Handle{mammal, animal}, &atomspace.TruthValue{Strength: 0.95, Confidence: 0.95})

	stale := s.Add(atomspace.TypeImplication, "", []atomspace.Handle{cat, animal}, &atomspace.TruthValue{Strength: 0.1, Confidence: 0.05})

	eng := New(DefaultConfig(), s, nil)
	records := eng.ForwardChain(5)

	var update *DeductionRecord
	for i, r := range records {
		if r.Kind == DeductionUpdate {
			update = &records[i]
		}
	}
	require.NotNil(t, update, "expected a DeductionUpdate record for the stale cat->animal implication")
	assert.Equal(t, stale, update.Handle)

	a, ok := s.Get(stale)
	require.True(t, ok)
	assert.InDelta(t, 0.855, a.TruthValue.Strength, 1e-9, "overwrite must replace strength outright, not average against the stale value")
	assert.InDelta(t, 0.81, a.TruthValue.Confidence, 1e-9)
}

func TestQueryCombinesByRevision(t *testing.T) {
	s := atomspace.New(atomspace.DefaultConfig(), nil)
	s.Add(atomspace.TypeConcept, "cat", nil, &atomspace.TruthValue{Strength: 0.8, Confidence: 0.5})
	s.Add(atomspace.TypeConcept, "dog", nil, &atomspace.TruthValue{Strength: 0.6, Confidence: 0.5})

	eng := New(DefaultConfig(), s, nil)
	out := eng.Query(atomspace.NewPattern().Type(atomspace.TypeConcept))
	assert.InDelta(t, 0.7, out.Strength, 1e-9)
}

func TestQueryEmptyMatchReturnsZero(t *testing.T) {
	s := atomspace.New(atomspace.DefaultConfig(), nil)
	eng := New(DefaultConfig(), s, nil)
	out := eng.Query(atomspace.NewPattern().Type("NOPE"))
	assert.Equal(t, TV{}, out)
}
