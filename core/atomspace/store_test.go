package atomspace

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := DefaultConfig()
	cfg.MaxSize = 1000
	return New(cfg, nil)
}

func TestAddDeduplicatesAndMergesTruthValue(t *testing.T) {
	s := newTestStore(t)

	h1 := s.Add(TypeConcept, "cat", nil, &TruthValue{Strength: 0.8, Confidence: 0.6})
	require.False(t, h1.IsZero())
	require.Equal(t, 1, s.Size())

	h2 := s.Add(TypeConcept, "cat", nil, &TruthValue{Strength: 0.4, Confidence: 0.9})
	assert.Equal(t, h1, h2, "duplicate (type,name,outgoing) must return the same handle")
	assert.Equal(t, 1, s.Size(), "a duplicate must not grow the population")

	atom, ok := s.Get(h1)
	require.True(t, ok)
	assert.InDelta(t, 0.6, atom.TruthValue.Strength, 1e-9, "strength should average")
	assert.InDelta(t, 0.9, atom.TruthValue.Confidence, 1e-9, "confidence should take the max")
}

func TestAddDistinguishesByOutgoing(t *testing.T) {
	s := newTestStore(t)
	cat := s.Add(TypeConcept, "cat", nil, nil)
	mammal := s.Add(TypeConcept, "mammal", nil, nil)
	dog := s.Add(TypeConcept, "dog", nil, nil)

	l1 := s.Add(TypeInheritance, "", []Handle{cat, mammal}, nil)
	l2 := s.Add(TypeInheritance, "", []Handle{dog, mammal}, nil)
	assert.NotEqual(t, l1, l2, "links with different outgoing sequences are distinct atoms")

	l1Again := s.Add(TypeInheritance, "", []Handle{cat, mammal}, nil)
	assert.Equal(t, l1, l1Again)
}

func TestIncomingSetMaintainedAndCascadeOnRemove(t *testing.T) {
	s := newTestStore(t)
	cat := s.Add(TypeConcept, "cat", nil, nil)
	mammal := s.Add(TypeConcept, "mammal", nil, nil)
	link := s.Add(TypeInheritance, "", []Handle{cat, mammal}, nil)

	catAtom, _ := s.Get(cat)
	require.Contains(t, catAtom.Incoming, link)
	mammalAtom, _ := s.Get(mammal)
	require.Contains(t, mammalAtom.Incoming, link)

	removed := s.Remove(mammal)
	require.True(t, removed)

	_, stillLive := s.Get(mammal)
	assert.False(t, stillLive, "mammal must be gone")
	_, linkLive := s.Get(link)
	assert.False(t, linkLive, "removing mammal must cascade to remove the link pointing to it")

	catAtom, ok := s.Get(cat)
	require.True(t, ok, "cat itself (not in anyone's outgoing) survives")
	assert.NotContains(t, catAtom.Incoming, link)
}

func TestRemoveIgnoresVLTIForExplicitCalls(t *testing.T) {
	s := newTestStore(t)
	h := s.Add(TypeConcept, "protected", nil, nil)
	require.True(t, s.SetVLTI(h, true))

	assert.True(t, s.Remove(h), "an explicit Remove must succeed even on a VLTI atom")
	_, ok := s.Get(h)
	assert.False(t, ok)
}

func TestEvictionSkipsVLTIAtoms(t *testing.T) {
	s := newTestStore(t)
	s.cfg.MaxSize = 10
	s.cfg.ForgettingEnabled = true

	var protected []Handle
	for i := 0; i < 5; i++ {
		h := s.Add(TypeConcept, fmt.Sprintf("protected-%d", i), []Handle{s.Add(TypeConcept, fmt.Sprintf("x-%d", i), nil, nil)}, nil)
		require.True(t, s.SetVLTI(h, true))
		require.True(t, s.SetSTI(h, -1000)) // lowest possible STI, would be evicted first if eligible
		protected = append(protected, h)
	}

	for i := 0; i < 10; i++ {
		s.Add(TypeConcept, fmt.Sprintf("filler-%d", i), nil, nil)
	}
	assert.Equal(t, 10, s.Size(), "eviction must have brought the population back to MaxSize")

	for _, h := range protected {
		_, ok := s.Get(h)
		assert.True(t, ok, "VLTI atoms must never be evicted")
	}
}

func TestHandleGenerationPreventsStaleAlias(t *testing.T) {
	s := newTestStore(t)
	h := s.Add(TypeConcept, "temp", nil, nil)
	require.True(t, s.Remove(h))

	reused := s.Add(TypeConcept, "temp2", nil, nil)
	if reused.idx == h.idx {
		assert.NotEqual(t, reused.gen, h.gen)
	}
	_, ok := s.Get(h)
	assert.False(t, ok, "the old handle must not resolve to the new atom in the reused slot")
}

func TestFocusOrdersByDescendingSTI(t *testing.T) {
	s := newTestStore(t)
	low := s.Add(TypeConcept, "low", nil, nil)
	mid := s.Add(TypeConcept, "mid", nil, nil)
	high := s.Add(TypeConcept, "high", nil, nil)
	s.SetSTI(low, 1)
	s.SetSTI(mid, 5)
	s.SetSTI(high, 9)

	top := s.Focus(2)
	require.Len(t, top, 2)
	assert.Equal(t, high, top[0])
	assert.Equal(t, mid, top[1])
}

func TestByTypeAndByName(t *testing.T) {
	s := newTestStore(t)
	s.Add(TypeConcept, "cat", nil, nil)
	s.Add(TypePredicate, "cat", nil, nil)
	s.Add(TypeConcept, "dog", nil, nil)

	var concepts []Handle
	for h := range s.ByType(TypeConcept) {
		concepts = append(concepts, h)
	}
	assert.Len(t, concepts, 2)

	var named []Handle
	for h := range s.ByName("cat") {
		named = append(named, h)
	}
	assert.Len(t, named, 2)
}

func TestPatternMatchCombinesClauses(t *testing.T) {
	s := newTestStore(t)
	h := s.Add(TypeConcept, "cat", nil, &TruthValue{Strength: 0.9, Confidence: 0.5})
	s.Add(TypeConcept, "rock", nil, &TruthValue{Strength: 0.1, Confidence: 0.5})

	p := NewPattern().Type(TypeConcept).TruthValueMin(0.5)
	var matched []Handle
	for m := range s.PatternMatch(p) {
		matched = append(matched, m)
	}
	require.Len(t, matched, 1)
	assert.Equal(t, h, matched[0])
}

func TestPatternMatchNameLike(t *testing.T) {
	s := newTestStore(t)
	h := s.Add(TypeConcept, "kitten", nil, nil)
	s.Add(TypeConcept, "airplane", nil, nil)

	p := NewPattern().NameLike("kitten", 2)
	var matched []Handle
	for m := range s.PatternMatch(p) {
		matched = append(matched, m)
	}
	require.Len(t, matched, 1)
	assert.Equal(t, h, matched[0])
}

func TestEventsPublishedForAddUpdateRemove(t *testing.T) {
	s := newTestStore(t)
	ch, unsubscribe := s.Subscribe()
	defer unsubscribe()

	h := s.Add(TypeConcept, "cat", nil, nil)
	evt := <-ch
	assert.Equal(t, EventAtomAdded, evt.Kind)
	assert.Equal(t, h, evt.Atom.Handle)

	s.Add(TypeConcept, "cat", nil, &TruthValue{Strength: 0.5, Confidence: 0.5})
	evt = <-ch
	assert.Equal(t, EventAtomUpdated, evt.Kind)

	s.Remove(h)
	evt = <-ch
	assert.Equal(t, EventAtomRemoved, evt.Kind)
}

func TestAddRejectsHandleFromAnotherStore(t *testing.T) {
	s1 := newTestStore(t)
	s2 := newTestStore(t)
	foreign := s1.Add(TypeConcept, "foreign", nil, nil)

	assert.Panics(t, func() {
		s2.Add(TypeInheritance, "", []Handle{foreign}, nil)
	})
}

func TestClearResetsStore(t *testing.T) {
	s := newTestStore(t)
	s.Add(TypeConcept, "a", nil, nil)
	s.Add(TypeConcept, "b", nil, nil)
	require.Equal(t, 2, s.Size())

	s.Clear()
	assert.Equal(t, 0, s.Size())
	var count int
	for range s.All() {
		count++
	}
	assert.Equal(t, 0, count)
}
