package atomspace

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring"
	"github.com/tidwall/btree"
	"go.uber.org/zap"
)

// atomRecord is the mutable, arena-resident representation of an atom. It
// is never exposed outside the store; Get and friends always hand back an
// Atom snapshot instead (spec.md §3.3: "An atom is never exposed outside the
// store before indexing and incoming-set updates have completed").
type atomRecord struct {
	handle    Handle
	typ       string
	name      string
	outgoing  []Handle
	incoming  map[Handle]struct{}
	tv        TruthValue
	av        AttentionValue
	createdAt int64
	metadata  map[string]any
	live      bool
}

type stiEntry struct {
	sti float64
	h   Handle
}

func lessSTI(a, b stiEntry) bool {
	if a.sti != b.sti {
		return a.sti < b.sti
	}
	if a.h.idx != b.h.idx {
		return a.h.idx < b.h.idx
	}
	return a.h.gen < b.h.gen
}

// Store is the hypergraph atom store ("atom space"): the arena of atom
// records plus the type/name/content-hash indices and the STI-ordered index
// that back focus(k). Grounded on core/_opencog.disabled/atomspace.go's
// AtomSpace (Atoms/Links maps, Incoming reverse index, AttentionBank
// registration) and other_examples' cogpy/Erebus atomspace.go (content-hash
// dedup key, byType/byName index maps) — reworked from map-of-live-pointers
// to an arena addressed by Handle per spec.md Design Notes §9.
type Store struct {
	mu sync.RWMutex

	cfg Config
	log *zap.Logger

	arena []*atomRecord // arena[0] is unused; handles start at idx 1
	free  []uint32

	byType        map[string]*roaring.Bitmap
	byName        map[string]*roaring.Bitmap
	byContentHash map[[32]byte][]Handle

	stiIndex *btree.BTreeG[stiEntry]

	total int
	bus   *Bus
}

// New creates an empty store with the given configuration.
func New(cfg Config, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		cfg:           cfg,
		log:           log,
		arena:         make([]*atomRecord, 1, 256), // index 0 reserved
		byType:        make(map[string]*roaring.Bitmap),
		byName:        make(map[string]*roaring.Bitmap),
		byContentHash: make(map[[32]byte][]Handle),
		stiIndex:      btree.NewBTreeG(lessSTI),
		bus:           newBus(cfg.EventBufferSize),
	}
}

// Subscribe registers a new observer of store events; see Bus.Subscribe.
func (s *Store) Subscribe() (<-chan Event, func()) { return s.bus.Subscribe() }

// Size returns the current live atom population.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

func contentKey(typ, name string, outgoing []Handle) [32]byte {
	h := sha256.New()
	h.Write([]byte(typ))
	h.Write([]byte{0})
	h.Write([]byte(name))
	h.Write([]byte{0})
	var buf [8]byte
	for _, o := range outgoing {
		binary.BigEndian.PutUint32(buf[0:4], o.idx)
		binary.BigEndian.PutUint32(buf[4:8], o.gen)
		h.Write(buf[:])
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func sameOutgoing(a, b []Handle) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// recordAt returns the live record for h, or nil if h is stale, out of
// range, or points at a removed slot.
func (s *Store) recordAt(h Handle) *atomRecord {
	if h.idx == 0 || int(h.idx) >= len(s.arena) {
		return nil
	}
	rec := s.arena[h.idx]
	if rec == nil || !rec.live || rec.handle.gen != h.gen {
		return nil
	}
	return rec
}

// Add inserts a new atom, or, if one with the same (type, name, outgoing)
// already exists, merges tv into it (spec.md §4.1). outgoing may be nil for
// a node. A nil tv is treated as "not supplied" and defaults to
// DefaultTruthValue, matching the teacher's `if tv == nil` default in
// AddAtom/AddLink; a non-nil tv is used as given (clamped), even when it is
// the TruthValue zero value.
func (s *Store) Add(typ, name string, outgoing []Handle, tv *TruthValue) Handle {
	if typ == "" {
		panic("atomspace: Add called with empty type tag")
	}
	value := DefaultTruthValue
	if tv != nil {
		value = tv.Clamp()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range outgoing {
		if s.recordAt(o) == nil {
			panic(fmt.Sprintf("atomspace: outgoing handle %s does not belong to this store", o))
		}
	}
	outCopy := append([]Handle(nil), outgoing...)

	key := contentKey(typ, name, outCopy)
	for _, cand := range s.byContentHash[key] {
		rec := s.recordAt(cand)
		if rec == nil || rec.typ != typ || rec.name != name || !sameOutgoing(rec.outgoing, outCopy) {
			continue
		}
		// Duplicate: merge truth values, refresh timestamp, no new handle.
		rec.tv = TruthValue{
			Strength:   (rec.tv.Strength + value.Strength) / 2,
			Confidence: max(rec.tv.Confidence, value.Confidence),
		}.Clamp()
		rec.createdAt = time.Now().UnixNano()
		snap := s.snapshot(rec)
		s.bus.publish(Event{Kind: EventAtomUpdated, Atom: &snap})
		return rec.handle
	}

	idx := s.allocSlot()
	handle := Handle{idx: idx, gen: s.arena[idx].gen}
	rec := &atomRecord{
		handle:    handle,
		typ:       typ,
		name:      name,
		outgoing:  outCopy,
		incoming:  make(map[Handle]struct{}),
		tv:        value,
		createdAt: time.Now().UnixNano(),
		metadata:  make(map[string]any),
		live:      true,
	}
	s.arena[idx] = rec

	s.indexInsert(rec)
	s.byContentHash[key] = append(s.byContentHash[key], handle)
	s.stiIndex.Set(stiEntry{sti: 0, h: handle})

	for _, o := range outCopy {
		neighbor := s.recordAt(o)
		neighbor.incoming[handle] = struct{}{}
	}

	s.total++
	snap := s.snapshot(rec)
	s.bus.publish(Event{Kind: EventAtomAdded, Atom: &snap})

	if s.cfg.ForgettingEnabled && s.total > s.cfg.MaxSize {
		s.evictLocked()
	}
	return handle
}

// allocSlot reuses a tombstoned slot (bumping its generation) or grows the
// arena, and pre-seeds arena[idx] with a placeholder carrying the new
// generation so Add can read s.arena[idx].gen before installing the real
// record.
func (s *Store) allocSlot() uint32 {
	if n := len(s.free); n > 0 {
		idx := s.free[n-1]
		s.free = s.free[:n-1]
		gen := uint32(1)
		if s.arena[idx] != nil {
			gen = s.arena[idx].handle.gen + 1
		}
		s.arena[idx] = &atomRecord{handle: Handle{idx: idx, gen: gen}}
		return idx
	}
	idx := uint32(len(s.arena))
	s.arena = append(s.arena, &atomRecord{handle: Handle{idx: idx, gen: 1}})
	return idx
}

func (s *Store) indexInsert(rec *atomRecord) {
	if s.byType[rec.typ] == nil {
		s.byType[rec.typ] = roaring.New()
	}
	s.byType[rec.typ].Add(rec.handle.idx)
	if rec.name != "" {
		if s.byName[rec.name] == nil {
			s.byName[rec.name] = roaring.New()
		}
		s.byName[rec.name].Add(rec.handle.idx)
	}
}

func (s *Store) indexRemove(rec *atomRecord) {
	if bm := s.byType[rec.typ]; bm != nil {
		bm.Remove(rec.handle.idx)
		if bm.IsEmpty() {
			delete(s.byType, rec.typ)
		}
	}
	if rec.name != "" {
		if bm := s.byName[rec.name]; bm != nil {
			bm.Remove(rec.handle.idx)
			if bm.IsEmpty() {
				delete(s.byName, rec.name)
			}
		}
	}
}

func (s *Store) snapshot(rec *atomRecord) Atom {
	incoming := make([]Handle, 0, len(rec.incoming))
	for h := range rec.incoming {
		incoming = append(incoming, h)
	}
	meta := make(map[string]any, len(rec.metadata))
	for k, v := range rec.metadata {
		meta[k] = v
	}
	return Atom{
		Handle:     rec.handle,
		Type:       rec.typ,
		Name:       rec.name,
		Outgoing:   append([]Handle(nil), rec.outgoing...),
		Incoming:   incoming,
		TruthValue: rec.tv,
		Attention:  rec.av,
		CreatedAt:  rec.createdAt,
		Metadata:   meta,
	}
}

// Get returns a snapshot of the atom at h, if it is still live.
func (s *Store) Get(h Handle) (Atom, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec := s.recordAt(h)
	if rec == nil {
		return Atom{}, false
	}
	return s.snapshot(rec), true
}

// SetTruthValue overwrites h's truth value outright, with no merge against
// the existing value. This is the primitive callers that have already
// computed a definitive replacement (e.g. the inference engine's forward
// chaining, which overwrites an existing implication's truth value per
// spec.md §4.5 step 4) must use instead of Add, whose dedup path always
// averages strength/maxes confidence against whatever is already stored.
func (s *Store) SetTruthValue(h Handle, tv TruthValue) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.recordAt(h)
	if rec == nil {
		return false
	}
	rec.tv = tv.Clamp()
	rec.createdAt = time.Now().UnixNano()
	snap := s.snapshot(rec)
	s.bus.publish(Event{Kind: EventAtomUpdated, Atom: &snap})
	return true
}

// Remove deletes h and cascades to every atom that has h in its outgoing
// sequence (spec.md invariant 3). Explicit removal always succeeds even for
// VLTI atoms — only eviction is forbidden from touching them. Returns
// whether h itself was live.
func (s *Store) Remove(h Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.recordAt(h) == nil {
		return false
	}
	s.removeCascade(h)
	return true
}

func (s *Store) removeCascade(h Handle) {
	rec := s.recordAt(h)
	if rec == nil {
		return
	}
	rec.live = false
	s.indexRemove(rec)
	s.stiIndex.Delete(stiEntry{sti: rec.av.STI, h: h})
	// byContentHash buckets are pruned lazily: Add's lookup already skips any
	// stale handle via recordAt, so a dead entry here is harmless until the
	// bucket is next consulted.

	for _, o := range rec.outgoing {
		if neighbor := s.recordAt(o); neighbor != nil {
			delete(neighbor.incoming, h)
		}
	}

	dependents := make([]Handle, 0, len(rec.incoming))
	for in := range rec.incoming {
		dependents = append(dependents, in)
	}

	s.arena[h.idx] = &atomRecord{handle: rec.handle} // tombstone, keep generation
	s.free = append(s.free, h.idx)
	s.total--

	// Attention is carried on the removal snapshot (unlike Type/Name, which
	// are enough to identify the atom) so subscribers such as attention.Bank
	// can subtract the departed atom's exact STI/LTI contribution from their
	// running totals without a second lookup into an already-tombstoned slot.
	snap := Atom{Handle: h, Type: rec.typ, Name: rec.name, Attention: rec.av}
	s.bus.publish(Event{Kind: EventAtomRemoved, Atom: &snap})

	for _, dep := range dependents {
		s.removeCascade(dep)
	}
}

// Clear removes every atom and resets all indices.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.arena = make([]*atomRecord, 1, 256)
	s.free = nil
	s.byType = make(map[string]*roaring.Bitmap)
	s.byName = make(map[string]*roaring.Bitmap)
	s.byContentHash = make(map[[32]byte][]Handle)
	s.stiIndex = btree.NewBTreeG(lessSTI)
	s.total = 0
	s.bus.publish(Event{Kind: EventCleared})
}

// ByType returns a lazy sequence of handles of atoms with type tag tag.
func (s *Store) ByType(tag string) iter.Seq[Handle] {
	s.mu.RLock()
	var handles []Handle
	if bm := s.byType[tag]; bm != nil {
		handles = s.handlesFromBitmap(bm)
	}
	s.mu.RUnlock()
	return slices(handles)
}

// ByName returns a lazy sequence of handles of atoms with the given name.
func (s *Store) ByName(name string) iter.Seq[Handle] {
	s.mu.RLock()
	var handles []Handle
	if bm := s.byName[name]; bm != nil {
		handles = s.handlesFromBitmap(bm)
	}
	s.mu.RUnlock()
	return slices(handles)
}

// All returns a lazy sequence of every live atom's handle.
func (s *Store) All() iter.Seq[Handle] {
	s.mu.RLock()
	handles := make([]Handle, 0, s.total)
	for idx, rec := range s.arena {
		if idx == 0 || rec == nil || !rec.live {
			continue
		}
		handles = append(handles, rec.handle)
	}
	s.mu.RUnlock()
	return slices(handles)
}

func (s *Store) handlesFromBitmap(bm *roaring.Bitmap) []Handle {
	out := make([]Handle, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		idx := it.Next()
		if rec := s.arena[idx]; rec != nil && rec.live {
			out = append(out, rec.handle)
		}
	}
	return out
}

// Focus returns up to k handles ordered by descending STI (attention.Bank
// delegates its own Focus here, per spec.md §4.2).
func (s *Store) Focus(k int) []Handle {
	if k <= 0 {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Handle, 0, k)
	s.stiIndex.Reverse(func(e stiEntry) bool {
		out = append(out, e.h)
		return len(out) < k
	})
	return out
}

// PatternMatch returns a lazy sequence of handles whose atoms satisfy every
// clause in p. Type/Name clauses, if present, narrow the scan via the
// bitmap indices before the remaining clauses are checked by linear scan.
func (s *Store) PatternMatch(p Pattern) iter.Seq[Handle] {
	s.mu.RLock()
	var candidates []Handle
	switch {
	case p.typ != nil && p.name != nil:
		t, n := s.byType[*p.typ], s.byName[*p.name]
		if t != nil && n != nil {
			candidates = s.handlesFromBitmap(roaring.And(t, n))
		}
	case p.typ != nil:
		if bm := s.byType[*p.typ]; bm != nil {
			candidates = s.handlesFromBitmap(bm)
		}
	case p.name != nil:
		if bm := s.byName[*p.name]; bm != nil {
			candidates = s.handlesFromBitmap(bm)
		}
	default:
		candidates = make([]Handle, 0, s.total)
		for idx, rec := range s.arena {
			if idx == 0 || rec == nil || !rec.live {
				continue
			}
			candidates = append(candidates, rec.handle)
		}
	}

	out := make([]Handle, 0, len(candidates))
	for _, h := range candidates {
		rec := s.recordAt(h)
		if rec == nil {
			continue
		}
		if p.matches(s.snapshot(rec)) {
			out = append(out, h)
		}
	}
	s.mu.RUnlock()
	return slices(out)
}

func slices(items []Handle) iter.Seq[Handle] {
	return func(yield func(Handle) bool) {
		for _, h := range items {
			if !yield(h) {
				return
			}
		}
	}
}

// evictLocked runs the forgetting policy (spec.md §4.1). Caller must hold
// s.mu. It removes the lowest-STI 10% of the *total* population (computed
// before eviction), skipping VLTI atoms entirely, along with any atom whose
// removal would cascade into a VLTI atom — per the Open Question in
// spec.md Design Notes §9, a population that is mostly VLTI can stay above
// MaxSize forever; this is inherited, documented behaviour, not a bug.
func (s *Store) evictLocked() {
	target := s.total / 10
	if target == 0 {
		return
	}
	// reachesVLTI reports whether h is VLTI or is (transitively) in the
	// outgoing sequence of a VLTI atom, i.e. whether removing h would remove
	// a VLTI atom.
	var reachesVLTI func(h Handle) bool
	reachesVLTI = func(h Handle) bool {
		rec := s.recordAt(h)
		if rec == nil || rec.av.VLTI {
			return rec != nil
		}
		for in := range rec.incoming {
			if reachesVLTI(in) {
				return true
			}
		}
		return false
	}
	candidates := make([]Handle, 0, target)
	s.stiIndex.Scan(func(e stiEntry) bool {
		if len(candidates) >= target {
			return false
		}
		if rec := s.recordAt(e.h); rec != nil && !reachesVLTI(e.h) {
			candidates = append(candidates, e.h)
		}
		return true
	})

	removedBefore := 0
	for idx, rec := range s.arena {
		if idx != 0 && rec != nil && rec.live {
			removedBefore++
		}
	}
	for _, h := range candidates {
		if s.recordAt(h) != nil {
			s.removeCascade(h)
		}
	}
	removedAfter := 0
	for idx, rec := range s.arena {
		if idx != 0 && rec != nil && rec.live {
			removedAfter++
		}
	}
	n := removedBefore - removedAfter
	if n > 0 {
		s.bus.publish(Event{Kind: EventForgotten, N: n})
	}
}

// --- Attention gateway: the only methods through which the attention bank
// (a separate package) may read or write an atom's importance triple. All
// clamping policy lives in the bank; the store just stores the value and
// keeps the STI-ordered index coherent. ---

// STI returns an atom's current short-term importance.
func (s *Store) STI(h Handle) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec := s.recordAt(h)
	if rec == nil {
		return 0, false
	}
	return rec.av.STI, true
}

// SetSTI overwrites an atom's STI (already clamped by the caller) and keeps
// the STI-ordered index coherent.
func (s *Store) SetSTI(h Handle, v float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.recordAt(h)
	if rec == nil {
		return false
	}
	s.stiIndex.Delete(stiEntry{sti: rec.av.STI, h: h})
	rec.av.STI = v
	s.stiIndex.Set(stiEntry{sti: v, h: h})
	return true
}

// LTI returns an atom's current long-term importance.
func (s *Store) LTI(h Handle) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec := s.recordAt(h)
	if rec == nil {
		return 0, false
	}
	return rec.av.LTI, true
}

// SetLTI overwrites an atom's LTI.
func (s *Store) SetLTI(h Handle, v float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.recordAt(h)
	if rec == nil {
		return false
	}
	rec.av.LTI = v
	return true
}

// VLTI returns an atom's protection flag.
func (s *Store) VLTI(h Handle) (bool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec := s.recordAt(h)
	if rec == nil {
		return false, false
	}
	return rec.av.VLTI, true
}

// SetVLTI sets an atom's protection flag.
func (s *Store) SetVLTI(h Handle, v bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.recordAt(h)
	if rec == nil {
		return false
	}
	rec.av.VLTI = v
	return true
}

// Outgoing returns the (copied) outgoing sequence of an atom.
func (s *Store) Outgoing(h Handle) ([]Handle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec := s.recordAt(h)
	if rec == nil {
		return nil, false
	}
	return append([]Handle(nil), rec.outgoing...), true
}

// Incoming returns the (copied) incoming set of an atom, in no particular
// order (spec.md models it as a set).
func (s *Store) Incoming(h Handle) ([]Handle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec := s.recordAt(h)
	if rec == nil {
		return nil, false
	}
	out := make([]Handle, 0, len(rec.incoming))
	for in := range rec.incoming {
		out = append(out, in)
	}
	return out, true
}

// AllWithSTI snapshots every live atom's handle and current STI, used by the
// attention bank's decay/normalize/spread passes to avoid holding the
// store's lock across a bulk numerical pass.
func (s *Store) AllWithSTI() []struct {
	Handle Handle
	STI    float64
} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]struct {
		Handle Handle
		STI    float64
	}, 0, s.total)
	for idx, rec := range s.arena {
		if idx == 0 || rec == nil || !rec.live {
			continue
		}
		out = append(out, struct {
			Handle Handle
			STI    float64
		}{rec.handle, rec.av.STI})
	}
	return out
}
