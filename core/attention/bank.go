package attention

import (
	"sync"

	"github.com/cogpy/atomspace/core/atomspace"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// EventKind names the observability events the bank emits.
type EventKind string

const (
	EventStimulated EventKind = "stimulated"
	EventDecayed    EventKind = "decayed"
	EventNormalized EventKind = "normalized"
	EventSpread     EventKind = "spread"
	EventReset      EventKind = "reset"
)

// Event is an owned notification of a bank-level mutation.
type Event struct {
	Kind  EventKind
	Delta float64 // meaning depends on Kind: stimulated delta, decayed/normalized amount removed or total after
}

// Stats summarizes the bank's current STI distribution (spec.md §6.1's
// `stats`, enriched with gonum.org/v1/gonum/stat's Mean/Variance per
// SPEC_FULL.md §4.2 — supplementary observability beyond the bare total).
type Stats struct {
	Count    int
	TotalSTI float64
	TotalLTI float64
	MeanSTI  float64
	VarSTI   float64
}

// Bank is the attention economy layered over a single atomspace.Store.
// Grounded on core/_opencog.disabled/atomspace.go's AttentionBank
// (ImportanceHeap, total accounting) and AtomSpace.SpreadAttention.
type Bank struct {
	mu  sync.Mutex
	cfg Config
	log *zap.Logger
	st  store

	totalSTI float64
	totalLTI float64

	subs    map[int]chan Event
	nextID  int
	bufSize int

	unwatch func()
}

// New creates a bank over st with configuration cfg, and subscribes to st's
// event bus so the bank's running STI/LTI totals stay in sync with removals
// it did not itself perform (store.Remove, cascade deletes, and forgetting
// eviction all only know the store side of the bookkeeping). Grounded on
// core/_opencog.disabled/atomspace.go's AttentionBank total accounting,
// wired through the store's existing Bus/Subscribe mechanism instead of
// requiring every removal call site to remember to call Untrack by hand.
func New(cfg Config, st store, log *zap.Logger) *Bank {
	if log == nil {
		log = zap.NewNop()
	}
	b := &Bank{
		cfg:     cfg,
		log:     log,
		st:      st,
		subs:    make(map[int]chan Event),
		bufSize: 32,
	}
	events, unsubscribe := st.Subscribe()
	b.unwatch = unsubscribe
	go b.watchStore(events)
	return b
}

// watchStore drains st's event bus for the bank's lifetime, removing a
// departed atom's last-known STI/LTI contribution from the running totals.
// It returns once events is closed, which happens when Close unsubscribes.
func (b *Bank) watchStore(events <-chan atomspace.Event) {
	for evt := range events {
		if evt.Kind != atomspace.EventAtomRemoved || evt.Atom == nil {
			continue
		}
		b.Untrack(evt.Atom.Handle, evt.Atom.Attention.STI, evt.Atom.Attention.LTI)
	}
}

// Close stops the bank's store-event watcher. Safe to call once; callers
// that do not need deterministic teardown (e.g. short-lived demos) may omit
// the call and let the watcher goroutine exit with the process.
func (b *Bank) Close() {
	if b.unwatch != nil {
		b.unwatch()
	}
}

// Subscribe registers a new observer of bank events.
func (b *Bank) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	ch := make(chan Event, b.bufSize)
	b.subs[id] = ch
	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
}

func (b *Bank) publishLocked(e Event) {
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- e:
			default:
			}
		}
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Stimulate adds delta to h's STI, clamped to [STIMin, STIMax], and tracks
// the actual delta applied against the bank's running total (spec.md
// §4.2).
func (b *Bank) Stimulate(h atomspace.Handle, delta float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	cur, ok := b.st.STI(h)
	if !ok {
		return false
	}
	next := clamp(cur+delta, b.cfg.STIMin, b.cfg.STIMax)
	actual := next - cur
	b.st.SetSTI(h, next)
	b.totalSTI += actual
	b.publishLocked(Event{Kind: EventStimulated, Delta: actual})
	return true
}

// SetLTI sets h's LTI and updates the running total.
func (b *Bank) SetLTI(h atomspace.Handle, v float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	cur, ok := b.st.LTI(h)
	if !ok {
		return false
	}
	b.st.SetLTI(h, v)
	b.totalLTI += v - cur
	return true
}

// SetVLTI sets h's very-long-term-importance protection flag.
func (b *Bank) SetVLTI(h atomspace.Handle, v bool) bool {
	return b.st.SetVLTI(h, v)
}

// DecaySTI applies rent: for every atom with sti > 0, subtracts
// sti·(1−decayRate), clamped at 0. A no-op when RentEnabled is false.
func (b *Bank) DecaySTI() {
	if !b.cfg.RentEnabled {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	var removed float64
	for _, rec := range b.st.AllWithSTI() {
		if rec.STI <= 0 {
			continue
		}
		rent := rec.STI * (1 - b.cfg.DecayRate)
		next := rec.STI - rent
		if next < 0 {
			next = 0
		}
		b.st.SetSTI(rec.Handle, next)
		removed += rec.STI - next
	}
	b.totalSTI -= removed
	b.publishLocked(Event{Kind: EventDecayed, Delta: removed})
}

// NormalizeSTI scales every atom's STI so the bank's total becomes
// TargetSTI, a no-op when the total is already at target or zero.
func (b *Bank) NormalizeSTI() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.totalSTI == 0 || b.totalSTI == b.cfg.TargetSTI {
		return
	}

	recs := b.st.AllWithSTI()
	values := make([]float64, len(recs))
	for i, r := range recs {
		values[i] = r.STI
	}
	scale := b.cfg.TargetSTI / b.totalSTI
	floats.Scale(scale, values)
	for i, r := range recs {
		b.st.SetSTI(r.Handle, values[i])
	}
	b.totalSTI = floats.Sum(values)
	b.publishLocked(Event{Kind: EventNormalized, Delta: b.totalSTI})
}

// NormalizeLTI scales every atom's LTI so the bank's total becomes
// TargetLTI, mirroring NormalizeSTI.
func (b *Bank) NormalizeLTI() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.totalLTI == 0 || b.totalLTI == b.cfg.TargetLTI {
		return
	}

	recs := b.st.AllWithSTI() // handles only; LTI read individually below
	scale := b.cfg.TargetLTI / b.totalLTI
	var newTotal float64
	for _, r := range recs {
		lti, ok := b.st.LTI(r.Handle)
		if !ok {
			continue
		}
		next := lti * scale
		b.st.SetLTI(r.Handle, next)
		newTotal += next
	}
	b.totalLTI = newTotal
}

// SpreadImportance amplifies the top-FocusSize atoms' STI outward: for each,
// amount = sti*diffusion is added to every outgoing neighbour's STI and
// amount/2 to every incoming neighbour's STI. The source atom's own STI is
// left untouched (spec.md §4.2: spreading never decreases the source).
// Every amount is computed from the STI its source held before the pass, so
// what one source gains does not feed into another source's spread.
func (b *Bank) SpreadImportance(diffusion float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	top := b.st.Focus(b.cfg.FocusSize)
	amounts := make([]float64, len(top))
	for i, h := range top {
		sti, _ := b.st.STI(h)
		amounts[i] = sti * diffusion
	}
	var totalDelta float64
	for i, h := range top {
		amount := amounts[i]

		if out, ok := b.st.Outgoing(h); ok {
			for _, n := range out {
				totalDelta += b.addSTIRaw(n, amount)
			}
		}
		if in, ok := b.st.Incoming(h); ok {
			for _, n := range in {
				totalDelta += b.addSTIRaw(n, amount/2)
			}
		}
	}
	b.totalSTI += totalDelta
	b.publishLocked(Event{Kind: EventSpread, Delta: totalDelta})
}

// addSTIRaw applies a clamped STI delta to h without bank-total bookkeeping
// (the caller folds the actual delta into the total itself); it returns the
// actual delta applied so callers can accumulate it.
func (b *Bank) addSTIRaw(h atomspace.Handle, delta float64) float64 {
	cur, ok := b.st.STI(h)
	if !ok {
		return 0
	}
	next := clamp(cur+delta, b.cfg.STIMin, b.cfg.STIMax)
	b.st.SetSTI(h, next)
	return next - cur
}

// Focus delegates to the store's focus(k).
func (b *Bank) Focus(k int) []atomspace.Handle {
	return b.st.Focus(k)
}

// Reset clears the bank's running totals (used by callers rebuilding a
// store from scratch); it does not touch the store's atoms.
func (b *Bank) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.totalSTI = 0
	b.totalLTI = 0
	b.publishLocked(Event{Kind: EventReset})
}

// Stats reports the bank's current running totals plus the STI
// distribution's mean and variance.
func (b *Bank) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	recs := b.st.AllWithSTI()
	values := make([]float64, len(recs))
	for i, r := range recs {
		values[i] = r.STI
	}
	var mean, variance float64
	if len(values) > 0 {
		mean, variance = stat.MeanVariance(values, nil)
	}
	return Stats{
		Count:    len(values),
		TotalSTI: b.totalSTI,
		TotalLTI: b.totalLTI,
		MeanSTI:  mean,
		VarSTI:   variance,
	}
}

// TotalSTI returns the bank's current running STI total, primarily for
// tests and diagnostics.
func (b *Bank) TotalSTI() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.totalSTI
}

// Track registers h's current STI into the bank's running total. Newly added
// atoms start at STI=0/LTI=0 (spec.md §4.2), so Store.Add never requires a
// matching Track call; this remains useful for a caller that seeds an atom's
// attention values by some other path the bank's own gateway didn't take.
func (b *Bank) Track(h atomspace.Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sti, ok := b.st.STI(h); ok {
		b.totalSTI += sti
	}
	if lti, ok := b.st.LTI(h); ok {
		b.totalLTI += lti
	}
}

// Untrack removes h's current contribution from the bank's running totals.
// watchStore calls this automatically on every atom-removed event from the
// store's bus; it remains exported for tests and for any caller driving a
// store implementation that predates event-based wiring.
func (b *Bank) Untrack(h atomspace.Handle, lastSTI, lastLTI float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.totalSTI -= lastSTI
	b.totalLTI -= lastLTI
}
