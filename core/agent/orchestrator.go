package agent

import (
	"context"
	"sort"
	"sync"

	"github.com/cogpy/atomspace/core/atomspace"
	"github.com/cogpy/atomspace/core/attention"
	"golang.org/x/sync/semaphore"
)

// SchedulingPolicy selects how eligible agents are ordered within a cycle.
type SchedulingPolicy string

const (
	PolicyPriority   SchedulingPolicy = "priority"
	PolicyRoundRobin SchedulingPolicy = "round-robin"
	PolicyAttention  SchedulingPolicy = "attention"
)

// OrchestratorConfig constructs an Orchestrator (spec.md §6.1).
type OrchestratorConfig struct {
	MaxConcurrent    int
	SchedulingPolicy SchedulingPolicy
}

// DefaultOrchestratorConfig returns maxConcurrent=5, schedulingPolicy=priority.
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{MaxConcurrent: 5, SchedulingPolicy: PolicyPriority}
}

// CycleSummary aggregates the results of one runCycle call.
type CycleSummary struct {
	Cycle   int
	Results []Result
}

// EventKind names the orchestrator's lifecycle events.
type EventKind string

const (
	EventCycleStart EventKind = "cycle-start"
	EventCycleEnd   EventKind = "cycle-end"
	EventBeforeRun  EventKind = "before-run"
	EventAfterRun   EventKind = "after-run"
	EventAgentError EventKind = "error"
)

// Event is an owned notification of an orchestrator lifecycle moment.
type Event struct {
	Kind    EventKind
	Cycle   int
	AgentID string
	Summary *CycleSummary
	Err     error
}

// Orchestrator holds a set of agents keyed by id and runs eligible ones
// each cycle with bounded concurrency. Grounded on
// core/_opencog.disabled/hypercyclic_reactor.go's executeReactionCycles,
// replacing its hand-rolled WaitGroup fan-out with a
// golang.org/x/sync/semaphore.Weighted sized to maxConcurrent
// (SPEC_FULL.md §4.4).
type Orchestrator struct {
	mu sync.Mutex

	cfg   OrchestratorConfig
	store *atomspace.Store
	bank  *attention.Bank

	agents map[string]*Agent
	order  []string // insertion order, used by round-robin

	currentCycle int

	subs    map[int]chan Event
	nextSub int
}

// NewOrchestrator creates an orchestrator driving store/bank.
func NewOrchestrator(cfg OrchestratorConfig, store *atomspace.Store, bank *attention.Bank) *Orchestrator {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 5
	}
	if cfg.SchedulingPolicy == "" {
		cfg.SchedulingPolicy = PolicyPriority
	}
	return &Orchestrator{
		cfg:    cfg,
		store:  store,
		bank:   bank,
		agents: make(map[string]*Agent),
		subs:   make(map[int]chan Event),
	}
}

// Subscribe registers a new observer of orchestrator events.
func (o *Orchestrator) Subscribe() (<-chan Event, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	id := o.nextSub
	o.nextSub++
	ch := make(chan Event, 64)
	o.subs[id] = ch
	return ch, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if c, ok := o.subs[id]; ok {
			delete(o.subs, id)
			close(c)
		}
	}
}

func (o *Orchestrator) publishLocked(e Event) {
	for _, ch := range o.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Add registers an agent. Adding outside of a cycle is immediately visible.
func (o *Orchestrator) Add(a *Agent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, exists := o.agents[a.ID()]; !exists {
		o.order = append(o.order, a.ID())
	}
	o.agents[a.ID()] = a
}

// Remove unregisters an agent by id.
func (o *Orchestrator) Remove(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.agents, id)
	for i, existing := range o.order {
		if existing == id {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
}

// Enable/Disable toggle an agent by id; no-ops if the id is unknown.
func (o *Orchestrator) Enable(id string) {
	if a := o.agentByID(id); a != nil {
		a.Enable()
	}
}

func (o *Orchestrator) Disable(id string) {
	if a := o.agentByID(id); a != nil {
		a.Disable()
	}
}

func (o *Orchestrator) agentByID(id string) *Agent {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.agents[id]
}

// Reset clears the cycle counter and every agent's run statistics are left
// untouched (only cycle numbering resets; spec.md does not ask orchestrator
// reset to rebuild agent stats, which live on the Agent itself).
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.currentCycle = 0
}

// CurrentCycle returns the most recently completed (or in-flight) cycle
// number.
func (o *Orchestrator) CurrentCycle() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.currentCycle
}

// RunCycle executes one scheduling cycle: increment the cycle counter,
// materialise the eligible agent set, order it by policy, partition into
// batches of at most maxConcurrent, and run each batch to completion before
// starting the next (spec.md §4.4).
func (o *Orchestrator) RunCycle() CycleSummary {
	o.mu.Lock()
	o.currentCycle++
	cycle := o.currentCycle

	eligible := make([]*Agent, 0, len(o.order))
	for _, id := range o.order {
		a := o.agents[id]
		if a == nil {
			continue
		}
		if a.Enabled() && a.ShouldRun(cycle) {
			eligible = append(eligible, a)
		}
	}
	o.orderByPolicyLocked(eligible)
	o.publishLocked(Event{Kind: EventCycleStart, Cycle: cycle})
	o.mu.Unlock()

	sem := semaphore.NewWeighted(int64(o.cfg.MaxConcurrent))
	results := make([]Result, len(eligible))

	for start := 0; start < len(eligible); start += o.cfg.MaxConcurrent {
		end := start + o.cfg.MaxConcurrent
		if end > len(eligible) {
			end = len(eligible)
		}
		batch := eligible[start:end]

		var wg sync.WaitGroup
		for i, a := range batch {
			idx := start + i
			ag := a
			wg.Add(1)
			_ = sem.Acquire(context.Background(), 1)
			go func() {
				defer wg.Done()
				defer sem.Release(1)

				o.mu.Lock()
				o.publishLocked(Event{Kind: EventBeforeRun, Cycle: cycle, AgentID: ag.ID()})
				o.mu.Unlock()

				res := ag.Execute(o.store, o.bank, cycle)
				results[idx] = res

				o.mu.Lock()
				if res.Status == StatusFailure {
					o.publishLocked(Event{Kind: EventAgentError, Cycle: cycle, AgentID: ag.ID(), Err: res.Err})
				} else {
					o.publishLocked(Event{Kind: EventAfterRun, Cycle: cycle, AgentID: ag.ID()})
				}
				o.mu.Unlock()
			}()
		}
		wg.Wait() // a batch fully quiesces before the next one begins
	}

	summary := CycleSummary{Cycle: cycle, Results: results}
	o.mu.Lock()
	o.publishLocked(Event{Kind: EventCycleEnd, Cycle: cycle, Summary: &summary})
	o.mu.Unlock()
	return summary
}

func (o *Orchestrator) orderByPolicyLocked(agents []*Agent) {
	switch o.cfg.SchedulingPolicy {
	case PolicyPriority, PolicyAttention:
		sort.SliceStable(agents, func(i, j int) bool {
			return agents[i].Priority() > agents[j].Priority()
		})
	case PolicyRoundRobin:
		// agents is already in insertion order.
	}
}

// Stats reports every registered agent's current statistics, keyed by id.
func (o *Orchestrator) Stats() map[string]Stats {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[string]Stats, len(o.agents))
	for id, a := range o.agents {
		out[id] = a.Stats()
	}
	return out
}
