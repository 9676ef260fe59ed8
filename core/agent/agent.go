// Package agent implements the cooperative multi-agent triad: a single
// agent's tick contract, the orchestrator that runs a cycle of agents with
// bounded concurrency, and the cognitive loop that drives cycles on a
// timer.
//
// Grounded on core/agent.go's AutonomousAgent (ctx/cancel lifecycle,
// ticker-driven loop shape) and core/_opencog.disabled/hypercyclic_reactor.go's
// batch fan-out (executeReactionCycles/executeReactionCycle), generalized
// from the teacher's fixed reactor-cycle domain to the spec's generic
// {tick} capability.
package agent

import (
	"fmt"
	"sync"
	"time"

	"github.com/cogpy/atomspace/core/atomspace"
	"github.com/cogpy/atomspace/core/attention"
	"github.com/google/uuid"
)

// Status is the outcome of one agent execution attempt.
type Status string

const (
	StatusSkipped Status = "skipped"
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// TickFunc is the single effectful operation an agent performs each cycle
// it is eligible to run.
type TickFunc func(store *atomspace.Store, bank *attention.Bank) (any, error)

// Config constructs an Agent (spec.md §6.1). ID defaults to a fresh
// uuid.New() v4 when empty, matching uuid.New() usage throughout the
// teacher's core/memory and core/_opencog.disabled packages.
type Config struct {
	ID        string
	Name      string
	Frequency int
	Priority  int
	Enabled   bool
}

// DefaultConfig returns an agent configuration with frequency 1, priority
// 0, enabled.
func DefaultConfig() Config {
	return Config{Frequency: 1, Priority: 0, Enabled: true}
}

// Result is the outcome of one Execute call.
type Result struct {
	AgentID  string
	Status   Status
	Value    any
	Err      error
	Duration time.Duration
}

// Agent is a named, stateful worker exposing tick(store, bank).
type Agent struct {
	mu sync.Mutex

	id        string
	name      string
	frequency int
	priority  int
	enabled   bool
	tick      TickFunc

	runCount  int
	totalTime time.Duration
	lastRun   time.Time
}

// New constructs an agent around tick with the given configuration.
func New(cfg Config, tick TickFunc) *Agent {
	id := cfg.ID
	if id == "" {
		id = uuid.New().String()
	}
	freq := cfg.Frequency
	if freq <= 0 {
		freq = 1
	}
	return &Agent{
		id:        id,
		name:      cfg.Name,
		frequency: freq,
		priority:  cfg.Priority,
		enabled:   cfg.Enabled,
		tick:      tick,
	}
}

func (a *Agent) ID() string   { return a.id }
func (a *Agent) Name() string { return a.name }

func (a *Agent) Priority() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.priority
}

func (a *Agent) Enabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enabled
}

// Enable turns the agent on.
func (a *Agent) Enable() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = true
}

// Disable turns the agent off; it will be skipped by every subsequent
// cycle until re-enabled.
func (a *Agent) Disable() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = false
}

// ShouldRun reports whether the agent is eligible on cycle c: c mod
// frequency == 0.
func (a *Agent) ShouldRun(cycle int) bool {
	a.mu.Lock()
	freq := a.frequency
	a.mu.Unlock()
	return freq > 0 && cycle%freq == 0
}

// Stats reports the agent's running counters.
type Stats struct {
	RunCount  int
	TotalTime time.Duration
	AvgTime   time.Duration
	LastRun   time.Time
}

func (a *Agent) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	var avg time.Duration
	if a.runCount > 0 {
		avg = a.totalTime / time.Duration(a.runCount)
	}
	return Stats{RunCount: a.runCount, TotalTime: a.totalTime, AvgTime: avg, LastRun: a.lastRun}
}

// Execute runs the agent's tick if it is enabled and eligible for cycle,
// timing the call and converting a panic or error into a failure result
// rather than propagating it (spec.md §4.4's agent execution contract).
func (a *Agent) Execute(store *atomspace.Store, bank *attention.Bank, cycle int) Result {
	if !a.Enabled() || !a.ShouldRun(cycle) {
		return Result{AgentID: a.id, Status: StatusSkipped}
	}

	start := time.Now()
	result := a.runTick(store, bank)
	result.Duration = time.Since(start)
	result.AgentID = a.id

	a.mu.Lock()
	a.runCount++
	a.totalTime += result.Duration
	a.lastRun = time.Now()
	a.mu.Unlock()

	return result
}

func (a *Agent) runTick(store *atomspace.Store, bank *attention.Bank) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = Result{Status: StatusFailure, Err: fmt.Errorf("agent panic: %v", r)}
		}
	}()
	val, err := a.tick(store, bank)
	if err != nil {
		return Result{Status: StatusFailure, Err: err}
	}
	return Result{Status: StatusSuccess, Value: val}
}
