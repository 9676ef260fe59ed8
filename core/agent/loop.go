package agent

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cogpy/atomspace/core/attention"
	"github.com/reugn/go-quartz/quartz"
)

// LoopState is the cognitive loop's state machine position (spec.md §4.4).
type LoopState string

const (
	StateStopped LoopState = "STOPPED"
	StateRunning LoopState = "RUNNING"
	StatePaused  LoopState = "PAUSED"
)

// LoopConfig constructs a Loop (spec.md §6.1).
type LoopConfig struct {
	CycleInterval     time.Duration
	MaxCycles         int // 0 means unbounded
	AutoDecay         bool
	AutoNormalize     bool
	DecayInterval     int
	NormalizeInterval int
}

// DefaultLoopConfig returns the loop's default configuration.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		CycleInterval:     100 * time.Millisecond,
		MaxCycles:         0,
		AutoDecay:         true,
		AutoNormalize:     true,
		DecayInterval:     10,
		NormalizeInterval: 20,
	}
}

// LoopEventKind names the loop's lifecycle events.
type LoopEventKind string

const (
	LoopEventCycleComplete    LoopEventKind = "cycle-complete"
	LoopEventMaxCyclesReached LoopEventKind = "max-cycles-reached"
	LoopEventStopped          LoopEventKind = "stopped"
	LoopEventCycleError       LoopEventKind = "cycle-error"
)

// LoopEvent is an owned notification of a loop lifecycle moment.
type LoopEvent struct {
	Kind       LoopEventKind
	Cycle      int
	Summary    *CycleSummary
	Err        error
	TotalCycles int
	TotalTime  time.Duration
}

// loopJob adapts one orchestrator tick to quartz.Job so the loop can ride
// go-quartz's recurring scheduler instead of a hand-rolled ticker, the
// idiomatic successor named in SPEC_FULL.md §4.4 to the teacher's bespoke
// timer loops.
type loopJob struct {
	l *Loop
}

func (j *loopJob) Execute(ctx context.Context) error {
	j.l.runTick()
	return nil
}

func (j *loopJob) Description() string { return "atomspace cognitive loop cycle" }

// Loop drives an Orchestrator on a monotonic timer, optionally running the
// attention bank's decay and normalisation on a cadence. Pause/resume gates
// the job body on an atomic state flag rather than unscheduling the
// underlying quartz job, since go-quartz has no native pause primitive
// (SPEC_FULL.md §4.4).
type Loop struct {
	mu sync.Mutex

	cfg          LoopConfig
	orchestrator *Orchestrator
	bank         *attention.Bank

	state        atomic.Value // LoopState
	sched        quartz.Scheduler
	startTime    time.Time
	totalCycles  int

	subs    map[int]chan LoopEvent
	nextSub int
}

// NewLoop creates a cognitive loop driving orchestrator, optionally running
// bank's maintenance passes on the configured cadence.
func NewLoop(cfg LoopConfig, orchestrator *Orchestrator, bank *attention.Bank) *Loop {
	if cfg.CycleInterval <= 0 {
		cfg.CycleInterval = 100 * time.Millisecond
	}
	l := &Loop{
		cfg:          cfg,
		orchestrator: orchestrator,
		bank:         bank,
		subs:         make(map[int]chan LoopEvent),
	}
	l.state.Store(StateStopped)
	return l
}

// Subscribe registers a new observer of loop events.
func (l *Loop) Subscribe() (<-chan LoopEvent, func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.nextSub
	l.nextSub++
	ch := make(chan LoopEvent, 64)
	l.subs[id] = ch
	return ch, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if c, ok := l.subs[id]; ok {
			delete(l.subs, id)
			close(c)
		}
	}
}

func (l *Loop) publish(e LoopEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ch := range l.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// State returns the loop's current state.
func (l *Loop) State() LoopState { return l.state.Load().(LoopState) }

// Start transitions STOPPED → RUNNING: records the start time, resets the
// cycle counter, and schedules the first tick.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.State() != StateStopped {
		return fmt.Errorf("atomspace: Loop.Start called while not STOPPED (state=%s)", l.State())
	}
	l.startTime = time.Now()
	l.totalCycles = 0
	l.sched = quartz.NewStdScheduler()
	l.sched.Start(ctx)

	job := &loopJob{l: l}
	trigger := quartz.NewSimpleTrigger(l.cfg.CycleInterval)
	jobDetail := quartz.NewJobDetail(job, quartz.NewJobKey("cognitive-loop"))
	if err := l.sched.ScheduleJob(jobDetail, trigger); err != nil {
		return fmt.Errorf("atomspace: scheduling cognitive loop job: %w", err)
	}
	l.state.Store(StateRunning)
	return nil
}

// Stop transitions RUNNING|PAUSED → STOPPED: cancels the pending schedule
// and emits `stopped` with the final (totalCycles, totalTime). Cooperative:
// an in-flight cycle is allowed to finish.
func (l *Loop) Stop() {
	l.mu.Lock()
	prev := l.State()
	if prev == StateStopped {
		l.mu.Unlock()
		return
	}
	l.state.Store(StateStopped)
	sched := l.sched
	totalCycles := l.totalCycles
	totalTime := time.Since(l.startTime)
	l.mu.Unlock()

	if sched != nil {
		sched.Stop()
	}
	l.publish(LoopEvent{Kind: LoopEventStopped, TotalCycles: totalCycles, TotalTime: totalTime})
}

// Pause transitions RUNNING → PAUSED: subsequent ticks are suppressed,
// state and counters preserved.
func (l *Loop) Pause() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.State() == StateRunning {
		l.state.Store(StatePaused)
	}
}

// Resume transitions PAUSED → RUNNING: scheduling continues.
func (l *Loop) Resume() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.State() == StatePaused {
		l.state.Store(StateRunning)
	}
}

// RunSingleCycle runs exactly one orchestrator cycle (plus any due
// maintenance) regardless of the loop's scheduling state, for callers that
// want manual stepping.
func (l *Loop) RunSingleCycle() CycleSummary {
	return l.cycle()
}

// runTick is the scheduled job body: it runs a cycle only while RUNNING.
func (l *Loop) runTick() CycleSummary {
	if l.State() != StateRunning {
		return CycleSummary{}
	}
	return l.cycle()
}

func (l *Loop) cycle() CycleSummary {
	summary := l.safeRunCycle()

	l.mu.Lock()
	l.totalCycles++
	cycle := l.totalCycles
	l.mu.Unlock()

	if l.cfg.AutoDecay && l.cfg.DecayInterval > 0 && cycle%l.cfg.DecayInterval == 0 {
		l.bank.DecaySTI()
	}
	if l.cfg.AutoNormalize && l.cfg.NormalizeInterval > 0 && cycle%l.cfg.NormalizeInterval == 0 {
		l.bank.NormalizeSTI()
		l.bank.NormalizeLTI()
	}

	l.publish(LoopEvent{Kind: LoopEventCycleComplete, Cycle: cycle, Summary: &summary})

	if l.cfg.MaxCycles > 0 && cycle >= l.cfg.MaxCycles {
		l.publish(LoopEvent{Kind: LoopEventMaxCyclesReached, Cycle: cycle})
		l.Stop()
	}
	return summary
}

// safeRunCycle runs one orchestrator cycle, converting a panic into a
// cycle-error event rather than letting it stop the loop (spec.md §4.4:
// "an exception raised inside a cycle must not stop the loop").
func (l *Loop) safeRunCycle() (summary CycleSummary) {
	defer func() {
		if r := recover(); r != nil {
			l.publish(LoopEvent{Kind: LoopEventCycleError, Err: fmt.Errorf("cycle panic: %v", r)})
		}
	}()
	summary = l.orchestrator.RunCycle()
	return summary
}

// SetCycleInterval changes the interval used for future ticks. Takes effect
// from the next Start call; it does not reschedule an in-flight loop.
func (l *Loop) SetCycleInterval(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cfg.CycleInterval = d
}

// LoopStats reports the loop's running counters.
type LoopStats struct {
	State       LoopState
	TotalCycles int
	TotalTime   time.Duration
}

func (l *Loop) Stats() LoopStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	var elapsed time.Duration
	if !l.startTime.IsZero() {
		elapsed = time.Since(l.startTime)
	}
	return LoopStats{State: l.State(), TotalCycles: l.totalCycles, TotalTime: elapsed}
}
