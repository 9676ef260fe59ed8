// Command atomspace-demo wires together the atom store, attention bank,
// orchestrator and cognitive loop into a small runnable demonstration.
// Grounded on cmd/echo.go's cobra.Command{Use,Short,Long,RunE} composition
// and cmd/echoself/main.go's banner-then-run entrypoint shape.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/cogpy/atomspace/core/agent"
	"github.com/cogpy/atomspace/core/atomspace"
	"github.com/cogpy/atomspace/core/attention"
	"github.com/cogpy/atomspace/core/inference"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "atomspace-demo",
		Short: "Exercise the in-memory hypergraph atom space",
		Long:  "atomspace-demo builds a small knowledge base, runs forward-chaining inference over it, and drives a cognitive loop for a bounded number of cycles.",
	}
	root.AddCommand(newSeedCmd())
	root.AddCommand(newRunCmd())
	return root
}

func newSeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Add a small taxonomy and run one forward-chaining pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := zap.NewProduction()
			if err != nil {
				return fmt.Errorf("building logger: %w", err)
			}
			defer log.Sync()

			store := atomspace.New(atomspace.DefaultConfig(), log)
			cat := store.Add(atomspace.TypeConcept, "cat", nil, nil)
			mammal := store.Add(atomspace.TypeConcept, "mammal", nil, nil)
			animal := store.Add(atomspace.TypeConcept, "animal", nil, nil)
			store.Add(atomspace.TypeImplication, "", []atomspace.Handle{cat, mammal},
				&atomspace.TruthValue{Strength: 0.9, Confidence: 0.9})
			store.Add(atomspace.TypeImplication, "", []atomspace.Handle{mammal, animal},
				&atomspace.TruthValue{Strength: 0.95, Confidence: 0.95})

			eng := inference.New(inference.DefaultConfig(), store, log)
			records := eng.ForwardChain(5)
			fmt.Printf("seeded %d atoms, derived %d new implications\n", store.Size(), len(records))
			for _, r := range records {
				fmt.Printf("  %s: strength=%.4f confidence=%.4f\n", r.Kind, r.TV.Strength, r.TV.Confidence)
			}
			return nil
		},
	}
	return cmd
}

func newRunCmd() *cobra.Command {
	var cycles int
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the cognitive loop for a bounded number of cycles",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := zap.NewProduction()
			if err != nil {
				return fmt.Errorf("building logger: %w", err)
			}
			defer log.Sync()

			store := atomspace.New(atomspace.DefaultConfig(), log)
			bank := attention.New(attention.DefaultConfig(), store, log)
			defer bank.Close()
			orch := agent.NewOrchestrator(agent.DefaultOrchestratorConfig(), store, bank)

			eng := inference.New(inference.DefaultConfig(), store, log)
			inferenceAgent := agent.New(
				agent.Config{Name: "inference", Frequency: 1, Priority: 10, Enabled: true},
				func(s *atomspace.Store, b *attention.Bank) (any, error) {
					return eng.ForwardChain(1), nil
				},
			)
			orch.Add(inferenceAgent)

			loopCfg := agent.DefaultLoopConfig()
			loopCfg.CycleInterval = interval
			loopCfg.MaxCycles = cycles
			loop := agent.NewLoop(loopCfg, orch, bank)

			ch, unsubscribe := loop.Subscribe()
			defer unsubscribe()
			done := make(chan struct{})
			go func() {
				for evt := range ch {
					switch evt.Kind {
					case agent.LoopEventCycleComplete:
						fmt.Printf("cycle %d complete\n", evt.Cycle)
					case agent.LoopEventStopped:
						close(done)
						return
					}
				}
			}()

			if err := loop.Start(cmd.Context()); err != nil {
				return err
			}
			<-done
			stats := loop.Stats()
			fmt.Printf("ran %d cycles in %v\n", stats.TotalCycles, stats.TotalTime)
			return nil
		},
	}
	cmd.Flags().IntVar(&cycles, "cycles", 10, "number of cycles to run before stopping")
	cmd.Flags().DurationVar(&interval, "interval", 50*time.Millisecond, "interval between cycles")
	return cmd
}
