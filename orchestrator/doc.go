// Package orchestrator runs the bounded critique/refine cycle.
//
// An Engine takes an envelope that already holds the producer's answer,
// hops to the critic for a score and, while the score is below the
// threshold and the iteration budget allows, hops to the refiner for a
// better answer:
//
//	hop := orchestrator.NewRemoteHop(discoveryClient, nil)
//	engine := orchestrator.New(hop, orchestrator.DefaultConfig())
//	reply := engine.Run(ctx, env)
//
// Hops are never retried. A failed hop adds an error record to the trace
// and the run ends with the last good answer.
package orchestrator
