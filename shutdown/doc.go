// Package shutdown stops a refinery process in order: listeners first so no
// new envelope arrives, then the registration keeper, then the journal and
// span exporter.
//
//	coord := shutdown.NewCoordinator(shutdown.Config{Logger: logger})
//	coord.RegisterWithPhase("agent", server, shutdown.PhaseListeners)
//	coord.RegisterWithPhase("keeper", keeper, shutdown.PhaseRegistration)
//	coord.RegisterFunc("journal", func(context.Context) error { return journal.Close() }, shutdown.PhaseFlush)
//	coord.HandleSignals()
//	<-coord.Done()
package shutdown
