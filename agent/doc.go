// Package agent holds the three pipeline agents and the HTTP server that
// exposes any of them.
//
// The Scraper answers a question from the web and starts the
// critique/refine cycle. The Critic scores an answer and the Refiner
// rewrites it from the critic's feedback. Each is a Capability and is
// served the same way:
//
//	critic := agent.NewCritic(provider, logger)
//	srv := agent.NewServer(":8002", critic, agent.CriticDescriptor("http://localhost:8002"), logger)
//	go srv.Start()
package agent
