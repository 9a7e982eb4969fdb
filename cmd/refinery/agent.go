package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vinayprograms/refinery/agent"
	"github.com/vinayprograms/refinery/credentials"
	"github.com/vinayprograms/refinery/discovery"
	"github.com/vinayprograms/refinery/llm"
	"github.com/vinayprograms/refinery/orchestrator"
	"github.com/vinayprograms/refinery/ratelimit"
	"github.com/vinayprograms/refinery/registry"
	"github.com/vinayprograms/refinery/shutdown"
	"github.com/vinayprograms/refinery/web"
)

// role is one kind of agent process.
type role struct {
	use        string
	short      string
	listen     string
	descriptor func(baseURL string) registry.Descriptor
	build      func(a *app, coord *shutdown.Coordinator) (agent.Capability, error)
}

var roles = []role{
	{
		use:        "scraper",
		short:      "Answer questions from the web and drive the critique/refine cycle",
		listen:     ":8001",
		descriptor: agent.ScraperDescriptor,
		build:      (*app).scraper,
	},
	{
		use:        "critic",
		short:      "Score answers and return feedback",
		listen:     ":8002",
		descriptor: agent.CriticDescriptor,
		build: func(a *app, _ *shutdown.Coordinator) (agent.Capability, error) {
			p, err := a.provider()
			if err != nil {
				return nil, err
			}
			return agent.NewCritic(p, a.logger), nil
		},
	},
	{
		use:        "refiner",
		short:      "Rewrite answers using critic feedback",
		listen:     ":8003",
		descriptor: agent.RefinerDescriptor,
		build: func(a *app, _ *shutdown.Coordinator) (agent.Capability, error) {
			p, err := a.provider()
			if err != nil {
				return nil, err
			}
			return agent.NewRefiner(p, a.logger), nil
		},
	},
}

func newAgentCommand(a *app) *cobra.Command {
	var listen, publicURL string
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Run a pipeline agent",
		Long: `Run one pipeline agent. The agent serves POST /a2a, describes itself at
/.well-known/agent.json and registers with the registry on startup.`,
	}
	cmd.PersistentFlags().StringVar(&listen, "listen", "", "address to bind (overrides agent.listen)")
	cmd.PersistentFlags().StringVar(&publicURL, "public-url", "", "base URL advertised to the registry")

	for _, r := range roles {
		cmd.AddCommand(&cobra.Command{
			Use:   r.use,
			Short: r.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if listen != "" {
					a.cfg.Agent.Listen = listen
				}
				if publicURL != "" {
					a.cfg.Agent.PublicURL = publicURL
				}
				return a.runAgent(cmd.Context(), r)
			},
		})
	}
	return cmd
}

func (a *app) runAgent(ctx context.Context, r role) error {
	if a.cfg.Agent.Listen == "" {
		a.cfg.Agent.Listen = r.listen
	}
	coord := a.coordinator()
	if err := a.tracing(ctx, r.use, coord); err != nil {
		return err
	}

	c, err := r.build(a, coord)
	if err != nil {
		return err
	}
	d := r.descriptor(a.cfg.AdvertisedURL())
	srv := agent.NewServer(a.cfg.Agent.Listen, c, d, a.logger)
	coord.RegisterWithPhase(d.ID, srv, shutdown.PhaseListeners)

	client := a.discovery()
	if a.cfg.Agent.Reregister > 0 {
		keeper := discovery.NewKeeper(client, d, a.cfg.Agent.Reregister)
		if err := keeper.Start(context.Background()); err != nil {
			return err
		}
		coord.RegisterWithPhase("keeper", keeper, shutdown.PhaseRegistration)
	} else {
		// Unregistered agents still serve; the failure is logged.
		_ = client.RegisterSelf(ctx, d)
	}
	return serve(coord, srv.Start)
}

// scraper wires the fetch collaborator and an engine that reaches the
// critic and refiner through the registry.
func (a *app) scraper(coord *shutdown.Coordinator) (agent.Capability, error) {
	fetcher, err := a.fetcher()
	if err != nil {
		return nil, err
	}
	journal, err := a.journal(coord)
	if err != nil {
		return nil, err
	}

	oc := a.cfg.Orchestrator()
	oc.Logger = a.logger
	oc.Journal = journal
	engine := orchestrator.New(orchestrator.NewRemoteHop(a.discovery(), nil), oc)

	sc := agent.ScraperConfig{Fetcher: fetcher, Engine: engine, Logger: a.logger}
	if a.cfg.Web.Summarize {
		p, err := a.provider()
		if err != nil {
			return nil, err
		}
		sc.Summarizer = llm.NewSummarizer(p)
	}
	s, err := agent.NewScraper(sc)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// fetcher builds the web fetcher for the configured search service.
func (a *app) fetcher() (*web.Fetcher, error) {
	creds, err := a.credentials()
	if err != nil {
		return nil, err
	}
	keys, err := searchKeys(a.cfg.Web.Search, creds)
	if err != nil {
		return nil, err
	}

	limiter := ratelimit.NewMemoryLimiter()
	if n := a.cfg.Web.SearchPerMinute; n > 0 {
		limiter.SetCapacity(ratelimit.ResourceSearch, n, time.Minute)
	}
	if n := a.cfg.Web.PagesPerMinute; n > 0 {
		limiter.SetCapacity(ratelimit.ResourcePage, n, time.Minute)
	}

	return web.NewFetcher(web.NewSearcher(keys, nil), nil, web.Config{
		MaxResults: a.cfg.Web.MaxResults,
		Blocked:    a.cfg.Web.Blocked,
		CacheSize:  a.cfg.Web.CacheSize,
		Limiter:    limiter,
		Screen:     a.cfg.Web.Screen,
		Logger:     a.logger,
	})
}

// searchKeys selects the keys for service. "auto" offers every key found
// and lets the searcher pick; a named service must have its key.
func searchKeys(service string, creds *credentials.Credentials) (web.Keys, error) {
	var keys web.Keys
	switch service {
	case "", "auto":
		return web.Keys{
			SerpAPI: creds.SearchKey(credentials.SerpAPI),
			Brave:   creds.SearchKey(credentials.Brave),
			Tavily:  creds.SearchKey(credentials.Tavily),
		}, nil
	case "duckduckgo":
		return keys, nil
	case credentials.SerpAPI:
		keys.SerpAPI = creds.SearchKey(service)
	case credentials.Brave:
		keys.Brave = creds.SearchKey(service)
	case credentials.Tavily:
		keys.Tavily = creds.SearchKey(service)
	default:
		return keys, fmt.Errorf("unknown search service %q", service)
	}
	if keys == (web.Keys{}) {
		return keys, fmt.Errorf("no API key for %s search (set it in credentials.toml or the environment)", service)
	}
	return keys, nil
}
