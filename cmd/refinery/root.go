package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vinayprograms/refinery/config"
	"github.com/vinayprograms/refinery/credentials"
	"github.com/vinayprograms/refinery/discovery"
	"github.com/vinayprograms/refinery/llm"
	"github.com/vinayprograms/refinery/logging"
	"github.com/vinayprograms/refinery/shutdown"
	"github.com/vinayprograms/refinery/telemetry"
)

// defaultConfigFile is read from the working directory when --config is not
// given and the file exists.
const defaultConfigFile = "refinery.toml"

// app carries what every subcommand needs once flags are parsed.
type app struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *logging.Logger
	creds  *credentials.Credentials
}

func newRootCommand() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "refinery",
		Short: "Scrape, critique and refine answers across discoverable agents",
		Long: `Refinery answers a question by scraping web content, then letting a critic
agent score it and an LLM agent refine it until the score passes the threshold
or the iteration budget runs out. Agents find each other through a registry.`,
		Version:           fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:      true,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}
	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to refinery.toml")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error")

	cmd.AddCommand(
		newRegistryCommand(a),
		newAgentCommand(a),
		newAskCommand(a),
		newListCommand(a),
	)
	return cmd
}

func (a *app) load() error {
	path := a.configPath
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			path = defaultConfigFile
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	a.cfg = cfg
	a.logger = logging.New()
	a.logger.SetLevel(logging.ParseLevel(cfg.Log.Level))
	return nil
}

func (a *app) discovery() *discovery.Client {
	return discovery.New(discovery.Config{
		RegistryURL: a.cfg.Registry.URL,
		Logger:      a.logger,
	})
}

func (a *app) coordinator() *shutdown.Coordinator {
	return shutdown.NewCoordinator(shutdown.Config{Logger: a.logger})
}

func (a *app) credentials() (*credentials.Credentials, error) {
	if a.creds != nil {
		return a.creds, nil
	}
	creds, path, err := credentials.Load()
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	if path != "" {
		a.logger.Debug("credentials loaded", map[string]interface{}{"path": path})
	}
	a.creds = creds
	return creds, nil
}

// provider builds the configured LLM with its key from credentials.toml or
// the environment.
func (a *app) provider() (llm.Provider, error) {
	creds, err := a.credentials()
	if err != nil {
		return nil, err
	}
	pc := a.cfg.LLM
	if pc.Provider == "" {
		pc.Provider = llm.InferProviderFromModel(pc.Model)
	}
	pc.APIKey = creds.GetAPIKey(pc.Provider)
	p, err := llm.NewProvider(pc)
	if err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}
	return llm.WithTracing(p, pc.Provider), nil
}

// tracing starts the OTLP exporter when an endpoint is configured.
func (a *app) tracing(ctx context.Context, service string, coord *shutdown.Coordinator) error {
	tc := a.cfg.Tracing(service)
	tc.Version = version
	if !tc.Enabled() {
		return nil
	}
	exp, err := telemetry.Start(ctx, tc)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	coord.RegisterWithPhase("telemetry", exp, shutdown.PhaseFlush)
	return nil
}

// journal opens the run journal and closes it on shutdown.
func (a *app) journal(coord *shutdown.Coordinator) (telemetry.Journal, error) {
	j, err := telemetry.NewJournal(a.cfg.Telemetry.Journal, a.cfg.Telemetry.JournalEndpoint)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	coord.RegisterFunc("journal", func(context.Context) error { return j.Close() }, shutdown.PhaseFlush)
	return j, nil
}

// serve runs start until it fails or the coordinator finishes shutting down
// after a signal.
func serve(coord *shutdown.Coordinator, start func() error) error {
	coord.HandleSignals()

	errCh := make(chan error, 1)
	go func() { errCh <- start() }()

	select {
	case err := <-errCh:
		if err != nil {
			ctx, cancel := context.WithTimeout(context.Background(), shutdown.DefaultConfig().Timeout)
			defer cancel()
			_ = coord.Shutdown(ctx)
			return err
		}
		<-coord.Done()
	case <-coord.Done():
	}
	return coord.Err()
}
