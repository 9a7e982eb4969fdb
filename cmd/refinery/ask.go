package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vinayprograms/refinery/agent"
	"github.com/vinayprograms/refinery/errors"
	"github.com/vinayprograms/refinery/llm"
	"github.com/vinayprograms/refinery/orchestrator"
	"github.com/vinayprograms/refinery/pipeline"
	"github.com/vinayprograms/refinery/render"
	"github.com/vinayprograms/refinery/telemetry"
)

func newAskCommand(a *app) *cobra.Command {
	var plain, local bool
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question through the pipeline",
		Long: `Ask resolves the agent tagged "entry" in the registry and posts the question
to its ask endpoint. With --local the scraper, critic and refiner run in this
process and no registry is needed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.TrimSpace(strings.Join(args, " "))
			if question == "" {
				return errors.InvalidInput("question is empty")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Pipeline.ClientTimeout)
			defer cancel()

			var reply pipeline.Reply
			var err error
			if local {
				reply, err = a.askLocal(ctx, question)
			} else {
				reply, err = a.askRemote(ctx, question)
			}
			if err != nil {
				return err
			}

			doc := render.FromReply(question, reply)
			out := cmd.OutOrStdout()
			if plain {
				_, err = out.Write(render.Text(doc))
				return err
			}
			_, err = fmt.Fprintln(out, render.Terminal(doc))
			return err
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "print ASCII text instead of styled output")
	cmd.Flags().BoolVar(&local, "local", false, "run every agent in this process")
	return cmd
}

func (a *app) askRemote(ctx context.Context, question string) (pipeline.Reply, error) {
	endpoint, ok := a.discovery().ResolveEndpoint(ctx, agent.TagEntry, "ask")
	if !ok {
		return pipeline.Reply{}, errors.ResolutionFailure(agent.TagEntry, fmt.Errorf("no agent with an ask endpoint is registered at %s", a.cfg.Registry.URL))
	}

	body, err := json.Marshal(agent.AskRequest{Question: question})
	if err != nil {
		return pipeline.Reply{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return pipeline.Reply{}, errors.RemoteInvocationFailure(agent.TagEntry, err)
	}
	req.Header.Set("Content-Type", "application/json")
	telemetry.InjectHTTP(ctx, req.Header)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return pipeline.Reply{}, errors.RemoteInvocationFailure(agent.TagEntry, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return pipeline.Reply{}, errors.RemoteInvocationFailure(agent.TagEntry, err)
	}
	if resp.StatusCode != http.StatusOK {
		var e agent.ErrorResponse
		if json.Unmarshal(data, &e) == nil && e.Detail != "" {
			return pipeline.Reply{}, errors.RemoteInvocationFailure(agent.TagEntry, fmt.Errorf("HTTP %d: %s", resp.StatusCode, e.Detail))
		}
		return pipeline.Reply{}, errors.RemoteInvocationFailure(agent.TagEntry, fmt.Errorf("HTTP %d", resp.StatusCode))
	}

	var reply pipeline.Reply
	if err := json.Unmarshal(data, &reply); err != nil {
		return pipeline.Reply{}, errors.MalformedResponse(agent.TagEntry, err.Error())
	}
	return reply, nil
}

// askLocal runs the whole pipeline in-process over a LocalHop.
func (a *app) askLocal(ctx context.Context, question string) (pipeline.Reply, error) {
	p, err := a.provider()
	if err != nil {
		return pipeline.Reply{}, err
	}
	fetcher, err := a.fetcher()
	if err != nil {
		return pipeline.Reply{}, err
	}

	hop := orchestrator.NewLocalHop()
	hop.Add(agent.TagCritic, agent.NewCritic(p, a.logger))
	hop.Add(agent.TagRefiner, agent.NewRefiner(p, a.logger))

	oc := a.cfg.Orchestrator()
	oc.Logger = a.logger
	sc := agent.ScraperConfig{Fetcher: fetcher, Engine: orchestrator.New(hop, oc), Logger: a.logger}
	if a.cfg.Web.Summarize {
		sc.Summarizer = llm.NewSummarizer(p)
	}
	scraper, err := agent.NewScraper(sc)
	if err != nil {
		return pipeline.Reply{}, err
	}
	return scraper.Run(ctx, pipeline.New(question).WithIntent(pipeline.IntentAsk))
}
