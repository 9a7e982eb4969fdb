package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/vinayprograms/refinery/errors"
	"github.com/vinayprograms/refinery/llm"
	"github.com/vinayprograms/refinery/logging"
	"github.com/vinayprograms/refinery/pipeline"
)

const refinerPrompt = `You are a helpful AI tutor tasked with improving an assistant's answer based on critique feedback.

Question:
%s

Original Answer:
%s

Critic Feedback:
%s

Update the answer to address **every issue** raised by the critic. Be specific, concise, and clear. Add test cases, examples, and ensure technical accuracy. Avoid vague tips or filler content.

Return only the improved answer below:
`

// Refiner rewrites an answer to address critic feedback.
type Refiner struct {
	provider llm.Provider
	logger   *logging.Logger
}

// NewRefiner creates a refiner that generates with provider.
func NewRefiner(provider llm.Provider, logger *logging.Logger) *Refiner {
	if logger == nil {
		logger = logging.New()
	}
	return &Refiner{provider: provider, logger: logger.WithComponent("refiner")}
}

// Tag implements Capability.
func (r *Refiner) Tag() string { return TagRefiner }

// Run implements Capability. A failed generation is reported with status
// error and the prior answer unchanged.
func (r *Refiner) Run(ctx context.Context, env pipeline.Envelope) (pipeline.Reply, error) {
	v := env.View()
	if strings.TrimSpace(env.Input) == "" {
		return pipeline.Reply{}, errors.InvalidInput("refiner needs a question")
	}
	r.logger.Info("refine", map[string]interface{}{"iteration": v.Iterations})

	improved, err := llm.Generate(ctx, r.provider, fmt.Sprintf(refinerPrompt, env.Input, v.Answer, v.Feedback),
		llm.WithTemperature(0.5))
	if err != nil {
		r.logger.Error("generation_failed", map[string]interface{}{"error": err.Error()})
		out := env.WithStep(pipeline.StepRecord{
			Tool:      TagRefiner,
			Status:    pipeline.StatusError,
			Phase:     pipeline.PhaseRefined,
			Error:     err.Error(),
			Iteration: v.Iterations,
		})
		return pipeline.Reply{
			Status:     pipeline.StatusError,
			Phase:      pipeline.PhaseRefined,
			Answer:     v.Answer,
			Iterations: v.Iterations,
			Trace:      out.Trace,
			Error:      err.Error(),
			RunID:      env.RunID,
		}, nil
	}

	out := env.WithStep(pipeline.StepRecord{
		Tool:      TagRefiner,
		Status:    pipeline.StatusOK,
		Phase:     pipeline.PhaseRefined,
		Iteration: v.Iterations,
	})
	return pipeline.Reply{
		Status:     pipeline.StatusComplete,
		Phase:      pipeline.PhaseRefined,
		Answer:     improved,
		Iterations: v.Iterations,
		Trace:      out.Trace,
		RunID:      env.RunID,
	}, nil
}
