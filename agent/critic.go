package agent

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/vinayprograms/refinery/errors"
	"github.com/vinayprograms/refinery/llm"
	"github.com/vinayprograms/refinery/logging"
	"github.com/vinayprograms/refinery/pipeline"
)

const criticPrompt = `You are an educational critic reviewing an AI assistant's web-scraped answer to a student's question.

Question:
%s

Assistant's Answer:
%s

Critique the answer constructively. Then provide a numeric score from 1 (poor) to 10 (excellent). Output your response in **strict JSON** format like this:

{
  "score": <1-10>,
  "feedback": "<clear constructive feedback>"
}`

// Feedback recorded when the critic cannot produce a usable critique.
const (
	FeedbackInvalid    = "[Invalid JSON format]"
	FeedbackNoFeedback = "[No feedback returned]"
)

// ErrUnparseable is returned by ParseCritique when text holds neither a
// JSON critique nor "Score:" and "Feedback:" lines.
var ErrUnparseable = stderrors.New("critique has no score")

var (
	scoreLine    = regexp.MustCompile(`(?im)^\s*\**score\**\s*[:=]\s*(-?\d+(?:\.\d+)?)`)
	feedbackLine = regexp.MustCompile(`(?ims)^\s*\**feedback\**\s*[:=]\s*(.+)`)
)

// Critique is a parsed score and feedback.
type Critique struct {
	Score    float64
	Feedback string
}

// ParseCritique reads the first JSON object holding a score from text. If
// there is none it falls back to "Score: n" and "Feedback: ..." lines.
func ParseCritique(text string) (Critique, error) {
	if c, ok := parseJSONCritique(text); ok {
		return c, nil
	}

	m := scoreLine.FindStringSubmatch(text)
	if m == nil {
		return Critique{}, ErrUnparseable
	}
	score, err := strconv.ParseFloat(m[1], 64)
	if err != nil || !finite(score) {
		return Critique{}, ErrUnparseable
	}
	c := Critique{Score: score, Feedback: FeedbackNoFeedback}
	if f := feedbackLine.FindStringSubmatch(text); f != nil {
		if fb := strings.TrimSpace(f[1]); fb != "" {
			c.Feedback = fb
		}
	}
	return c, nil
}

// parseJSONCritique tries every '{' in text as the start of a JSON object.
func parseJSONCritique(text string) (Critique, bool) {
	for i := strings.IndexByte(text, '{'); i >= 0; {
		var raw map[string]any
		dec := json.NewDecoder(strings.NewReader(text[i:]))
		dec.UseNumber()
		if err := dec.Decode(&raw); err == nil {
			if c, ok := critiqueFromMap(raw); ok {
				return c, true
			}
		}
		next := strings.IndexByte(text[i+1:], '{')
		if next < 0 {
			break
		}
		i += next + 1
	}
	return Critique{}, false
}

func critiqueFromMap(raw map[string]any) (Critique, bool) {
	v, ok := raw["score"]
	if !ok {
		return Critique{}, false
	}
	var score float64
	switch s := v.(type) {
	case json.Number:
		f, err := s.Float64()
		if err != nil {
			return Critique{}, false
		}
		score = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return Critique{}, false
		}
		score = f
	default:
		return Critique{}, false
	}
	if !finite(score) {
		return Critique{}, false
	}

	c := Critique{Score: score, Feedback: FeedbackNoFeedback}
	if fb, ok := raw["feedback"].(string); ok && strings.TrimSpace(fb) != "" {
		c.Feedback = fb
	}
	return c, true
}

// finite rejects the NaN and infinities ParseFloat accepts; they compare
// false against any threshold and cannot be encoded as JSON.
func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Critic scores an answer with an LLM. It never forwards the envelope;
// the orchestrator decides what happens next.
type Critic struct {
	provider llm.Provider
	logger   *logging.Logger
}

// NewCritic creates a critic that generates with provider.
func NewCritic(provider llm.Provider, logger *logging.Logger) *Critic {
	if logger == nil {
		logger = logging.New()
	}
	return &Critic{provider: provider, logger: logger.WithComponent("critic")}
}

// Tag implements Capability.
func (c *Critic) Tag() string { return TagCritic }

// Run implements Capability.
func (c *Critic) Run(ctx context.Context, env pipeline.Envelope) (pipeline.Reply, error) {
	v := env.View()
	if strings.TrimSpace(env.Input) == "" {
		return pipeline.Reply{}, errors.InvalidInput("critic needs a question")
	}
	c.logger.Info("critique", map[string]interface{}{
		"phase":     string(v.Phase),
		"iteration": v.Iterations,
	})

	text, err := llm.Generate(ctx, c.provider, fmt.Sprintf(criticPrompt, env.Input, v.Answer),
		llm.WithTemperature(0.2))
	if err != nil {
		c.logger.Error("generation_failed", map[string]interface{}{"error": err.Error()})
		return c.failed(env, v, fmt.Sprintf("[Error: %v]", err), err.Error()), nil
	}
	c.logger.Debug("raw_critique", map[string]interface{}{"text": text})

	crit, err := ParseCritique(text)
	if err != nil {
		c.logger.Warn("unparseable_critique", map[string]interface{}{"error": err.Error()})
		return c.failed(env, v, FeedbackInvalid, err.Error()), nil
	}

	score := pipeline.Score(crit.Score)
	out := env.WithStep(pipeline.StepRecord{
		Tool:      TagCritic,
		Status:    pipeline.StatusOK,
		Phase:     pipeline.PhaseCritiqued,
		Score:     score,
		Feedback:  crit.Feedback,
		Iteration: v.Iterations,
	})
	return pipeline.Reply{
		Status:     pipeline.StatusOK,
		Phase:      pipeline.PhaseCritiqued,
		Answer:     v.Answer,
		Score:      score,
		Feedback:   crit.Feedback,
		Iterations: v.Iterations,
		Trace:      out.Trace,
		RunID:      env.RunID,
	}, nil
}

func (c *Critic) failed(env pipeline.Envelope, v pipeline.Context, feedback, msg string) pipeline.Reply {
	out := env.WithStep(pipeline.StepRecord{
		Tool:      TagCritic,
		Status:    pipeline.StatusError,
		Phase:     pipeline.PhaseCritiqued,
		Score:     pipeline.Score(0),
		Feedback:  feedback,
		Error:     msg,
		Iteration: v.Iterations,
	})
	return pipeline.Reply{
		Status:     pipeline.StatusError,
		Phase:      pipeline.PhaseCritiqued,
		Answer:     v.Answer,
		Iterations: v.Iterations,
		Trace:      out.Trace,
		Error:      msg,
		RunID:      env.RunID,
	}
}
