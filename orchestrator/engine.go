package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/vinayprograms/refinery/errors"
	"github.com/vinayprograms/refinery/logging"
	"github.com/vinayprograms/refinery/pipeline"
	"github.com/vinayprograms/refinery/telemetry"
)

// Notes attached to runs that end early.
const (
	NoteNoCritic  = "No critic found"
	NoteNoRefiner = "No LLM refiner found."
)

// Engine drives the critique/refine cycle for one envelope at a time.
// It holds no per-run state and is safe for concurrent use.
type Engine struct {
	hop Hop
	cfg Config
}

// New creates an engine that reaches agents through hop.
func New(hop Hop, cfg Config) *Engine {
	return &Engine{hop: hop, cfg: cfg.withDefaults()}
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// run is the state of one Run call.
type run struct {
	env        pipeline.Envelope
	answer     string
	feedback   string
	score      *float64
	iterations int
	logger     *logging.Logger
}

// Run takes an envelope whose trace already holds the producer's step and
// critiques and refines its answer until the score reaches the threshold,
// the iteration budget is spent or a hop fails. Failures never escape as
// errors: they end the run with status error and the best answer so far.
func (e *Engine) Run(ctx context.Context, env pipeline.Envelope) pipeline.Reply {
	start := time.Now()
	env = env.Clone()
	view := env.View()

	r := &run{
		env:        env,
		answer:     view.Answer,
		feedback:   view.Feedback,
		score:      view.Score,
		iterations: view.Iterations,
		logger:     e.cfg.Logger.WithComponent("orchestrator").WithRunID(env.RunID),
	}

	tracer := telemetry.GetTracer()
	ctx, span := tracer.StartRunSpan(ctx, env.RunID)

	reply := e.loop(ctx, r)
	reply.RunID = env.RunID

	tracer.EndRunSpan(span, string(reply.Status), reply.Iterations, len(reply.Trace))
	r.logger.PipelineComplete(string(reply.Status), string(reply.Phase), reply.Iterations, len(reply.Trace), time.Since(start))
	e.cfg.Journal.LogRun(telemetry.RunRecord{
		RunID:      env.RunID,
		Question:   env.Input,
		Status:     string(reply.Status),
		Phase:      string(reply.Phase),
		Score:      reply.Score,
		Iterations: reply.Iterations,
		Steps:      len(reply.Trace),
		Duration:   time.Since(start),
		Note:       reply.Note,
		Timestamp:  start,
	})
	return reply
}

func (e *Engine) loop(ctx context.Context, r *run) pipeline.Reply {
	// One critique per pass plus at most one refine; the pass count caps
	// refines at MaxIterations whatever the scores do.
	for pass := 0; pass <= e.cfg.MaxIterations; pass++ {
		got, err := e.critique(ctx, r)
		if err != nil {
			if errors.Is(err, errors.ErrCodeCapabilityMissing) && pass == 0 {
				return r.reply(pipeline.StatusOK, pipeline.PhaseScraped, NoteNoCritic)
			}
			return r.fail(e.cfg.CriticTag, err, got)
		}

		if *r.score >= e.cfg.ScoreThreshold || r.iterations >= e.cfg.MaxIterations || pass == e.cfg.MaxIterations {
			return r.reply(pipeline.StatusComplete, pipeline.PhaseComplete, "")
		}

		got, err = e.refine(ctx, r)
		if err != nil {
			if errors.Is(err, errors.ErrCodeCapabilityMissing) {
				return r.reply(pipeline.StatusIncomplete, pipeline.PhaseCritiqued, NoteNoRefiner)
			}
			return r.fail(e.cfg.RefinerTag, err, got)
		}
	}
	return r.reply(pipeline.StatusComplete, pipeline.PhaseComplete, "")
}

// critique sends the current answer to the critic. On success r carries
// the new score and feedback. On failure got is the trace the critic
// returned, if it returned a usable one.
func (e *Engine) critique(ctx context.Context, r *run) ([]pipeline.StepRecord, error) {
	tag := e.cfg.CriticTag
	sent := r.env.WithContext(pipeline.Context{
		Answer:     r.answer,
		Feedback:   r.feedback,
		Phase:      r.phase(),
		Iterations: r.iterations,
		Score:      r.score,
	}).WithIntent(pipeline.IntentEvaluate)

	reply, err := e.invoke(ctx, r, tag, sent)
	if err != nil {
		return nil, err
	}
	step, err := appended(tag, sent.Trace, reply)
	if err != nil {
		return nil, err
	}
	if reply.Status == pipeline.StatusError || step.Status == pipeline.StatusError {
		return reply.Trace, errors.MalformedResponse(tag, critiqueError(reply, step))
	}

	score := reply.Score
	if score == nil {
		score = step.Score
	}
	if score == nil {
		return nil, errors.MalformedResponse(tag, "no score")
	}
	r.env.Trace = reply.Trace
	r.score = pipeline.Score(*score)
	r.feedback = reply.Feedback
	if r.feedback == "" {
		r.feedback = step.Feedback
	}
	return reply.Trace, nil
}

// refine asks the refiner to rewrite the answer using the last feedback.
// A refiner that reports a generation failure in-band is not an error here:
// its record joins the trace and the answer stays as it was. Transport
// failures and replies that do not extend the trace are.
func (e *Engine) refine(ctx context.Context, r *run) ([]pipeline.StepRecord, error) {
	tag := e.cfg.RefinerTag
	sent := r.env.WithContext(pipeline.Context{
		Answer:     r.answer,
		Feedback:   r.feedback,
		Phase:      pipeline.PhaseRefined,
		Iterations: r.iterations + 1,
		Score:      r.score,
	}).WithIntent(pipeline.IntentRefine)

	reply, err := e.invoke(ctx, r, tag, sent)
	if err != nil {
		return nil, err
	}
	step, err := appended(tag, sent.Trace, reply)
	if err != nil {
		return nil, err
	}
	if reply.Status == pipeline.StatusError || step.Status == pipeline.StatusError {
		// The refiner recorded its own failure. The pass still counts and
		// the prior answer goes back to the critic.
		msg := step.Error
		if msg == "" {
			msg = reply.Error
		}
		r.logger.Warn("refine_failed", map[string]interface{}{
			"tag":       tag,
			"iteration": r.iterations + 1,
			"error":     msg,
		})
		r.env.Trace = reply.Trace
		r.iterations++
		return reply.Trace, nil
	}
	if reply.Answer == "" {
		return nil, errors.MalformedResponse(tag, "empty answer")
	}

	r.env.Trace = reply.Trace
	r.answer = reply.Answer
	r.iterations++
	return reply.Trace, nil
}

// invoke runs one hop under the per-hop timeout with logging and a span.
func (e *Engine) invoke(ctx context.Context, r *run, tag string, env pipeline.Envelope) (pipeline.Reply, error) {
	iteration := env.View().Iterations
	r.logger.HopStart(tag, string(env.Intent), iteration)

	tracer := telemetry.GetTracer()
	hopCtx, span := tracer.StartHopSpan(ctx, tag)
	hopCtx, cancel := context.WithTimeout(hopCtx, e.cfg.HopTimeout)
	defer cancel()

	start := time.Now()
	reply, err := e.hop.Invoke(hopCtx, tag, env)

	status := string(reply.Status)
	if err != nil {
		status = string(pipeline.StatusError)
	}
	tracer.EndHopSpan(span, telemetry.HopSpanOptions{
		Tag:       tag,
		Intent:    string(env.Intent),
		Iteration: iteration,
		Status:    status,
		Score:     reply.Score,
		Answer:    reply.Answer,
	}, err)

	if err != nil && errors.Is(err, errors.ErrCodeCapabilityMissing) {
		r.logger.ResolveMiss(tag, err)
		return reply, err
	}
	r.logger.HopComplete(tag, time.Since(start), status, err)
	return reply, err
}

// appended checks that reply's trace is the sent trace plus exactly one
// record and returns that record.
func appended(tag string, sent []pipeline.StepRecord, reply pipeline.Reply) (pipeline.StepRecord, error) {
	added, ok := pipeline.Extends(sent, reply.Trace)
	if !ok {
		return pipeline.StepRecord{}, errors.MalformedResponse(tag, "trace does not extend the one sent")
	}
	if len(added) != 1 {
		return pipeline.StepRecord{}, errors.MalformedResponse(tag,
			fmt.Sprintf("expected one new trace record, got %d", len(added)))
	}
	return added[0], nil
}

func critiqueError(reply pipeline.Reply, step pipeline.StepRecord) string {
	switch {
	case step.Error != "":
		return step.Error
	case reply.Error != "":
		return reply.Error
	case step.Feedback != "":
		return step.Feedback
	default:
		return "critic reported an error"
	}
}

func (r *run) phase() pipeline.Phase {
	if r.iterations == 0 {
		return pipeline.PhaseScraped
	}
	return pipeline.PhaseRefined
}

func (r *run) reply(status pipeline.Status, phase pipeline.Phase, note string) pipeline.Reply {
	return pipeline.Reply{
		Status:     status,
		Phase:      phase,
		Answer:     r.answer,
		Score:      r.score,
		Feedback:   r.feedback,
		Iterations: r.iterations,
		Trace:      cloneTrace(r.env.Trace),
		Note:       note,
	}
}

// fail ends the run after a hop failure. If the agent already recorded its
// own error step, got holds that trace; otherwise one error record is
// appended here.
func (r *run) fail(tag string, err error, got []pipeline.StepRecord) pipeline.Reply {
	if got != nil {
		r.env.Trace = got
	} else {
		r.env.Trace = append(r.env.Trace, pipeline.StepRecord{
			Tool:      tag,
			Status:    pipeline.StatusError,
			Phase:     pipeline.PhaseError,
			Error:     err.Error(),
			Iteration: r.iterations,
		})
	}
	r.logger.Warn("run_failed", map[string]interface{}{
		"tag":   tag,
		"code":  string(errors.Code(err)),
		"error": err.Error(),
	})
	out := r.reply(pipeline.StatusError, pipeline.PhaseError, "")
	out.Error = err.Error()
	return out
}
