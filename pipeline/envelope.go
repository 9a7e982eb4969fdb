package pipeline

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/google/uuid"
)

// Phase is where a run stands in the critique/refine cycle.
type Phase string

const (
	PhaseInitial   Phase = "initial"
	PhaseScraped   Phase = "scraped"
	PhaseCritiqued Phase = "critiqued"
	PhaseRefined   Phase = "refined"
	PhaseComplete  Phase = "complete"
	PhaseError     Phase = "error"
)

// Status is the outcome of a step or of a whole run.
type Status string

const (
	StatusOK         Status = "ok"
	StatusError      Status = "error"
	StatusComplete   Status = "complete"
	StatusIncomplete Status = "incomplete"
)

// Terminal reports whether a run with this status is finished.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusError || s == StatusIncomplete
}

// Intent tells the receiving agent what is being asked of it.
type Intent string

const (
	IntentEvaluate Intent = "evaluate_scraped_content"
	IntentRefine   Intent = "refine_low_score_response"
	IntentAsk      Intent = "ask"
)

// Context keys understood by every agent.
const (
	KeyAnswer     = "answer"
	KeyFeedback   = "feedback"
	KeyPhase      = "phase"
	KeyIterations = "iterations"
	KeyScore      = "score"
)

// Envelope is the message passed from hop to hop.
type Envelope struct {
	Input   string         `json:"input"`
	Context map[string]any `json:"context"`
	Trace   []StepRecord   `json:"pipeline_trace"`
	Intent  Intent         `json:"intent,omitempty"`
	RunID   string         `json:"run_id,omitempty"`
}

// New starts an envelope for question with a fresh run ID.
func New(question string) Envelope {
	return Envelope{
		Input:   question,
		Context: map[string]any{KeyPhase: string(PhaseInitial), KeyIterations: 0},
		Trace:   []StepRecord{},
		RunID:   uuid.NewString(),
	}
}

// Clone returns a deep copy. Each hop works on its own copy so a callee
// can never reach back into the caller's trace.
func (e Envelope) Clone() Envelope {
	c := e
	c.Context = make(map[string]any, len(e.Context))
	for k, v := range e.Context {
		c.Context[k] = v
	}
	c.Trace = make([]StepRecord, len(e.Trace))
	for i, s := range e.Trace {
		c.Trace[i] = s.Clone()
	}
	return c
}

// WithStep returns a copy with rec appended to the trace.
func (e Envelope) WithStep(rec StepRecord) Envelope {
	c := e.Clone()
	c.Trace = append(c.Trace, rec.Clone())
	return c
}

// WithIntent returns a copy with the intent replaced.
func (e Envelope) WithIntent(intent Intent) Envelope {
	c := e.Clone()
	c.Intent = intent
	return c
}

// View decodes the well-known context keys.
func (e Envelope) View() Context {
	var c Context
	if v, ok := e.Context[KeyAnswer].(string); ok {
		c.Answer = v
	}
	if v, ok := e.Context[KeyFeedback].(string); ok {
		c.Feedback = v
	}
	if v, ok := e.Context[KeyPhase].(string); ok {
		c.Phase = Phase(v)
	} else if v, ok := e.Context[KeyPhase].(Phase); ok {
		c.Phase = v
	}
	if n, ok := toFloat(e.Context[KeyIterations]); ok {
		c.Iterations = int(n)
	}
	if n, ok := toFloat(e.Context[KeyScore]); ok {
		c.Score = Score(n)
	}
	return c
}

// WithContext returns a copy whose well-known keys are set from c. Keys the
// pipeline does not know about are preserved.
func (e Envelope) WithContext(c Context) Envelope {
	out := e.Clone()
	out.Context[KeyAnswer] = c.Answer
	out.Context[KeyFeedback] = c.Feedback
	out.Context[KeyPhase] = string(c.Phase)
	out.Context[KeyIterations] = c.Iterations
	if c.Score != nil {
		out.Context[KeyScore] = *c.Score
	} else {
		delete(out.Context, KeyScore)
	}
	return out
}

// Context is the typed view of the envelope's context map.
type Context struct {
	Answer     string
	Feedback   string
	Phase      Phase
	Iterations int
	Score      *float64
}

// StepRecord is one entry in the execution trace.
type StepRecord struct {
	Tool      string   `json:"tool"`
	Status    Status   `json:"status"`
	Phase     Phase    `json:"phase,omitempty"`
	Score     *float64 `json:"score,omitempty"`
	Feedback  string   `json:"feedback,omitempty"`
	Content   string   `json:"content,omitempty"`
	Error     string   `json:"error,omitempty"`
	Iteration int      `json:"iteration"`
}

// Clone returns a copy that shares no pointers with s.
func (s StepRecord) Clone() StepRecord {
	if s.Score != nil {
		s.Score = Score(*s.Score)
	}
	return s
}

// Equal compares two records field by field.
func (s StepRecord) Equal(o StepRecord) bool {
	if (s.Score == nil) != (o.Score == nil) {
		return false
	}
	if s.Score != nil && *s.Score != *o.Score {
		return false
	}
	return s.Tool == o.Tool && s.Status == o.Status && s.Phase == o.Phase &&
		s.Feedback == o.Feedback && s.Content == o.Content && s.Error == o.Error &&
		s.Iteration == o.Iteration
}

// Reply is what an agent returns for an envelope.
type Reply struct {
	Status     Status       `json:"status"`
	Phase      Phase        `json:"phase,omitempty"`
	Answer     string       `json:"answer,omitempty"`
	Score      *float64     `json:"score,omitempty"`
	Feedback   string       `json:"feedback,omitempty"`
	Iterations int          `json:"iterations"`
	Trace      []StepRecord `json:"pipeline_trace"`
	Note       string       `json:"note,omitempty"`
	Error      string       `json:"error,omitempty"`
	RunID      string       `json:"run_id,omitempty"`
}

// LastStep returns the final trace record, if any.
func (r Reply) LastStep() (StepRecord, bool) {
	if len(r.Trace) == 0 {
		return StepRecord{}, false
	}
	return r.Trace[len(r.Trace)-1], true
}

// Extends reports whether got is sent with one or more records appended,
// and returns the appended records.
func Extends(sent, got []StepRecord) ([]StepRecord, bool) {
	if len(got) <= len(sent) {
		return nil, false
	}
	for i := range sent {
		if !sent[i].Equal(got[i]) {
			return nil, false
		}
	}
	return got[len(sent):], true
}

// Score returns a pointer to v.
func Score(v float64) *float64 {
	return &v
}

// FormatScore renders a score for display, or "-" when absent.
func FormatScore(s *float64) string {
	if s == nil {
		return "-"
	}
	if *s == math.Trunc(*s) {
		return fmt.Sprintf("%.0f", *s)
	}
	return fmt.Sprintf("%.1f", *s)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
