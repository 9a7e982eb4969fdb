package pipeline

import (
	"encoding/json"
	"testing"
)

func TestNew(t *testing.T) {
	e := New("What is Go?")
	if e.Input != "What is Go?" {
		t.Errorf("Input = %q", e.Input)
	}
	if e.RunID == "" {
		t.Error("RunID should be set")
	}
	v := e.View()
	if v.Phase != PhaseInitial || v.Iterations != 0 {
		t.Errorf("View() = %+v", v)
	}
	if e.Trace == nil {
		t.Error("Trace should be non-nil so it encodes as []")
	}
}

func TestEnvelope_WithStepDoesNotAlias(t *testing.T) {
	base := New("q").WithStep(StepRecord{Tool: "scraper", Status: StatusOK, Phase: PhaseScraped})
	next := base.WithStep(StepRecord{Tool: "critic", Status: StatusOK, Score: Score(7)})

	if len(base.Trace) != 1 {
		t.Errorf("base trace len = %d, want 1", len(base.Trace))
	}
	if len(next.Trace) != 2 {
		t.Errorf("next trace len = %d, want 2", len(next.Trace))
	}

	*next.Trace[1].Score = 1
	next.Trace[0].Tool = "mutated"
	if base.Trace[0].Tool != "scraper" {
		t.Error("WithStep should deep-copy the trace")
	}
}

func TestEnvelope_CloneContext(t *testing.T) {
	e := New("q")
	c := e.Clone()
	c.Context["extra"] = "x"
	if _, ok := e.Context["extra"]; ok {
		t.Error("Clone should copy the context map")
	}
}

func TestEnvelope_ViewAfterJSON(t *testing.T) {
	e := New("q").WithContext(Context{
		Answer:     "Go is a language.",
		Feedback:   "too short",
		Phase:      PhaseRefined,
		Iterations: 2,
		Score:      Score(6.5),
	})
	e.Context["custom"] = true

	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	var got Envelope
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}

	v := got.View()
	if v.Answer != "Go is a language." || v.Feedback != "too short" {
		t.Errorf("View() text = %+v", v)
	}
	if v.Phase != PhaseRefined {
		t.Errorf("Phase = %q", v.Phase)
	}
	if v.Iterations != 2 {
		t.Errorf("Iterations = %d, want 2", v.Iterations)
	}
	if v.Score == nil || *v.Score != 6.5 {
		t.Errorf("Score = %v", v.Score)
	}
	if got.Context["custom"] != true {
		t.Error("unknown keys should survive")
	}
}

func TestEnvelope_WithContextClearsScore(t *testing.T) {
	e := New("q").WithContext(Context{Score: Score(3)})
	e = e.WithContext(Context{Phase: PhaseRefined})
	if _, ok := e.Context[KeyScore]; ok {
		t.Error("nil score should remove the key")
	}
}

func TestExtends(t *testing.T) {
	a := StepRecord{Tool: "scraper", Status: StatusOK}
	b := StepRecord{Tool: "critic", Status: StatusOK, Score: Score(5)}
	c := StepRecord{Tool: "llm", Status: StatusOK}

	tests := []struct {
		name      string
		sent, got []StepRecord
		wantOK    bool
		wantAdded int
	}{
		{"one appended", []StepRecord{a}, []StepRecord{a, b}, true, 1},
		{"two appended", []StepRecord{a}, []StepRecord{a, b, c}, true, 2},
		{"nothing appended", []StepRecord{a}, []StepRecord{a}, false, 0},
		{"truncated", []StepRecord{a, b}, []StepRecord{b}, false, 0},
		{"rewritten", []StepRecord{a, b}, []StepRecord{a, c, b}, false, 0},
		{"score changed", []StepRecord{b}, []StepRecord{{Tool: "critic", Status: StatusOK, Score: Score(9)}, c}, false, 0},
		{"from empty", nil, []StepRecord{a}, true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			added, ok := Extends(tt.sent, tt.got)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if len(added) != tt.wantAdded {
				t.Errorf("added = %d, want %d", len(added), tt.wantAdded)
			}
		})
	}
}

func TestStatus_Terminal(t *testing.T) {
	if StatusOK.Terminal() {
		t.Error("ok is not terminal")
	}
	for _, s := range []Status{StatusComplete, StatusError, StatusIncomplete} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}

func TestFormatScore(t *testing.T) {
	if FormatScore(nil) != "-" {
		t.Error("nil score")
	}
	if FormatScore(Score(9)) != "9" {
		t.Errorf("FormatScore(9) = %q", FormatScore(Score(9)))
	}
	if FormatScore(Score(7.25)) != "7.2" && FormatScore(Score(7.25)) != "7.3" {
		t.Errorf("FormatScore(7.25) = %q", FormatScore(Score(7.25)))
	}
}

func TestReply_JSONFieldNames(t *testing.T) {
	r := Reply{Status: StatusIncomplete, Note: "No LLM refiner found.", Trace: []StepRecord{}}
	data, _ := json.Marshal(r)
	var m map[string]any
	json.Unmarshal(data, &m)
	if _, ok := m["pipeline_trace"]; !ok {
		t.Errorf("missing pipeline_trace in %s", data)
	}
	if m["note"] != "No LLM refiner found." {
		t.Errorf("note = %v", m["note"])
	}
}
