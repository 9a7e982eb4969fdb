package render

import (
	"strings"
	"testing"

	"github.com/vinayprograms/refinery/pipeline"
)

func TestSanitize(t *testing.T) {
	tests := []struct{ in, want string }{
		{"plain text", "plain text"},
		{"✅ done", " done"},
		{"café résumé", "caf rsum"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Sanitize(tt.in); got != tt.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWrap(t *testing.T) {
	got := Wrap("the quick brown fox jumps", 10)
	want := []string{"the quick", "brown fox", "jumps"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("Wrap = %q, want %q", got, want)
	}

	got = Wrap("abcdefghijklmnop", 5)
	if strings.Join(got, "|") != "abcde|fghij|klmno|p" {
		t.Errorf("Wrap long word = %q", got)
	}

	got = Wrap("one\n\ntwo", 10)
	if strings.Join(got, "|") != "one||two" {
		t.Errorf("Wrap keeps blank lines: %q", got)
	}

	got = Wrap("  aaa bbb ccc", 9)
	if strings.Join(got, "|") != "  aaa bbb|  ccc" {
		t.Errorf("Wrap keeps indent: %q", got)
	}
}

func TestWrap_NeverExceedsWidth(t *testing.T) {
	text := strings.Repeat("lorem ipsum dolor sit amet consectetur ", 50)
	for _, l := range Wrap(text, Width) {
		if len(l) > Width {
			t.Fatalf("line of %d columns: %q", len(l), l)
		}
	}
}

func TestClip(t *testing.T) {
	if got := Clip("short", 10); got != "short" {
		t.Errorf("Clip short = %q", got)
	}
	long := strings.Repeat("x", 450)
	got := Clip(long, MaxTraceValue)
	if len(got) != MaxTraceValue+3 || !strings.HasSuffix(got, "...") {
		t.Errorf("Clip long len = %d", len(got))
	}
}

func sampleDoc() Document {
	return FromReply("What is recursion?", pipeline.Reply{
		Status:     pipeline.StatusComplete,
		Answer:     "Recursion is when a function calls itself. ✅",
		Score:      pipeline.Score(9),
		Iterations: 1,
		Trace: []pipeline.StepRecord{
			{Tool: "scraper", Status: pipeline.StatusOK, Phase: pipeline.PhaseScraped, Content: strings.Repeat("c", 600)},
			{Tool: "critic", Status: pipeline.StatusOK, Phase: pipeline.PhaseCritiqued, Score: pipeline.Score(6), Feedback: "add examples"},
			{Tool: "llm", Status: pipeline.StatusOK, Phase: pipeline.PhaseRefined},
			{Tool: "critic", Status: pipeline.StatusOK, Phase: pipeline.PhaseCritiqued, Score: pipeline.Score(9), Feedback: "good", Iteration: 1},
		},
	})
}

func TestText(t *testing.T) {
	out := string(Text(sampleDoc()))

	for _, want := range []string{
		"Question: What is recursion?",
		"Final Answer:",
		"Recursion is when a function calls itself.",
		"Status: complete | Score: 9 | Iterations: 1",
		"Step 1 - Tool: scraper",
		"Step 4 - Tool: critic",
		"  score: 6",
		"  feedback: add examples",
		"  iteration: 1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Text output missing %q", want)
		}
	}
	for _, r := range out {
		if r >= 0x80 {
			t.Fatalf("non-ASCII rune %q in output", r)
		}
	}
	for _, l := range strings.Split(out, "\n") {
		if len(l) > Width {
			t.Errorf("line exceeds %d columns: %d", Width, len(l))
		}
	}
	if strings.Count(out, "c") > MaxTraceValue+50 {
		t.Error("scraper content was not clipped")
	}
}

func TestTerminal(t *testing.T) {
	out := Terminal(sampleDoc())
	for _, want := range []string{"What is recursion?", "COMPLETE", "Pipeline Trace", "scraper", "add examples"} {
		if !strings.Contains(out, want) {
			t.Errorf("Terminal output missing %q", want)
		}
	}

	empty := Terminal(Document{Status: pipeline.StatusError, Note: "No valid content found."})
	if !strings.Contains(empty, "[No answer returned]") || !strings.Contains(empty, "No valid content found.") {
		t.Errorf("Terminal empty = %q", empty)
	}
}
