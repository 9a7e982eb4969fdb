package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/vinayprograms/refinery/pipeline"
)

const (
	// Width is the column at which Text wraps long lines.
	Width = 90

	// MaxTraceValue is how many characters of a trace field are shown.
	MaxTraceValue = 400
)

// Document is a finished run ready for display.
type Document struct {
	Question   string
	Answer     string
	Status     pipeline.Status
	Score      *float64
	Iterations int
	Note       string
	Trace      []pipeline.StepRecord
}

// FromReply builds a Document from the reply to question.
func FromReply(question string, r pipeline.Reply) Document {
	return Document{
		Question:   question,
		Answer:     r.Answer,
		Status:     r.Status,
		Score:      r.Score,
		Iterations: r.Iterations,
		Note:       r.Note,
		Trace:      r.Trace,
	}
}

// Sanitize removes every non-ASCII character.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x80 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Wrap breaks each line of s into lines of at most width columns, splitting
// on spaces. Leading indentation is repeated on continuation lines, words
// longer than the room left are split, and blank lines are kept.
func Wrap(s string, width int) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		indent := line[:len(line)-len(strings.TrimLeft(line, " "))]
		room := width - len(indent)
		if room < 1 {
			indent, room = "", width
		}
		words := strings.Fields(line)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}
		var cur string
		flush := func() {
			if cur != "" {
				out = append(out, indent+cur)
				cur = ""
			}
		}
		for _, w := range words {
			for len(w) > room {
				flush()
				out = append(out, indent+w[:room])
				w = w[room:]
			}
			switch {
			case cur == "":
				cur = w
			case len(cur)+1+len(w) <= room:
				cur += " " + w
			default:
				flush()
				cur = w
			}
		}
		flush()
	}
	return out
}

// Clip shortens s to n characters, marking the cut with "...".
func Clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// StepFields returns the displayable fields of a trace record in a fixed
// order, skipping empty ones.
func StepFields(s pipeline.StepRecord) [][2]string {
	fields := [][2]string{{"status", string(s.Status)}}
	add := func(k, v string) {
		if v != "" {
			fields = append(fields, [2]string{k, v})
		}
	}
	add("phase", string(s.Phase))
	if s.Score != nil {
		add("score", pipeline.FormatScore(s.Score))
	}
	add("feedback", s.Feedback)
	add("content", s.Content)
	add("error", s.Error)
	if s.Iteration > 0 {
		add("iteration", fmt.Sprint(s.Iteration))
	}
	return fields
}

// Text renders doc as ASCII plain text wrapped at Width columns.
func Text(doc Document) []byte {
	var buf bytes.Buffer
	line := func(s string) {
		for _, l := range Wrap(Sanitize(s), Width) {
			buf.WriteString(l)
			buf.WriteByte('\n')
		}
	}

	line("Question: " + doc.Question)
	buf.WriteByte('\n')
	line("Final Answer:")
	line(doc.Answer)
	buf.WriteByte('\n')
	line(fmt.Sprintf("Status: %s | Score: %s | Iterations: %d", doc.Status, pipeline.FormatScore(doc.Score), doc.Iterations))
	if doc.Note != "" {
		line("Note: " + doc.Note)
	}

	if len(doc.Trace) > 0 {
		buf.WriteByte('\n')
		line("Pipeline Trace:")
		for i, step := range doc.Trace {
			line(fmt.Sprintf("Step %d - Tool: %s", i+1, step.Tool))
			for _, f := range StepFields(step) {
				line(fmt.Sprintf("  %s: %s", f[0], Clip(f[1], MaxTraceValue)))
			}
		}
	}
	return buf.Bytes()
}
