package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vinayprograms/refinery/pipeline"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	answerBox  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1).
			Width(Width)
	okStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("46"))
	warnStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	errStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
)

func statusStyle(s pipeline.Status) lipgloss.Style {
	switch s {
	case pipeline.StatusComplete, pipeline.StatusOK:
		return okStyle
	case pipeline.StatusIncomplete:
		return warnStyle
	}
	return errStyle
}

// Terminal renders doc for an interactive terminal.
func Terminal(doc Document) string {
	header := lipgloss.JoinHorizontal(lipgloss.Left,
		titleStyle.Render("Final Answer"),
		"  ",
		statusStyle(doc.Status).Render(strings.ToUpper(string(doc.Status))),
		"  ",
		labelStyle.Render(fmt.Sprintf("score %s | iterations %d", pipeline.FormatScore(doc.Score), doc.Iterations)),
	)

	answer := doc.Answer
	if answer == "" {
		answer = "[No answer returned]"
	}
	parts := []string{
		labelStyle.Render("Q: ") + doc.Question,
		header,
		answerBox.Render(answer),
	}
	if doc.Note != "" {
		parts = append(parts, warnStyle.Render("Note: ")+doc.Note)
	}

	if len(doc.Trace) > 0 {
		parts = append(parts, titleStyle.Render("Pipeline Trace"))
		for i, step := range doc.Trace {
			parts = append(parts, fmt.Sprintf("%s %s",
				labelStyle.Render(fmt.Sprintf("Step %d - Tool:", i+1)),
				statusStyle(step.Status).Render(step.Tool)))
			for _, f := range StepFields(step) {
				value := strings.ReplaceAll(Clip(f[1], MaxTraceValue), "\n", " ")
				parts = append(parts, fmt.Sprintf("   %s %s", labelStyle.Render("- "+f[0]+":"), value))
			}
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
