package render

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vinayprograms/refinery/registry"
)

// AgentsText lists registered agents one per line as
// "id  version  tags  a2a-endpoint", sorted by ID.
func AgentsText(ds []registry.Descriptor) []byte {
	var buf bytes.Buffer
	for _, d := range sortedByID(ds) {
		fmt.Fprintf(&buf, "%s\t%s\t%s\t%s\n", d.ID, d.Version, strings.Join(d.Tags, ","), d.Endpoint("a2a"))
	}
	return buf.Bytes()
}

// AgentsTerminal lists registered agents for an interactive terminal.
func AgentsTerminal(ds []registry.Descriptor) string {
	if len(ds) == 0 {
		return warnStyle.Render("No agents registered")
	}
	parts := []string{titleStyle.Render(fmt.Sprintf("Registered agents (%d)", len(ds)))}
	for _, d := range sortedByID(ds) {
		parts = append(parts,
			okStyle.Render(d.ID)+" "+labelStyle.Render(d.Version),
			"   "+labelStyle.Render("tags:")+" "+strings.Join(d.Tags, ", "))
		if d.Description != "" {
			parts = append(parts, "   "+labelStyle.Render("about:")+" "+d.Description)
		}
		for _, op := range sortedKeys(d.Endpoints) {
			parts = append(parts, fmt.Sprintf("   %s %s", labelStyle.Render(op+":"), d.Endpoints[op]))
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func sortedByID(ds []registry.Descriptor) []registry.Descriptor {
	out := append([]registry.Descriptor(nil), ds...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
