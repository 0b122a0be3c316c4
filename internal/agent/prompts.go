package agent

import (
	"fmt"
	"strings"

	"github.com/dvbondoy/aitomate/internal/modules"
)

// ChatPrompt строит системное сообщение интерактивного режима по каталогу инструментов.
func ChatPrompt(catalog *modules.Catalog) string {
	var b strings.Builder
	b.WriteString("You are a helpful command-line automation assistant.\n\n")
	b.WriteString("You can call tools by replying with JSON in the following shape:\n")
	b.WriteString(`{ "tool": "<tool_name>", "args": { ... } }` + "\n\n")
	b.WriteString("Available tools:\n")
	for _, t := range catalog.Tools() {
		fmt.Fprintf(&b, "- %s: %s\n", t.Signature, t.Description)
	}
	b.WriteString("\nWhen you reach a conclusion, respond with JSON:\n")
	b.WriteString(`{ "final": "<your summary or answer>" }` + "\n\n")
	b.WriteString("For short, conversational replies that don't require tool usage, respond with plain text.")
	return b.String()
}

// MonitorPrompt строит системное сообщение автономного режима.
func MonitorPrompt(catalog *modules.Catalog) string {
	var b strings.Builder
	b.WriteString("You are an autonomous agent for log monitoring.\n\nTools available:\n\n")
	for i, t := range catalog.Tools() {
		fmt.Fprintf(&b, "%d) %s: %s\n", i+1, t.Signature, t.Description)
		fmt.Fprintf(&b, "   { \"tool\": %q, \"args\": { %s } }\n\n", t.Name, argsTemplate(t.Positional))
	}
	b.WriteString("Rules:\n")
	b.WriteString("- Use read_file to inspect logs.\n")
	b.WriteString("- Use append_log to write findings.\n")
	b.WriteString("- When finished, output ONLY:\n")
	b.WriteString(`  { "final": "<summary>" }`)
	return b.String()
}

func argsTemplate(names []string) string {
	parts := make([]string, 0, len(names))
	for _, n := range names {
		parts = append(parts, fmt.Sprintf("%q: \"<%s>\"", n, n))
	}
	return strings.Join(parts, ", ")
}
