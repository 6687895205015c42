package dialogue

import (
	"strings"
)

// Format renders a raw transcript for display. Each line containing a colon
// is split at its first colon into **speaker**: content, both parts trimmed;
// other lines pass through unchanged. Lines are joined with a blank line.
//
// Format is pure and is re-run on the whole transcript after every stream
// increment, so a growing prefix always renders consistently.
func Format(raw string) string {
	if raw == "" {
		return ""
	}
	lines := strings.Split(raw, "\n")
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = formatLine(line)
	}
	return strings.Join(out, "\n\n")
}

func formatLine(line string) string {
	speaker, content, ok := strings.Cut(line, ":")
	if !ok {
		return line
	}
	return "**" + strings.TrimSpace(speaker) + "**: " + strings.TrimSpace(content)
}
