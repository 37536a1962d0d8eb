package completion

import (
	"fmt"
	"strings"

	"github.com/MrSnakeDoc/orbit/internal/domain"
)

const persona = `You are Orbit, an AI assistant built into a web browser. Answer clearly and concisely.
Use Markdown for formatting. When you rely on web results, cite them.`

const toolProtocol = `You can hand files and interactive widgets to the user with special markers.
To offer a downloadable file, write:
$$$FILE:::<file name>:::<mime type>$$$<file contents>$$$END_FILE$$$
To render a widget, write:
$$$UI:<TYPE>:::<content>$$$
Never put markers inside code blocks.`

// BuildSystemInstruction concatenates the persona, the marker protocol,
// the instructions of the enabled extensions and the user's own
// instructions, in that order. Empty parts are skipped.
func BuildSystemInstruction(extensions []domain.Extension, custom string) string {
	parts := []string{persona, toolProtocol}

	var widgets []string
	for _, ext := range extensions {
		for _, w := range ext.Widgets {
			widgets = append(widgets, fmt.Sprintf("- %s: %s", strings.ToUpper(w.Type), w.Description))
		}
	}
	if len(widgets) > 0 {
		parts = append(parts, "Available widgets:\n"+strings.Join(widgets, "\n"))
	}

	for _, ext := range extensions {
		if instr := strings.TrimSpace(ext.Instruction); instr != "" {
			parts = append(parts, fmt.Sprintf("[%s]\n%s", ext.Name, instr))
		}
	}
	if custom = strings.TrimSpace(custom); custom != "" {
		parts = append(parts, "User instructions:\n"+custom)
	}
	return strings.Join(parts, "\n\n")
}
