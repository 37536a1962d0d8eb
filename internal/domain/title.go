package domain

import "strings"

const (
	// TitleMaxRunes is the number of characters kept from the first message.
	TitleMaxRunes = 30

	// DefaultTitle is used for fresh tabs and as the generated-title fallback.
	DefaultTitle = "New Chat"

	// MediaTitle labels a tab whose first message has no text (pure media generation).
	MediaTitle = "Media Generation"
)

// DeriveTitle builds a tab title from the first message content.
func DeriveTitle(content string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return MediaTitle
	}
	runes := []rune(content)
	if len(runes) <= TitleMaxRunes {
		return content
	}
	return string(runes[:TitleMaxRunes]) + "..."
}
