package completion

import (
	"strings"

	"github.com/MrSnakeDoc/orbit/internal/domain"
)

// Family is a backend family that serves a set of model names.
type Family string

const (
	FamilyGemini Family = "gemini"
	FamilyOpenAI Family = "openai"
)

// EnvHint names the variable that configures the family's credentials.
func (f Family) EnvHint() string {
	switch f {
	case FamilyOpenAI:
		return "ORBIT_OPENAI_API_KEY"
	default:
		return "ORBIT_GEMINI_API_KEY"
	}
}

var openAIPrefixes = []string{"gpt-", "chatgpt-", "o1", "o3", "o4", "dall-e", "text-", "openai/"}

// ClassifyModel maps a model name to its backend family by naming
// convention. Unknown names go to Gemini.
func ClassifyModel(model string) Family {
	m := strings.ToLower(strings.TrimSpace(model))
	for _, p := range openAIPrefixes {
		if strings.HasPrefix(m, p) {
			return FamilyOpenAI
		}
	}
	return FamilyGemini
}

// Models holds the default model names per family and tier.
type Models struct {
	Text  string
	Image string
	Video string

	GeminiFast string
	GeminiPro  string
	OpenAIFast string
	OpenAIPro  string
}

// DefaultModels returns the built-in model table.
func DefaultModels() Models {
	return Models{
		Text:       "gemini-2.5-flash",
		Image:      "imagen-4.0-generate-001",
		Video:      "veo-3.0-generate-001",
		GeminiFast: "gemini-2.5-flash-lite",
		GeminiPro:  "gemini-2.5-pro",
		OpenAIFast: "gpt-4o-mini",
		OpenAIPro:  "gpt-4.1",
	}
}

// TextModel picks the model for a text mode given the user's preference.
// fast and direct get the cheaper variant of the preferred family, pro
// the strongest, and normal the preference itself.
func (m Models) TextModel(mode domain.Mode, preferred string) string {
	if preferred == "" {
		preferred = m.Text
	}
	fam := ClassifyModel(preferred)
	switch mode {
	case domain.ModeFast, domain.ModeDirect:
		if fam == FamilyOpenAI {
			return m.OpenAIFast
		}
		return m.GeminiFast
	case domain.ModePro:
		if fam == FamilyOpenAI {
			return m.OpenAIPro
		}
		return m.GeminiPro
	default:
		return preferred
	}
}

// ImageModel returns preferred or the default image model.
func (m Models) ImageModel(preferred string) string {
	if preferred != "" {
		return preferred
	}
	return m.Image
}

// VideoModel returns preferred or the default video model.
func (m Models) VideoModel(preferred string) string {
	if preferred != "" {
		return preferred
	}
	return m.Video
}
