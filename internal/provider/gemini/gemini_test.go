package gemini

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/MrSnakeDoc/orbit/internal/completion"
	"github.com/MrSnakeDoc/orbit/internal/domain"
	"github.com/MrSnakeDoc/orbit/internal/logger"
)

func TestNewRequiresKey(t *testing.T) {
	_, err := New(context.Background(), Options{}, logger.Nop())
	assert.ErrorIs(t, err, completion.ErrMissingCredentials)
}

func TestToContents(t *testing.T) {
	history := []*domain.Message{
		{Role: domain.RoleUser, Content: "describe", Attachments: []domain.Attachment{{Name: "a.png", MimeType: "image/png", Data: []byte{1, 2}}}},
		{Role: domain.RoleModel, Content: "a cat"},
		{Role: domain.RoleModel},
	}
	got := toContents(history)

	require.Len(t, got, 2, "empty messages are skipped")
	assert.Equal(t, "user", got[0].Role)
	require.Len(t, got[0].Parts, 2)
	assert.Equal(t, "describe", got[0].Parts[0].Text)
	require.NotNil(t, got[0].Parts[1].InlineData)
	assert.Equal(t, "image/png", got[0].Parts[1].InlineData.MIMEType)
	assert.Equal(t, "model", got[1].Role)
}

func TestTextOf(t *testing.T) {
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []*genai.Part{
			{Text: "thinking...", Thought: true},
			{Text: "Result: "},
			{ExecutableCode: &genai.ExecutableCode{Code: "print(1)", Language: genai.LanguagePython}},
			{CodeExecutionResult: &genai.CodeExecutionResult{Output: "1"}},
		}},
	}}}

	got := textOf(resp)
	assert.NotContains(t, got, "thinking")
	assert.Contains(t, got, "Result: ")
	assert.Contains(t, got, "```python\nprint(1)\n```")
	assert.Contains(t, got, "```\n1\n```")

	assert.Empty(t, textOf(nil))
	assert.Empty(t, textOf(&genai.GenerateContentResponse{}))
}

func TestSourcesOf(t *testing.T) {
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		GroundingMetadata: &genai.GroundingMetadata{GroundingChunks: []*genai.GroundingChunk{
			{Web: &genai.GroundingChunkWeb{URI: "https://go.dev", Title: "go.dev"}},
			{},
			nil,
		}},
	}}}
	assert.Equal(t, []domain.Source{{URI: "https://go.dev", Title: "go.dev"}}, sourcesOf(resp))
	assert.Nil(t, sourcesOf(&genai.GenerateContentResponse{}))
}

func TestDataMedia(t *testing.T) {
	m := dataMedia(domain.MediaImage, "", "image/png", []byte("hi"))
	assert.Equal(t, domain.GeneratedMedia{Type: domain.MediaImage, MimeType: "image/png", URI: "data:image/png;base64,aGk="}, m)
}

func TestOperationError(t *testing.T) {
	assert.Equal(t, "quota", operationError(map[string]any{"message": "quota", "code": 8}))
	assert.Contains(t, operationError(map[string]any{"code": 8}), "8")
}
