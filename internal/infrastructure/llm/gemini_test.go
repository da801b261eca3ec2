package llm

import (
	"context"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
)

func TestNewGeminiClient_RequiresAPIKey(t *testing.T) {
	_, _, err := NewGeminiClient(context.Background(), GeminiConfig{}, ClientConfig{}, nil)
	assert.Error(t, err)
}

func TestExtractText(t *testing.T) {
	tests := []struct {
		name string
		resp *genai.GenerateContentResponse
		want string
	}{
		{"nil response", nil, ""},
		{"no candidates", &genai.GenerateContentResponse{}, ""},
		{
			"nil content",
			&genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}},
			"",
		},
		{
			"joins text parts",
			&genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: []genai.Part{
					genai.Text(`{"productIds": [1],`),
					genai.Blob{MIMEType: "image/png", Data: []byte{1}},
					genai.Text(` "explanation": "ok"}`),
				}},
			}}},
			`{"productIds": [1], "explanation": "ok"}`,
		},
		{
			"first candidate only",
			&genai.GenerateContentResponse{Candidates: []*genai.Candidate{
				{Content: &genai.Content{Parts: []genai.Part{genai.Text("first")}}},
				{Content: &genai.Content{Parts: []genai.Part{genai.Text("second")}}},
			}},
			"first",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractText(tt.resp))
		})
	}
}
