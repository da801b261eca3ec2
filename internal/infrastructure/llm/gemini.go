package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chatcart/backend/internal/domain"
	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// ProviderGemini is the provider name for Google Gemini
const ProviderGemini = "gemini"

// GeminiConfig configures the Gemini API
type GeminiConfig struct {
	APIKey string
	Model  string
}

type geminiCompleter struct {
	model *genai.GenerativeModel
}

// NewGeminiClient creates a model client backed by Gemini.
// The returned close function releases the underlying connection.
func NewGeminiClient(ctx context.Context, config GeminiConfig, clientConfig ClientConfig, logger *zap.Logger) (*Client, func() error, error) {
	if config.APIKey == "" {
		return nil, nil, fmt.Errorf("gemini api key is required")
	}
	if config.Model == "" {
		config.Model = "gemini-1.5-flash"
	}

	gc, err := genai.NewClient(ctx, option.WithAPIKey(config.APIKey))
	if err != nil {
		return nil, nil, fmt.Errorf("create gemini client: %w", err)
	}

	provider := &geminiCompleter{model: gc.GenerativeModel(config.Model)}
	return newClient(ProviderGemini, provider, clientConfig, logger), gc.Close, nil
}

func (p *geminiCompleter) complete(ctx context.Context, prompt string, image *domain.Image) (string, error) {
	parts := []genai.Part{genai.Text(prompt)}
	if image != nil && len(image.Data) > 0 {
		mimeType := image.MIMEType
		if mimeType == "" {
			mimeType = "image/jpeg"
		}
		parts = append(parts, genai.Blob{MIMEType: mimeType, Data: image.Data})
	}

	resp, err := p.model.GenerateContent(ctx, parts...)
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			return "", &statusError{status: apiErr.Code, err: err}
		}
		return "", err
	}

	return extractText(resp), nil
}

// extractText joins the text parts of the first candidate
func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return ""
	}
	content := resp.Candidates[0].Content
	if content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String()
}
