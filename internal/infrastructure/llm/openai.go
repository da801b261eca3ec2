package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/chatcart/backend/internal/domain"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
	"go.uber.org/zap"
)

// ProviderOpenAI is the provider name for OpenAI-compatible chat completion APIs
const ProviderOpenAI = "openai"

// OpenAIConfig configures an OpenAI-compatible endpoint (OpenAI, llama.cpp, vLLM, ...)
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type openAICompleter struct {
	client openai.Client
	model  string
}

// NewOpenAIClient creates a model client backed by the chat completions API
func NewOpenAIClient(config OpenAIConfig, clientConfig ClientConfig, logger *zap.Logger) (*Client, error) {
	if config.Model == "" {
		return nil, fmt.Errorf("openai model name is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		// Retries are handled by Client
		option.WithMaxRetries(0),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	provider := &openAICompleter{
		client: openai.NewClient(opts...),
		model:  config.Model,
	}
	return newClient(ProviderOpenAI, provider, clientConfig, logger), nil
}

func (p *openAICompleter) complete(ctx context.Context, prompt string, image *domain.Image) (string, error) {
	parts := []openai.ChatCompletionContentPartUnionParam{openai.TextContentPart(prompt)}
	if image != nil && len(image.Data) > 0 {
		parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: dataURL(image),
		}))
	}

	completion, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(parts),
		},
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", &statusError{status: apiErr.StatusCode, err: err}
		}
		return "", err
	}

	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", domain.ErrModelResponse)
	}
	return completion.Choices[0].Message.Content, nil
}

func dataURL(image *domain.Image) string {
	mimeType := image.MIMEType
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image.Data)
}
