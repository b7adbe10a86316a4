package segment

import (
	"context"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"github.com/v0xg/routedoc/internal/model"
)

// OpenAISegmenter segments screenshots with an OpenAI vision model
type OpenAISegmenter struct {
	client *openai.Client
	model  string
}

// NewOpenAISegmenter creates a new OpenAI segmenter
func NewOpenAISegmenter(model string) (*OpenAISegmenter, error) {
	apiKey := os.Getenv("ROUTEDOC_OPENAI_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("ROUTEDOC_OPENAI_KEY or OPENAI_API_KEY environment variable required")
	}
	return newOpenAISegmenter(openai.DefaultConfig(apiKey), model), nil
}

func newOpenAISegmenter(cfg openai.ClientConfig, model string) *OpenAISegmenter {
	if model == "" {
		model = openai.GPT4o
	}
	return &OpenAISegmenter{client: openai.NewClientWithConfig(cfg), model: model}
}

// Segment sends the screenshot to OpenAI and parses the regions it reports
func (p *OpenAISegmenter) Segment(ctx context.Context, req Request) (*model.Segmentation, error) {
	if _, _, err := splitDataURL(req.DataURL); err != nil {
		return nil, err
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: buildUserPrompt(req.Route)},
					{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
						URL:    req.DataURL,
						Detail: openai.ImageURLDetailHigh,
					}},
				},
			},
		},
		MaxTokens: 2000,
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from OpenAI")
	}

	seg, err := parseSegmentation(resp.Choices[0].Message.Content, SourceOpenAI)
	if err != nil {
		return nil, fmt.Errorf("failed to parse OpenAI response: %w", err)
	}
	return seg, nil
}
