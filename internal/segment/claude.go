package segment

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/v0xg/routedoc/internal/model"
)

// ClaudeSegmenter segments screenshots with Anthropic's Claude
type ClaudeSegmenter struct {
	client *anthropic.Client
	model  string
}

// NewClaudeSegmenter creates a new Claude segmenter
func NewClaudeSegmenter(model string) (*ClaudeSegmenter, error) {
	apiKey := os.Getenv("ROUTEDOC_ANTHROPIC_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("ROUTEDOC_ANTHROPIC_KEY or ANTHROPIC_API_KEY environment variable required")
	}
	return newClaudeSegmenter(model, option.WithAPIKey(apiKey)), nil
}

func newClaudeSegmenter(model string, opts ...option.RequestOption) *ClaudeSegmenter {
	client := anthropic.NewClient(opts...)
	if model == "" {
		model = string(anthropic.ModelClaudeSonnet4_20250514)
	}
	return &ClaudeSegmenter{client: &client, model: model}
}

// Segment sends the screenshot to Claude and parses the regions it reports
func (p *ClaudeSegmenter) Segment(ctx context.Context, req Request) (*model.Segmentation, error) {
	mediaType, payload, err := splitDataURL(req.DataURL)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: 2000,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64(mediaType, payload),
				anthropic.NewTextBlock(buildUserPrompt(req.Route)),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("Claude API error: %w", err)
	}

	var responseText string
	for _, block := range resp.Content {
		if block.Type == "text" {
			responseText = block.Text
			break
		}
	}
	if responseText == "" {
		return nil, fmt.Errorf("empty response from Claude")
	}

	seg, err := parseSegmentation(responseText, SourceClaude)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Claude response: %w", err)
	}
	return seg, nil
}

// splitDataURL returns the media type and base64 payload of a data URL.
func splitDataURL(dataURL string) (string, string, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(dataURL, "data:"), ",")
	mediaType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !ok || !isBase64 || !strings.HasPrefix(dataURL, "data:image/") {
		return "", "", fmt.Errorf("screenshot is not a base64 image data URL")
	}
	return mediaType, payload, nil
}
