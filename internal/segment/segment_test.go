package segment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/jarcoal/httpmock"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/routedoc/internal/model"
)

const screenshot = "data:image/png;base64,iVBORw0KGgo="

const reply = `{"sections":[
  {"type":"header","bounds":{"x":0,"y":0,"width":1280,"height":80},"elements":["logo","menu"],"content":"Top bar","confidence":0.9},
  {"type":"card","bounds":{"x":0,"y":100,"width":300,"height":200},"elements":["title"],"content":"Product","confidence":0.4}
]}`

var domSections = []model.Section{
	{ID: "header_0", TagName: "header", Type: "header", ElementNames: []string{"nav"}, Content: model.SectionContent{Text: "Shop"}},
	{ID: "main_0", TagName: "main", Type: "main-content"},
}

func TestParseSegmentation(t *testing.T) {
	seg, err := parseSegmentation(reply, SourceOpenAI)
	require.NoError(t, err)
	require.Len(t, seg.Sections, 2)
	assert.Equal(t, SourceOpenAI, seg.Source)
	assert.Equal(t, 0.8, seg.Confidence)
	assert.Equal(t, "Header", seg.Sections[0].ComponentType)
	assert.Equal(t, "Card", seg.Sections[1].ComponentType)
	assert.Equal(t, float64(1280), seg.Sections[0].Bounds.Width)

	wrapped := "Here is the analysis:\n```json\n" + reply + "\n```\nLet me know {if} you need more."
	seg, err = parseSegmentation(wrapped, SourceClaude)
	require.NoError(t, err)
	assert.Len(t, seg.Sections, 2)
	assert.Equal(t, SourceClaude, seg.Source)
}

func TestParseUnstructured(t *testing.T) {
	text := `The page has:
Header: logo and search
- logo
* search box
Main content
- product grid
Footer: links`
	seg, err := parseSegmentation(text, SourceOpenAI)
	require.NoError(t, err)
	assert.Equal(t, SourceTextParsing, seg.Source)
	assert.Equal(t, 0.6, seg.Confidence)
	require.Len(t, seg.Sections, 3)
	assert.Equal(t, "header", seg.Sections[0].Type)
	assert.Equal(t, []string{"logo", "search box"}, seg.Sections[0].Elements)
	assert.Equal(t, "main", seg.Sections[1].Type)
	assert.Equal(t, "MainContent", seg.Sections[1].ComponentType)
	assert.Equal(t, "footer", seg.Sections[2].Type)
	assert.Empty(t, seg.Sections[2].Elements)

	_, err = parseSegmentation("nothing useful", SourceOpenAI)
	assert.Error(t, err)
}

func TestExtractObject(t *testing.T) {
	obj, ok := extractObject(`x {"a":"}{","b":{"c":1}} y`)
	require.True(t, ok)
	assert.Equal(t, `{"a":"}{","b":{"c":1}}`, obj)

	_, ok = extractObject(`{"open": true`)
	assert.False(t, ok)
}

func TestNewSegmenter(t *testing.T) {
	s, err := NewSegmenter("", "")
	require.NoError(t, err)
	assert.IsType(t, DOMSegmenter{}, s)

	_, err = NewSegmenter("gemini", "")
	assert.ErrorContains(t, err, "unknown provider")

	t.Setenv("ROUTEDOC_OPENAI_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	_, err = NewSegmenter("openai", "")
	assert.ErrorContains(t, err, "OPENAI_API_KEY")
}

func TestDOMSegmenter(t *testing.T) {
	seg, err := DOMSegmenter{}.Segment(context.Background(), Request{Sections: domSections})
	require.NoError(t, err)
	assert.Equal(t, SourceDOM, seg.Source)
	require.Len(t, seg.Sections, 2)
	assert.Equal(t, "Header", seg.Sections[0].ComponentType)
	assert.Equal(t, "Shop", seg.Sections[0].Content)
	assert.Equal(t, "MainContent", seg.Sections[1].ComponentType)
	assert.NotNil(t, seg.Sections[1].Elements)
}

type countingSegmenter struct {
	calls int
	seg   *model.Segmentation
	err   error
}

func (c *countingSegmenter) Segment(context.Context, Request) (*model.Segmentation, error) {
	c.calls++
	return c.seg, c.err
}

func TestFallbackCachesAndFilters(t *testing.T) {
	parsed, err := parseSegmentation(reply, SourceOpenAI)
	require.NoError(t, err)
	primary := &countingSegmenter{seg: parsed}
	f := WithFallback(primary, FallbackOptions{CacheSize: 8, Threshold: 0.7})

	req := Request{DataURL: screenshot, Route: model.Route{URL: "/"}, Sections: domSections}
	first, err := f.Segment(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, first.Sections, 1, "the 0.4 card is below the threshold")
	assert.Equal(t, "header", first.Sections[0].Type)

	second, err := f.Segment(context.Background(), req)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, primary.calls)

	req.Route.URL = "/other"
	_, err = f.Segment(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, primary.calls)
}

func TestFallbackDegradesToDOM(t *testing.T) {
	req := Request{DataURL: screenshot, Route: model.Route{URL: "/"}, Sections: domSections}

	failing := WithFallback(&countingSegmenter{err: errors.New("rate limited")}, FallbackOptions{})
	seg, err := failing.Segment(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, SourceDOM, seg.Source)
	assert.Len(t, seg.Sections, 2)

	empty := WithFallback(&countingSegmenter{seg: &model.Segmentation{}}, FallbackOptions{})
	seg, err = empty.Segment(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, SourceDOM, seg.Source)

	seg, err = WithFallback(nil, FallbackOptions{}).Segment(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, SourceDOM, seg.Source)
}

func decodeJSON(req *http.Request, v any) error {
	defer req.Body.Close()
	return json.NewDecoder(req.Body).Decode(v)
}

func TestOpenAISegmenter(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("POST", "https://openai.test/v1/chat/completions",
		func(req *http.Request) (*http.Response, error) {
			var body openai.ChatCompletionRequest
			if err := decodeJSON(req, &body); err != nil {
				return httpmock.NewStringResponse(400, err.Error()), nil
			}
			if len(body.Messages) != 2 || len(body.Messages[1].MultiContent) != 2 {
				return httpmock.NewStringResponse(400, "missing image part"), nil
			}
			return httpmock.NewJsonResponse(200, map[string]any{
				"id":     "chatcmpl-1",
				"object": "chat.completion",
				"model":  body.Model,
				"choices": []map[string]any{{
					"index":         0,
					"finish_reason": "stop",
					"message":       map[string]any{"role": "assistant", "content": reply},
				}},
			})
		})

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = "https://openai.test/v1"
	cfg.HTTPClient = &http.Client{Transport: transport}
	s := newOpenAISegmenter(cfg, "")

	seg, err := s.Segment(context.Background(), Request{DataURL: screenshot, Route: model.Route{URL: "/"}})
	require.NoError(t, err)
	assert.Equal(t, SourceOpenAI, seg.Source)
	assert.Len(t, seg.Sections, 2)
	assert.Equal(t, 1, transport.GetTotalCallCount())

	_, err = s.Segment(context.Background(), Request{DataURL: "https://not-a-data-url"})
	assert.Error(t, err)
	assert.Equal(t, 1, transport.GetTotalCallCount())
}

func TestClaudeSegmenter(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("POST", "https://anthropic.test/v1/messages",
		httpmock.NewJsonResponderOrPanic(200, map[string]any{
			"id":            "msg_1",
			"type":          "message",
			"role":          "assistant",
			"model":         "claude-sonnet-4-20250514",
			"stop_reason":   "end_turn",
			"stop_sequence": nil,
			"content":       []map[string]any{{"type": "text", "text": "Sure:\n" + reply}},
			"usage":         map[string]any{"input_tokens": 10, "output_tokens": 20},
		}))

	s := newClaudeSegmenter("",
		option.WithAPIKey("test-key"),
		option.WithBaseURL("https://anthropic.test/"),
		option.WithHTTPClient(&http.Client{Transport: transport}),
		option.WithMaxRetries(0),
	)
	seg, err := s.Segment(context.Background(), Request{DataURL: screenshot, Route: model.Route{URL: "/"}})
	require.NoError(t, err)
	assert.Equal(t, SourceClaude, seg.Source)
	assert.Len(t, seg.Sections, 2)
}

func TestSplitDataURL(t *testing.T) {
	mediaType, payload, err := splitDataURL(screenshot)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mediaType)
	assert.True(t, strings.HasPrefix(payload, "iVBOR"))

	_, _, err = splitDataURL("data:text/plain,hi")
	assert.Error(t, err)
}

func TestCacheKey(t *testing.T) {
	a := cacheKey(Request{DataURL: screenshot, Route: model.Route{URL: "/"}})
	b := cacheKey(Request{DataURL: screenshot, Route: model.Route{URL: "/"}})
	c := cacheKey(Request{DataURL: screenshot, Route: model.Route{URL: "/x"}})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 32)

	// same top of page, different bottom
	prefix := "data:image/png;base64," + strings.Repeat("A", 4000)
	top := cacheKey(Request{DataURL: prefix + "BBBB", Route: model.Route{URL: "/"}})
	bottom := cacheKey(Request{DataURL: prefix + "CCCC", Route: model.Route{URL: "/"}})
	assert.NotEqual(t, top, bottom)
}
