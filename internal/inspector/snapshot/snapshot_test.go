package snapshot

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pageJSON = `{
  "window": {"innerWidth": 1024, "innerHeight": 700, "href": "https://ex.com/", "origin": "https://ex.com"},
  "root": {"t": "HTML", "c": [
    {"t": "body", "r": {"x": 0, "y": 0, "width": 1024, "height": 2000}, "c": [
      {"t": "header", "a": [["class", "site-header"], ["id", "top"]],
       "r": {"x": 0, "y": 0, "width": 1024, "height": 80},
       "s": {"display": "flex", "color": "rgb(0, 0, 0)"},
       "c": [{"x": "Welcome"}]}
    ]}
  ]}
}`

func TestNewFromSerialisedPage(t *testing.T) {
	var page Page
	require.NoError(t, json.Unmarshal([]byte(pageJSON), &page))

	s, err := New(&page)
	require.NoError(t, err)

	header := s.QueryAll("header.site-header")
	require.Equal(t, 1, header.Length())
	assert.Equal(t, "Welcome", header.Text())

	n := header.Get(0)
	assert.Equal(t, "flex", s.ComputedStyle(n).Get("display"))
	assert.Equal(t, Rect{Width: 1024, Height: 80}, s.BoundingRect(n))
	assert.Equal(t, 1, s.QueryAll("#top").Length())
	assert.Equal(t, "https://ex.com", s.Window().Origin)
}

func TestNewRejectsEmptyPage(t *testing.T) {
	_, err := New(&Page{})
	assert.Error(t, err)
	_, err = New(&Page{Root: &Node{Text: "loose"}})
	assert.Error(t, err)
}

func TestInvalidSelectorMatchesNothing(t *testing.T) {
	s, err := FromString(`<html><body><p>x</p></body></html>`, Window{})
	require.NoError(t, err)
	assert.Equal(t, 0, s.QueryAll("p[").Length())
}

func TestFromHTMLLayout(t *testing.T) {
	markup := `<html><head><title>Docs</title><style>@media (max-width: 600px){}</style></head>
<body>
  <header>Top</header>
  <div style="display: none"><span>gone</span></div>
  <main style="display: grid; grid-template-columns: 1fr 1fr">Main</main>
</body></html>`
	s, err := FromString(markup, Window{Href: "https://ex.com/docs"})
	require.NoError(t, err)

	win := s.Window()
	assert.Equal(t, "Docs", win.Title)
	assert.Equal(t, "https://ex.com", win.Origin)
	assert.True(t, win.MaxWidthMedia)
	assert.Equal(t, float64(1280), win.InnerWidth)

	hidden := s.QueryAll("span").Get(0)
	assert.Zero(t, s.BoundingRect(hidden).Width)

	main := s.QueryAll("main").Get(0)
	st := s.ComputedStyle(main)
	assert.Equal(t, "grid", st.Get("display"))
	assert.Equal(t, "1fr 1fr", st.Get("gridTemplateColumns"))
	assert.Greater(t, s.BoundingRect(main).Height, 0.0)

	body := s.QueryAll("body").Get(0)
	assert.GreaterOrEqual(t, s.BoundingRect(body).Bottom(), s.BoundingRect(main).Bottom())
}

func TestScrollTo(t *testing.T) {
	var got [2]float64
	s, err := FromString(`<p>x</p>`, Window{}, WithScroller(func(x, y float64) error {
		got = [2]float64{x, y}
		return nil
	}))
	require.NoError(t, err)

	require.NoError(t, s.ScrollTo(0, 800))
	assert.Equal(t, [2]float64{0, 800}, got)
	assert.Equal(t, float64(800), s.Window().ScrollY)

	failing, err := FromString(`<p>x</p>`, Window{}, WithScroller(func(x, y float64) error {
		return errors.New("tab closed")
	}))
	require.NoError(t, err)
	assert.ErrorContains(t, failing.ScrollTo(0, 10), "tab closed")
}

func TestParseInlineStyle(t *testing.T) {
	st := ParseInlineStyle("Display: flex; flex-direction: column;; bogus; background-color : red")
	assert.Equal(t, Style{"display": "flex", "flexDirection": "column", "backgroundColor": "red"}, st)
}
