package browser

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	htmldom "golang.org/x/net/html"

	"opsagent/internal/utils"
)

// Element is one interactable element found during the latest extraction
// pass. Index is stable only until the next State call.
type Element struct {
	Index int               `json:"index"`
	Tag   string            `json:"tag"`
	Type  string            `json:"type,omitempty"`
	Text  string            `json:"text,omitempty"`
	Attrs map[string]string `json:"attrs,omitempty"`
}

type Tab struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type PageState struct {
	URL                 string    `json:"url"`
	Title               string    `json:"title"`
	Tabs                []Tab     `json:"tabs,omitempty"`
	InteractiveElements []Element `json:"interactive_elements"`
}

const maxElementText = 120

// State captures the current page: url, title, open tabs, and the
// interactable elements parsed out of the live DOM.
func (s *Session) State(ctx context.Context) (*PageState, error) {
	state := &PageState{}

	var url, title string
	if err := s.run(chromedp.Location(&url), chromedp.Title(&title)); err != nil {
		return nil, err
	}
	state.URL = url
	state.Title = title

	if targets, err := chromedp.Targets(s.ctx); err == nil {
		for _, t := range targets {
			if t.Type == "page" {
				state.Tabs = append(state.Tabs, Tab{Title: t.Title, URL: t.URL})
			}
		}
	}

	html, err := s.pageHTML()
	if err != nil {
		return nil, err
	}
	state.InteractiveElements = extractInteractive(html)
	for _, el := range state.InteractiveElements {
		if href, ok := el.Attrs["href"]; ok {
			el.Attrs["href"] = utils.Absolute(state.URL, href)
		}
	}
	return state, nil
}

var interactiveSelector = strings.Join([]string{
	"a[href]", "button", "input", "select", "textarea",
	"[role=button]", "[role=link]", "[role=menuitem]", "[onclick]",
}, ", ")

func extractInteractive(html string) []Element {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var out []Element
	index := 0
	doc.Find(interactiveSelector).Each(func(_ int, sel *goquery.Selection) {
		if len(sel.Nodes) == 0 || sel.Nodes[0].Type != htmldom.ElementNode {
			return
		}
		node := sel.Nodes[0]

		el := Element{
			Index: index,
			Tag:   node.Data,
			Attrs: map[string]string{},
		}
		for _, key := range []string{"id", "name", "href", "placeholder", "value", "role"} {
			if v, ok := sel.Attr(key); ok && v != "" {
				el.Attrs[key] = v
			}
		}
		if t, ok := sel.Attr("type"); ok {
			el.Type = t
		}

		text := strings.TrimSpace(sel.Text())
		text = strings.Join(strings.Fields(text), " ")
		if len(text) > maxElementText {
			text = text[:maxElementText] + "..."
		}
		el.Text = text

		out = append(out, el)
		index++
	})
	return out
}
