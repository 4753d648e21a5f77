package automation

import (
	"context"
	"strings"
)

// Page is the subset of browser operations the form automation needs. The
// browser package provides the chromedp implementation; tests use an
// in-memory page.
//
// Every method that takes a Locator acts on the first element it matches,
// except SetFiles, which targets the last one because the upload widget
// mounts a fresh file input after each batch.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Location(ctx context.Context) (string, error)

	Count(ctx context.Context, loc Locator) (int, error)
	Visible(ctx context.Context, loc Locator) (bool, error)
	State(ctx context.Context, loc Locator) (ElementState, error)

	// Fill clears the control and sets value.
	Fill(ctx context.Context, loc Locator, value string) error
	// Select chooses the option whose value equals value.
	Select(ctx context.Context, loc Locator, value string) error
	Click(ctx context.Context, loc Locator) error
	SetFiles(ctx context.Context, loc Locator, paths []string) error
	ScrollIntoView(ctx context.Context, loc Locator) error

	// Eval runs one of the scripts in scripts.go and decodes its result into
	// out, which may be nil.
	Eval(ctx context.Context, script string, out interface{}) error
	Screenshot(ctx context.Context, path string) error
}

// ElementState is a snapshot of the properties used to inspect controls.
type ElementState struct {
	Tag string `json:"tag"`
	// Type is the type attribute as written in the markup, not the
	// defaulted DOM property.
	Type       string `json:"type"`
	ID         string `json:"id"`
	For        string `json:"for"`
	Class      string `json:"class"`
	Text       string `json:"text"`
	Checked    bool   `json:"checked"`
	HasChecked bool   `json:"hasChecked"`
}

// Locator is a parsed selector candidate. Candidates are CSS unless written
// with an "xpath=" prefix.
type Locator struct {
	Query string
	XPath bool
}

const xpathPrefix = "xpath="

// ParseLocator parses a selector candidate string.
func ParseLocator(s string) Locator {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, xpathPrefix) {
		return Locator{Query: strings.TrimSpace(strings.TrimPrefix(s, xpathPrefix)), XPath: true}
	}
	return Locator{Query: s}
}

// ParseLocators parses candidates, replacing any {value} placeholder.
func ParseLocators(candidates []string, value string) []Locator {
	out := make([]Locator, 0, len(candidates))
	for _, c := range candidates {
		if c = strings.ReplaceAll(c, "{value}", value); strings.TrimSpace(c) != "" {
			out = append(out, ParseLocator(c))
		}
	}
	return out
}

func (l Locator) String() string {
	if l.XPath {
		return xpathPrefix + l.Query
	}
	return l.Query
}

// ByID returns a CSS locator for the element with the given id attribute.
func ByID(id string) Locator {
	return Locator{Query: `[id="` + strings.ReplaceAll(id, `"`, `\"`) + `"]`}
}
