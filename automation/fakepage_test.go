package automation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// fakeElement is one node of the simulated DOM.
type fakeElement struct {
	Tag        string
	Type       string
	ID         string
	For        string
	Class      string
	Text       string
	Value      string
	Checked    bool
	HasChecked bool
	Hidden     bool
	Disabled   bool
	Options    []string
}

// fakePage is an in-memory Page keyed by locator string.
type fakePage struct {
	mu         sync.Mutex
	elements   map[string][]*fakeElement
	location   string
	afterClick map[string]func(p *fakePage)
	scripts    map[string]func(p *fakePage) (interface{}, error)
	setFilesFn func(p *fakePage, paths []string) error

	events      []string
	clicks      []string
	batches     [][]string
	fileTargets []*fakeElement
	filesExist  []bool
	screenshots []string
}

func newFakePage() *fakePage {
	return &fakePage{
		elements:   map[string][]*fakeElement{},
		afterClick: map[string]func(p *fakePage){},
		scripts:    map[string]func(p *fakePage) (interface{}, error){},
	}
}

// add registers els under selector; elements with an id are also reachable
// through ByID.
func (p *fakePage) add(selector string, els ...*fakeElement) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements[selector] = append(p.elements[selector], els...)
	for _, el := range els {
		if el.ID != "" {
			key := ByID(el.ID).String()
			p.elements[key] = append(p.elements[key], el)
		}
	}
}

func (p *fakePage) remove(selector string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.elements, selector)
}

func (p *fakePage) first(loc Locator) (*fakeElement, error) {
	els := p.elements[loc.String()]
	if len(els) == 0 {
		return nil, fmt.Errorf("no element matches %s", loc)
	}
	return els[0], nil
}

func (p *fakePage) byID(id string) *fakeElement {
	els := p.elements[ByID(id).String()]
	if len(els) == 0 {
		return nil
	}
	return els[0]
}

func (p *fakePage) Navigate(_ context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.location = url
	p.events = append(p.events, "navigate "+url)
	return nil
}

func (p *fakePage) Location(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.location, nil
}

func (p *fakePage) Count(_ context.Context, loc Locator) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.elements[loc.String()]), nil
}

func (p *fakePage) Visible(_ context.Context, loc Locator) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, err := p.first(loc)
	if err != nil {
		return false, nil
	}
	return !el.Hidden, nil
}

func (p *fakePage) State(_ context.Context, loc Locator) (ElementState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, err := p.first(loc)
	if err != nil {
		return ElementState{}, err
	}
	return ElementState{
		Tag: el.Tag, Type: el.Type, ID: el.ID, For: el.For, Class: el.Class,
		Text: el.Text, Checked: el.Checked, HasChecked: el.HasChecked,
	}, nil
}

func (p *fakePage) Fill(_ context.Context, loc Locator, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, err := p.first(loc)
	if err != nil {
		return err
	}
	if el.Disabled {
		return errors.New("element is disabled")
	}
	el.Value = value
	p.events = append(p.events, fmt.Sprintf("fill %s=%s", loc, value))
	return nil
}

func (p *fakePage) Select(_ context.Context, loc Locator, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, err := p.first(loc)
	if err != nil {
		return err
	}
	if len(el.Options) > 0 {
		found := false
		for _, o := range el.Options {
			if o == value {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("option %q not found", value)
		}
	}
	el.Value = value
	p.events = append(p.events, fmt.Sprintf("select %s=%s", loc, value))
	return nil
}

// Click toggles checkable elements, or the input a label points at.
func (p *fakePage) Click(_ context.Context, loc Locator) error {
	p.mu.Lock()
	el, err := p.first(loc)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	target := el
	if strings.EqualFold(el.Tag, "label") && el.For != "" {
		if in := p.byID(el.For); in != nil {
			target = in
		}
	}
	if target.HasChecked {
		target.Checked = !target.Checked
	}
	p.events = append(p.events, fmt.Sprintf("click %s (%s)", loc, el.Text))
	p.clicks = append(p.clicks, el.Text)
	hook := p.afterClick[loc.String()]
	p.mu.Unlock()

	if hook != nil {
		hook(p)
	}
	return nil
}

func (p *fakePage) SetFiles(_ context.Context, loc Locator, paths []string) error {
	p.mu.Lock()
	els := p.elements[loc.String()]
	if len(els) == 0 {
		p.mu.Unlock()
		return fmt.Errorf("no element matches %s", loc)
	}
	batch := append([]string(nil), paths...)
	p.batches = append(p.batches, batch)
	p.fileTargets = append(p.fileTargets, els[len(els)-1])
	for _, path := range paths {
		_, statErr := os.Stat(path)
		p.filesExist = append(p.filesExist, statErr == nil)
	}
	p.events = append(p.events, fmt.Sprintf("files %s (%d)", loc, len(paths)))
	fn := p.setFilesFn
	p.mu.Unlock()

	if fn != nil {
		return fn(p, paths)
	}
	return nil
}

func (p *fakePage) ScrollIntoView(_ context.Context, loc Locator) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, "scroll "+loc.String())
	return nil
}

// Eval returns what the registered handler produces, round-tripped through
// JSON the way a browser result is.
func (p *fakePage) Eval(_ context.Context, script string, out interface{}) error {
	p.mu.Lock()
	fn := p.scripts[script]
	p.mu.Unlock()

	var v interface{}
	if fn != nil {
		var err error
		if v, err = fn(p); err != nil {
			return err
		}
	}
	if out == nil || v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (p *fakePage) Screenshot(_ context.Context, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.screenshots = append(p.screenshots, path)
	return os.WriteFile(path, []byte("png"), 0o644)
}

func (p *fakePage) value(selector string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	els := p.elements[selector]
	if len(els) == 0 {
		return ""
	}
	return els[0].Value
}

func (p *fakePage) eventLog() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

func (p *fakePage) setLocation(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.location = url
}
