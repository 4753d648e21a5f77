package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"canalpro-publisher/automation"
)

var _ automation.Page = (*Page)(nil)

var errNoMatch = errors.New("no element matches")

// Page implements automation.Page with chromedp. Every method expects a
// context derived from Session.Context.
type Page struct{}

func by(loc automation.Locator) chromedp.QueryOption {
	if loc.XPath {
		return chromedp.BySearch
	}
	return chromedp.ByQueryAll
}

// nodes returns every current match without waiting.
func (p *Page) nodes(ctx context.Context, loc automation.Locator) ([]*cdp.Node, error) {
	var nodes []*cdp.Node
	if err := chromedp.Run(ctx, chromedp.Nodes(loc.Query, &nodes, by(loc), chromedp.AtLeast(0))); err != nil {
		return nil, fmt.Errorf("query %s: %w", loc, err)
	}
	return nodes, nil
}

// callOn runs fn with this bound to node and decodes its return value.
func callOn(ctx context.Context, node *cdp.Node, fn string, out interface{}) error {
	return chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithNodeID(node.NodeID).Do(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = runtime.ReleaseObject(obj.ObjectID).Do(ctx) }()

		res, exc, err := runtime.CallFunctionOn(fn).
			WithObjectID(obj.ObjectID).
			WithReturnByValue(true).
			Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return exc
		}
		if out == nil || res == nil || len(res.Value) == 0 {
			return nil
		}
		return json.Unmarshal(res.Value, out)
	}))
}

func (p *Page) callOnFirst(ctx context.Context, loc automation.Locator, fn string, out interface{}) error {
	nodes, err := p.nodes(ctx, loc)
	if err != nil {
		return err
	}
	if len(nodes) == 0 {
		return fmt.Errorf("%w %s", errNoMatch, loc)
	}
	return callOn(ctx, nodes[0], fn, out)
}

// Navigate loads url and waits for the load event.
func (p *Page) Navigate(ctx context.Context, url string) error {
	return chromedp.Run(ctx, chromedp.Navigate(url))
}

// Location returns the current document URL.
func (p *Page) Location(ctx context.Context) (string, error) {
	var loc string
	err := chromedp.Run(ctx, chromedp.Location(&loc))
	return loc, err
}

// Count returns how many elements match loc right now, without waiting.
func (p *Page) Count(ctx context.Context, loc automation.Locator) (int, error) {
	nodes, err := p.nodes(ctx, loc)
	return len(nodes), err
}

const fnVisible = `function() {
	const r = this.getBoundingClientRect();
	const s = getComputedStyle(this);
	return r.width > 0 && r.height > 0 && s.visibility !== 'hidden' && s.display !== 'none';
}`

// Visible reports whether the first match of loc has a layout box and is
// not hidden by CSS. No match is (false, nil).
func (p *Page) Visible(ctx context.Context, loc automation.Locator) (bool, error) {
	nodes, err := p.nodes(ctx, loc)
	if err != nil || len(nodes) == 0 {
		return false, err
	}
	var visible bool
	err = callOn(ctx, nodes[0], fnVisible, &visible)
	return visible, err
}

const fnState = `function() {
	return {
		tag: this.tagName.toLowerCase(),
		type: this.getAttribute('type') || '',
		id: this.id || '',
		for: this.htmlFor || this.getAttribute('for') || '',
		class: typeof this.className === 'string' ? this.className : (this.getAttribute('class') || ''),
		text: (this.innerText || this.value || '').trim().slice(0, 200),
		checked: !!this.checked,
		hasChecked: typeof this.checked === 'boolean',
	};
}`

// State describes the first match of loc for switch inspection and the
// submit guard.
func (p *Page) State(ctx context.Context, loc automation.Locator) (automation.ElementState, error) {
	var st automation.ElementState
	err := p.callOnFirst(ctx, loc, fnState, &st)
	return st, err
}

// fnClear empties an input through the native setter so framework-controlled
// inputs notice the change.
const fnClear = `function() {
	this.focus();
	const proto = this.tagName === 'TEXTAREA' ? HTMLTextAreaElement.prototype : HTMLInputElement.prototype;
	const setter = Object.getOwnPropertyDescriptor(proto, 'value').set;
	setter.call(this, '');
	this.dispatchEvent(new Event('input', { bubbles: true }));
	return true;
}`

const fnCommit = `function() {
	this.dispatchEvent(new Event('change', { bubbles: true }));
	this.dispatchEvent(new Event('blur', { bubbles: true }));
	return true;
}`

// Fill clears the first match of loc, types value as key events and then
// fires change and blur.
func (p *Page) Fill(ctx context.Context, loc automation.Locator, value string) error {
	nodes, err := p.nodes(ctx, loc)
	if err != nil {
		return err
	}
	if len(nodes) == 0 {
		return fmt.Errorf("%w %s", errNoMatch, loc)
	}
	node := nodes[0]
	if err := callOn(ctx, node, fnClear, nil); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	if err := chromedp.Run(ctx, chromedp.SendKeys([]cdp.NodeID{node.NodeID}, value, chromedp.ByNodeID)); err != nil {
		return fmt.Errorf("type: %w", err)
	}
	return callOn(ctx, node, fnCommit, nil)
}

// Select picks the option whose value attribute equals value.
func (p *Page) Select(ctx context.Context, loc automation.Locator, value string) error {
	lit, err := json.Marshal(value)
	if err != nil {
		return err
	}
	fn := fmt.Sprintf(`function() {
	const v = %s;
	const opt = Array.from(this.options || []).find(o => o.value === v);
	if (!opt) return false;
	this.value = v;
	this.dispatchEvent(new Event('input', { bubbles: true }));
	this.dispatchEvent(new Event('change', { bubbles: true }));
	return true;
}`, lit)

	var ok bool
	if err := p.callOnFirst(ctx, loc, fn, &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("option %q not found", value)
	}
	return nil
}

// Click dispatches a real mouse click at the first match of loc.
func (p *Page) Click(ctx context.Context, loc automation.Locator) error {
	nodes, err := p.nodes(ctx, loc)
	if err != nil {
		return err
	}
	if len(nodes) == 0 {
		return fmt.Errorf("%w %s", errNoMatch, loc)
	}
	return chromedp.Run(ctx, chromedp.MouseClickNode(nodes[0]))
}

// SetFiles assigns paths to the last matching file input.
func (p *Page) SetFiles(ctx context.Context, loc automation.Locator, paths []string) error {
	nodes, err := p.nodes(ctx, loc)
	if err != nil {
		return err
	}
	if len(nodes) == 0 {
		return fmt.Errorf("%w %s", errNoMatch, loc)
	}
	last := nodes[len(nodes)-1]
	return chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return dom.SetFileInputFiles(paths).WithBackendNodeID(last.BackendNodeID).Do(ctx)
	}))
}

// ScrollIntoView centres the first match of loc in the viewport.
func (p *Page) ScrollIntoView(ctx context.Context, loc automation.Locator) error {
	return p.callOnFirst(ctx, loc, `function() { this.scrollIntoView({ block: 'center' }); return true; }`, nil)
}

// Eval runs script in the page and decodes its result into out, which may
// be nil.
func (p *Page) Eval(ctx context.Context, script string, out interface{}) error {
	if out == nil {
		var discard interface{}
		out = &discard
	}
	return chromedp.Run(ctx, chromedp.Evaluate(script, out))
}

// Screenshot writes a full-page PNG to path.
func (p *Page) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := chromedp.Run(ctx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0o644)
}
