package automation

import (
	"context"
	"strings"

	"canalpro-publisher/utils"
)

// SubmitGuard wraps a Page and refuses clicks on create/publish controls once
// armed. The orchestrator arms it as soon as the listing form is open, so no
// code path after that point can publish.
type SubmitGuard struct {
	Page
	forbidden []string
	armed     bool
	logger    *utils.Logger
}

// NewSubmitGuard wraps page. forbidden holds button texts that must never be
// clicked; matching is case-insensitive on the trimmed text.
func NewSubmitGuard(page Page, forbidden []string, logger *utils.Logger) *SubmitGuard {
	f := make([]string, 0, len(forbidden))
	for _, s := range forbidden {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			f = append(f, s)
		}
	}
	return &SubmitGuard{Page: page, forbidden: f, logger: logger}
}

// Arm enables blocking.
func (g *SubmitGuard) Arm() { g.armed = true }

// Armed reports whether blocking is enabled.
func (g *SubmitGuard) Armed() bool { return g.armed }

// Click forwards to the wrapped page unless the target is a submit control.
// If the target cannot be inspected the click is refused.
func (g *SubmitGuard) Click(ctx context.Context, loc Locator) error {
	if !g.armed {
		return g.Page.Click(ctx, loc)
	}
	st, err := g.Page.State(ctx, loc)
	if err != nil {
		g.logger.Warn("[guard] refusing click on uninspectable %s: %v", loc, err)
		return ErrSubmitBlocked
	}
	if g.isSubmit(st) {
		g.logger.Error("[guard] blocked click on %s (%q)", loc, strings.TrimSpace(st.Text))
		return ErrSubmitBlocked
	}
	return g.Page.Click(ctx, loc)
}

func (g *SubmitGuard) isSubmit(st ElementState) bool {
	if strings.EqualFold(st.Type, "submit") {
		return true
	}
	text := strings.ToLower(strings.TrimSpace(st.Text))
	for _, f := range g.forbidden {
		if strings.Contains(text, f) {
			return true
		}
	}
	return false
}
