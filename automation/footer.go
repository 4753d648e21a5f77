package automation

import (
	"context"
	"strings"
	"time"

	"canalpro-publisher/utils"
)

// FooterVerifier checks that the form's action controls are rendered and
// visible. It only observes: nothing here clicks.
type FooterVerifier struct {
	page       Page
	resolver   *Resolver
	containers []Locator
	buttons    []Locator
	timeout    time.Duration
	logger     *utils.Logger
}

// NewFooterVerifier creates a FooterVerifier.
func NewFooterVerifier(page Page, resolver *Resolver, containers, buttons []Locator, timeout time.Duration, logger *utils.Logger) *FooterVerifier {
	return &FooterVerifier{
		page:       page,
		resolver:   resolver,
		containers: containers,
		buttons:    buttons,
		timeout:    timeout,
		logger:     logger,
	}
}

// CheckReady returns true iff at least one action button is visible.
func (f *FooterVerifier) CheckReady(ctx context.Context) bool {
	_ = f.page.Eval(ctx, ScriptScrollBottom, nil)

	var touched int
	if err := f.page.Eval(ctx, ScriptTriggerValidation, &touched); err != nil {
		f.logger.Debug("[footer] validation pass: %v", err)
	} else {
		f.logger.Info("[footer] validation events dispatched on %d controls", touched)
	}

	if loc, ok := f.resolver.Visible(ctx, f.containers, f.timeout); ok {
		f.logger.Info("[footer] container visible: %s", loc)
	} else {
		f.logger.Warn("[footer] no footer container visible, forcing layout")
		if err := f.page.Eval(ctx, ScriptForceFooter, nil); err != nil {
			f.logger.Debug("[footer] force css: %v", err)
		}
		_ = f.page.Eval(ctx, ScriptScrollBottom, nil)
	}

	if loc, ok := f.resolver.Visible(ctx, f.buttons, f.timeout); ok {
		f.logger.Info("[footer] action control visible: %s", loc)
		f.logger.Info("[footer] readiness check: true")
		return true
	}

	var probeVisible bool
	if err := f.page.Eval(ctx, ScriptInjectFooterProbe, &probeVisible); err != nil {
		f.logger.Debug("[footer] probe: %v", err)
	}
	f.logger.Warn("[footer] no action control found (injected probe visible=%t)", probeVisible)

	var texts []string
	if err := f.page.Eval(ctx, ScriptListButtons, &texts); err == nil && len(texts) > 0 {
		f.logger.Warn("[footer] buttons on page: %s", strings.Join(texts, " | "))
	} else {
		f.logger.Warn("[footer] no buttons found on page")
	}
	f.logger.Warn("[footer] readiness check: false")
	return false
}
