package automation

import (
	"context"
	"fmt"
	"time"

	"canalpro-publisher/utils"
)

// Mode is how the Filler interacts with a resolved control.
type Mode string

const (
	ModeText   Mode = "text"
	ModeSelect Mode = "select"
	ModeClick  Mode = "click"
)

// Filler locates one form control from its candidates and applies a value.
// Failures are reported, never raised, so one broken field cannot stop a
// run.
type Filler struct {
	page     Page
	resolver *Resolver
	timeout  time.Duration
	logger   *utils.Logger
}

// NewFiller creates a Filler that waits up to timeout for visibility.
func NewFiller(page Page, resolver *Resolver, timeout time.Duration, logger *utils.Logger) *Filler {
	return &Filler{page: page, resolver: resolver, timeout: timeout, logger: logger}
}

// Fill resolves the first visible candidate and applies value according to
// mode. Once a candidate resolves no other candidate is tried, even when the
// interaction itself fails. Emits one log line per call.
func (f *Filler) Fill(ctx context.Context, field string, candidates []Locator, value string, mode Mode) bool {
	return f.fill(ctx, field, candidates, value, mode, false)
}

// FillSecret is Fill in text mode without the value in the log.
func (f *Filler) FillSecret(ctx context.Context, field string, candidates []Locator, value string) bool {
	return f.fill(ctx, field, candidates, value, ModeText, true)
}

func (f *Filler) fill(ctx context.Context, field string, candidates []Locator, value string, mode Mode, secret bool) bool {
	loc, ok := f.resolver.Visible(ctx, candidates, f.timeout)
	if !ok {
		f.logger.Warn("[filler] %s: FAILED no selector resolved (%d candidates)", field, len(candidates))
		return false
	}

	var err error
	switch mode {
	case ModeText:
		err = f.page.Fill(ctx, loc, value)
	case ModeSelect:
		err = f.page.Select(ctx, loc, value)
	case ModeClick:
		err = f.page.Click(ctx, loc)
	default:
		err = fmt.Errorf("unknown mode %q", mode)
	}
	if err != nil {
		f.logger.Warn("[filler] %s: FAILED %s %s: %v", field, mode, loc, err)
		return false
	}

	switch {
	case mode == ModeClick:
		f.logger.Info("[filler] %s: ok click %s", field, loc)
	case secret:
		f.logger.Info("[filler] %s: ok %s %s = ***", field, mode, loc)
	default:
		f.logger.Info("[filler] %s: ok %s %s = %q", field, mode, loc, preview(value))
	}
	return true
}

func preview(s string) string {
	r := []rune(s)
	if len(r) > 40 {
		return string(r[:40]) + "..."
	}
	return s
}
