package automation

import (
	"context"
	"strings"
	"time"

	"canalpro-publisher/utils"
)

// switchState is the result of inspecting a toggle. Unknown is treated as
// already correct: the control is left alone.
type switchState int

const (
	switchUnknown switchState = iota
	switchInactive
	switchActive
)

func (s switchState) String() string {
	switch s {
	case switchActive:
		return "active"
	case switchInactive:
		return "inactive"
	default:
		return "unknown"
	}
}

var activeClassWords = []string{"active", "selected", "checked"}

// SwitchVerifier activates radio-styled switches without toggling ones that
// are already on. Clicking an active switch label turns it off, so the state
// is inspected before any click.
type SwitchVerifier struct {
	page     Page
	resolver *Resolver
	timeout  time.Duration
	settle   time.Duration
	logger   *utils.Logger
}

// NewSwitchVerifier creates a SwitchVerifier waiting up to timeout for the
// control and settle after a click.
func NewSwitchVerifier(page Page, resolver *Resolver, timeout, settle time.Duration, logger *utils.Logger) *SwitchVerifier {
	return &SwitchVerifier{page: page, resolver: resolver, timeout: timeout, settle: settle, logger: logger}
}

// EnsureActive makes the switch matched by candidates active. It returns
// false only when a click was needed and failed; a missing control or an
// unreadable state is assumed to be correct.
func (s *SwitchVerifier) EnsureActive(ctx context.Context, candidates []Locator, field string) bool {
	loc, ok := s.resolver.Visible(ctx, candidates, s.timeout)
	if !ok {
		s.logger.Warn("[switch] %s: not found, assuming default is correct", field)
		return true
	}

	state := s.inspect(ctx, loc)
	switch state {
	case switchActive:
		s.logger.Info("[switch] %s: already active (%s)", field, loc)
		return true
	case switchUnknown:
		s.logger.Warn("[switch] %s: state unknown (%s), assuming correct", field, loc)
		return true
	}

	if err := s.page.Click(ctx, loc); err != nil {
		s.logger.Warn("[switch] %s: FAILED click %s: %v", field, loc, err)
		return false
	}
	_ = utils.Sleep(ctx, s.settle)
	s.logger.Info("[switch] %s: activated (%s)", field, loc)
	return true
}

// inspect reads the state in order: the native checked property, a CSS class
// from the active vocabulary, then the input a label points at.
func (s *SwitchVerifier) inspect(ctx context.Context, loc Locator) switchState {
	st, err := s.page.State(ctx, loc)
	if err != nil {
		return switchUnknown
	}
	if st.HasChecked && st.Checked {
		return switchActive
	}
	if hasActiveClass(st.Class) {
		return switchActive
	}
	if strings.EqualFold(st.Tag, "label") && st.For != "" {
		in, err := s.page.State(ctx, ByID(st.For))
		if err != nil || !in.HasChecked {
			return switchUnknown
		}
		if in.Checked {
			return switchActive
		}
		return switchInactive
	}
	if st.HasChecked {
		return switchInactive
	}
	return switchUnknown
}

func hasActiveClass(class string) bool {
	for _, token := range strings.Fields(strings.ToLower(class)) {
		for _, w := range activeClassWords {
			if token == w || strings.HasSuffix(token, "-"+w) || strings.HasSuffix(token, "_"+w) {
				return true
			}
		}
	}
	return false
}
