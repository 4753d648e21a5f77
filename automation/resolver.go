package automation

import (
	"context"
	"time"
)

const defaultPollInterval = 200 * time.Millisecond

// Resolver turns an ordered candidate list into one element. Candidates are
// evaluated lazily in order on every poll; the first match wins and no state
// is carried between attempts, so the same page always yields the same
// choice.
type Resolver struct {
	page Page
	poll time.Duration
}

// NewResolver creates a Resolver polling page at the default interval.
func NewResolver(page Page) *Resolver {
	return &Resolver{page: page, poll: defaultPollInterval}
}

// Visible returns the first candidate whose first match is visible, waiting
// up to timeout. A zero timeout makes a single pass.
func (r *Resolver) Visible(ctx context.Context, candidates []Locator, timeout time.Duration) (Locator, bool) {
	return r.wait(ctx, candidates, timeout, func(loc Locator) bool {
		ok, err := r.page.Visible(ctx, loc)
		return err == nil && ok
	})
}

// Present returns the first candidate matching at least one element,
// visible or not, waiting up to timeout.
func (r *Resolver) Present(ctx context.Context, candidates []Locator, timeout time.Duration) (Locator, bool) {
	return r.wait(ctx, candidates, timeout, func(loc Locator) bool {
		n, err := r.page.Count(ctx, loc)
		return err == nil && n > 0
	})
}

func (r *Resolver) wait(ctx context.Context, candidates []Locator, timeout time.Duration, match func(Locator) bool) (Locator, bool) {
	if len(candidates) == 0 {
		return Locator{}, false
	}
	deadline := time.Now().Add(timeout)
	for {
		for _, c := range candidates {
			if match(c) {
				return c, true
			}
		}
		if ctx.Err() != nil || !time.Now().Before(deadline) {
			return Locator{}, false
		}
		wait := r.poll
		if left := time.Until(deadline); left < wait {
			wait = left
		}
		select {
		case <-ctx.Done():
			return Locator{}, false
		case <-time.After(wait):
		}
	}
}
