// Package throttle implements counter-based backpressure: a process-wide
// request counter with pause rules that suspend the caller before the
// platform starts terminating the session.
package throttle

import (
	"context"
	"sort"
	"sync"
	"time"

	"bililottery/pkg/logger"
)

// Rule pauses the caller for Pause once the request counter crosses each
// successive multiple of Threshold.
type Rule struct {
	Threshold int64
	Pause     time.Duration
}

// Event describes a rule firing, delivered to listeners before the pause.
type Event struct {
	Threshold int64
	Pause     time.Duration
	Count     int64
}

// Listener receives rule-firing events.
type Listener func(Event)

type ruleState struct {
	Rule
	// watermark is the counter value at which this rule next fires. It only
	// ever advances, and always by a whole multiple of Threshold.
	watermark int64
}

// Controller owns the request counter and rule watermarks. One instance is
// deliberately shared by all concurrent harvests so they draw from a single
// backpressure budget.
type Controller struct {
	mu        sync.Mutex
	count     int64
	rules     []*ruleState
	listeners []Listener
	log       logger.Logger

	// sleep is swappable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewController builds a controller from the given rules. Rules are
// evaluated largest threshold first; when several are simultaneously
// eligible only the first fires per call.
func NewController(rules []Rule, log logger.Logger) *Controller {
	if log == nil {
		log = logger.Nop()
	}
	c := &Controller{log: log, sleep: wait}
	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Threshold > sorted[j].Threshold })
	for _, r := range sorted {
		if r.Threshold <= 0 {
			continue
		}
		c.rules = append(c.rules, &ruleState{Rule: r, watermark: r.Threshold})
	}
	return c
}

// Subscribe registers a listener for rule firings.
func (c *Controller) Subscribe(l Listener) {
	c.mu.Lock()
	c.listeners = append(c.listeners, l)
	c.mu.Unlock()
}

// Count returns the number of requests recorded so far.
func (c *Controller) Count() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// Reset zeroes the counter and rewinds every watermark. Only meant for the
// start of a fresh process-level lifecycle (or tests).
func (c *Controller) Reset() {
	c.mu.Lock()
	c.count = 0
	for _, r := range c.rules {
		r.watermark = r.Threshold
	}
	c.mu.Unlock()
}

// Record counts one completed request and, if a rule's watermark has been
// reached, notifies listeners and suspends the caller for that rule's
// pause. At most one rule fires per call.
func (c *Controller) Record(ctx context.Context) error {
	return c.Advance(ctx, 1)
}

// Advance adds n to the counter at once, for callers that account a whole
// burst in one step. Watermark advancement still moves by whole multiples
// of the threshold past the new counter value, so a burst that skips over
// one or more multiples fires its rule exactly once.
func (c *Controller) Advance(ctx context.Context, n int64) error {
	if n <= 0 {
		return nil
	}
	c.mu.Lock()
	c.count += n
	count := c.count

	var fired *ruleState
	for _, r := range c.rules {
		if count >= r.watermark {
			fired = r
			break
		}
	}
	if fired == nil {
		c.mu.Unlock()
		return nil
	}

	// Advance past the current counter by the minimal whole multiple of the
	// threshold, so a burst that jumped over several multiples fires once.
	steps := (count-fired.watermark)/fired.Threshold + 1
	fired.watermark += steps * fired.Threshold

	event := Event{Threshold: fired.Threshold, Pause: fired.Pause, Count: count}
	listeners := make([]Listener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	for _, l := range listeners {
		l(event)
	}

	c.log.WarnWithFields("throttle rule fired, pausing", map[string]interface{}{
		"threshold":     event.Threshold,
		"pause":         event.Pause,
		"request_count": event.Count,
	})
	return c.sleep(ctx, fired.Pause)
}

// wait sleeps for d or until ctx is cancelled.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
