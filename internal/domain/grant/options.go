package grant

import (
	"time"

	"github.com/okian/podium/pkg/logger"
)

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithStreams sets the known streams. Eligibility is ranked across all of them.
func WithStreams(streams ...string) Option {
	return func(c *Coordinator) {
		c.streams = c.streams[:0]
		for _, s := range streams {
			if s != "" {
				c.streams = append(c.streams, s)
			}
		}
	}
}

// WithDefaultStream names the stream updated when a request names none.
// Defaults to the first known stream.
func WithDefaultStream(stream string) Option {
	return func(c *Coordinator) { c.defaultStream = stream }
}

// WithEligibleTopN sets how many leading players may receive a bonus.
func WithEligibleTopN(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.topN = n
		}
	}
}

// WithTimeout bounds a whole GrantBonus call.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithReleaseTimeout bounds the compensating release, which runs detached
// from the caller's cancellation.
func WithReleaseTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.releaseTimeout = d
		}
	}
}

// WithCompensator receives releases that failed synchronously.
func WithCompensator(comp Compensator) Option {
	return func(c *Coordinator) { c.compensator = comp }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.log = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithIDGenerator overrides grant id generation.
func WithIDGenerator(gen func() string) Option {
	return func(c *Coordinator) {
		if gen != nil {
			c.newID = gen
		}
	}
}
