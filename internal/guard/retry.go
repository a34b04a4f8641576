package guard

import "time"

// RetryPolicy computes redelivery backoff for failed outbox events.
// Delays double from Base up to Cap; once an event has been failing for
// longer than Budget it is parked on the dead-letter queue instead of
// retried again.
type RetryPolicy struct {
	Base   time.Duration
	Cap    time.Duration
	Budget time.Duration
}

// DefaultRetryPolicy returns the production backoff: 1s doubling to a 5
// minute ceiling, with a 24 hour budget before dead-lettering.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Base:   time.Second,
		Cap:    5 * time.Minute,
		Budget: 24 * time.Hour,
	}
}

// NextDelay returns the backoff after the given number of completed
// attempts. The first retry (attempts=1) waits Base.
func (p RetryPolicy) NextDelay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	delay := p.Base
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= p.Cap {
			return p.Cap
		}
	}
	if delay > p.Cap {
		return p.Cap
	}
	return delay
}

// Exhausted reports whether an event first seen at occurredAt has used up
// its retry budget.
func (p RetryPolicy) Exhausted(occurredAt, now time.Time) bool {
	return now.Sub(occurredAt) > p.Budget
}
