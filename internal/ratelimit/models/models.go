package models

import "time"

// Result reports the outcome of consuming from a bucket.
type Result struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
}

// RetryAfterSeconds rounds up so a caller that waits the hinted time is
// never refused for the same window.
func RetryAfterSeconds(allowed bool, resetAt, now time.Time) int {
	if allowed || !resetAt.After(now) {
		return 0
	}
	d := resetAt.Sub(now)
	seconds := int(d / time.Second)
	if d%time.Second != 0 {
		seconds++
	}
	return seconds
}
