package ratelimit

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

// Snapshot is the last-observed upstream quota state. The gate paces
// preventively; this state is bookkeeping for callers and error metadata,
// never a trigger for automatic retries.
type Snapshot struct {
	Limit      int
	Remaining  int
	ResetAt    *time.Time
	RetryAfter *time.Duration
	LastStatus int
	UpdatedAt  time.Time
}

// Tracker folds upstream rate-limit response headers into a shared
// snapshot. One instance is shared by every call the process issues.
type Tracker struct {
	Now func() time.Time

	mu   sync.RWMutex
	last Snapshot
}

func NewTracker() *Tracker {
	return &Tracker{Now: func() time.Time { return time.Now().UTC() }}
}

// Observe records the quota headers of one response.
func (t *Tracker) Observe(statusCode int, headers map[string]string) {
	if t == nil {
		return
	}
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.last.LastStatus = statusCode
	t.last.UpdatedAt = now
	if limit, ok := headerInt(headers, "x-ratelimit-limit"); ok {
		t.last.Limit = limit
	}
	if remaining, ok := headerInt(headers, "x-ratelimit-remaining"); ok {
		t.last.Remaining = remaining
	}
	if resetAt, ok := headerResetAt(headers); ok {
		t.last.ResetAt = &resetAt
	}
	if retryAfter, ok := RetryAfter(headers, now); ok {
		t.last.RetryAfter = &retryAfter
	} else {
		t.last.RetryAfter = nil
	}
}

// Snapshot returns a copy of the last-observed state.
func (t *Tracker) Snapshot() Snapshot {
	if t == nil {
		return Snapshot{}
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last
}

func (t *Tracker) now() time.Time {
	if t != nil && t.Now != nil {
		return t.Now().UTC()
	}
	return time.Now().UTC()
}

// Throttled reports whether a response indicates upstream throttling: a
// 429, or a 403 carrying an exhausted quota header (the platform's
// secondary limit surface).
func Throttled(statusCode int, headers map[string]string) bool {
	if statusCode == 429 {
		return true
	}
	if statusCode != 403 {
		return false
	}
	remaining, ok := headerInt(headers, "x-ratelimit-remaining")
	if ok && remaining == 0 {
		return true
	}
	_, hasRetryAfter := RetryAfter(headers, time.Now().UTC())
	return hasRetryAfter
}

// RetryAfter extracts the upstream retry hint, honoring both delta-seconds
// and HTTP-date forms.
func RetryAfter(headers map[string]string, now time.Time) (time.Duration, bool) {
	raw := headerValue(headers, "retry-after")
	if raw == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(raw); err == nil {
		if seconds <= 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	for _, layout := range []string{time.RFC1123, time.RFC1123Z} {
		if retryAt, err := time.Parse(layout, raw); err == nil {
			if retryAt.After(now) {
				return retryAt.Sub(now), true
			}
			return 0, false
		}
	}
	return 0, false
}

func headerInt(headers map[string]string, key string) (int, bool) {
	value := headerValue(headers, key)
	if value == "" {
		return 0, false
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

func headerResetAt(headers map[string]string) (time.Time, bool) {
	value := headerValue(headers, "x-ratelimit-reset")
	if value == "" {
		return time.Time{}, false
	}
	unix, err := strconv.ParseInt(value, 10, 64)
	if err != nil || unix <= 0 {
		return time.Time{}, false
	}
	return time.Unix(unix, 0).UTC(), true
}

func headerValue(headers map[string]string, key string) string {
	if len(headers) == 0 {
		return ""
	}
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
