/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package worklog

import (
    "sync"
    "time"

    "github.com/J2-Tech/Plywood-jira-sub000/internal/domain"
)

// Key identifies one cached window. Dates are truncated to calendar days
// before key construction so sub-day query jitter maps onto one entry.
type Key struct {
    Start   string
    End     string
    Project string
}

func keyFor(start, end time.Time, project string) Key {
    return Key{Start: start.Format("2006-01-02"), End: end.Format("2006-01-02"), Project: project}
}

type entry struct {
    events   []domain.CalendarEvent
    cachedAt time.Time
}

// WindowCache holds presentation-ready event lists per query window. Colors
// and rounding are baked into the cached records, so any worklog mutation or
// color change clears the whole cache rather than guessing affected keys.
type WindowCache struct {
    ttl time.Duration
    now func() time.Time

    mu      sync.RWMutex
    entries map[Key]entry
}

func New(ttl time.Duration) *WindowCache {
    return &WindowCache{ttl: ttl, now: time.Now, entries: map[Key]entry{}}
}

// Get returns the cached events for the window, or false on a miss. Entries
// older than TTL are misses and are evicted on read.
func (c *WindowCache) Get(start, end time.Time, project string) ([]domain.CalendarEvent, bool) {
    k := keyFor(start, end, project)

    c.mu.RLock()
    e, ok := c.entries[k]
    c.mu.RUnlock()
    if !ok { return nil, false }
    if c.now().Sub(e.cachedAt) >= c.ttl {
        c.mu.Lock()
        if cur, ok := c.entries[k]; ok && cur.cachedAt == e.cachedAt { delete(c.entries, k) }
        c.mu.Unlock()
        return nil, false
    }
    out := make([]domain.CalendarEvent, len(e.events))
    copy(out, e.events)
    return out, true
}

func (c *WindowCache) Put(start, end time.Time, project string, events []domain.CalendarEvent) {
    stored := make([]domain.CalendarEvent, len(events))
    copy(stored, events)
    c.mu.Lock()
    c.entries[keyFor(start, end, project)] = entry{events: stored, cachedAt: c.now()}
    c.mu.Unlock()
}

// InvalidateAll clears every window. Callers invoke it after any worklog
// create/update/delete and after any color change.
func (c *WindowCache) InvalidateAll() {
    c.mu.Lock()
    c.entries = map[Key]entry{}
    c.mu.Unlock()
}

// Sweep drops expired windows; expiry-on-read stays authoritative.
func (c *WindowCache) Sweep() {
    c.mu.Lock()
    defer c.mu.Unlock()
    now := c.now()
    for k, e := range c.entries {
        if now.Sub(e.cachedAt) >= c.ttl { delete(c.entries, k) }
    }
}
