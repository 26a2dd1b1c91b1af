/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package colors

import (
    "strings"
    "sync"
    "time"

    "github.com/J2-Tech/Plywood-jira-sub000/internal/domain"
    "github.com/rs/zerolog"
    "golang.org/x/sync/singleflight"
)

// Settings is the slice of the settings store the cache reads from. Lookups
// go to the store directly so a just-saved color is visible immediately.
type Settings interface {
    Get(userID string) domain.UserSettings
}

// Query carries everything the priority cascade needs. Parent fields are
// optional and only consulted when supplied.
type Query struct {
    UserID     string
    IssueKey   string
    IssueType  string
    ParentKey  string
    ParentType string
}

// builtin type colors, lowest priority before the configured fallback.
var builtinTypeColors = map[string]string{
    "bug":         "#e5493a",
    "task":        "#4bade8",
    "story":       "#63ba3c",
    "epic":        "#904ee2",
    "sub-task":    "#4bade8",
    "subtask":     "#4bade8",
    "improvement": "#63ba3c",
}

type entry struct {
    color    string
    cachedAt time.Time
}

// Cache resolves issue colors through a fixed priority cascade and remembers
// the outcome per issue key. Concurrent misses for the same key share one
// computation; the in-flight marker is dropped on every exit path, errors
// included, so a failed resolution leaves the key in the miss state.
type Cache struct {
    settings Settings
    ttl      time.Duration
    fallback string
    log      zerolog.Logger
    now      func() time.Time

    compute func(doc domain.UserSettings, q Query) (string, error)

    mu      sync.Mutex
    entries map[string]entry
    group   singleflight.Group
}

func New(settings Settings, ttl time.Duration, fallback string, log zerolog.Logger) *Cache {
    c := &Cache{
        settings: settings,
        ttl:      ttl,
        fallback: fallback,
        log:      log,
        now:      time.Now,
        entries:  map[string]entry{},
    }
    c.compute = c.cascade
    return c
}

// Resolve walks the cascade: explicit per-issue color from settings first
// (bypassing the in-memory cache), then a fresh cache entry, then one shared
// computation over parent color, parent type color, issue type color, the
// builtin table, and the configured fallback.
func (c *Cache) Resolve(q Query) (string, error) {
    key := strings.ToLower(strings.TrimSpace(q.IssueKey))
    doc := c.settings.Get(q.UserID)
    if v := doc.IssueColors[key]; v != "" { return v, nil }

    if v, ok := c.lookup(key); ok { return v, nil }

    v, err, _ := c.group.Do(key, func() (any, error) {
        color, err := c.compute(doc, q)
        if err != nil { return "", err }
        c.mu.Lock()
        c.entries[key] = entry{color: color, cachedAt: c.now()}
        c.mu.Unlock()
        return color, nil
    })
    if err != nil { return "", err }
    return v.(string), nil
}

func (c *Cache) cascade(doc domain.UserSettings, q Query) (string, error) {
    if q.ParentKey != "" {
        if v := doc.IssueColors[strings.ToLower(q.ParentKey)]; v != "" { return v, nil }
    }
    if q.ParentType != "" {
        if v := doc.IssueColors[strings.ToLower(q.ParentType)]; v != "" { return v, nil }
    }
    typ := strings.ToLower(strings.TrimSpace(q.IssueType))
    if v := doc.IssueColors[typ]; v != "" { return v, nil }
    if v := builtinTypeColors[typ]; v != "" { return v, nil }
    return c.fallback, nil
}

// lookup applies expiry-on-read: an expired entry is removed and reported as a miss.
func (c *Cache) lookup(key string) (string, bool) {
    c.mu.Lock()
    defer c.mu.Unlock()
    e, ok := c.entries[key]
    if !ok { return "", false }
    if c.now().Sub(e.cachedAt) >= c.ttl {
        delete(c.entries, key)
        return "", false
    }
    return e.color, true
}

// Invalidate drops the cached color for one issue key. Must be called when a
// color for that key is saved through settings.
func (c *Cache) Invalidate(issueKey string) {
    c.mu.Lock()
    defer c.mu.Unlock()
    delete(c.entries, strings.ToLower(strings.TrimSpace(issueKey)))
}

func (c *Cache) InvalidateAll() {
    c.mu.Lock()
    defer c.mu.Unlock()
    c.entries = map[string]entry{}
}

// Sweep removes expired entries. Expiry-on-read stays authoritative; this
// only bounds memory between reads.
func (c *Cache) Sweep() {
    c.mu.Lock()
    defer c.mu.Unlock()
    now := c.now()
    for k, e := range c.entries {
        if now.Sub(e.cachedAt) >= c.ttl { delete(c.entries, k) }
    }
}
