package worklog

import (
    "testing"
    "time"

    "github.com/J2-Tech/Plywood-jira-sub000/internal/domain"
)

func TestPutGetAndInvalidateAll(t *testing.T) {
    c := New(30 * time.Minute)
    d1 := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
    d2 := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
    events := []domain.CalendarEvent{{WorklogID: "101", IssueKey: "TB-1", Minutes: 60}}

    c.Put(d1, d2, "all", events)
    got, ok := c.Get(d1, d2, "all")
    if !ok { t.Fatalf("expected hit within TTL") }
    if len(got) != 1 || got[0].WorklogID != "101" { t.Fatalf("wrong events: %#v", got) }

    c.InvalidateAll()
    if _, ok := c.Get(d1, d2, "all"); ok { t.Fatalf("expected miss after InvalidateAll") }
}

func TestSubDayJitterHitsSameEntry(t *testing.T) {
    c := New(30 * time.Minute)
    d1 := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
    d2 := time.Date(2026, 8, 7, 0, 0, 0, 0, time.UTC)
    c.Put(d1, d2, "TB", []domain.CalendarEvent{{WorklogID: "7"}})

    jittered1 := d1.Add(9*time.Hour + 13*time.Minute)
    jittered2 := d2.Add(23 * time.Hour)
    if _, ok := c.Get(jittered1, jittered2, "TB"); !ok {
        t.Fatalf("sub-day jitter fragmented the cache")
    }
    if _, ok := c.Get(d1, d2, "other"); ok {
        t.Fatalf("project filter must be part of the key")
    }
}

func TestEntriesOlderThanTTLAreMisses(t *testing.T) {
    c := New(30 * time.Minute)
    base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
    now := base
    c.now = func() time.Time { return now }

    d1 := base
    d2 := base.AddDate(0, 0, 7)
    c.Put(d1, d2, "all", []domain.CalendarEvent{{WorklogID: "5"}})

    now = base.Add(29 * time.Minute)
    if _, ok := c.Get(d1, d2, "all"); !ok { t.Fatalf("entry expired early") }

    now = base.Add(30 * time.Minute)
    if _, ok := c.Get(d1, d2, "all"); ok { t.Fatalf("expired entry served") }
    if len(c.entries) != 0 { t.Fatalf("expired entry not evicted on read") }
}

func TestGetReturnsCopies(t *testing.T) {
    c := New(30 * time.Minute)
    d1 := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
    c.Put(d1, d1, "all", []domain.CalendarEvent{{IssueKey: "TB-1", Color: "#abc"}})

    got, _ := c.Get(d1, d1, "all")
    got[0].Color = "#mutated"
    again, _ := c.Get(d1, d1, "all")
    if again[0].Color != "#abc" { t.Fatalf("cache contents aliased by caller mutation") }
}
