package colors

import (
    "errors"
    "sync"
    "sync/atomic"
    "testing"
    "time"

    "github.com/J2-Tech/Plywood-jira-sub000/internal/domain"
    "github.com/rs/zerolog"
)

type stubSettings struct{ doc domain.UserSettings }

func (s *stubSettings) Get(string) domain.UserSettings { return s.doc }

func newTestCache(doc domain.UserSettings) *Cache {
    if doc.IssueColors == nil { doc.IssueColors = map[string]string{} }
    return New(&stubSettings{doc: doc}, time.Hour, "#2a75fe", zerolog.Nop())
}

func TestConcurrentResolveTriggersOneComputation(t *testing.T) {
    c := newTestCache(domain.UserSettings{})
    var count int32
    entered := make(chan struct{})
    gate := make(chan struct{})
    c.compute = func(domain.UserSettings, Query) (string, error) {
        if atomic.AddInt32(&count, 1) == 1 { close(entered) }
        <-gate
        return "#abc", nil
    }

    q := Query{UserID: "u", IssueKey: "TB-1", IssueType: "Task"}
    results := make(chan string, 2)
    var wg sync.WaitGroup
    wg.Add(1)
    go func() { defer wg.Done(); v, err := c.Resolve(q); if err != nil { t.Errorf("resolve: %v", err) }; results <- v }()
    <-entered
    wg.Add(1)
    go func() { defer wg.Done(); v, err := c.Resolve(q); if err != nil { t.Errorf("resolve: %v", err) }; results <- v }()
    time.Sleep(100 * time.Millisecond) // let the second caller join the in-flight computation
    close(gate)
    wg.Wait()
    close(results)

    if n := atomic.LoadInt32(&count); n != 1 { t.Fatalf("expected 1 computation, got %d", n) }
    for v := range results {
        if v != "#abc" { t.Fatalf("callers disagree on result: %q", v) }
    }
}

func TestSavedColorBeatsStaleCacheEntry(t *testing.T) {
    c := newTestCache(domain.UserSettings{IssueColors: map[string]string{"tb-9": "#fff"}})
    c.entries["tb-9"] = entry{color: "#000", cachedAt: time.Now()}

    v, err := c.Resolve(Query{UserID: "u", IssueKey: "TB-9", IssueType: "Bug"})
    if err != nil { t.Fatalf("resolve: %v", err) }
    if v != "#fff" { t.Fatalf("settings color must bypass the memory cache, got %q", v) }
}

func TestCascadeOrder(t *testing.T) {
    doc := domain.UserSettings{IssueColors: map[string]string{
        "par-1": "#p1",
        "epic":  "#ep",
        "story": "#st",
    }}
    c := newTestCache(doc)

    cases := []struct {
        name string
        q    Query
        want string
    }{
        {"parent explicit color", Query{IssueKey: "TB-1", IssueType: "Story", ParentKey: "PAR-1", ParentType: "Epic"}, "#p1"},
        {"parent type color", Query{IssueKey: "TB-2", IssueType: "Story", ParentKey: "PAR-9", ParentType: "Epic"}, "#ep"},
        {"own type color", Query{IssueKey: "TB-3", IssueType: "Story"}, "#st"},
        {"builtin type color", Query{IssueKey: "TB-4", IssueType: "Bug"}, "#e5493a"},
        {"configured fallback", Query{IssueKey: "TB-5", IssueType: "Mystery"}, "#2a75fe"},
    }
    for _, tc := range cases {
        v, err := c.Resolve(tc.q)
        if err != nil { t.Fatalf("%s: %v", tc.name, err) }
        if v != tc.want { t.Fatalf("%s: got %q want %q", tc.name, v, tc.want) }
    }
}

func TestEntriesOlderThanTTLAreMisses(t *testing.T) {
    c := newTestCache(domain.UserSettings{})
    base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
    now := base
    c.now = func() time.Time { return now }
    var count int32
    c.compute = func(domain.UserSettings, Query) (string, error) { atomic.AddInt32(&count, 1); return "#abc", nil }

    q := Query{IssueKey: "TB-7", IssueType: "Task"}
    if _, err := c.Resolve(q); err != nil { t.Fatalf("resolve: %v", err) }
    if _, err := c.Resolve(q); err != nil { t.Fatalf("resolve: %v", err) }
    if count != 1 { t.Fatalf("fresh entry recomputed: %d", count) }

    now = base.Add(time.Hour) // exactly TTL: expired
    if _, err := c.Resolve(q); err != nil { t.Fatalf("resolve: %v", err) }
    if count != 2 { t.Fatalf("expired entry served from cache: %d computations", count) }
    if _, ok := c.entries["tb-7"]; !ok { t.Fatalf("recomputed entry not stored") }
}

func TestFailedComputationPropagatesAndLeavesMiss(t *testing.T) {
    c := newTestCache(domain.UserSettings{})
    boom := errors.New("settings backend down")
    c.compute = func(domain.UserSettings, Query) (string, error) { return "", boom }

    if _, err := c.Resolve(Query{IssueKey: "TB-8", IssueType: "Task"}); !errors.Is(err, boom) {
        t.Fatalf("expected computation error, got %v", err)
    }
    if len(c.entries) != 0 { t.Fatalf("failed resolution must not populate the cache: %#v", c.entries) }

    // the key is not stuck: a later attempt succeeds
    c.compute = func(domain.UserSettings, Query) (string, error) { return "#ok", nil }
    v, err := c.Resolve(Query{IssueKey: "TB-8", IssueType: "Task"})
    if err != nil || v != "#ok" { t.Fatalf("retry after failure: %q %v", v, err) }
}

func TestInvalidateForcesRecompute(t *testing.T) {
    c := newTestCache(domain.UserSettings{})
    var count int32
    c.compute = func(domain.UserSettings, Query) (string, error) { atomic.AddInt32(&count, 1); return "#abc", nil }

    q := Query{IssueKey: "TB-6", IssueType: "Task"}
    if _, err := c.Resolve(q); err != nil { t.Fatalf("resolve: %v", err) }
    c.Invalidate("TB-6")
    if _, err := c.Resolve(q); err != nil { t.Fatalf("resolve: %v", err) }
    if count != 2 { t.Fatalf("invalidate did not evict: %d computations", count) }

    c.InvalidateAll()
    if len(c.entries) != 0 { t.Fatalf("InvalidateAll left entries: %#v", c.entries) }
}
