/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
    "context"
    "fmt"
    "sort"
    "strings"
    "time"

    "github.com/J2-Tech/Plywood-jira-sub000/internal/colors"
    "github.com/J2-Tech/Plywood-jira-sub000/internal/config"
    "github.com/J2-Tech/Plywood-jira-sub000/internal/domain"
    "github.com/J2-Tech/Plywood-jira-sub000/internal/settings"
    "github.com/J2-Tech/Plywood-jira-sub000/internal/upstream"
    "github.com/J2-Tech/Plywood-jira-sub000/internal/worklog"
    "github.com/rs/zerolog"
)

const pageSize = 50

type tracker interface {
    Search(ctx context.Context, cred domain.Credential, jql string, startAt, max int) (map[string]any, error)
    Worklogs(ctx context.Context, cred domain.Credential, key string, startAt, max int) (map[string]any, error)
    AddWorklog(ctx context.Context, cred domain.Credential, key string, started time.Time, seconds int, comment string) (map[string]any, error)
    UpdateWorklog(ctx context.Context, cred domain.Credential, key, worklogID string, started time.Time, seconds int, comment string) (map[string]any, error)
    DeleteWorklog(ctx context.Context, cred domain.Credential, key, worklogID string) error
}

// Service assembles calendar views from upstream worklogs and owns the cache
// invalidation rules around worklog and settings mutations.
type Service struct {
    cfg     config.Config
    log     zerolog.Logger
    store   *settings.Store
    colors  *colors.Cache
    windows *worklog.WindowCache
    jira    tracker
    orch    *upstream.Orchestrator
}

func New(cfg config.Config, log zerolog.Logger, store *settings.Store, cc *colors.Cache, wc *worklog.WindowCache, jc tracker, orch *upstream.Orchestrator) *Service {
    return &Service{cfg: cfg, log: log, store: store, colors: cc, windows: wc, jira: jc, orch: orch}
}

// Events returns presentation-ready calendar events for the window, served
// from the window cache when fresh.
func (s *Service) Events(ctx context.Context, sess upstream.Session, start, end time.Time, project string) ([]domain.CalendarEvent, error) {
    if evs, ok := s.windows.Get(start, end, project); ok { return evs, nil }

    doc := s.store.Get(sess.UserID())
    jql := fmt.Sprintf("worklogDate >= %q AND worklogDate <= %q", start.Format("2006-01-02"), end.Format("2006-01-02"))
    if project != "" && project != "all" { jql = fmt.Sprintf("project = %q AND %s", project, jql) }

    var events []domain.CalendarEvent
    for startAt := 0; ; startAt += pageSize {
        off := startAt
        page, err := s.orch.Call(ctx, sess, func(ctx context.Context, cred domain.Credential) (map[string]any, error) {
            return s.jira.Search(ctx, cred, jql, off, pageSize)
        })
        if err != nil { return nil, err }
        issues, _ := page["issues"].([]any)
        if len(issues) == 0 { break }
        for _, it := range issues {
            im, _ := it.(map[string]any)
            if im == nil { continue }
            evs, err := s.issueEvents(ctx, sess, doc, im, start, end)
            if err != nil { return nil, err }
            events = append(events, evs...)
        }
        if len(issues) < pageSize { break }
    }

    sort.Slice(events, func(i, j int) bool { return events[i].Start.Before(events[j].Start) })
    s.windows.Put(start, end, project, events)
    return events, nil
}

func (s *Service) issueEvents(ctx context.Context, sess upstream.Session, doc domain.UserSettings, im map[string]any, start, end time.Time) ([]domain.CalendarEvent, error) {
    key := toStrAny(im["key"])
    if key == "" { return nil, nil }
    issueID := toStrAny(im["id"])
    fields, _ := im["fields"].(map[string]any)
    summary := toStrAny(fields["summary"])
    typ := ""
    if tp, ok := fields["issuetype"].(map[string]any); ok { typ = toStrAny(tp["name"]) }
    parentKey, parentType := "", ""
    if p, ok := fields["parent"].(map[string]any); ok {
        parentKey = toStrAny(p["key"])
        if pf, ok := p["fields"].(map[string]any); ok {
            if pt, ok := pf["issuetype"].(map[string]any); ok { parentType = toStrAny(pt["name"]) }
        }
    }

    color, err := s.colors.Resolve(colors.Query{
        UserID: sess.UserID(), IssueKey: key, IssueType: typ,
        ParentKey: parentKey, ParentType: parentType,
    })
    if err != nil { return nil, err }

    // the settings store seeds configured rounding into the defaults document;
    // an explicit 0 in the user's document disables rounding entirely
    rounding := doc.RoundingMinutes

    var out []domain.CalendarEvent
    for startAt := 0; ; startAt += pageSize {
        off := startAt
        page, err := s.orch.Call(ctx, sess, func(ctx context.Context, cred domain.Credential) (map[string]any, error) {
            return s.jira.Worklogs(ctx, cred, key, off, pageSize)
        })
        if err != nil { return nil, err }
        logs, _ := page["worklogs"].([]any)
        if len(logs) == 0 { break }
        for _, w0 := range logs {
            wm, _ := w0.(map[string]any)
            if wm == nil { continue }
            started := parseTimeUTC(wm["started"])
            if started == nil || started.Before(start) || !started.Before(end.AddDate(0, 0, 1)) { continue }
            secs := 0
            if v, ok := wm["timeSpentSeconds"].(float64); ok { secs = int(v) }
            minutes := roundUpMinutes((secs+59)/60, rounding)
            author := ""
            if a, ok := wm["author"].(map[string]any); ok { author = toStrAny(a["displayName"]) }
            out = append(out, domain.CalendarEvent{
                WorklogID: toStrAny(wm["id"]),
                IssueID:   issueID,
                IssueKey:  key,
                IssueType: typ,
                Summary:   summary,
                Author:    author,
                Start:     *started,
                End:       started.Add(time.Duration(minutes) * time.Minute),
                Minutes:   minutes,
                Comment:   commentText(wm["comment"]),
                Color:     color,
            })
        }
        if len(logs) < pageSize { break }
    }
    return out, nil
}

func (s *Service) CreateWorklog(ctx context.Context, sess upstream.Session, issueKey string, started time.Time, minutes int, comment string) (map[string]any, error) {
    res, err := s.orch.Call(ctx, sess, func(ctx context.Context, cred domain.Credential) (map[string]any, error) {
        return s.jira.AddWorklog(ctx, cred, issueKey, started, minutes*60, comment)
    })
    if err != nil { return nil, err }
    s.windows.InvalidateAll()
    return res, nil
}

func (s *Service) UpdateWorklog(ctx context.Context, sess upstream.Session, issueKey, worklogID string, started time.Time, minutes int, comment string) (map[string]any, error) {
    res, err := s.orch.Call(ctx, sess, func(ctx context.Context, cred domain.Credential) (map[string]any, error) {
        return s.jira.UpdateWorklog(ctx, cred, issueKey, worklogID, started, minutes*60, comment)
    })
    if err != nil { return nil, err }
    s.windows.InvalidateAll()
    return res, nil
}

func (s *Service) DeleteWorklog(ctx context.Context, sess upstream.Session, issueKey, worklogID string) error {
    _, err := s.orch.Call(ctx, sess, func(ctx context.Context, cred domain.Credential) (map[string]any, error) {
        return nil, s.jira.DeleteWorklog(ctx, cred, issueKey, worklogID)
    })
    if err != nil { return err }
    s.windows.InvalidateAll()
    return nil
}

func (s *Service) Settings(userID string) domain.UserSettings { return s.store.Get(userID) }

// SetSetting writes one field. Cached windows bake rounding into event
// durations, so any accepted write clears the window cache.
func (s *Service) SetSetting(userID, field string, value any) (domain.UserSettings, error) {
    doc, err := s.store.SetField(userID, field, value)
    if err != nil { return domain.UserSettings{}, err }
    s.windows.InvalidateAll()
    return doc, nil
}

// SaveSettings merges a partial document; saved colors must become visible
// immediately, so each one evicts its color cache entry and the window cache
// is cleared wholesale.
func (s *Service) SaveSettings(userID string, p settings.Partial) (domain.UserSettings, error) {
    doc, err := s.store.MergeDocument(userID, p)
    if err != nil { return domain.UserSettings{}, err }
    for k := range p.IssueColors { s.colors.Invalidate(k) }
    s.windows.InvalidateAll()
    return doc, nil
}

func roundUpMinutes(minutes, interval int) int {
    if interval <= 0 || minutes <= 0 { return minutes }
    rem := minutes % interval
    if rem == 0 { return minutes }
    return minutes + interval - rem
}

// commentText flattens a worklog comment. API v2 returns a plain string, v3
// an Atlassian document; only its text nodes are kept.
func commentText(v any) string {
    if s, ok := v.(string); ok { return s }
    var b strings.Builder
    flattenComment(v, &b)
    return strings.TrimSpace(b.String())
}

func flattenComment(v any, b *strings.Builder) {
    switch n := v.(type) {
    case map[string]any:
        if t, ok := n["text"].(string); ok { b.WriteString(t) }
        flattenComment(n["content"], b)
        if n["type"] == "paragraph" { b.WriteString("\n") }
    case []any:
        for _, c := range n { flattenComment(c, b) }
    }
}

func toStrAny(v any) string {
    if v == nil { return "" }
    if s, ok := v.(string); ok { return s }
    return fmt.Sprintf("%v", v)
}

func parseTimeUTC(v any) *time.Time {
    s, _ := v.(string)
    if s == "" { return nil }
    layouts := []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.000-0700", "2006-01-02T15:04:05-0700"}
    for _, l := range layouts {
        if t, err := time.Parse(l, s); err == nil { tt := t.UTC(); return &tt }
    }
    return nil
}
