/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package jira

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"
    "net/url"
    "strings"
    "time"

    "github.com/J2-Tech/Plywood-jira-sub000/internal/config"
    "github.com/J2-Tech/Plywood-jira-sub000/internal/domain"
    "github.com/rs/zerolog"
)

const jiraTimeLayout = "2006-01-02T15:04:05.000-0700"

// Client talks to the upstream tracker REST API. Credentials are passed per
// call; the expired-credential retry protocol lives in the orchestrator, so a
// 401 here surfaces immediately as *domain.StatusError.
type Client struct {
    baseURL string
    mode    string
    user    string
    pass    string
    http    *http.Client
    log     zerolog.Logger
    apiVer  string
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
    return &Client{
        baseURL: cfg.JiraBaseURL,
        mode:    cfg.AuthMode,
        user:    cfg.JiraUsername,
        pass:    cfg.JiraPassword,
        http:    &http.Client{ Timeout: cfg.HTTPTimeout },
        log:     log,
        apiVer:  cfg.JiraAPIVersion,
    }
}

func (c *Client) apiURL(path string, q url.Values) string {
    base := strings.TrimRight(c.baseURL, "/")
    if !strings.HasPrefix(path, "/") { path = "/" + path }
    u := base + path
    if q != nil && len(q) > 0 { u = u + "?" + q.Encode() }
    return u
}

func (c *Client) issuePath(key, suffix string) string {
    ver := "3"
    if c.apiVer == "2" { ver = "2" }
    return "/rest/api/" + ver + "/issue/" + url.PathEscape(key) + suffix
}

func (c *Client) authorize(req *http.Request, cred domain.Credential) {
    if c.mode == domain.AuthBasic && c.user != "" && c.pass != "" {
        req.SetBasicAuth(c.user, c.pass)
        return
    }
    if cred.AccessToken != "" { req.Header.Set("Authorization", "Bearer "+cred.AccessToken) }
}

func (c *Client) doJSON(ctx context.Context, cred domain.Credential, method, u string, body any) (map[string]any, error) {
    if c.baseURL == "" { return nil, errors.New("jira: empty baseURL") }
    var payload []byte
    if body != nil {
        b, err := json.Marshal(body)
        if err != nil { return nil, err }
        payload = b
    }
    var lastErr error
    for attempt := 0; attempt < 3; attempt++ {
        var r io.Reader
        if payload != nil { r = strings.NewReader(string(payload)) }
        req, err := http.NewRequestWithContext(ctx, method, u, r)
        if err != nil { return nil, err }
        if payload != nil { req.Header.Set("Content-Type", "application/json") }
        c.authorize(req, cred)
        resp, err := c.http.Do(req)
        if err != nil { lastErr = err } else {
            out, done, derr := decodeResponse(resp)
            if done { return out, derr }
            lastErr = derr
        }
        // backoff on 429/5xx only
        time.Sleep(time.Duration(300*(1<<attempt)) * time.Millisecond)
    }
    return nil, lastErr
}

// decodeResponse reports done=false only for retryable statuses (429/5xx).
func decodeResponse(resp *http.Response) (map[string]any, bool, error) {
    defer resp.Body.Close()
    if resp.StatusCode >= 300 {
        b, _ := io.ReadAll(resp.Body)
        serr := &domain.StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
        if resp.StatusCode == 429 || resp.StatusCode >= 500 { return nil, false, serr }
        return nil, true, serr
    }
    if resp.StatusCode == http.StatusNoContent { return nil, true, nil }
    b, err := io.ReadAll(resp.Body)
    if err != nil { return nil, true, err }
    if len(strings.TrimSpace(string(b))) == 0 { return nil, true, nil }
    var out map[string]any
    if err := json.Unmarshal(b, &out); err != nil { return nil, true, err }
    return out, true, nil
}

// Search runs a JQL query; v3 uses the POST form, v2 the GET form.
func (c *Client) Search(ctx context.Context, cred domain.Credential, jql string, startAt, max int) (map[string]any, error) {
    if jql == "" { return nil, errors.New("jira: empty jql") }
    fields := "summary,issuetype,parent,project"
    if c.apiVer == "2" {
        q := url.Values{}
        q.Set("jql", jql)
        if startAt > 0 { q.Set("startAt", fmt.Sprint(startAt)) }
        if max > 0 { q.Set("maxResults", fmt.Sprint(max)) }
        q.Set("fields", fields)
        u := c.apiURL("/rest/api/2/search", q)
        return c.doJSON(ctx, cred, http.MethodGet, u, nil)
    }
    body := map[string]any{"jql": jql, "startAt": startAt, "maxResults": max, "fields": strings.Split(fields, ",")}
    u := c.apiURL("/rest/api/3/search", nil)
    return c.doJSON(ctx, cred, http.MethodPost, u, body)
}

// Issue fetches a single issue with the fields calendar assembly needs.
func (c *Client) Issue(ctx context.Context, cred domain.Credential, key string) (map[string]any, error) {
    if key == "" { return nil, errors.New("jira: empty issue key") }
    q := url.Values{}
    q.Set("fields", "summary,issuetype,parent,project")
    u := c.apiURL(c.issuePath(key, ""), q)
    return c.doJSON(ctx, cred, http.MethodGet, u, nil)
}

func (c *Client) Worklogs(ctx context.Context, cred domain.Credential, key string, startAt, max int) (map[string]any, error) {
    if key == "" { return nil, errors.New("jira: empty issue key") }
    q := url.Values{}
    if startAt > 0 { q.Set("startAt", fmt.Sprint(startAt)) }
    if max > 0 { q.Set("maxResults", fmt.Sprint(max)) }
    u := c.apiURL(c.issuePath(key, "/worklog"), q)
    return c.doJSON(ctx, cred, http.MethodGet, u, nil)
}

func (c *Client) Worklog(ctx context.Context, cred domain.Credential, key, worklogID string) (map[string]any, error) {
    if key == "" || worklogID == "" { return nil, errors.New("jira: empty issue key or worklog id") }
    u := c.apiURL(c.issuePath(key, "/worklog/"+url.PathEscape(worklogID)), nil)
    return c.doJSON(ctx, cred, http.MethodGet, u, nil)
}

func worklogBody(started time.Time, seconds int, comment string) map[string]any {
    body := map[string]any{
        "started":          started.Format(jiraTimeLayout),
        "timeSpentSeconds": seconds,
    }
    if comment != "" { body["comment"] = comment }
    return body
}

func (c *Client) AddWorklog(ctx context.Context, cred domain.Credential, key string, started time.Time, seconds int, comment string) (map[string]any, error) {
    if key == "" { return nil, errors.New("jira: empty issue key") }
    if seconds <= 0 { return nil, errors.New("jira: non-positive worklog duration") }
    u := c.apiURL(c.issuePath(key, "/worklog"), nil)
    return c.doJSON(ctx, cred, http.MethodPost, u, worklogBody(started, seconds, comment))
}

func (c *Client) UpdateWorklog(ctx context.Context, cred domain.Credential, key, worklogID string, started time.Time, seconds int, comment string) (map[string]any, error) {
    if key == "" || worklogID == "" { return nil, errors.New("jira: empty issue key or worklog id") }
    if seconds <= 0 { return nil, errors.New("jira: non-positive worklog duration") }
    u := c.apiURL(c.issuePath(key, "/worklog/"+url.PathEscape(worklogID)), nil)
    return c.doJSON(ctx, cred, http.MethodPut, u, worklogBody(started, seconds, comment))
}

func (c *Client) DeleteWorklog(ctx context.Context, cred domain.Credential, key, worklogID string) error {
    if key == "" || worklogID == "" { return errors.New("jira: empty issue key or worklog id") }
    u := c.apiURL(c.issuePath(key, "/worklog/"+url.PathEscape(worklogID)), nil)
    _, err := c.doJSON(ctx, cred, http.MethodDelete, u, nil)
    return err
}
