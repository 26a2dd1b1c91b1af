package upstream

import (
    "context"
    "errors"
    "net/http"
    "testing"

    "github.com/J2-Tech/Plywood-jira-sub000/internal/domain"
    "github.com/rs/zerolog"
)

type stubSession struct {
    cred        domain.Credential
    refreshable bool
    sets        int
}

func (s *stubSession) UserID() string                 { return "u" }
func (s *stubSession) Credential() domain.Credential  { return s.cred }
func (s *stubSession) Refreshable() bool              { return s.refreshable }
func (s *stubSession) SetCredential(c domain.Credential) { s.cred = c; s.sets++ }

type stubRefresher struct {
    calls int
    cred  domain.Credential
    err   error
}

func (r *stubRefresher) Refresh(context.Context, domain.Credential) (domain.Credential, error) {
    r.calls++
    return r.cred, r.err
}

func unauthorized() error { return &domain.StatusError{Code: http.StatusUnauthorized, Body: "expired"} }

func TestCallRefreshesOnceAndReplays(t *testing.T) {
    sess := &stubSession{cred: domain.Credential{AccessToken: "old", RefreshToken: "r1"}, refreshable: true}
    ref := &stubRefresher{cred: domain.Credential{AccessToken: "new", RefreshToken: "r2"}}
    o := NewOrchestrator(ref, zerolog.Nop())

    var ops int
    res, err := o.Call(context.Background(), sess, func(_ context.Context, cred domain.Credential) (map[string]any, error) {
        ops++
        if cred.AccessToken == "old" { return nil, unauthorized() }
        return map[string]any{"ok": true}, nil
    })
    if err != nil { t.Fatalf("Call: %v", err) }
    if res["ok"] != true { t.Fatalf("payload lost: %#v", res) }
    if ops != 2 { t.Fatalf("expected 2 operation invocations, got %d", ops) }
    if ref.calls != 1 { t.Fatalf("expected 1 refresh, got %d", ref.calls) }
    if sess.cred.AccessToken != "new" || sess.cred.RefreshToken != "r2" {
        t.Fatalf("session credential not updated: %#v", sess.cred)
    }
}

func TestCallTerminalAfterSecondUnauthorized(t *testing.T) {
    sess := &stubSession{cred: domain.Credential{AccessToken: "old", RefreshToken: "r1"}, refreshable: true}
    ref := &stubRefresher{cred: domain.Credential{AccessToken: "new"}}
    o := NewOrchestrator(ref, zerolog.Nop())

    var ops int
    _, err := o.Call(context.Background(), sess, func(context.Context, domain.Credential) (map[string]any, error) {
        ops++
        return nil, unauthorized()
    })
    if !errors.Is(err, domain.ErrAuthRequired) { t.Fatalf("expected ErrAuthRequired, got %v", err) }
    if ops != 2 { t.Fatalf("expected exactly 2 invocations, never a third: got %d", ops) }
    if ref.calls != 1 { t.Fatalf("expected exactly 1 refresh attempt, got %d", ref.calls) }
}

func TestCallRefreshFailureIsTerminal(t *testing.T) {
    sess := &stubSession{cred: domain.Credential{RefreshToken: "r1"}, refreshable: true}
    ref := &stubRefresher{err: errors.New("grant rejected")}
    o := NewOrchestrator(ref, zerolog.Nop())

    var ops int
    _, err := o.Call(context.Background(), sess, func(context.Context, domain.Credential) (map[string]any, error) {
        ops++
        return nil, unauthorized()
    })
    if !errors.Is(err, domain.ErrAuthRequired) { t.Fatalf("expected ErrAuthRequired, got %v", err) }
    if ops != 1 { t.Fatalf("operation replayed despite failed refresh: %d", ops) }
    if sess.sets != 0 { t.Fatalf("credential must not be updated on failed refresh") }
}

func TestCallNonRefreshableModeIsTerminal(t *testing.T) {
    sess := &stubSession{refreshable: false}
    ref := &stubRefresher{}
    o := NewOrchestrator(ref, zerolog.Nop())

    _, err := o.Call(context.Background(), sess, func(context.Context, domain.Credential) (map[string]any, error) {
        return nil, unauthorized()
    })
    if !errors.Is(err, domain.ErrAuthRequired) { t.Fatalf("expected ErrAuthRequired, got %v", err) }
    if ref.calls != 0 { t.Fatalf("basic mode must never refresh") }
}

func TestCallPassesNonAuthErrorsThrough(t *testing.T) {
    sess := &stubSession{refreshable: true}
    ref := &stubRefresher{}
    o := NewOrchestrator(ref, zerolog.Nop())

    want := &domain.StatusError{Code: http.StatusBadGateway, Body: "upstream down"}
    _, err := o.Call(context.Background(), sess, func(context.Context, domain.Credential) (map[string]any, error) {
        return nil, want
    })
    var se *domain.StatusError
    if !errors.As(err, &se) || se.Code != http.StatusBadGateway { t.Fatalf("expected 502 unchanged, got %v", err) }
    if ref.calls != 0 { t.Fatalf("non-auth error must not trigger refresh") }
}

func TestCallSuccessFirstTry(t *testing.T) {
    sess := &stubSession{refreshable: true}
    ref := &stubRefresher{}
    o := NewOrchestrator(ref, zerolog.Nop())

    res, err := o.Call(context.Background(), sess, func(context.Context, domain.Credential) (map[string]any, error) {
        return map[string]any{"total": float64(3)}, nil
    })
    if err != nil { t.Fatalf("Call: %v", err) }
    if res["total"] != float64(3) { t.Fatalf("payload lost: %#v", res) }
    if ref.calls != 0 || sess.sets != 0 { t.Fatalf("no refresh expected on success") }
}
