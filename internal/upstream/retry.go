/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package upstream

import (
    "context"
    "errors"
    "fmt"

    "github.com/J2-Tech/Plywood-jira-sub000/internal/config"
    "github.com/J2-Tech/Plywood-jira-sub000/internal/domain"
    "github.com/rs/zerolog"
    "golang.org/x/oauth2"
)

// Operation is a pure function of a credential: it either produces a payload
// or an error, with upstream failures carried as *domain.StatusError.
type Operation func(ctx context.Context, cred domain.Credential) (map[string]any, error)

// Session is the caller's view of its stored credential. Concurrent refreshes
// are tolerated; the last SetCredential wins.
type Session interface {
    UserID() string
    Credential() domain.Credential
    Refreshable() bool
    SetCredential(domain.Credential)
}

// Refresher exchanges a refresh token for a new credential pair.
type Refresher interface {
    Refresh(ctx context.Context, cred domain.Credential) (domain.Credential, error)
}

// Orchestrator wraps upstream calls with the expired-credential protocol: on
// a 401 it performs exactly one refresh and replays the operation once. Any
// other error passes through unmodified; transient failures are not retried here.
type Orchestrator struct {
    refresher Refresher
    log       zerolog.Logger
}

func NewOrchestrator(refresher Refresher, log zerolog.Logger) *Orchestrator {
    return &Orchestrator{refresher: refresher, log: log}
}

// Call runs op with the session credential. State is local to the call; no
// refresh coalescing happens across concurrent callers.
func (o *Orchestrator) Call(ctx context.Context, sess Session, op Operation) (map[string]any, error) {
    res, err := op(ctx, sess.Credential())
    if err == nil || !domain.IsUnauthorized(err) { return res, err }

    if !sess.Refreshable() {
        return nil, fmt.Errorf("%w: credential expired and mode does not support refresh", domain.ErrAuthRequired)
    }

    o.log.Info().Str("user", sess.UserID()).Msg("upstream: credential expired, refreshing")
    cred, rerr := o.refresher.Refresh(ctx, sess.Credential())
    if rerr != nil {
        o.log.Warn().Err(rerr).Str("user", sess.UserID()).Msg("upstream: refresh failed")
        return nil, fmt.Errorf("%w: refresh failed: %v", domain.ErrAuthRequired, rerr)
    }
    sess.SetCredential(cred)

    res, err = op(ctx, cred)
    if err != nil && domain.IsUnauthorized(err) {
        // never a third attempt
        return nil, fmt.Errorf("%w: replay rejected after refresh", domain.ErrAuthRequired)
    }
    return res, err
}

// TokenRefresher performs the refresh_token grant against the upstream token endpoint.
type TokenRefresher struct {
    conf *oauth2.Config
    log  zerolog.Logger
}

func NewTokenRefresher(cfg config.Config, log zerolog.Logger) *TokenRefresher {
    return &TokenRefresher{
        conf: &oauth2.Config{
            ClientID:     cfg.OAuthClientID,
            ClientSecret: cfg.OAuthClientSecret,
            Endpoint:     oauth2.Endpoint{TokenURL: cfg.OAuthTokenURL},
        },
        log: log,
    }
}

func (r *TokenRefresher) Refresh(ctx context.Context, cred domain.Credential) (domain.Credential, error) {
    if cred.RefreshToken == "" { return domain.Credential{}, errors.New("upstream: no refresh token") }
    ts := r.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken})
    tok, err := ts.Token()
    if err != nil { return domain.Credential{}, err }
    out := domain.Credential{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken}
    // upstream may rotate or keep the refresh token; keep the old one if absent
    if out.RefreshToken == "" { out.RefreshToken = cred.RefreshToken }
    return out, nil
}
