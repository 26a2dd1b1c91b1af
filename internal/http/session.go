/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
    "sync"

    "github.com/J2-Tech/Plywood-jira-sub000/internal/domain"
    "github.com/google/uuid"
)

// Session holds one caller's identity and upstream credential. The credential
// is mutated only by the orchestrator's refresh step; concurrent refreshes
// are tolerated, last write wins.
type Session struct {
    id     string
    userID string
    mode   string

    mu   sync.Mutex
    cred domain.Credential
}

func (s *Session) ID() string     { return s.id }
func (s *Session) UserID() string { return s.userID }

func (s *Session) Credential() domain.Credential {
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.cred
}

func (s *Session) SetCredential(c domain.Credential) {
    s.mu.Lock()
    s.cred = c
    s.mu.Unlock()
}

func (s *Session) Refreshable() bool { return s.mode == domain.AuthOAuth }

// Sessions is the in-process session registry, keyed by an opaque uuid cookie.
type Sessions struct {
    mu   sync.RWMutex
    byID map[string]*Session
}

func NewSessions() *Sessions { return &Sessions{byID: map[string]*Session{}} }

func (r *Sessions) Create(userID, mode string, cred domain.Credential) *Session {
    s := &Session{id: uuid.NewString(), userID: userID, mode: mode, cred: cred}
    r.mu.Lock()
    r.byID[s.id] = s
    r.mu.Unlock()
    return s
}

func (r *Sessions) Get(id string) (*Session, bool) {
    r.mu.RLock()
    defer r.mu.RUnlock()
    s, ok := r.byID[id]
    return s, ok
}

func (r *Sessions) Delete(id string) {
    r.mu.Lock()
    delete(r.byID, id)
    r.mu.Unlock()
}
