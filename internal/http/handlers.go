/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
    "context"
    "errors"
    "net/http"
    "time"

    "github.com/gin-gonic/gin"
    "github.com/J2-Tech/Plywood-jira-sub000/internal/config"
    "github.com/J2-Tech/Plywood-jira-sub000/internal/domain"
    "github.com/J2-Tech/Plywood-jira-sub000/internal/settings"
    "github.com/J2-Tech/Plywood-jira-sub000/internal/upstream"
    "github.com/rs/zerolog"
)

const sessionCookie = "plywood_session"

type service interface {
    Events(ctx context.Context, sess upstream.Session, start, end time.Time, project string) ([]domain.CalendarEvent, error)
    CreateWorklog(ctx context.Context, sess upstream.Session, issueKey string, started time.Time, minutes int, comment string) (map[string]any, error)
    UpdateWorklog(ctx context.Context, sess upstream.Session, issueKey, worklogID string, started time.Time, minutes int, comment string) (map[string]any, error)
    DeleteWorklog(ctx context.Context, sess upstream.Session, issueKey, worklogID string) error
    Settings(userID string) domain.UserSettings
    SetSetting(userID, field string, value any) (domain.UserSettings, error)
    SaveSettings(userID string, p settings.Partial) (domain.UserSettings, error)
}

type Handlers struct {
    cfg      config.Config
    log      zerolog.Logger
    svc      service
    sessions *Sessions
}

func NewHandlers(cfg config.Config, log zerolog.Logger, svc service, sessions *Sessions) *Handlers {
    return &Handlers{cfg: cfg, log: log, svc: svc, sessions: sessions}
}

func (h *Handlers) Healthz(c *gin.Context) {
    c.JSON(http.StatusOK, gin.H{"ok": true})
}

// CreateSession seeds a session with an upstream credential. The login
// exchange itself (OAuth redirect dance or basic-auth form) happens upstream
// of this endpoint.
func (h *Handlers) CreateSession(c *gin.Context) {
    var req struct {
        User         string `json:"user" binding:"required"`
        AccessToken  string `json:"accessToken"`
        RefreshToken string `json:"refreshToken"`
    }
    if err := c.ShouldBindJSON(&req); err != nil {
        c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
        return
    }
    sess := h.sessions.Create(req.User, h.cfg.AuthMode, domain.Credential{
        AccessToken: req.AccessToken, RefreshToken: req.RefreshToken,
    })
    c.SetCookie(sessionCookie, sess.ID(), 0, "/", "", false, true)
    c.JSON(http.StatusCreated, gin.H{"user": req.User})
}

func (h *Handlers) DeleteSession(c *gin.Context) {
    if id, err := c.Cookie(sessionCookie); err == nil { h.sessions.Delete(id) }
    c.SetCookie(sessionCookie, "", -1, "/", "", false, true)
    c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handlers) session(c *gin.Context) (*Session, bool) {
    id, err := c.Cookie(sessionCookie)
    if err != nil {
        c.JSON(http.StatusUnauthorized, gin.H{"error": "no session"})
        return nil, false
    }
    sess, ok := h.sessions.Get(id)
    if !ok {
        c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown session"})
        return nil, false
    }
    return sess, true
}

func (h *Handlers) Events(c *gin.Context) {
    sess, ok := h.session(c)
    if !ok { return }
    start, err := time.Parse("2006-01-02", c.Query("start"))
    if err != nil { c.JSON(http.StatusBadRequest, gin.H{"error": "bad start date"}); return }
    end, err := time.Parse("2006-01-02", c.Query("end"))
    if err != nil { c.JSON(http.StatusBadRequest, gin.H{"error": "bad end date"}); return }
    project := c.DefaultQuery("project", "all")

    events, err := h.svc.Events(c.Request.Context(), sess, start, end, project)
    if err != nil { h.writeErr(c, err); return }
    if events == nil { events = []domain.CalendarEvent{} }
    c.JSON(http.StatusOK, events)
}

type worklogRequest struct {
    IssueKey string `json:"issueKey" binding:"required"`
    Started  string `json:"started" binding:"required"`
    Minutes  int    `json:"minutes" binding:"required"`
    Comment  string `json:"comment"`
}

func (h *Handlers) CreateWorklog(c *gin.Context) {
    sess, ok := h.session(c)
    if !ok { return }
    var req worklogRequest
    if err := c.ShouldBindJSON(&req); err != nil { c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()}); return }
    started, err := time.Parse(time.RFC3339, req.Started)
    if err != nil { c.JSON(http.StatusBadRequest, gin.H{"error": "bad started timestamp"}); return }

    res, err := h.svc.CreateWorklog(c.Request.Context(), sess, req.IssueKey, started, req.Minutes, req.Comment)
    if err != nil { h.writeErr(c, err); return }
    c.JSON(http.StatusCreated, res)
}

func (h *Handlers) UpdateWorklog(c *gin.Context) {
    sess, ok := h.session(c)
    if !ok { return }
    var req worklogRequest
    if err := c.ShouldBindJSON(&req); err != nil { c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()}); return }
    started, err := time.Parse(time.RFC3339, req.Started)
    if err != nil { c.JSON(http.StatusBadRequest, gin.H{"error": "bad started timestamp"}); return }

    res, err := h.svc.UpdateWorklog(c.Request.Context(), sess, req.IssueKey, c.Param("id"), started, req.Minutes, req.Comment)
    if err != nil { h.writeErr(c, err); return }
    c.JSON(http.StatusOK, res)
}

func (h *Handlers) DeleteWorklog(c *gin.Context) {
    sess, ok := h.session(c)
    if !ok { return }
    issueKey := c.Query("issueKey")
    if issueKey == "" { c.JSON(http.StatusBadRequest, gin.H{"error": "issueKey required"}); return }
    if err := h.svc.DeleteWorklog(c.Request.Context(), sess, issueKey, c.Param("id")); err != nil {
        h.writeErr(c, err)
        return
    }
    c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handlers) GetSettings(c *gin.Context) {
    sess, ok := h.session(c)
    if !ok { return }
    c.JSON(http.StatusOK, h.svc.Settings(sess.UserID()))
}

func (h *Handlers) SaveSettings(c *gin.Context) {
    sess, ok := h.session(c)
    if !ok { return }
    var p settings.Partial
    if err := c.ShouldBindJSON(&p); err != nil { c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()}); return }
    doc, err := h.svc.SaveSettings(sess.UserID(), p)
    if err != nil { h.writeErr(c, err); return }
    c.JSON(http.StatusOK, doc)
}

func (h *Handlers) SetSettingField(c *gin.Context) {
    sess, ok := h.session(c)
    if !ok { return }
    var req struct {
        Field string `json:"field" binding:"required"`
        Value any    `json:"value"`
    }
    if err := c.ShouldBindJSON(&req); err != nil { c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()}); return }
    doc, err := h.svc.SetSetting(sess.UserID(), req.Field, req.Value)
    if err != nil { h.writeErr(c, err); return }
    c.JSON(http.StatusOK, doc)
}

func (h *Handlers) writeErr(c *gin.Context, err error) {
    switch {
    case errors.Is(err, domain.ErrBusy):
        c.JSON(http.StatusConflict, gin.H{"error": "settings busy, try again"})
    case errors.Is(err, domain.ErrAuthRequired):
        c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
    default:
        var se *domain.StatusError
        if errors.As(err, &se) {
            c.JSON(se.Code, gin.H{"error": se.Body})
            return
        }
        h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
        c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    }
}
