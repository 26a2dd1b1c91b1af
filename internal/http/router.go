/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
    "github.com/gin-gonic/gin"
    "github.com/J2-Tech/Plywood-jira-sub000/internal/config"
    "github.com/rs/zerolog"
)

func NewRouter(cfg config.Config, log zerolog.Logger, svc service, sessions *Sessions) *gin.Engine {
    if cfg.AppEnv != "dev" { gin.SetMode(gin.ReleaseMode) }
    r := gin.New()
    r.Use(gin.Recovery())
    r.Use(func(c *gin.Context){
        c.Next()
        log.Info().Str("m", c.Request.Method).Str("p", c.FullPath()).Int("s", c.Writer.Status()).Msg("http")
    })

    h := NewHandlers(cfg, log, svc, sessions)

    r.GET("/healthz", h.Healthz)

    r.POST("/api/session", h.CreateSession)
    r.DELETE("/api/session", h.DeleteSession)

    r.GET("/api/events", h.Events)
    r.POST("/api/worklog", h.CreateWorklog)
    r.PUT("/api/worklog/:id", h.UpdateWorklog)
    r.DELETE("/api/worklog/:id", h.DeleteWorklog)

    r.GET("/api/settings", h.GetSettings)
    r.POST("/api/settings", h.SaveSettings)
    r.POST("/api/settings/field", h.SetSettingField)

    return r
}
