/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package main

import (
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/J2-Tech/Plywood-jira-sub000/internal/adapters/jira"
    "github.com/J2-Tech/Plywood-jira-sub000/internal/colors"
    "github.com/J2-Tech/Plywood-jira-sub000/internal/config"
    httpx "github.com/J2-Tech/Plywood-jira-sub000/internal/http"
    "github.com/J2-Tech/Plywood-jira-sub000/internal/jobs"
    "github.com/J2-Tech/Plywood-jira-sub000/internal/logger"
    "github.com/J2-Tech/Plywood-jira-sub000/internal/services"
    "github.com/J2-Tech/Plywood-jira-sub000/internal/settings"
    "github.com/J2-Tech/Plywood-jira-sub000/internal/upstream"
    "github.com/J2-Tech/Plywood-jira-sub000/internal/worklog"
)

func main() {
    cfg := config.Load()
    log := logger.New(cfg)

    // Per-user settings store; runs the one-shot legacy migration on startup.
    store, err := settings.New(cfg, log)
    if err != nil { log.Fatal().Err(err).Msg("settings store init failed") }

    // Caches
    colorCache := colors.New(store, cfg.ColorTTL, cfg.DefaultColor, log)
    windowCache := worklog.New(cfg.WorklogTTL)

    // Upstream
    jc := jira.NewClient(cfg, log)
    orch := upstream.NewOrchestrator(upstream.NewTokenRefresher(cfg, log), log)

    // Services
    svc := services.New(cfg, log, store, colorCache, windowCache, jc, orch)

    // HTTP server (Gin)
    sessions := httpx.NewSessions()
    router := httpx.NewRouter(cfg, log, svc, sessions)

    // Cache janitor
    cron := jobs.NewCron(cfg, log, colorCache, windowCache)
    cron.Start()
    defer cron.Stop()

    // graceful shutdown
    errCh := make(chan error, 1)
    go func() { errCh <- router.Run(cfg.HTTPAddr) }()

    sigCh := make(chan os.Signal, 1)
    signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

    select {
    case <-sigCh:
        log.Info().Msg("shutting down...")
    case err := <-errCh:
        if err != nil { log.Error().Err(err).Msg("http server error") }
    }

    time.Sleep(500 * time.Millisecond)
}
