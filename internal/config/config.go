/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package config

import (
    "log"
    "os"
    "strconv"
    "time"
)

type Config struct {
    AppEnv   string
    TZ       string
    HTTPAddr string

    DataDir    string
    LegacyFile string

    JiraBaseURL    string
    JiraAPIVersion string

    AuthMode          string
    OAuthClientID     string
    OAuthClientSecret string
    OAuthTokenURL     string
    JiraUsername      string
    JiraPassword      string

    ColorTTL        time.Duration
    WorklogTTL      time.Duration
    DefaultColor    string
    RoundingMinutes int

    SweepCron   string
    HTTPTimeout time.Duration
}

func getenv(key, def string) string {
    v := os.Getenv(key)
    if v == "" { return def }
    return v
}

func atoi(key string, def int) int {
    v := os.Getenv(key)
    if v == "" { return def }
    i, err := strconv.Atoi(v)
    if err != nil { return def }
    return i
}

func dur(key string, def time.Duration) time.Duration {
    v := os.Getenv(key)
    if v == "" { return def }
    d, err := time.ParseDuration(v)
    if err != nil { return def }
    return d
}

func Load() Config {
    cfg := Config{
        AppEnv:   getenv("APP_ENV", "dev"),
        TZ:       getenv("APP_TZ", "UTC"),
        HTTPAddr: getenv("HTTP_ADDR", ":8080"),

        DataDir:    getenv("DATA_DIR", "data"),
        LegacyFile: getenv("LEGACY_SETTINGS_FILE", "settings.json"),

        JiraBaseURL:    getenv("JIRA_BASE_URL", ""),
        JiraAPIVersion: getenv("JIRA_API_VERSION", "3"),

        AuthMode:          getenv("AUTH_MODE", "basic"),
        OAuthClientID:     getenv("OAUTH_CLIENT_ID", ""),
        OAuthClientSecret: getenv("OAUTH_CLIENT_SECRET", ""),
        OAuthTokenURL:     getenv("OAUTH_TOKEN_URL", "https://auth.atlassian.com/oauth/token"),
        JiraUsername:      getenv("JIRA_USERNAME", ""),
        JiraPassword:      getenv("JIRA_PASSWORD", ""),

        ColorTTL:        dur("COLOR_TTL", time.Hour),
        WorklogTTL:      dur("WORKLOG_TTL", 30*time.Minute),
        DefaultColor:    getenv("DEFAULT_ISSUE_COLOR", "#2a75fe"),
        RoundingMinutes: atoi("ROUNDING_MINUTES", 0),

        SweepCron:   getenv("SWEEP_CRON", "*/15 * * * *"),
        HTTPTimeout: dur("HTTP_TIMEOUT", 15*time.Second),
    }

    // set global timezone if available
    if loc, err := time.LoadLocation(cfg.TZ); err == nil {
        time.Local = loc
    } else {
        log.Printf("warning: cannot load TZ %s: %v", cfg.TZ, err)
    }
    return cfg
}
