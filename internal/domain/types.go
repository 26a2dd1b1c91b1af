package domain

import "time"

// Theme values accepted in user settings.
const (
    ThemeAuto  = "auto"
    ThemeLight = "light"
    ThemeDark  = "dark"
)

// Auth modes for talking to the upstream tracker.
const (
    AuthOAuth = "oauth"
    AuthBasic = "basic"
)

// UserSettings is the per-user settings document persisted to disk.
// IssueColors keys are always lower-cased issue keys or issue type names.
type UserSettings struct {
    ShowIssueTypeIcons bool              `json:"showIssueTypeIcons"`
    Theme              string            `json:"theme"`
    RoundingMinutes    int               `json:"roundingIntervalMinutes"`
    SelectedProject    string            `json:"selectedProject"`
    IssueColors        map[string]string `json:"issueColors"`
    LastModified       time.Time         `json:"lastModified"`
}

// CalendarEvent is a presentation-ready worklog entry: color and rounding are
// already applied, so cached lists must be dropped whenever either input changes.
type CalendarEvent struct {
    WorklogID string    `json:"worklogId"`
    IssueID   string    `json:"issueId"`
    IssueKey  string    `json:"issueKey"`
    IssueType string    `json:"issueType"`
    Summary   string    `json:"summary"`
    Author    string    `json:"author"`
    Start     time.Time `json:"start"`
    End       time.Time `json:"end"`
    Minutes   int       `json:"minutes"`
    Comment   string    `json:"comment"`
    Color     string    `json:"color"`
}

// Credential is the opaque token pair attached to a session. Staleness is
// only ever discovered by a failed upstream call.
type Credential struct {
    AccessToken  string
    RefreshToken string
}
