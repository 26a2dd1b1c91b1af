/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package settings

import (
    "encoding/json"
    "fmt"
    "os"
    "path/filepath"
    "strings"
    "sync"
    "sync/atomic"
    "time"

    "github.com/J2-Tech/Plywood-jira-sub000/internal/config"
    "github.com/J2-Tech/Plywood-jira-sub000/internal/domain"
    "github.com/rs/zerolog"
)

// Partial is a partial settings document for MergeDocument. Nil fields are
// left untouched; IssueColors is merged key-by-key, never replaced wholesale.
type Partial struct {
    ShowIssueTypeIcons *bool             `json:"showIssueTypeIcons"`
    Theme              *string           `json:"theme"`
    RoundingMinutes    *int              `json:"roundingIntervalMinutes"`
    SelectedProject    *string           `json:"selectedProject"`
    IssueColors        map[string]string `json:"issueColors"`
}

// Store persists one JSON settings document per user identity. Writes for one
// user are serialized through a per-user lock; a held lock fails writes with
// ErrBusy instead of queueing. Reads take no lock at all: the atomic
// temp+rename write discipline keeps the on-disk document whole, so a read
// concurrent with a write sees either the old or the new document. Only while
// a write is actually in flight does Get serve the defaults snapshot instead.
type Store struct {
    dir      string
    usersDir string
    log      zerolog.Logger
    now      func() time.Time

    builtin  domain.UserSettings
    defaults domain.UserSettings

    mu    sync.Mutex
    locks map[string]*userLock
}

// userLock serializes writes for one user. writing is observed by the
// lock-free read path.
type userLock struct {
    mu      sync.Mutex
    writing atomic.Bool
}

func builtinDefaults(cfg config.Config) domain.UserSettings {
    return domain.UserSettings{
        ShowIssueTypeIcons: true,
        Theme:              domain.ThemeAuto,
        RoundingMinutes:    cfg.RoundingMinutes,
        IssueColors:        map[string]string{},
    }
}

func New(cfg config.Config, log zerolog.Logger) (*Store, error) {
    s := &Store{
        dir:      cfg.DataDir,
        usersDir: filepath.Join(cfg.DataDir, "users"),
        log:      log,
        now:      time.Now,
        builtin:  builtinDefaults(cfg),
        locks:    map[string]*userLock{},
    }
    if err := os.MkdirAll(s.usersDir, 0o755); err != nil { return nil, fmt.Errorf("settings: mkdir: %w", err) }
    if err := s.migrateLegacy(filepath.Join(cfg.DataDir, cfg.LegacyFile)); err != nil {
        log.Warn().Err(err).Msg("settings: legacy migration failed")
    }
    if err := s.loadDefaults(); err != nil { return nil, err }
    return s, nil
}

func (s *Store) defaultsPath() string { return filepath.Join(s.dir, "defaults.json") }

// migrateLegacy copies a pre-existing single-file settings document into
// defaults.json, once, and renames the old file aside. Runs only at startup.
func (s *Store) migrateLegacy(legacyPath string) error {
    if _, err := os.Stat(s.defaultsPath()); err == nil { return nil }
    data, err := os.ReadFile(legacyPath)
    if err != nil { return nil }
    var doc domain.UserSettings
    if err := json.Unmarshal(data, &doc); err != nil { return fmt.Errorf("parse %s: %w", legacyPath, err) }
    if err := writeAtomic(s.dir, s.defaultsPath(), normalize(doc)); err != nil { return err }
    if err := os.Rename(legacyPath, legacyPath+".bak"); err != nil { return err }
    s.log.Info().Str("from", legacyPath).Msg("settings: migrated legacy file into defaults")
    return nil
}

func (s *Store) loadDefaults() error {
    def := clone(s.builtin)
    data, err := os.ReadFile(s.defaultsPath())
    switch {
    case err == nil:
        var stored domain.UserSettings
        if jerr := json.Unmarshal(data, &stored); jerr != nil { return fmt.Errorf("settings: parse defaults: %w", jerr) }
        def = merge(def, stored)
    case os.IsNotExist(err):
        if werr := writeAtomic(s.dir, s.defaultsPath(), def); werr != nil { return werr }
    default:
        return fmt.Errorf("settings: read defaults: %w", err)
    }
    s.defaults = normalize(def)
    return nil
}

// Defaults returns a copy of the process-wide defaults document.
func (s *Store) Defaults() domain.UserSettings { return clone(s.defaults) }

func (s *Store) userLock(userID string) *userLock {
    s.mu.Lock()
    defer s.mu.Unlock()
    l, ok := s.locks[userID]
    if !ok { l = &userLock{}; s.locks[userID] = l }
    return l
}

func (s *Store) userPath(userID string) string {
    return filepath.Join(s.usersDir, sanitize(userID)+".json")
}

// Get returns defaults merged with the user's persisted document. It never
// blocks and never contends with other readers or with writers: only while a
// write for the same user is in flight does it return the defaults snapshot
// immediately (bounded-staleness read).
func (s *Store) Get(userID string) domain.UserSettings {
    if s.userLock(userID).writing.Load() { return s.Defaults() }
    return s.loadMerged(userID)
}

// SetField applies a single scalar field and writes the full document back.
// Returns ErrBusy without queueing if a write for the same user is in flight.
func (s *Store) SetField(userID, field string, value any) (domain.UserSettings, error) {
    l := s.userLock(userID)
    if !l.mu.TryLock() { return domain.UserSettings{}, domain.ErrBusy }
    l.writing.Store(true)
    defer func() { l.writing.Store(false); l.mu.Unlock() }()
    doc := s.loadMerged(userID)
    if err := applyField(&doc, field, value); err != nil { return domain.UserSettings{}, err }
    doc.LastModified = s.now().UTC()
    if err := writeAtomic(s.usersDir, s.userPath(userID), doc); err != nil { return domain.UserSettings{}, err }
    return doc, nil
}

// MergeDocument deep-merges a partial document; same locking discipline as SetField.
func (s *Store) MergeDocument(userID string, p Partial) (domain.UserSettings, error) {
    l := s.userLock(userID)
    if !l.mu.TryLock() { return domain.UserSettings{}, domain.ErrBusy }
    l.writing.Store(true)
    defer func() { l.writing.Store(false); l.mu.Unlock() }()
    doc := s.loadMerged(userID)
    if p.ShowIssueTypeIcons != nil { doc.ShowIssueTypeIcons = *p.ShowIssueTypeIcons }
    if p.Theme != nil { doc.Theme = *p.Theme }
    if p.RoundingMinutes != nil { doc.RoundingMinutes = *p.RoundingMinutes }
    if p.SelectedProject != nil { doc.SelectedProject = *p.SelectedProject }
    if len(p.IssueColors) > 0 {
        if doc.IssueColors == nil { doc.IssueColors = map[string]string{} }
        for k, v := range p.IssueColors { doc.IssueColors[strings.ToLower(strings.TrimSpace(k))] = v }
    }
    doc.LastModified = s.now().UTC()
    if err := writeAtomic(s.usersDir, s.userPath(userID), doc); err != nil { return domain.UserSettings{}, err }
    return doc, nil
}

func (s *Store) loadMerged(userID string) domain.UserSettings {
    data, err := os.ReadFile(s.userPath(userID))
    if err != nil {
        if !os.IsNotExist(err) { s.log.Warn().Err(err).Str("user", userID).Msg("settings: read failed, serving defaults") }
        return s.Defaults()
    }
    var stored domain.UserSettings
    if err := json.Unmarshal(data, &stored); err != nil {
        s.log.Warn().Err(err).Str("user", userID).Msg("settings: corrupt document, serving defaults")
        return s.Defaults()
    }
    return merge(s.defaults, stored)
}

func applyField(doc *domain.UserSettings, field string, value any) error {
    switch field {
    case "showIssueTypeIcons":
        b, ok := value.(bool)
        if !ok { return fmt.Errorf("settings: %s wants bool", field) }
        doc.ShowIssueTypeIcons = b
    case "theme":
        v, ok := value.(string)
        if !ok { return fmt.Errorf("settings: %s wants string", field) }
        switch v {
        case domain.ThemeAuto, domain.ThemeLight, domain.ThemeDark:
            doc.Theme = v
        default:
            return fmt.Errorf("settings: invalid theme %q", v)
        }
    case "roundingIntervalMinutes":
        switch n := value.(type) {
        case int:
            doc.RoundingMinutes = n
        case float64: // JSON numbers decode as float64
            doc.RoundingMinutes = int(n)
        default:
            return fmt.Errorf("settings: %s wants int", field)
        }
    case "selectedProject":
        v, ok := value.(string)
        if !ok { return fmt.Errorf("settings: %s wants string", field) }
        doc.SelectedProject = v
    default:
        return fmt.Errorf("settings: unknown field %q", field)
    }
    return nil
}

// merge overlays a stored document on base. Documents are always written
// whole, so every scalar comes from the stored document unconditionally; an
// explicit zero (rounding disabled, project cleared) must not revert to the
// base value. Only IssueColors is merged key-by-key so unspecified base keys
// survive.
func merge(base, stored domain.UserSettings) domain.UserSettings {
    out := clone(base)
    out.ShowIssueTypeIcons = stored.ShowIssueTypeIcons
    out.Theme = stored.Theme
    out.RoundingMinutes = stored.RoundingMinutes
    out.SelectedProject = stored.SelectedProject
    out.LastModified = stored.LastModified
    if out.Theme == "" { out.Theme = base.Theme }
    for k, v := range stored.IssueColors { out.IssueColors[strings.ToLower(k)] = v }
    return out
}

func normalize(doc domain.UserSettings) domain.UserSettings {
    out := doc
    out.IssueColors = map[string]string{}
    for k, v := range doc.IssueColors { out.IssueColors[strings.ToLower(strings.TrimSpace(k))] = v }
    if out.Theme == "" { out.Theme = domain.ThemeAuto }
    return out
}

func clone(doc domain.UserSettings) domain.UserSettings {
    out := doc
    out.IssueColors = make(map[string]string, len(doc.IssueColors))
    for k, v := range doc.IssueColors { out.IssueColors[k] = v }
    return out
}

// writeAtomic writes to a temp file in dir and renames over path, so an I/O
// failure never leaves a partially-written document behind.
func writeAtomic(dir, path string, doc domain.UserSettings) error {
    data, err := json.MarshalIndent(doc, "", "  ")
    if err != nil { return err }
    f, err := os.CreateTemp(dir, ".settings-*.tmp")
    if err != nil { return err }
    tmp := f.Name()
    if _, err := f.Write(data); err != nil { f.Close(); os.Remove(tmp); return err }
    if err := f.Close(); err != nil { os.Remove(tmp); return err }
    if err := os.Rename(tmp, path); err != nil { os.Remove(tmp); return err }
    return nil
}

func sanitize(userID string) string {
    var b strings.Builder
    for _, r := range userID {
        switch {
        case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
            b.WriteRune(r)
        default:
            b.WriteByte('_')
        }
    }
    if b.Len() == 0 { return "_" }
    return b.String()
}
