package jobs

import (
    "time"

    "github.com/J2-Tech/Plywood-jira-sub000/internal/config"
    "github.com/robfig/cron/v3"
    "github.com/rs/zerolog"
)

type sweeper interface { Sweep() }

// Cron periodically drops expired cache entries. Expiry-on-read is the
// correctness mechanism; the sweep only keeps memory bounded between reads.
type Cron struct {
    cfg config.Config
    log zerolog.Logger
    c   *cron.Cron
}

func NewCron(cfg config.Config, log zerolog.Logger, caches ...sweeper) *Cron {
    loc, _ := time.LoadLocation(cfg.TZ)
    c := cron.New(cron.WithLocation(loc), cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow)))
    cr := &Cron{cfg: cfg, log: log, c: c}
    _, _ = c.AddFunc(cfg.SweepCron, func(){
        for _, s := range caches { s.Sweep() }
        log.Debug().Msg("cron: cache sweep done")
    })
    return cr
}

func (cr *Cron) Start(){ cr.c.Start() }
func (cr *Cron) Stop(){ cr.c.Stop() }
