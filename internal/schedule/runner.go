package schedule

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "jirabell/pkg/logx"
)

type Config struct {
	Schedule string
	Timezone string // IANA name; empty means system local
}

// Runner drives exactly one job (the check cycle) on the configured
// schedule. Apply rebuilds the underlying cron engine when the schedule or
// timezone changes, which is how hot reload works.
type Runner struct {
	log logx.Logger
	job func()

	mu     sync.Mutex
	cfg    Config
	spec   Spec
	parser cron.Parser
	c      *cron.Cron
	loc    *time.Location
	entry  cron.EntryID
}

func NewRunner(cfg Config, job func(), log logx.Logger) (*Runner, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	ps, err := ParseSpec(cfg.Schedule)
	if err != nil {
		return nil, err
	}
	r := &Runner{
		log:    log,
		job:    job,
		cfg:    cfg,
		spec:   ps,
		parser: newParser(),
	}
	if _, err := r.parser.Parse(ps.Normalized()); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Runner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.c != nil {
		return
	}
	r.rebuildLocked()
}

// Apply installs a new schedule/timezone. A no-op when nothing changed, so
// unrelated config edits don't reset the next-run time.
func (r *Runner) Apply(cfg Config) error {
	ps, err := ParseSpec(cfg.Schedule)
	if err != nil {
		return err
	}
	if _, err := r.parser.Parse(ps.Normalized()); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	sameSpec := ps.Normalized() == r.spec.Normalized()
	sameTZ := strings.TrimSpace(cfg.Timezone) == strings.TrimSpace(r.cfg.Timezone)
	r.cfg = cfg
	r.spec = ps
	if sameSpec && sameTZ {
		return nil
	}
	if r.c == nil {
		// Not started yet; Start will pick up the new spec.
		return nil
	}
	r.rebuildLocked()
	r.log.Info("schedule updated",
		logx.String("spec", ps.String()),
		logx.String("tz", r.loc.String()),
		logx.Time("next", r.nextLocked()),
	)
	return nil
}

func (r *Runner) rebuildLocked() {
	if r.c != nil {
		<-r.c.Stop().Done()
	}
	loc := r.loadLocationLocked()
	r.loc = loc
	r.c = cron.New(cron.WithParser(r.parser), cron.WithLocation(loc))
	id, err := r.c.AddFunc(r.spec.Normalized(), r.job)
	if err != nil {
		// Spec was validated in NewRunner/Apply; reaching this means a parser
		// incompatibility rather than operator input.
		r.log.Error("schedule register failed", logx.String("spec", r.spec.Normalized()), logx.Any("err", err))
		return
	}
	r.entry = id
	r.c.Start()
}

// Stop waits for an in-flight job to finish, bounded by ctx.
func (r *Runner) Stop(ctx context.Context) {
	r.mu.Lock()
	c := r.c
	r.c = nil
	r.mu.Unlock()
	if c == nil {
		return
	}
	stopped := c.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
		r.log.Warn("schedule stop timed out; job still running")
	}
}

// Next reports the next scheduled run (zero when not started).
func (r *Runner) Next() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nextLocked()
}

func (r *Runner) nextLocked() time.Time {
	if r.c == nil {
		return time.Time{}
	}
	return r.c.Entry(r.entry).Next
}

// Describe reports the active schedule for status output, e.g.
// "every 30m0s (Europe/Berlin)".
func (r *Runner) Describe() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	tz := strings.TrimSpace(r.cfg.Timezone)
	if tz == "" {
		tz = time.Local.String()
	}
	return r.spec.String() + " (" + tz + ")"
}

func (r *Runner) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(r.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		r.log.Warn("invalid timezone; falling back to Local", logx.String("tz", tz), logx.Any("err", err))
		return time.Local
	}
	return loc
}
