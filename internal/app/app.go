package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"jirabell/internal/commands"
	"jirabell/internal/config"
	"jirabell/internal/eventbus"
	"jirabell/internal/jira"
	"jirabell/internal/monitor"
	"jirabell/internal/notify"
	pprofsvc "jirabell/internal/observability/pprof"
	supervisor "jirabell/internal/runtime/supervisor"
	"jirabell/internal/schedule"
	"jirabell/internal/state"
	kit "jirabell/internal/transport"
	telegram "jirabell/internal/transport/telegram"
	logx "jirabell/pkg/logx"
)

// checkCycleTimeout bounds one scheduled check (fetch + alert + persist).
// The Jira request carries its own shorter timeout; this is the outer fence.
const checkCycleTimeout = 2 * time.Minute

type App struct {
	cfgPath string
	version string

	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	store   state.Store
	adapter *telegram.Adapter
	jc      *jira.Client
	notif   *notify.Service
	mon     *monitor.Service
	runner  *schedule.Runner
	pprof   *pprofsvc.Service
	router  *commands.Router

	// polling is true when the adapter consumes incoming updates (owners set).
	polling   bool
	startedAt time.Time
	updates   chan kit.Update
}

func NewApp(cfgPath, version string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	tgCfg, err := mapTelegramConfig(cfg)
	if err != nil {
		return nil, err
	}
	bootLog := logx.NewConsole(cfg.Logging.Level).With(logx.String("comp", "telegram"))
	ad, err := telegram.New(tgCfg, bootLog)
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	stCfg, err := mapStateConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := state.Open(stCfg, logSvc.Logger().With(logx.String("comp", "state")))
	if err != nil {
		return nil, err
	}

	jCfg, err := mapJiraConfig(cfg)
	if err != nil {
		return nil, err
	}
	jc := jira.New(jCfg, logSvc.Logger().With(logx.String("comp", "jira")))

	loc := loadLocation(cfg.Watch.Timezone, log)
	nCfg, err := mapNotifyConfig(cfg, loc)
	if err != nil {
		return nil, err
	}
	notif := notify.New(ad, nCfg, logSvc.Logger().With(logx.String("comp", "notify")))

	mCfg, err := mapMonitorConfig(cfg)
	if err != nil {
		return nil, err
	}
	mon := monitor.New(jc, notif, store, bus, mCfg, logSvc.Logger().With(logx.String("comp", "monitor")))

	a := &App{
		cfgPath:   cfgPath,
		version:   version,
		cfgm:      cfgm,
		log:       log,
		logs:      logSvc,
		bus:       bus,
		store:     store,
		adapter:   ad,
		jc:        jc,
		notif:     notif,
		mon:       mon,
		startedAt: time.Now(),
		updates:   make(chan kit.Update, 256),
	}

	schedCfg, err := mapScheduleConfig(cfg)
	if err != nil {
		return nil, err
	}
	runner, err := schedule.NewRunner(schedCfg, a.runCheck, logSvc.Logger().With(logx.String("comp", "schedule")))
	if err != nil {
		return nil, err
	}
	a.runner = runner

	ppc, err := mapPprofConfig(cfg)
	if err != nil {
		return nil, err
	}
	a.pprof = pprofsvc.New(ppc, logSvc.Logger())

	router := commands.NewRouter(logSvc.Logger().With(logx.String("comp", "commands")), ad, cfg.Telegram.OwnerUserIDs)
	router.Register(commands.Builtin(commands.Deps{
		Monitor:   mon,
		Schedule:  runner,
		Hours:     notif.Hours,
		JQL:       jc.JQL,
		StartedAt: a.startedAt,
		Version:   version,
	}))
	a.router = router

	return a, nil
}

// runCheck is the single scheduled job: one bounded check cycle.
func (a *App) runCheck() {
	parent := context.Background()
	if a.sup != nil {
		parent = a.sup.Context()
	}
	ctx, cancel := context.WithTimeout(parent, checkCycleTimeout)
	defer cancel()
	a.mon.Check(ctx)
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.NewSupervisor(ctx,
		supervisor.WithLogger(a.log),
		supervisor.WithCancelOnError(true),
	)

	// transactional config reload: validate before commit/publish
	a.cfgm.SetLogger(a.logs.Logger().With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(c context.Context, cfg *config.Config) error {
		return validateConfig(cfg)
	})

	cfg := a.cfgm.Get()

	// Notified set must be loaded before the first cycle runs.
	a.mon.Seed(a.sup.Context())

	// The command surface needs incoming updates; without owners the bot is
	// send-only and never long-polls.
	owners := cfg.Telegram.OwnerUserIDs
	if len(owners) > 0 {
		if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
			return err
		}
		a.polling = true
		a.sup.Go("commands.dispatch", func(c context.Context) error {
			return a.router.DispatchLoop(c, a.updates)
		})
	} else {
		a.log.Info("command surface disabled (no telegram.owner_user_ids); running send-only")
	}

	a.runner.Start()

	if cfg.Watch.RunOnStart == nil || *cfg.Watch.RunOnStart {
		a.sup.Go0("check.startup", func(c context.Context) {
			cctx, cancel := context.WithTimeout(c, checkCycleTimeout)
			defer cancel()
			a.mon.Check(cctx)
		})
	}

	if a.pprof.Enabled() {
		a.pprof.Start(a.sup.Context())
	}

	// Debug visibility for bus traffic; components subscribe on their own.
	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	a.startSystemdNotify()

	// hot reload config fan-out
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config in the channel.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyReload(c, lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started",
		logx.String("schedule", a.runner.Describe()),
		logx.String("work_hours", a.notif.Hours().String()),
		logx.Bool("commands", a.polling),
	)
	return nil
}

// applyReload pushes a validated config into the running services.
// Sections that cannot change live get a restart-required warning instead.
func (a *App) applyReload(ctx context.Context, oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Debug("config change summary", fields...)

	if oldCfg != nil {
		if oldCfg.Telegram.Token != newCfg.Telegram.Token || oldCfg.Telegram.PollTimeout != newCfg.Telegram.PollTimeout {
			a.log.Warn("telegram token/poll_timeout changed; restart required for changes to take effect")
		}
	}
	for _, s := range sections {
		if s == "state" {
			a.log.Warn("state config changed; restart required for changes to take effect")
			break
		}
	}

	// logging first so later apply steps report through the new sinks
	a.logs.Apply(logx.Config{
		Level:   newCfg.Logging.Level,
		Console: newCfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: newCfg.Logging.File.Enabled,
			Path:    newCfg.Logging.File.Path,
		},
	})

	a.router.SetOwners(newCfg.Telegram.OwnerUserIDs)
	if !a.polling && len(newCfg.Telegram.OwnerUserIDs) > 0 {
		a.log.Warn("owner_user_ids added, but the bot started send-only; restart required to enable commands")
	}

	if jCfg, err := mapJiraConfig(newCfg); err != nil {
		a.log.Warn("invalid jira config; keeping previous", logx.Any("err", err))
	} else {
		a.jc.Apply(jCfg)
	}

	loc := loadLocation(newCfg.Watch.Timezone, a.log)
	if nCfg, err := mapNotifyConfig(newCfg, loc); err != nil {
		a.log.Warn("invalid notify config; keeping previous", logx.Any("err", err))
	} else {
		a.notif.Apply(nCfg)
	}

	if mCfg, err := mapMonitorConfig(newCfg); err != nil {
		a.log.Warn("invalid watch config; keeping previous", logx.Any("err", err))
	} else {
		a.mon.Apply(mCfg)
	}

	if schedCfg, err := mapScheduleConfig(newCfg); err != nil {
		a.log.Warn("invalid schedule; keeping previous", logx.Any("err", err))
	} else if err := a.runner.Apply(schedCfg); err != nil {
		a.log.Warn("schedule apply failed; keeping previous", logx.Any("err", err))
	}

	if ppc, err := mapPprofConfig(newCfg); err != nil {
		a.log.Warn("invalid pprof config; keeping previous", logx.Any("err", err))
	} else {
		a.pprof.Reconfigure(ctx, ppc)
	}

	a.bus.Publish(eventbus.Event{Type: eventbus.TypeConfigReload})
	a.log.Info("config reloaded", fields...)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.notifyStopping()

	// First, cancel the app run context so background loops start unwinding immediately.
	a.sup.Cancel()

	// Helper: run a shutdown step with an upper bound so one component can't stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		a.log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", max))

		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			// respect the caller's deadline; never extend it
			if dl, ok := ctx.Deadline(); ok {
				rem := time.Until(dl)
				if rem <= 0 {
					max = 0
				} else if rem < max {
					max = rem
				}
			}
			if max > 0 {
				stepCtx, cancel = context.WithTimeout(ctx, max)
				defer cancel()
			}
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.String("err", err.Error()))
			}
			took := time.Since(start)
			if took >= 500*time.Millisecond {
				a.log.Info("stop step end", logx.String("name", name), logx.Duration("took", took))
			} else {
				a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", took))
			}
		case <-stepCtx.Done():
			// Contract: fn MUST honor stepCtx and return promptly. If it doesn't, log a leak signal.
			elapsed := time.Since(start)
			a.log.Warn(
				"stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.String("err", stepCtx.Err().Error()),
				logx.Duration("elapsed", elapsed),
			)
			// Leak logging: observe when/if the step eventually finishes.
			go func() {
				err := <-done
				took := time.Since(start)
				if err != nil {
					a.log.Warn("stop step finished after deadline", logx.String("name", name), logx.String("err", err.Error()), logx.Duration("took", took))
				} else {
					a.log.Info("stop step finished after deadline", logx.String("name", name), logx.Duration("took", took))
				}
			}()
		}
	}

	step("schedule", 2*time.Second, func(c context.Context) error { a.runner.Stop(c); return nil })
	step("pprof", 1*time.Second, func(c context.Context) error { a.pprof.Stop(c); return nil })
	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("state", 1*time.Second, func(c context.Context) error { return a.store.Close() })

	// Finally, wait for supervised goroutines (config watch/reload, command dispatcher, etc.)
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
