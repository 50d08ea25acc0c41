package app

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"jirabell/internal/config"
	"jirabell/internal/jira"
	"jirabell/internal/monitor"
	"jirabell/internal/notify"
	pprofsvc "jirabell/internal/observability/pprof"
	"jirabell/internal/schedule"
	"jirabell/internal/state"
	telegram "jirabell/internal/transport/telegram"
	logx "jirabell/pkg/logx"
)

func mapTelegramConfig(cfg *config.Config) (telegram.Config, error) {
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return telegram.Config{}, fmt.Errorf("telegram.token is required (set it in the config file or via %s)", config.EnvTelegramToken)
	}
	if cfg.Telegram.ChatID == 0 {
		return telegram.Config{}, fmt.Errorf("telegram.chat_id is required")
	}
	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return telegram.Config{}, err
	}
	return telegram.Config{Token: cfg.Telegram.Token, PollTimeout: pollTimeout}, nil
}

func mapJiraConfig(cfg *config.Config) (jira.Config, error) {
	jc := cfg.Jira
	if strings.TrimSpace(jc.BaseURL) == "" {
		return jira.Config{}, fmt.Errorf("jira.base_url is required")
	}
	if u, err := url.Parse(strings.TrimSpace(jc.BaseURL)); err != nil {
		return jira.Config{}, fmt.Errorf("jira.base_url: %w", err)
	} else if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return jira.Config{}, fmt.Errorf("jira.base_url must be an http(s) URL, got %q", jc.BaseURL)
	}
	if strings.TrimSpace(jc.Email) == "" {
		return jira.Config{}, fmt.Errorf("jira.email is required (set it in the config file or via %s)", config.EnvJiraEmail)
	}
	if strings.TrimSpace(jc.APIToken) == "" {
		return jira.Config{}, fmt.Errorf("jira.api_token is required (set it in the config file or via %s)", config.EnvJiraAPIToken)
	}
	if strings.TrimSpace(jc.JQL) == "" {
		return jira.Config{}, fmt.Errorf("jira.jql is required")
	}
	if jc.MaxResults < 0 {
		return jira.Config{}, fmt.Errorf("jira.max_results must be >= 0")
	}
	timeout, err := config.ParseDurationField("jira.timeout", jc.Timeout)
	if err != nil {
		return jira.Config{}, err
	}
	return jira.Config{
		BaseURL:    jc.BaseURL,
		Email:      jc.Email,
		APIToken:   jc.APIToken,
		JQL:        jc.JQL,
		MaxResults: jc.MaxResults,
		Timeout:    timeout,
	}, nil
}

func mapScheduleConfig(cfg *config.Config) (schedule.Config, error) {
	if err := schedule.Validate(cfg.Watch.Schedule); err != nil {
		return schedule.Config{}, fmt.Errorf("watch.schedule: %w", err)
	}
	if tz := strings.TrimSpace(cfg.Watch.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return schedule.Config{}, fmt.Errorf("watch.timezone: invalid %q: %w", tz, err)
		}
	}
	return schedule.Config{Schedule: cfg.Watch.Schedule, Timezone: cfg.Watch.Timezone}, nil
}

// mapHours builds the work-hours gate. The window is evaluated in the watch
// timezone; loc must already be resolved (see loadLocation).
func mapHours(cfg *config.Config, loc *time.Location) (notify.Hours, error) {
	wh := cfg.WorkHours
	out := notify.Hours{Enabled: wh.Enabled, Loc: loc}
	if !wh.Enabled && strings.TrimSpace(wh.Start) == "" && strings.TrimSpace(wh.End) == "" {
		return out, nil
	}
	if wh.Enabled && (strings.TrimSpace(wh.Start) == "" || strings.TrimSpace(wh.End) == "") {
		return notify.Hours{}, fmt.Errorf("work_hours.start and work_hours.end are required when work_hours.enabled")
	}
	if strings.TrimSpace(wh.Start) != "" {
		h, m, err := config.ParseClockField("work_hours.start", wh.Start)
		if err != nil {
			return notify.Hours{}, err
		}
		out.Start = h*60 + m
	}
	if strings.TrimSpace(wh.End) != "" {
		h, m, err := config.ParseClockField("work_hours.end", wh.End)
		if err != nil {
			return notify.Hours{}, err
		}
		out.End = h*60 + m
	}
	if wh.Enabled && out.Start == out.End {
		return notify.Hours{}, fmt.Errorf("work_hours: start and end are equal (%s); the window would never open", wh.Start)
	}
	return out, nil
}

func mapNotifyConfig(cfg *config.Config, loc *time.Location) (notify.Config, error) {
	if cfg.Notify.RatePerMin < 0 {
		return notify.Config{}, fmt.Errorf("notify.rate_per_min must be >= 0")
	}
	hours, err := mapHours(cfg, loc)
	if err != nil {
		return notify.Config{}, err
	}
	return notify.Config{
		ChatID:     cfg.Telegram.ChatID,
		ThreadID:   cfg.Telegram.ThreadID,
		RatePerMin: cfg.Notify.RatePerMin,
		Hours:      hours,
	}, nil
}

func mapStateConfig(cfg *config.Config) (state.Config, error) {
	sc := cfg.State
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	path := strings.TrimSpace(sc.Path)

	switch driver {
	case "", "file":
		return state.Config{Driver: "file", Path: path}, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return state.Config{}, fmt.Errorf("state.path is required when state.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("state.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return state.Config{}, err
		}
		return state.Config{Driver: driver, Path: path, BusyTimeout: busy}, nil
	default:
		return state.Config{}, fmt.Errorf("unknown state.driver: %s", sc.Driver)
	}
}

func mapMonitorConfig(cfg *config.Config) (monitor.Config, error) {
	if cfg.Watch.HistorySize < 0 {
		return monitor.Config{}, fmt.Errorf("watch.history_size must be >= 0")
	}
	return monitor.Config{HistorySize: cfg.Watch.HistorySize}, nil
}

func mapPprofConfig(cfg *config.Config) (pprofsvc.Config, error) {
	pc := cfg.Pprof

	out := pprofsvc.Config{
		Enabled:       pc.Enabled,
		Addr:          strings.TrimSpace(pc.Addr),
		Token:         strings.TrimSpace(pc.Token),
		AllowInsecure: pc.AllowInsecure,
	}
	if out.Addr == "" {
		out.Addr = "127.0.0.1:6060"
	}

	readTO, err := config.ParseDurationOrDefault("pprof.read_timeout", pc.ReadTimeout, 5*time.Second)
	if err != nil {
		return out, err
	}
	// WriteTimeout stays 0 unless set; /profile responses can take 30s+.
	writeTO, err := config.ParseDurationField("pprof.write_timeout", pc.WriteTimeout)
	if err != nil {
		return out, err
	}
	idleTO, err := config.ParseDurationOrDefault("pprof.idle_timeout", pc.IdleTimeout, 120*time.Second)
	if err != nil {
		return out, err
	}
	out.ReadTimeout = readTO
	out.WriteTimeout = writeTO
	out.IdleTimeout = idleTO
	return out, nil
}

// loadLocation resolves the watch timezone, falling back to the system local
// zone on error. The validator rejects bad zones on hot reload, so the
// fallback mostly covers first boot with a broken config.
func loadLocation(tz string, log logx.Logger) *time.Location {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Warn("invalid watch.timezone; using system local", logx.String("tz", tz), logx.Any("err", err))
		return time.Local
	}
	return loc
}

// validateConfig is the transactional reload gate: a config that fails here
// is rejected before commit, and the previous config stays active.
func validateConfig(cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if _, err := mapTelegramConfig(cfg); err != nil {
		return err
	}
	if _, err := mapJiraConfig(cfg); err != nil {
		return err
	}
	if _, err := mapScheduleConfig(cfg); err != nil {
		return err
	}
	// Hours validation does not need a real location.
	if _, err := mapHours(cfg, time.UTC); err != nil {
		return err
	}
	if _, err := mapNotifyConfig(cfg, time.UTC); err != nil {
		return err
	}
	if _, err := mapStateConfig(cfg); err != nil {
		return err
	}
	if _, err := mapMonitorConfig(cfg); err != nil {
		return err
	}
	if _, err := mapPprofConfig(cfg); err != nil {
		return err
	}
	return nil
}
