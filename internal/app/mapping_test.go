package app

import (
	"strings"
	"testing"
	"time"

	"jirabell/internal/config"
	logx "jirabell/pkg/logx"
)

func validCfg() *config.Config {
	return &config.Config{
		Telegram: config.TelegramConfig{Token: "123:abc", ChatID: -100200300},
		Jira: config.JiraConfig{
			BaseURL:  "https://example.atlassian.net",
			Email:    "bot@example.com",
			APIToken: "tok",
			JQL:      "assignee = currentUser() AND status = Blocked",
		},
		Watch:     config.WatchConfig{Schedule: "30m", Timezone: "UTC"},
		WorkHours: config.WorkHoursConfig{Enabled: true, Start: "09:00", End: "18:00"},
	}
}

func TestValidateConfigOK(t *testing.T) {
	if err := validateConfig(validCfg()); err != nil {
		t.Fatalf("validateConfig: %v", err)
	}
}

func TestValidateConfigRejects(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*config.Config)
		wantSub string
	}{
		{"no_token", func(c *config.Config) { c.Telegram.Token = "" }, "telegram.token"},
		{"no_chat", func(c *config.Config) { c.Telegram.ChatID = 0 }, "telegram.chat_id"},
		{"no_base_url", func(c *config.Config) { c.Jira.BaseURL = "" }, "jira.base_url"},
		{"bad_base_url_scheme", func(c *config.Config) { c.Jira.BaseURL = "ftp://example.net" }, "http(s)"},
		{"no_email", func(c *config.Config) { c.Jira.Email = " " }, "jira.email"},
		{"no_api_token", func(c *config.Config) { c.Jira.APIToken = "" }, "jira.api_token"},
		{"no_jql", func(c *config.Config) { c.Jira.JQL = "" }, "jira.jql"},
		{"bad_jira_timeout", func(c *config.Config) { c.Jira.Timeout = "soon" }, "jira.timeout"},
		{"bad_schedule", func(c *config.Config) { c.Watch.Schedule = "whenever" }, "watch.schedule"},
		{"bad_timezone", func(c *config.Config) { c.Watch.Timezone = "Mars/Olympus" }, "watch.timezone"},
		{"hours_equal", func(c *config.Config) { c.WorkHours.End = "09:00" }, "never open"},
		{"hours_missing_end", func(c *config.Config) { c.WorkHours.End = "" }, "work_hours"},
		{"hours_bad_start", func(c *config.Config) { c.WorkHours.Start = "25:00" }, "work_hours.start"},
		{"negative_rate", func(c *config.Config) { c.Notify.RatePerMin = -1 }, "rate_per_min"},
		{"bad_state_driver", func(c *config.Config) { c.State.Driver = "redis" }, "state.driver"},
		{"negative_history", func(c *config.Config) { c.Watch.HistorySize = -1 }, "history_size"},
		{"bad_pprof_timeout", func(c *config.Config) { c.Pprof.ReadTimeout = "fast" }, "pprof.read_timeout"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validCfg()
			tc.mutate(cfg)
			err := validateConfig(cfg)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.wantSub) {
				t.Fatalf("error %q does not mention %q", err, tc.wantSub)
			}
		})
	}
}

func TestMapHours(t *testing.T) {
	cfg := validCfg()
	h, err := mapHours(cfg, time.UTC)
	if err != nil {
		t.Fatalf("mapHours: %v", err)
	}
	if !h.Enabled || h.Start != 9*60 || h.End != 18*60 || h.Loc != time.UTC {
		t.Fatalf("hours = %+v", h)
	}

	cfg.WorkHours = config.WorkHoursConfig{Enabled: true, Start: "22:00", End: "06:00"}
	h, err = mapHours(cfg, time.UTC)
	if err != nil {
		t.Fatalf("overnight: %v", err)
	}
	if h.Start != 22*60 || h.End != 6*60 {
		t.Fatalf("overnight hours = %+v", h)
	}

	// Disabled gate with no bounds set parses to an open gate.
	cfg.WorkHours = config.WorkHoursConfig{}
	h, err = mapHours(cfg, time.UTC)
	if err != nil {
		t.Fatalf("disabled: %v", err)
	}
	if h.Enabled {
		t.Fatalf("disabled gate = %+v", h)
	}

	// Bounds are still validated while disabled, so re-enabling can't surprise.
	cfg.WorkHours = config.WorkHoursConfig{Enabled: false, Start: "9am", End: "18:00"}
	if _, err = mapHours(cfg, time.UTC); err == nil {
		t.Fatal("bad start should fail even when disabled")
	}
}

func TestMapStateConfig(t *testing.T) {
	cfg := validCfg()
	sc, err := mapStateConfig(cfg)
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	if sc.Driver != "file" {
		t.Fatalf("default driver = %q", sc.Driver)
	}

	cfg.State = config.StateConfig{Driver: "sqlite"}
	if _, err = mapStateConfig(cfg); err == nil {
		t.Fatal("sqlite without path should fail")
	}

	cfg.State = config.StateConfig{Driver: "sqlite", Path: "./state.db"}
	sc, err = mapStateConfig(cfg)
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	if sc.BusyTimeout != time.Second {
		t.Fatalf("default busy timeout = %v", sc.BusyTimeout)
	}
}

func TestMapPprofConfigDefaults(t *testing.T) {
	cfg := validCfg()
	cfg.Pprof.Enabled = true
	pc, err := mapPprofConfig(cfg)
	if err != nil {
		t.Fatalf("mapPprofConfig: %v", err)
	}
	if pc.Addr != "127.0.0.1:6060" {
		t.Fatalf("addr = %q", pc.Addr)
	}
	if pc.ReadTimeout != 5*time.Second || pc.IdleTimeout != 120*time.Second {
		t.Fatalf("timeouts = %+v", pc)
	}
	if pc.WriteTimeout != 0 {
		t.Fatalf("write timeout should default to 0, got %v", pc.WriteTimeout)
	}
}

func TestLoadLocation(t *testing.T) {
	if loc := loadLocation("", logx.Nop()); loc != time.Local {
		t.Fatalf("empty tz = %v", loc)
	}
	if loc := loadLocation("Mars/Olympus", logx.Nop()); loc != time.Local {
		t.Fatalf("bad tz should fall back to local, got %v", loc)
	}
	loc := loadLocation("UTC", logx.Nop())
	if loc.String() != "UTC" {
		t.Fatalf("utc = %v", loc)
	}
}
