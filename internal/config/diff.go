package config

import (
	"reflect"
	"sort"
	"strings"

	logx "jirabell/pkg/logx"
)

// SummarizeConfigChange returns a compact list of changed sections plus safe
// structured attrs for logging. Secrets (bot token, Jira API token, pprof
// token) are reported as *_set booleans, never as values.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 8)
	attrs := make([]logx.Field, 0, 24)

	// Telegram (never log token)
	if oldCfg.Telegram.Token != newCfg.Telegram.Token ||
		oldCfg.Telegram.ChatID != newCfg.Telegram.ChatID ||
		oldCfg.Telegram.ThreadID != newCfg.Telegram.ThreadID ||
		!reflect.DeepEqual(oldCfg.Telegram.OwnerUserIDs, newCfg.Telegram.OwnerUserIDs) ||
		strings.TrimSpace(oldCfg.Telegram.PollTimeout) != strings.TrimSpace(newCfg.Telegram.PollTimeout) {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Bool("telegram.token_set", strings.TrimSpace(newCfg.Telegram.Token) != ""),
			logx.Int64("telegram.chat_id", newCfg.Telegram.ChatID),
			logx.Int("telegram.thread_id", newCfg.Telegram.ThreadID),
			logx.Int("telegram.owner_count", len(newCfg.Telegram.OwnerUserIDs)),
			logx.String("telegram.poll_timeout", strings.TrimSpace(newCfg.Telegram.PollTimeout)),
		)
	}

	// Jira (never log api_token; email is reported as a presence bit too)
	if strings.TrimSpace(oldCfg.Jira.BaseURL) != strings.TrimSpace(newCfg.Jira.BaseURL) ||
		oldCfg.Jira.Email != newCfg.Jira.Email ||
		oldCfg.Jira.APIToken != newCfg.Jira.APIToken ||
		strings.TrimSpace(oldCfg.Jira.JQL) != strings.TrimSpace(newCfg.Jira.JQL) ||
		oldCfg.Jira.MaxResults != newCfg.Jira.MaxResults ||
		strings.TrimSpace(oldCfg.Jira.Timeout) != strings.TrimSpace(newCfg.Jira.Timeout) {
		changed = append(changed, "jira")
		attrs = append(attrs,
			logx.String("jira.base_url", strings.TrimSpace(newCfg.Jira.BaseURL)),
			logx.Bool("jira.email_set", strings.TrimSpace(newCfg.Jira.Email) != ""),
			logx.Bool("jira.api_token_set", strings.TrimSpace(newCfg.Jira.APIToken) != ""),
			logx.String("jira.jql", strings.TrimSpace(newCfg.Jira.JQL)),
			logx.Int("jira.max_results", newCfg.Jira.MaxResults),
			logx.String("jira.timeout", strings.TrimSpace(newCfg.Jira.Timeout)),
		)
	}

	// Watch
	oldROS := derefBool(oldCfg.Watch.RunOnStart, true)
	newROS := derefBool(newCfg.Watch.RunOnStart, true)
	if strings.TrimSpace(oldCfg.Watch.Schedule) != strings.TrimSpace(newCfg.Watch.Schedule) ||
		strings.TrimSpace(oldCfg.Watch.Timezone) != strings.TrimSpace(newCfg.Watch.Timezone) ||
		oldROS != newROS ||
		oldCfg.Watch.HistorySize != newCfg.Watch.HistorySize {
		changed = append(changed, "watch")
		attrs = append(attrs,
			logx.String("watch.schedule", strings.TrimSpace(newCfg.Watch.Schedule)),
			logx.String("watch.timezone", strings.TrimSpace(newCfg.Watch.Timezone)),
			logx.Bool("watch.run_on_start", newROS),
			logx.Int("watch.history_size", newCfg.Watch.HistorySize),
		)
	}

	// Work hours
	if oldCfg.WorkHours != newCfg.WorkHours {
		changed = append(changed, "work_hours")
		attrs = append(attrs,
			logx.Bool("work_hours.enabled", newCfg.WorkHours.Enabled),
			logx.String("work_hours.start", strings.TrimSpace(newCfg.WorkHours.Start)),
			logx.String("work_hours.end", strings.TrimSpace(newCfg.WorkHours.End)),
		)
	}

	// Notify
	if oldCfg.Notify != newCfg.Notify {
		changed = append(changed, "notify")
		attrs = append(attrs,
			logx.Int("notify.rate_per_min", newCfg.Notify.RatePerMin),
		)
	}

	// State (path is reported as a presence bit; it can embed usernames)
	if strings.TrimSpace(oldCfg.State.Driver) != strings.TrimSpace(newCfg.State.Driver) ||
		strings.TrimSpace(oldCfg.State.Path) != strings.TrimSpace(newCfg.State.Path) ||
		strings.TrimSpace(oldCfg.State.BusyTimeout) != strings.TrimSpace(newCfg.State.BusyTimeout) {
		changed = append(changed, "state")
		attrs = append(attrs,
			logx.String("state.driver", strings.TrimSpace(newCfg.State.Driver)),
			logx.Bool("state.path_set", strings.TrimSpace(newCfg.State.Path) != ""),
			logx.String("state.busy_timeout", strings.TrimSpace(newCfg.State.BusyTimeout)),
		)
	}

	// Logging
	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	// Pprof (never log token)
	if oldCfg.Pprof.Enabled != newCfg.Pprof.Enabled ||
		strings.TrimSpace(oldCfg.Pprof.Addr) != strings.TrimSpace(newCfg.Pprof.Addr) ||
		oldCfg.Pprof.AllowInsecure != newCfg.Pprof.AllowInsecure ||
		strings.TrimSpace(oldCfg.Pprof.ReadTimeout) != strings.TrimSpace(newCfg.Pprof.ReadTimeout) ||
		strings.TrimSpace(oldCfg.Pprof.WriteTimeout) != strings.TrimSpace(newCfg.Pprof.WriteTimeout) ||
		strings.TrimSpace(oldCfg.Pprof.IdleTimeout) != strings.TrimSpace(newCfg.Pprof.IdleTimeout) ||
		oldCfg.Pprof.Token != newCfg.Pprof.Token {
		changed = append(changed, "pprof")
		attrs = append(attrs,
			logx.Bool("pprof.enabled", newCfg.Pprof.Enabled),
			logx.String("pprof.addr", strings.TrimSpace(newCfg.Pprof.Addr)),
			logx.Bool("pprof.token_set", strings.TrimSpace(newCfg.Pprof.Token) != ""),
			logx.Bool("pprof.allow_insecure", newCfg.Pprof.AllowInsecure),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

func derefBool(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
