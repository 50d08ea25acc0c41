package config

type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Jira      JiraConfig      `json:"jira"`
	Watch     WatchConfig     `json:"watch"`
	WorkHours WorkHoursConfig `json:"work_hours"`
	Notify    NotifyConfig    `json:"notify,omitempty"`
	State     StateConfig     `json:"state,omitempty"`
	Logging   LoggingConfig   `json:"logging"`
	Pprof     PprofConfig     `json:"pprof,omitempty"`
}

type TelegramConfig struct {
	// Token may be left empty in the file and supplied via
	// JIRABELL_TELEGRAM_TOKEN (see env.go).
	Token string `json:"token"`
	// ChatID is the chat that receives alerts (and commands, if owners are set).
	ChatID   int64 `json:"chat_id"`
	ThreadID int   `json:"thread_id,omitempty"`
	// OwnerUserIDs enables the command surface. Empty means send-only:
	// the bot never long-polls for updates.
	OwnerUserIDs []int64 `json:"owner_user_ids,omitempty"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type JiraConfig struct {
	// BaseURL like "https://yourcompany.atlassian.net" (no trailing slash needed).
	BaseURL string `json:"base_url"`
	// Email + APIToken form the basic-auth pair. Both may come from the
	// environment instead (JIRABELL_JIRA_EMAIL / JIRABELL_JIRA_API_TOKEN).
	Email    string `json:"email"`
	APIToken string `json:"api_token"`
	// JQL is the single saved search this daemon watches.
	JQL string `json:"jql"`
	// MaxResults bounds each search to the first N issues. Default 50.
	MaxResults int `json:"max_results,omitempty"`
	// Timeout is a Go duration string for the whole search request. Default "15s".
	Timeout string `json:"timeout,omitempty"`
}

// WatchConfig controls when check cycles run.
type WatchConfig struct {
	// Schedule accepts a cron expression ("*/30 * * * *", "@hourly"),
	// a Go duration ("30m"), or HH:MM as an interval ("00:30").
	Schedule string `json:"schedule"`
	// Timezone applies to both the cron schedule and the work-hours gate.
	// Empty means the system local zone.
	Timezone string `json:"timezone,omitempty"`
	// RunOnStart fires one check immediately at startup. Omitted means true.
	RunOnStart *bool `json:"run_on_start,omitempty"`
	// HistorySize caps the in-memory cycle history shown by /status. Default 50.
	HistorySize int `json:"history_size,omitempty"`
}

// WorkHoursConfig gates alert delivery to a local-time window.
//
// Alerts suppressed by the gate are NOT queued: the matching issues are
// marked notified and will not alert later.
type WorkHoursConfig struct {
	Enabled bool `json:"enabled"`
	// Start/End are "HH:MM" in the watch timezone. The window is half-open
	// [start, end) and may span midnight ("22:00" to "06:00").
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

type NotifyConfig struct {
	// RatePerMin caps outbound Telegram messages. Default 20.
	RatePerMin int `json:"rate_per_min,omitempty"`
}

// StateConfig controls where the notified set is persisted.
//
// Example:
//
//	"state": { "driver": "file", "path": "./notified_state.json" }
type StateConfig struct {
	// Driver is "file" (default) or "sqlite" (requires the sqlite build tag).
	Driver string `json:"driver,omitempty"`
	Path   string `json:"path,omitempty"`
	// BusyTimeout is a Go duration string (sqlite only).
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// PprofConfig controls the optional pprof HTTP server.
//
// Security note:
//   - Prefer binding to localhost (e.g. "127.0.0.1:6060").
//   - If you bind to a non-loopback address, set a token or explicitly allow_insecure.
type PprofConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`  // default: "127.0.0.1:6060"
	Token         string `json:"token,omitempty"` // optional bearer token (do not log)
	AllowInsecure bool   `json:"allow_insecure,omitempty"`

	// Server timeouts (Go duration strings). WriteTimeout defaults to 0 (disabled)
	// so /profile (which can take 30s+) works reliably.
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
}
