package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func clearCredentialEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvTelegramToken, "")
	t.Setenv(EnvJiraEmail, "")
	t.Setenv(EnvJiraAPIToken, "")
}

func TestParseStrictJSON(t *testing.T) {
	clearCredentialEnv(t)
	path := writeConfigFile(t, "config.json", `{
		"telegram": {"token": "t1", "chat_id": -100123},
		"jira": {"base_url": "https://x.atlassian.net", "email": "a@b.c", "api_token": "k", "jql": "project = X"},
		"watch": {"schedule": "30m"},
		"work_hours": {"enabled": true, "start": "09:00", "end": "18:00"},
		"logging": {"level": "info", "console": true, "file": {"enabled": false, "path": ""}}
	}`)

	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Telegram.Token != "t1" || cfg.Telegram.ChatID != -100123 {
		t.Fatalf("telegram section mismatch: %+v", cfg.Telegram)
	}
	if cfg.Jira.JQL != "project = X" {
		t.Fatalf("jql mismatch: %q", cfg.Jira.JQL)
	}
	if cfg.Watch.Schedule != "30m" {
		t.Fatalf("schedule mismatch: %q", cfg.Watch.Schedule)
	}
	if !cfg.WorkHours.Enabled || cfg.WorkHours.Start != "09:00" {
		t.Fatalf("work_hours mismatch: %+v", cfg.WorkHours)
	}
}

func TestParseRejectsUnknownField(t *testing.T) {
	clearCredentialEnv(t)
	path := writeConfigFile(t, "config.json", `{"telegram": {"token": "t", "chat_id": 1, "typo_field": true}}`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	clearCredentialEnv(t)
	path := writeConfigFile(t, "config.json", `{"telegram": {"token": "t", "chat_id": 1}} {"extra": 1}`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("expected error for trailing data, got nil")
	}
}

func TestParseYAML(t *testing.T) {
	clearCredentialEnv(t)
	path := writeConfigFile(t, "config.yaml", `
telegram:
  token: yaml-token
  chat_id: 42
jira:
  base_url: https://x.atlassian.net
  email: a@b.c
  api_token: k
  jql: project = X AND status = Open
watch:
  schedule: "*/30 * * * *"
  timezone: Europe/Berlin
`)
	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Telegram.Token != "yaml-token" || cfg.Telegram.ChatID != 42 {
		t.Fatalf("telegram mismatch: %+v", cfg.Telegram)
	}
	if cfg.Watch.Timezone != "Europe/Berlin" {
		t.Fatalf("timezone mismatch: %q", cfg.Watch.Timezone)
	}
}

func TestParseEnvOverridesWinOverFile(t *testing.T) {
	clearCredentialEnv(t)
	t.Setenv(EnvTelegramToken, "env-token")
	t.Setenv(EnvJiraAPIToken, "env-jira-token")

	path := writeConfigFile(t, "config.json", `{
		"telegram": {"token": "file-token", "chat_id": 1},
		"jira": {"base_url": "https://x", "email": "file@x", "api_token": "file-key", "jql": "q"}
	}`)
	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Telegram.Token != "env-token" {
		t.Fatalf("telegram token = %q, want env override", cfg.Telegram.Token)
	}
	if cfg.Jira.APIToken != "env-jira-token" {
		t.Fatalf("jira api token = %q, want env override", cfg.Jira.APIToken)
	}
	// Email env is empty, so the file value stands.
	if cfg.Jira.Email != "file@x" {
		t.Fatalf("jira email = %q, want file value", cfg.Jira.Email)
	}
}

func TestLoadDotenvDoesNotClobber(t *testing.T) {
	clearCredentialEnv(t)
	t.Setenv(EnvJiraEmail, "already@set")
	path := writeConfigFile(t, ".env", EnvJiraEmail+"=from-dotenv\n"+EnvTelegramToken+"=dotenv-token\n")

	if err := LoadDotenv(path); err != nil {
		t.Fatalf("LoadDotenv: %v", err)
	}
	if got := os.Getenv(EnvJiraEmail); got != "already@set" {
		t.Fatalf("dotenv clobbered existing var: %q", got)
	}
	if got := os.Getenv(EnvTelegramToken); got != "dotenv-token" {
		t.Fatalf("dotenv did not set unset var: %q", got)
	}
}

func TestLoadDotenvMissingFileOK(t *testing.T) {
	if err := LoadDotenv(filepath.Join(t.TempDir(), "nope.env")); err != nil {
		t.Fatalf("missing .env should not error: %v", err)
	}
}

func TestPublishKeepsLatestForSlowSubscriber(t *testing.T) {
	m := NewManager("unused")
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	first := &Config{Jira: JiraConfig{JQL: "one"}}
	second := &Config{Jira: JiraConfig{JQL: "two"}}
	m.publish(first)
	m.publish(second)

	got := <-ch
	if got.Jira.JQL != "two" {
		t.Fatalf("subscriber got %q, want latest config", got.Jira.JQL)
	}
	select {
	case extra := <-ch:
		t.Fatalf("unexpected extra config in queue: %+v", extra)
	default:
	}
}

func TestParseClockField(t *testing.T) {
	cases := []struct {
		raw     string
		h, m    int
		wantErr bool
	}{
		{"09:00", 9, 0, false},
		{"23:59", 23, 59, false},
		{" 6:30 ", 6, 30, false},
		{"24:00", 0, 0, true},
		{"12:60", 0, 0, true},
		{"noon", 0, 0, true},
		{"12:3x", 0, 0, true},
		{"1:2:3", 0, 0, true},
	}
	for _, tc := range cases {
		h, m, err := ParseClockField("work_hours.start", tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseClockField(%q): expected error", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseClockField(%q): %v", tc.raw, err)
			continue
		}
		if h != tc.h || m != tc.m {
			t.Errorf("ParseClockField(%q) = %d:%d, want %d:%d", tc.raw, h, m, tc.h, tc.m)
		}
	}
}

func TestSummarizeConfigChangeSections(t *testing.T) {
	old := &Config{
		Telegram: TelegramConfig{Token: "a", ChatID: 1},
		Jira:     JiraConfig{BaseURL: "https://x", JQL: "q"},
		Watch:    WatchConfig{Schedule: "30m"},
	}
	next := &Config{
		Telegram:  TelegramConfig{Token: "b", ChatID: 1},
		Jira:      JiraConfig{BaseURL: "https://x", JQL: "q2"},
		Watch:     WatchConfig{Schedule: "30m"},
		WorkHours: WorkHoursConfig{Enabled: true, Start: "09:00", End: "18:00"},
	}

	changed, _ := SummarizeConfigChange(old, next)
	want := map[string]bool{"telegram": true, "jira": true, "work_hours": true}
	if len(changed) != len(want) {
		t.Fatalf("changed = %v, want sections %v", changed, want)
	}
	for _, s := range changed {
		if !want[s] {
			t.Fatalf("unexpected changed section %q in %v", s, changed)
		}
	}
}
