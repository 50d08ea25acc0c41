package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Credential overrides. When set, these win over the config file so tokens
// can be rotated (or kept out of the file entirely) without editing it.
const (
	EnvTelegramToken = "JIRABELL_TELEGRAM_TOKEN"
	EnvJiraEmail     = "JIRABELL_JIRA_EMAIL"
	EnvJiraAPIToken  = "JIRABELL_JIRA_API_TOKEN"
)

// LoadDotenv loads the given .env file into the process environment.
// Variables that are already set are left alone, and a missing file is not
// an error (the flag default ".env" usually won't exist in production).
func LoadDotenv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvTelegramToken); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv(EnvJiraEmail); v != "" {
		cfg.Jira.Email = v
	}
	if v := os.Getenv(EnvJiraAPIToken); v != "" {
		cfg.Jira.APIToken = v
	}
}
