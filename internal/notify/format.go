package notify

import (
	"strings"

	"jirabell/internal/jira"
	"jirabell/pkg/tgui"
)

// Long summaries get cut so one noisy issue can't dominate the message.
const summaryMaxRunes = 200

// FormatAlert renders the new-issues alert in Telegram HTML. browse maps an
// issue key to its web URL. One line per issue, keys as links:
//
//	⚠️ Jira tasks need updating:
//
//	• PROJ-101: Fix the flaky login test
//	• PROJ-104: Upgrade the payment gateway
func FormatAlert(issues []jira.Issue, browse func(key string) string) string {
	if len(issues) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("⚠️ ")
	b.WriteString(tgui.B("Jira tasks need updating:").String())
	b.WriteString("\n")
	for _, is := range issues {
		b.WriteString("\n• ")
		b.WriteString(tgui.Link(is.Key, browse(is.Key)).String())
		b.WriteString(": ")
		b.WriteString(tgui.Esc(tgui.TruncRunes(is.Summary(), summaryMaxRunes)).String())
	}
	return b.String()
}
