package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"jirabell/internal/monitor"
	"jirabell/internal/notify"
	"jirabell/internal/transport"
	"jirabell/pkg/tgui"
)

// MonitorPort is the slice of the monitor the commands need.
type MonitorPort interface {
	Check(ctx context.Context) monitor.CheckResult
	Snapshot() monitor.Snapshot
}

// SchedulePort reports the active schedule.
type SchedulePort interface {
	Next() time.Time
	Describe() string
}

type Deps struct {
	Monitor  MonitorPort
	Schedule SchedulePort
	Hours    func() notify.Hours
	JQL      func() string

	StartedAt time.Time
	Version   string
}

// Builtin returns the daemon's command set: /status and /check. Both are
// owner-only; /help is injected by the router and open to everyone.
func Builtin(d Deps) []Command {
	return []Command{
		{
			Name:        "status",
			Description: "show daemon state and last check",
			Usage:       "/status",
			Access:      AccessOwnerOnly,
			Timeout:     10 * time.Second,
			Handle: func(ctx context.Context, req *Request) error {
				_, err := req.Adapter.SendText(ctx, req.Chat, statusText(d), &transport.SendOptions{ParseMode: "HTML", DisablePreview: true})
				return err
			},
		},
		{
			Name:        "check",
			Description: "run a check cycle now",
			Usage:       "/check",
			Access:      AccessOwnerOnly,
			Timeout:     60 * time.Second,
			Handle: func(ctx context.Context, req *Request) error {
				res := d.Monitor.Check(ctx)
				_, err := req.Adapter.SendText(ctx, req.Chat, checkText(res), &transport.SendOptions{ParseMode: "HTML", DisablePreview: true})
				return err
			},
		},
	}
}

const tsFormat = "2006-01-02 15:04:05"

func statusText(d Deps) string {
	snap := d.Monitor.Snapshot()

	var b strings.Builder
	b.WriteString(tgui.B("jirabell").String())
	if d.Version != "" {
		b.WriteString(" ")
		b.WriteString(tgui.Esc(d.Version).String())
	}
	if !d.StartedAt.IsZero() {
		fmt.Fprintf(&b, " — up %s", time.Since(d.StartedAt).Round(time.Second))
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "Schedule: %s\n", tgui.Esc(d.Schedule.Describe()))
	if next := d.Schedule.Next(); !next.IsZero() {
		fmt.Fprintf(&b, "Next check: %s\n", next.Format(tsFormat))
	}
	fmt.Fprintf(&b, "Work hours: %s\n", d.Hours().String())
	if jql := strings.TrimSpace(d.JQL()); jql != "" {
		fmt.Fprintf(&b, "Query: %s\n", tgui.Code(tgui.TruncRunes(jql, 200)))
	}
	fmt.Fprintf(&b, "Notified: %d issue(s)\n", snap.NotifiedCount)
	fmt.Fprintf(&b, "Checks: %d (%d alerts)", snap.Checks, snap.Alerts)

	if snap.Checks > 0 {
		last := snap.Last
		fmt.Fprintf(&b, "\nLast check: %s at %s — %d matching, %d new, took %s",
			last.Outcome, last.At.Format(tsFormat), last.Total, last.New, last.Took.Round(time.Millisecond))
		if last.Err != "" {
			fmt.Fprintf(&b, "\n%s", tgui.Code(tgui.TruncRunes(last.Err, 300)))
		}
	}
	if snap.Running {
		b.WriteString("\nA check is running right now.")
	}
	return b.String()
}

func checkText(res monitor.CheckResult) string {
	switch res.Outcome {
	case monitor.CheckSkipped:
		return "a check is already running, try again shortly"
	case monitor.CheckFetchFailed:
		return "❌ check failed: " + tgui.Code(tgui.TruncRunes(res.Err, 300)).String()
	case monitor.CheckSendFailed:
		return "❌ alert delivery failed: " + tgui.Code(tgui.TruncRunes(res.Err, 300)).String()
	case monitor.CheckQuietHours:
		return fmt.Sprintf("💤 %d new issue(s) found, suppressed by work hours", res.New)
	default:
		if res.New > 0 {
			return fmt.Sprintf("✅ %d matching, %d new — alert sent", res.Total, res.New)
		}
		return fmt.Sprintf("✅ %d matching, nothing new", res.Total)
	}
}
