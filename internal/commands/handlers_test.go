package commands

import (
	"context"
	"strings"
	"testing"
	"time"

	"jirabell/internal/monitor"
	"jirabell/internal/notify"
	logx "jirabell/pkg/logx"
)

type fakeMonitorPort struct {
	res    monitor.CheckResult
	snap   monitor.Snapshot
	checks int
}

func (f *fakeMonitorPort) Check(ctx context.Context) monitor.CheckResult {
	f.checks++
	return f.res
}

func (f *fakeMonitorPort) Snapshot() monitor.Snapshot { return f.snap }

type fakeSchedulePort struct {
	next time.Time
	desc string
}

func (f fakeSchedulePort) Next() time.Time  { return f.next }
func (f fakeSchedulePort) Describe() string { return f.desc }

func testDeps(mon *fakeMonitorPort) Deps {
	return Deps{
		Monitor:  mon,
		Schedule: fakeSchedulePort{next: time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC), desc: "every 30m0s (UTC)"},
		Hours: func() notify.Hours {
			return notify.Hours{Enabled: true, Start: 9 * 60, End: 18 * 60, Loc: time.UTC}
		},
		JQL:       func() string { return `project = OPS AND status = "Blocked"` },
		StartedAt: time.Now().Add(-time.Minute),
		Version:   "1.2.3",
	}
}

func TestStatusTextContents(t *testing.T) {
	mon := &fakeMonitorPort{snap: monitor.Snapshot{
		NotifiedCount: 3,
		Checks:        7,
		Alerts:        2,
		Last: monitor.CheckResult{
			At:      time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
			Took:    220 * time.Millisecond,
			Total:   5,
			New:     1,
			Outcome: monitor.CheckOK,
		},
	}}
	got := statusText(testDeps(mon))

	for _, want := range []string{
		"<b>jirabell</b> 1.2.3",
		"Schedule: every 30m0s (UTC)",
		"Next check: 2024-05-01 10:30:00",
		"Work hours: 09:00-18:00",
		"Notified: 3 issue(s)",
		"Checks: 7 (2 alerts)",
		"Last check: ok at 2024-05-01 10:00:00",
		"5 matching, 1 new",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("status text missing %q:\n%s", want, got)
		}
	}
	if !strings.Contains(got, "<code>") || !strings.Contains(got, "OPS") {
		t.Errorf("status text should show the query in code: %s", got)
	}
	if !strings.Contains(got, "&quot;Blocked&quot;") {
		t.Errorf("query should be HTML-escaped: %s", got)
	}
}

func TestStatusTextBeforeFirstCheck(t *testing.T) {
	got := statusText(testDeps(&fakeMonitorPort{}))
	if strings.Contains(got, "Last check") {
		t.Fatalf("no last-check line expected before the first cycle:\n%s", got)
	}
	if !strings.Contains(got, "Checks: 0 (0 alerts)") {
		t.Fatalf("status text = %s", got)
	}
}

func TestStatusTextShowsRunningAndError(t *testing.T) {
	mon := &fakeMonitorPort{snap: monitor.Snapshot{
		Running: true,
		Checks:  1,
		Last: monitor.CheckResult{
			At:      time.Now(),
			Outcome: monitor.CheckFetchFailed,
			Err:     "jira search: status 401: <oops>",
		},
	}}
	got := statusText(testDeps(mon))
	if !strings.Contains(got, "A check is running right now.") {
		t.Fatalf("running notice missing:\n%s", got)
	}
	if !strings.Contains(got, "&lt;oops&gt;") {
		t.Fatalf("error should be HTML-escaped:\n%s", got)
	}
}

func TestCheckText(t *testing.T) {
	cases := []struct {
		name string
		res  monitor.CheckResult
		want string
	}{
		{"ok_new", monitor.CheckResult{Outcome: monitor.CheckOK, Total: 4, New: 2}, "✅ 4 matching, 2 new — alert sent"},
		{"ok_nothing", monitor.CheckResult{Outcome: monitor.CheckOK, Total: 4}, "✅ 4 matching, nothing new"},
		{"quiet", monitor.CheckResult{Outcome: monitor.CheckQuietHours, Total: 4, New: 2}, "💤 2 new issue(s) found, suppressed by work hours"},
		{"skipped", monitor.CheckResult{Outcome: monitor.CheckSkipped}, "a check is already running, try again shortly"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := checkText(tc.res); got != tc.want {
				t.Fatalf("checkText = %q, want %q", got, tc.want)
			}
		})
	}

	got := checkText(monitor.CheckResult{Outcome: monitor.CheckFetchFailed, Err: "boom"})
	if !strings.HasPrefix(got, "❌ check failed:") || !strings.Contains(got, "boom") {
		t.Fatalf("fetch-failed text = %q", got)
	}
	got = checkText(monitor.CheckResult{Outcome: monitor.CheckSendFailed, Err: "telegram: 429"})
	if !strings.HasPrefix(got, "❌ alert delivery failed:") {
		t.Fatalf("send-failed text = %q", got)
	}
}

func TestBuiltinCheckInvokesMonitor(t *testing.T) {
	mon := &fakeMonitorPort{res: monitor.CheckResult{Outcome: monitor.CheckOK, Total: 1, New: 1}}
	cmds := Builtin(testDeps(mon))

	var check *Command
	for i := range cmds {
		if cmds[i].Name == "check" {
			check = &cmds[i]
		}
		if cmds[i].Access != AccessOwnerOnly {
			t.Errorf("command %q should be owner-only", cmds[i].Name)
		}
	}
	if check == nil {
		t.Fatal("no /check command")
	}

	a := newRecordAdapter()
	req := &Request{Adapter: a, Logger: logx.Nop()}
	if err := check.Handle(context.Background(), req); err != nil {
		t.Fatalf("check handle: %v", err)
	}
	if mon.checks != 1 {
		t.Fatalf("monitor.Check calls = %d", mon.checks)
	}
	if got := a.last(); !strings.Contains(got, "✅ 1 matching, 1 new") {
		t.Fatalf("reply = %q", got)
	}
}
