package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"jirabell/internal/jira"
	"jirabell/internal/transport"
	logx "jirabell/pkg/logx"
)

type fakeAdapter struct {
	mu    sync.Mutex
	sent  []string
	to    []transport.ChatTarget
	fail  error
	modes []string
}

func (f *fakeAdapter) Start(ctx context.Context, out chan<- transport.Update) error { return nil }
func (f *fakeAdapter) Stop(ctx context.Context) error                               { return nil }

func (f *fakeAdapter) SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return transport.MessageRef{}, f.fail
	}
	f.sent = append(f.sent, text)
	f.to = append(f.to, to)
	if opt != nil {
		f.modes = append(f.modes, opt.ParseMode)
	}
	return transport.MessageRef{ChatID: to.ChatID, MessageID: len(f.sent)}, nil
}

func (f *fakeAdapter) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func testIssues() []jira.Issue {
	return []jira.Issue{
		{Key: "PROJ-1", Fields: jira.IssueFields{Summary: "One"}},
		{Key: "PROJ-2", Fields: jira.IssueFields{Summary: "Two"}},
	}
}

func openHours() Hours { return Hours{} }

func closedHours() Hours {
	// 09:00-18:00 gate with the clock pinned to 03:00.
	return Hours{Enabled: true, Start: 9 * 60, End: 18 * 60, Loc: time.UTC}
}

func TestAlertDelivers(t *testing.T) {
	fa := &fakeAdapter{}
	s := New(fa, Config{ChatID: -100, ThreadID: 7, Hours: openHours()}, logx.Nop())

	out, err := s.Alert(context.Background(), testIssues(), browseAt("https://x"))
	if err != nil {
		t.Fatalf("Alert: %v", err)
	}
	if out != OutcomeDelivered {
		t.Fatalf("outcome = %v, want delivered", out)
	}
	if fa.sentCount() != 1 {
		t.Fatalf("sent %d messages, want 1", fa.sentCount())
	}
	if fa.to[0].ChatID != -100 || fa.to[0].ThreadID != 7 {
		t.Fatalf("target = %+v", fa.to[0])
	}
	if fa.modes[0] != "HTML" {
		t.Fatalf("parse mode = %q", fa.modes[0])
	}
	if !strings.Contains(fa.sent[0], "PROJ-1") || !strings.Contains(fa.sent[0], "PROJ-2") {
		t.Fatalf("alert text = %q", fa.sent[0])
	}
}

func TestAlertQuietHoursSuppresses(t *testing.T) {
	fa := &fakeAdapter{}
	s := New(fa, Config{ChatID: -100, Hours: closedHours()}, logx.Nop())
	s.SetClock(func() time.Time { return time.Date(2026, 3, 16, 3, 0, 0, 0, time.UTC) })

	out, err := s.Alert(context.Background(), testIssues(), browseAt("https://x"))
	if err != nil {
		t.Fatalf("Alert: %v", err)
	}
	if out != OutcomeQuietHours {
		t.Fatalf("outcome = %v, want quiet_hours", out)
	}
	if fa.sentCount() != 0 {
		t.Fatal("nothing should be sent outside work hours")
	}
}

func TestAlertSendErrorPropagates(t *testing.T) {
	fa := &fakeAdapter{fail: errors.New("telegram down")}
	s := New(fa, Config{ChatID: -100, Hours: openHours()}, logx.Nop())

	if _, err := s.Alert(context.Background(), testIssues(), browseAt("https://x")); err == nil {
		t.Fatal("expected send error")
	}
}

func TestAlertNoIssuesIsNoop(t *testing.T) {
	fa := &fakeAdapter{}
	s := New(fa, Config{ChatID: -100, Hours: openHours()}, logx.Nop())
	out, err := s.Alert(context.Background(), nil, browseAt("https://x"))
	if err != nil || out != OutcomeDelivered {
		t.Fatalf("Alert(nil) = %v, %v", out, err)
	}
	if fa.sentCount() != 0 {
		t.Fatal("no message expected for zero issues")
	}
}

func TestApplyKeepsLimiterWhenRateUnchanged(t *testing.T) {
	fa := &fakeAdapter{}
	s := New(fa, Config{ChatID: 1, RatePerMin: 30, Hours: openHours()}, logx.Nop())
	_, before := s.snapshot()
	s.Apply(Config{ChatID: 2, RatePerMin: 30, Hours: openHours()})
	_, after := s.snapshot()
	if before != after {
		t.Fatal("limiter rebuilt although rate unchanged")
	}
	s.Apply(Config{ChatID: 2, RatePerMin: 6, Hours: openHours()})
	_, rebuilt := s.snapshot()
	if rebuilt == before {
		t.Fatal("limiter not rebuilt on rate change")
	}
}
