package schedule

import (
	"context"
	"strings"
	"testing"
	"time"

	logx "jirabell/pkg/logx"
)

func TestNewRunnerRejectsBadSchedule(t *testing.T) {
	t.Parallel()
	if _, err := NewRunner(Config{Schedule: "nope"}, func() {}, logx.Nop()); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
	if _, err := NewRunner(Config{Schedule: "99 99 * * *"}, func() {}, logx.Nop()); err == nil {
		t.Fatal("expected error for out-of-range cron fields")
	}
}

func TestRunnerNextAfterStart(t *testing.T) {
	t.Parallel()
	r, err := NewRunner(Config{Schedule: "1h"}, func() {}, logx.Nop())
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	r.Start()
	defer r.Stop(context.Background())

	next := r.Next()
	if next.IsZero() {
		t.Fatal("Next is zero after Start")
	}
	until := time.Until(next)
	if until <= 0 || until > time.Hour+time.Minute {
		t.Fatalf("Next %v is not ~1h away (%v)", next, until)
	}
	if d := r.Describe(); !strings.HasPrefix(d, "every 1h") {
		t.Fatalf("Describe = %q", d)
	}
}

func TestRunnerApplyReschedules(t *testing.T) {
	t.Parallel()
	r, err := NewRunner(Config{Schedule: "1h"}, func() {}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	r.Start()
	defer r.Stop(context.Background())

	if err := r.Apply(Config{Schedule: "3h"}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	until := time.Until(r.Next())
	if until < 2*time.Hour {
		t.Fatalf("Next should move out to ~3h, got %v", until)
	}

	// Bad schedule is rejected and the old one keeps running.
	if err := r.Apply(Config{Schedule: "bogus"}); err == nil {
		t.Fatal("expected error for bogus schedule")
	}
	if r.Next().IsZero() {
		t.Fatal("runner lost its schedule after rejected Apply")
	}
}
