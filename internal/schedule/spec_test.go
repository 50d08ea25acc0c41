package schedule

import (
	"testing"
	"time"
)

func TestParseSpecVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		raw      string
		kind     Kind
		source   string
		duration time.Duration
	}{
		{name: "cron", raw: "*/30 * * * *", kind: KindCron, source: "cron"},
		{name: "cron descriptor", raw: "@hourly", kind: KindCron, source: "cron"},
		{name: "prefixed cron", raw: "cron:0 9 * * 1-5", kind: KindCron, source: "cron"},
		{name: "duration", raw: "30m", kind: KindInterval, source: "duration", duration: 30 * time.Minute},
		{name: "prefixed interval", raw: "interval:45s", kind: KindInterval, source: "duration", duration: 45 * time.Second},
		{name: "prefixed every", raw: "every:01:00", kind: KindInterval, source: "hhmm", duration: time.Hour},
		{name: "hhmm", raw: "01:30", kind: KindInterval, source: "hhmm", duration: 90 * time.Minute},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSpec(tt.raw)
			if err != nil {
				t.Fatalf("ParseSpec(%q) error: %v", tt.raw, err)
			}
			if got.Kind != tt.kind {
				t.Fatalf("Kind = %v, want %v", got.Kind, tt.kind)
			}
			if got.Source != tt.source {
				t.Fatalf("Source = %s, want %s", got.Source, tt.source)
			}
			if tt.kind == KindInterval && got.Every != tt.duration {
				t.Fatalf("Every = %v, want %v", got.Every, tt.duration)
			}
		})
	}
}

func TestParseSpecInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "not-a-schedule", "0m", "cron:", "interval:"} {
		if _, err := ParseSpec(raw); err == nil {
			t.Errorf("ParseSpec(%q): expected error", raw)
		}
	}
}

func TestSpecNormalized(t *testing.T) {
	t.Parallel()
	ps, err := ParseSpec("02:30")
	if err != nil {
		t.Fatal(err)
	}
	if got := ps.Normalized(); got != "@every 2h30m0s" {
		t.Fatalf("Normalized = %q", got)
	}

	ps, err = ParseSpec("*/5 * * * *")
	if err != nil {
		t.Fatal(err)
	}
	if got := ps.Normalized(); got != "*/5 * * * *" {
		t.Fatalf("Normalized = %q", got)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	if err := Validate("*/30 * * * *"); err != nil {
		t.Fatalf("valid cron rejected: %v", err)
	}
	if err := Validate("10s * * * *"); err == nil {
		t.Fatal("expected error for malformed cron field")
	}
	if err := Validate("cron:61 * * * *"); err == nil {
		t.Fatal("expected error for out-of-range minute")
	}
}
