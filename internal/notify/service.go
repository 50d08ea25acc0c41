package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"jirabell/internal/jira"
	"jirabell/internal/transport"
	logx "jirabell/pkg/logx"
)

// Outcome reports what happened to an alert when Send returned no error.
type Outcome int

const (
	// OutcomeDelivered means the alert reached Telegram.
	OutcomeDelivered Outcome = iota
	// OutcomeQuietHours means the work-hours gate suppressed the alert.
	// Suppressed issues are still marked notified; they do not alert later.
	OutcomeQuietHours
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeQuietHours:
		return "quiet_hours"
	default:
		return "unknown"
	}
}

type Config struct {
	ChatID     int64
	ThreadID   int
	RatePerMin int // 0 means 20
	Hours      Hours
}

const defaultRatePerMin = 20

// Service turns new issues into a single Telegram alert, honoring the
// work-hours gate and an outbound rate limit.
type Service struct {
	log logx.Logger
	tr  transport.Adapter

	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter

	// now is a clock hook for the hours gate.
	now func() time.Time
}

func New(tr transport.Adapter, cfg Config, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{log: log, tr: tr, now: time.Now}
	s.Apply(cfg)
	return s
}

// Apply installs new settings. The limiter is rebuilt only when the rate
// changes so an unrelated reload doesn't reset accumulated allowance.
func (s *Service) Apply(cfg Config) {
	if cfg.RatePerMin <= 0 {
		cfg.RatePerMin = defaultRatePerMin
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.limiter == nil || cfg.RatePerMin != s.cfg.RatePerMin {
		// Token bucket: burst = the per-minute quota, refilled evenly.
		s.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RatePerMin)/60.0), cfg.RatePerMin)
	}
	s.cfg = cfg
}

func (s *Service) snapshot() (Config, *rate.Limiter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg, s.limiter
}

// Hours reports the active gate (for status output).
func (s *Service) Hours() Hours {
	cfg, _ := s.snapshot()
	return cfg.Hours
}

// Alert sends one message covering all new issues. The returned Outcome is
// meaningful only when err is nil. A send failure leaves the issues
// unmarked so the next cycle retries them.
func (s *Service) Alert(ctx context.Context, issues []jira.Issue, browse func(key string) string) (Outcome, error) {
	if len(issues) == 0 {
		return OutcomeDelivered, nil
	}
	cfg, lim := s.snapshot()
	if cfg.ChatID == 0 {
		return OutcomeDelivered, errors.New("notify: chat_id is not configured")
	}

	if !cfg.Hours.Contains(s.now()) {
		s.log.Info("outside work hours; alert suppressed",
			logx.Int("issues", len(issues)),
			logx.String("window", cfg.Hours.String()),
		)
		return OutcomeQuietHours, nil
	}

	if err := lim.Wait(ctx); err != nil {
		return OutcomeDelivered, err
	}

	text := FormatAlert(issues, browse)
	_, err := s.tr.SendText(ctx, transport.ChatTarget{ChatID: cfg.ChatID, ThreadID: cfg.ThreadID}, text, &transport.SendOptions{
		ParseMode:      "HTML",
		DisablePreview: true,
	})
	if err != nil {
		return OutcomeDelivered, err
	}
	s.log.Info("alert sent", logx.Int("issues", len(issues)), logx.Int64("chat_id", cfg.ChatID))
	return OutcomeDelivered, nil
}

// SendPlain delivers service text (command replies) to the configured chat,
// bypassing the hours gate but not the rate limiter.
func (s *Service) SendPlain(ctx context.Context, text string) error {
	cfg, lim := s.snapshot()
	if cfg.ChatID == 0 {
		return errors.New("notify: chat_id is not configured")
	}
	if err := lim.Wait(ctx); err != nil {
		return err
	}
	_, err := s.tr.SendText(ctx, transport.ChatTarget{ChatID: cfg.ChatID, ThreadID: cfg.ThreadID}, text, &transport.SendOptions{
		ParseMode:      "HTML",
		DisablePreview: true,
	})
	return err
}

// SetClock overrides the time source. Tests only.
func (s *Service) SetClock(now func() time.Time) { s.now = now }
