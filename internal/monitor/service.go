package monitor

import (
	"context"
	"sort"
	"sync"
	"time"

	"jirabell/internal/eventbus"
	"jirabell/internal/jira"
	"jirabell/internal/notify"
	"jirabell/internal/state"
	logx "jirabell/pkg/logx"
)

// Searcher runs the saved search. Satisfied by *jira.Client.
type Searcher interface {
	Search(ctx context.Context) ([]jira.Issue, error)
	BrowseURL(key string) string
}

// Alerter delivers one alert per batch of new issues. Satisfied by *notify.Service.
type Alerter interface {
	Alert(ctx context.Context, issues []jira.Issue, browse func(key string) string) (notify.Outcome, error)
}

// Check cycle outcomes as recorded in history and published on the bus.
const (
	CheckOK          = "ok"
	CheckQuietHours  = "quiet_hours"
	CheckFetchFailed = "fetch_failed"
	CheckSendFailed  = "send_failed"
	CheckSkipped     = "skipped"
)

// CheckResult describes one completed (or skipped) check cycle.
type CheckResult struct {
	At      time.Time     `json:"at"`
	Took    time.Duration `json:"took"`
	Total   int           `json:"total"`   // issues currently matching the query
	New     int           `json:"new"`     // issues first seen this cycle
	Pruned  int           `json:"pruned"`  // keys dropped because they left the query
	Outcome string        `json:"outcome"` // ok | quiet_hours | fetch_failed | send_failed | skipped
	Err     string        `json:"err,omitempty"`
}

type Config struct {
	HistorySize int // 0 means 50
}

const defaultHistorySize = 50

// Service owns the notified set and runs the reconciliation cycle:
// fetch, alert what's new, prune what's gone, persist.
//
// State mutation rules (the whole point of this daemon):
//   - A fetch error changes nothing; the cycle is recorded and dropped.
//   - An empty result clears the set: every key has left the query.
//   - Delivered and quiet-hours alerts both mark issues notified. A send
//     failure does not, so those issues retry next cycle.
//   - The set is always pruned to the current result before persisting,
//     so issues that leave and later re-enter the query alert again.
type Service struct {
	log   logx.Logger
	src   Searcher
	alert Alerter
	store state.Store
	bus   eventbus.Bus

	mu       sync.Mutex
	notified map[string]struct{}
	running  bool
	history  []CheckResult
	histMax  int
	checks   uint64
	alerts   uint64
}

func New(src Searcher, alert Alerter, store state.Store, bus eventbus.Bus, cfg Config, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	hist := cfg.HistorySize
	if hist <= 0 {
		hist = defaultHistorySize
	}
	return &Service{
		log:      log,
		src:      src,
		alert:    alert,
		store:    store,
		bus:      bus,
		notified: map[string]struct{}{},
		histMax:  hist,
	}
}

// Seed loads the persisted notified set. A corrupt state file logs a warning
// and starts empty; the daemon must keep running either way.
func (s *Service) Seed(ctx context.Context) {
	keys, err := s.store.Load(ctx)
	if err != nil {
		s.log.Warn("state load failed; starting with empty notified set", logx.Any("err", err))
	}
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	s.mu.Lock()
	s.notified = set
	s.mu.Unlock()
	s.log.Info("notified set loaded", logx.Int("keys", len(set)))
}

// Apply installs new runtime settings.
func (s *Service) Apply(cfg Config) {
	hist := cfg.HistorySize
	if hist <= 0 {
		hist = defaultHistorySize
	}
	s.mu.Lock()
	s.histMax = hist
	if len(s.history) > hist {
		s.history = append([]CheckResult(nil), s.history[len(s.history)-hist:]...)
	}
	s.mu.Unlock()
}

// Check runs one reconciliation cycle. Overlapping calls are skipped, not
// queued: if a slow Jira request is still in flight when the next tick
// fires, that tick is dropped.
func (s *Service) Check(ctx context.Context) CheckResult {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.log.Debug("check already running; tick skipped")
		res := CheckResult{At: time.Now(), Outcome: CheckSkipped}
		// Skips are visible on the bus but not in history; the cycle never ran.
		if s.bus != nil {
			s.bus.Publish(eventbus.Event{Type: eventbus.TypeCheckSkipped, Time: res.At, Data: res})
		}
		return res
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	started := time.Now()
	issues, err := s.src.Search(ctx)
	if err != nil {
		res := CheckResult{At: started, Took: time.Since(started), Outcome: CheckFetchFailed, Err: err.Error()}
		s.log.Error("jira search failed", logx.Any("err", err), logx.Duration("took", res.Took))
		s.record(res, eventbus.TypeCheckFailed)
		return res
	}

	current := make(map[string]struct{}, len(issues))
	var fresh []jira.Issue
	s.mu.Lock()
	for _, is := range issues {
		current[is.Key] = struct{}{}
		if _, seen := s.notified[is.Key]; !seen {
			fresh = append(fresh, is)
		}
	}
	s.mu.Unlock()

	res := CheckResult{At: started, Total: len(issues), New: len(fresh), Outcome: CheckOK}
	event := eventbus.TypeCheckOK

	if len(fresh) > 0 {
		outcome, aerr := s.alert.Alert(ctx, fresh, s.src.BrowseURL)
		switch {
		case aerr != nil:
			// Leave the fresh keys unmarked so the next cycle retries them.
			fresh = nil
			res.New = 0
			res.Outcome = CheckSendFailed
			res.Err = aerr.Error()
			event = eventbus.TypeCheckFailed
			s.log.Error("alert send failed", logx.Any("err", aerr))
		case outcome == notify.OutcomeQuietHours:
			res.Outcome = CheckQuietHours
			event = eventbus.TypeCheckQuiet
		default:
			s.mu.Lock()
			s.alerts++
			s.mu.Unlock()
		}
	}

	// Mark, prune, persist. Marking happens before pruning; fresh keys are
	// part of the current result, so the intersection keeps them.
	s.mu.Lock()
	for _, is := range fresh {
		s.notified[is.Key] = struct{}{}
	}
	for k := range s.notified {
		if _, ok := current[k]; !ok {
			delete(s.notified, k)
			res.Pruned++
		}
	}
	keys := make([]string, 0, len(s.notified))
	for k := range s.notified {
		keys = append(keys, k)
	}
	s.mu.Unlock()

	if err := s.store.Save(ctx, keys); err != nil {
		// Not fatal: the in-memory set is intact, a later save may succeed.
		s.log.Error("state save failed", logx.Any("err", err), logx.Int("keys", len(keys)))
	}

	res.Took = time.Since(started)
	s.record(res, event)

	switch res.Outcome {
	case CheckOK:
		if res.New > 0 {
			s.log.Info("check done; alerted",
				logx.Int("total", res.Total), logx.Int("new", res.New), logx.Int("pruned", res.Pruned), logx.Duration("took", res.Took))
		} else {
			s.log.Debug("check done; nothing new",
				logx.Int("total", res.Total), logx.Int("pruned", res.Pruned), logx.Duration("took", res.Took))
		}
	case CheckQuietHours:
		s.log.Info("check done; new issues suppressed by work hours",
			logx.Int("total", res.Total), logx.Int("new", res.New), logx.Duration("took", res.Took))
	}
	return res
}

func (s *Service) record(res CheckResult, eventType string) {
	s.mu.Lock()
	s.checks++
	s.history = append(s.history, res)
	if len(s.history) > s.histMax {
		s.history = s.history[len(s.history)-s.histMax:]
	}
	s.mu.Unlock()
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventType, Time: res.At, Data: res})
	}
}

// Snapshot is a point-in-time view for /status.
type Snapshot struct {
	Running       bool
	NotifiedCount int
	Checks        uint64
	Alerts        uint64
	Last          CheckResult   // zero when no cycle has run yet
	History       []CheckResult // newest first
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Running:       s.running,
		NotifiedCount: len(s.notified),
		Checks:        s.checks,
		Alerts:        s.alerts,
	}
	if n := len(s.history); n > 0 {
		snap.Last = s.history[n-1]
		snap.History = make([]CheckResult, 0, n)
		for i := n - 1; i >= 0; i-- {
			snap.History = append(snap.History, s.history[i])
		}
	}
	return snap
}

// NotifiedKeys returns the current set, sorted. Used by tests and /status.
func (s *Service) NotifiedKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.notified))
	for k := range s.notified {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
