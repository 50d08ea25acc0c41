package app

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"jirabell/internal/eventbus"
	"jirabell/internal/monitor"
	logx "jirabell/pkg/logx"
)

// startSystemdNotify reports readiness, watchdog heartbeats, and a status
// line to systemd when running under a Type=notify unit. Everything here is
// a no-op outside systemd (NOTIFY_SOCKET unset).
func (a *App) startSystemdNotify() {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		a.log.Warn("sd_notify READY failed", logx.Any("err", err))
		return
	}
	if !sent {
		a.log.Debug("systemd notify socket not present; sd_notify disabled")
		return
	}
	a.log.Info("sd_notify READY sent")

	// Ping at half the WatchdogSec interval so one missed tick never kills us.
	if interval, werr := daemon.SdWatchdogEnabled(false); werr != nil {
		a.log.Warn("sd_watchdog probe failed", logx.Any("err", werr))
	} else if interval > 0 {
		a.sup.Go0("systemd.watchdog", func(c context.Context) {
			t := time.NewTicker(interval / 2)
			defer t.Stop()
			for {
				select {
				case <-c.Done():
					return
				case <-t.C:
					_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
				}
			}
		})
		a.log.Info("systemd watchdog enabled", logx.Duration("interval", interval))
	}

	// STATUS mirrors the latest check cycle in systemctl status output.
	events, unsub := a.bus.Subscribe(16)
	a.sup.Go0("systemd.status", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				if line := sdStatusLine(e); line != "" {
					_, _ = daemon.SdNotify(false, "STATUS="+line)
				}
			}
		}
	})
}

func (a *App) notifyStopping() {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
}

// sdStatusLine renders a short single-line summary of a check-cycle event.
func sdStatusLine(e eventbus.Event) string {
	res, ok := e.Data.(monitor.CheckResult)
	if !ok {
		return ""
	}
	at := res.At.Format("15:04:05")
	switch res.Outcome {
	case monitor.CheckOK:
		if res.New > 0 {
			return fmt.Sprintf("last check %s: %d matching, %d new (alerted)", at, res.Total, res.New)
		}
		return fmt.Sprintf("last check %s: %d matching, nothing new", at, res.Total)
	case monitor.CheckQuietHours:
		return fmt.Sprintf("last check %s: %d new suppressed by work hours", at, res.New)
	case monitor.CheckFetchFailed:
		return fmt.Sprintf("last check %s: fetch failed", at)
	case monitor.CheckSendFailed:
		return fmt.Sprintf("last check %s: alert send failed", at)
	default:
		return ""
	}
}
