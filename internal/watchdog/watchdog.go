// Package watchdog re-execs the whole process on a fixed interval with
// identical configuration. It runs on its own timer, shares no state with
// the request path, and exists purely to bound the blast radius of the
// long-lived in-memory maps.
package watchdog

import (
	"log/slog"
	"os"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
)

type Watchdog struct {
	logger   *slog.Logger
	interval time.Duration
	cron     *cron.Cron
}

// New creates a Watchdog that restarts the process every interval. A
// non-positive interval disables it.
func New(log *slog.Logger, interval time.Duration) *Watchdog {
	if log == nil {
		log = slog.Default()
	}
	return &Watchdog{
		logger:   log.With(slog.String("service", "watchdog")),
		interval: interval,
		cron:     cron.New(),
	}
}

// Start schedules the restart timer.
func (w *Watchdog) Start() error {
	if w.interval <= 0 {
		w.logger.Info("watchdog disabled")
		return nil
	}
	if _, err := w.cron.AddFunc("@every "+w.interval.String(), w.restart); err != nil {
		return err
	}
	w.cron.Start()
	w.logger.Info("watchdog scheduled", slog.Duration("interval", w.interval))
	return nil
}

// Stop cancels the timer.
func (w *Watchdog) Stop() {
	w.cron.Stop()
}

// restart replaces the process image with a fresh copy of itself, keeping
// argv and environment identical.
func (w *Watchdog) restart() {
	w.logger.Info("restarting bot")
	executable, err := os.Executable()
	if err != nil {
		w.logger.Error("resolve executable failed", slog.Any("error", err))
		return
	}
	if err := syscall.Exec(executable, os.Args, os.Environ()); err != nil {
		w.logger.Error("re-exec failed", slog.Any("error", err))
	}
}
