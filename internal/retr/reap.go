package retr

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// Reaper drains zombie children left behind by RETR pipelines
// (spec.md §4.3 "SIGCHLD is reaped non-blockingly to prevent zombies",
// §4.5 "Process accounting") on its own goroutine, independent of the
// reactor's poll loop — this is deliberately not part of internal/reactor
// since process reaping is process-wide, not per-descriptor.
type Reaper struct {
	logger *slog.Logger
	stop   chan struct{}
}

// NewReaper creates a Reaper; call Run to begin watching SIGCHLD.
func NewReaper(logger *slog.Logger) *Reaper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reaper{logger: logger, stop: make(chan struct{})}
}

// Run installs a SIGCHLD handler and reaps children until Stop is
// called. It blocks; call it from its own goroutine.
func (r *Reaper) Run() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGCHLD)
	defer signal.Stop(ch)

	for {
		select {
		case <-r.stop:
			return
		case <-ch:
			r.reapAll()
		}
	}
}

// reapAll calls waitpid(-1, WNOHANG) in a loop until no more zombies are
// immediately available, matching the original's "drained in a loop".
func (r *Reaper) reapAll() {
	for {
		var status syscall.WaitStatus
		pid, err := syscall.Wait4(-1, &status, syscall.WNOHANG, nil)
		if err != nil || pid <= 0 {
			return
		}
		r.logger.Debug("reaped RETR pipeline child", "pid", pid, "exit_status", status.ExitStatus())
	}
}

// Stop ends Run's loop.
func (r *Reaper) Stop() {
	close(r.stop)
}
