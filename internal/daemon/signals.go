package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/manav03panchal/timely/internal/logging"
)

// SignalHandler maps OS signals onto the daemon: SIGINT and SIGTERM stop
// it, SIGHUP reloads the alarm list from the server.
type SignalHandler struct {
	signals chan os.Signal
	reload  func(ctx context.Context)
}

// NewSignalHandler creates a handler. reload may be nil.
func NewSignalHandler(reload func(ctx context.Context)) *SignalHandler {
	return &SignalHandler{
		signals: make(chan os.Signal, 1),
		reload:  reload,
	}
}

// Run listens until ctx ends or a stop signal arrives, then calls cancel.
func (h *SignalHandler) Run(ctx context.Context, cancel context.CancelFunc) {
	signal.Notify(h.signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(h.signals)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-h.signals:
			if sig == syscall.SIGHUP {
				if h.reload != nil {
					logging.Info("received SIGHUP, reloading alarms")
					h.reload(ctx)
				}
				continue
			}
			logging.Info("received signal, shutting down", "signal", sig.String())
			cancel()
			return
		}
	}
}
