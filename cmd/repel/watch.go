package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/repel/internal/config"
	"github.com/nvandessel/repel/internal/viz"
)

// watchSession holds a running viewer server and its lifecycle.
type watchSession struct {
	srv    *viz.Server
	cancel context.CancelFunc
	errCh  chan error
}

// startWatch starts the live viewer and waits for it to come up.
// Status lines go to stderr; stdout stays reserved for the run report.
func startWatch(cmd *cobra.Command, cfg *config.Config, noOpen bool) (*watchSession, error) {
	srv := viz.NewServer(cfg.Bounds(), cfg.Watch.MaxFPS)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx) }()

	// Wait for server to start
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if srv.Addr() != "" {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if srv.Addr() == "" {
		cancel()
		return nil, fmt.Errorf("viewer server failed to start")
	}

	url := "http://" + srv.Addr()
	fmt.Fprintf(cmd.ErrOrStderr(), "Viewer running at %s\n", url)

	if cfg.Watch.OpenBrowser && !noOpen {
		if err := viz.OpenBrowser(url); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Could not open browser: %v\nOpen %s manually.\n", err, url)
		}
	}

	return &watchSession{srv: srv, cancel: cancel, errCh: errCh}, nil
}

// wait blocks until Ctrl-C so viewers can inspect the final state.
func (w *watchSession) wait(cmd *cobra.Command) {
	sigCh := make(chan os.Signal, 1)
	notifySignals(sigCh)
	defer signal.Stop(sigCh)

	fmt.Fprintln(cmd.ErrOrStderr(), "Press Ctrl-C to stop the viewer.")
	<-sigCh
}

// stop shuts the viewer down and drains the server goroutine.
func (w *watchSession) stop() {
	w.cancel()
	select {
	case <-w.errCh:
	case <-time.After(3 * time.Second):
	}
}
