package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"moodtunes-api-go/logcolors"
	"moodtunes-api-go/services/bridge"
	"moodtunes-api-go/tui"

	tea "github.com/charmbracelet/bubbletea"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
)

// redirectLogs sends logrus output to the client log file so it does not
// tear the alt screen.
func redirectLogs(path string) (func(), error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	prev := log.StandardLogger().Out
	log.SetOutput(f)
	return func() {
		log.SetOutput(prev)
		f.Close()
	}, nil
}

// TUI launches the interactive terminal UI together with the agent bridge.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	restore, err := redirectLogs(r.conf.Configuration.ClientLogFile)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer restore()

	ps, err := r.openStore()
	if err != nil {
		return err
	}
	defer ps.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	reg := bridge.NewRegistry()
	srv, err := bridge.Listen(r.conf.Configuration.AgentBridgeAddr, reg)
	if err != nil {
		// The UI still works without an agent.
		log.Warnf("%s Agent bridge unavailable: %v", logcolors.LogBridge, err)
	} else {
		go func() {
			if err := srv.Serve(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorf("%s Agent bridge stopped: %v", logcolors.LogBridge, err)
			}
		}()
		log.Infof("%s Listening for agent events on %s", logcolors.LogBridge, srv.Addr())
	}

	sess := r.newSession(ps, reg)
	sess.Start()
	defer sess.Close()

	model := tui.New(ctx, sess, tui.Options{SkeletonCount: r.conf.Configuration.SkeletonCount})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
