// worktrack-agent runs on an employee workstation. It signs in to the
// work-tracking backend, waits for a manager to assign a capture interval,
// then uploads periodic screenshots, streams a live preview on request and
// reports idle time until stopped.
//
// By default a terminal UI shows the session and accepts start/stop
// commands; --headless runs without it and logs to stdout.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/worktrack/agent/internal/agent"
	"github.com/worktrack/agent/internal/app"
	"github.com/worktrack/agent/internal/config"
	"github.com/worktrack/agent/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		backendURL string
		email      string
		mock       bool
		headless   bool
		logLevel   string
		logFile    string
	)

	flagSet := pflag.NewFlagSet("worktrack-agent", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "worktrack.yaml", "path to config file")
	flagSet.StringVar(&backendURL, "backend", "", "backend base URL (overrides config)")
	flagSet.StringVar(&email, "email", "", "employee login email (overrides config)")
	flagSet.BoolVar(&mock, "mock", false, "use a synthetic screen and idle source")
	flagSet.BoolVar(&headless, "headless", false, "run without the terminal UI")
	flagSet.StringVar(&logLevel, "log-level", "", "CRITICAL, ERROR, WARNING, NOTICE, INFO or DEBUG")
	flagSet.StringVar(&logFile, "log-file", "", "append logs to this file")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if backendURL != "" {
		cfg.Backend.URL = backendURL
	}
	if email != "" {
		cfg.Auth.Email = email
	}
	if mock {
		cfg.Mock = true
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFile != "" {
		cfg.Log.File = logFile
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// The UI owns the terminal, so logs go to a file unless headless.
	if !headless && cfg.Log.File == "" {
		cfg.Log.File = filepath.Join(os.TempDir(), "worktrack-agent.log")
	}
	var logOut io.Writer = os.Stdout
	if cfg.Log.File != "" {
		f, err := logging.OpenFile(cfg.Log.File)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	if err := logging.Init(cfg.Log.Level, logOut); err != nil {
		return fmt.Errorf("log level: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := agent.New(ctx, cfg)
	if err != nil {
		return err
	}

	if headless {
		return a.Run(ctx)
	}
	return runWithUI(ctx, a, cfg)
}

func runWithUI(ctx context.Context, a *agent.Agent, cfg *config.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	coord := a.Coordinator()
	updates, unsubscribe := coord.Subscribe()
	defer unsubscribe()

	m := app.New(coord, updates, app.Info{
		EmployeeID:        cfg.Auth.Email,
		AgentID:           a.Device().AgentID,
		HeartbeatSeconds:  int(cfg.Heartbeat.Interval.Seconds()),
		PreviewResolution: fmt.Sprintf("%dx%d", cfg.Capture.PreviewWidth, cfg.Capture.PreviewHeight),
	})
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	agentErr := make(chan error, 1)
	go func() {
		err := a.Run(ctx)
		agentErr <- err
		p.Quit()
	}()

	_, uiErr := p.Run()
	cancel()
	err := <-agentErr

	if uiErr != nil && !errors.Is(uiErr, tea.ErrProgramKilled) {
		return uiErr
	}
	return err
}
