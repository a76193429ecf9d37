package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/npratt/mapedit/internal/app"
	"github.com/npratt/mapedit/internal/config"
	"github.com/npratt/mapedit/internal/controller"
	"github.com/npratt/mapedit/internal/mapmodel"
)

// session is the application context of one command invocation.
type session struct {
	cfg    *config.Config
	app    *app.Context
	ctl    *controller.MapController
	logger *slog.Logger
	logs   *FileLoggerResult
}

// loadConfig reads the layered configuration and applies global flag overrides.
func (c *cli) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(c.v)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if path := c.v.GetString(FlagLogFile); path != "" {
		cfg.Paths.Log = path
	}
	if path := c.v.GetString(FlagJournal); path != "" {
		cfg.Paths.Journal = path
	}
	if user := c.v.GetString(FlagUser); user != "" {
		cfg.Lock.User = user
	}
	if c.v.GetBool(FlagNoLock) {
		cfg.Lock.Enabled = false
	}
	if c.v.GetBool(FlagAssumeYes) {
		cfg.Prompt.Interactive = false
		cfg.Prompt.AssumeYes = true
	}
	return cfg, nil
}

// openSession builds the shared context and a controller in mode.
func (c *cli) openSession(mode controller.Mode) (*session, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, logger: c.logger}
	if cfg.Paths.Log != "" {
		logs, err := SetupFileLogger(cfg.Paths.Log, c.logLevel, cfg.LogRotation)
		if err != nil {
			return nil, fmt.Errorf("setup logging: %w", err)
		}
		s.logs = logs
		s.logger = logs.Logger
	}

	ctx, err := app.New(cfg, app.WithLogger(s.logger))
	if err != nil {
		_ = s.closeLogs()
		return nil, err
	}
	s.app = ctx
	s.ctl = controller.New(ctx, controller.WithMode(mode))
	s.logger.Debug("session opened", "mode", mode.Name(), "user", cfg.Lock.User)
	return s, nil
}

// open loads path into a fresh map.
func (s *session) open(path string) (*mapmodel.Map, error) {
	m := s.ctl.NewModel()
	if err := s.ctl.Load(m, path); err != nil {
		return nil, err
	}
	return m, nil
}

// openWritable loads path and fails when it could only be opened read-only.
func (s *session) openWritable(path string) (*mapmodel.Map, error) {
	m, err := s.open(path)
	if err != nil {
		return nil, err
	}
	if m.IsReadOnly() {
		_, _ = s.ctl.Close(m, true)
		return nil, fmt.Errorf("%s: %w", path, controller.ErrReadOnly)
	}
	return m, nil
}

// Close releases the context and the log file.
func (s *session) Close() error {
	if err := s.app.Close(); err != nil {
		s.logger.Warn("close application context", "error", err)
	}
	return s.closeLogs()
}

func (s *session) closeLogs() error {
	if s.logs != nil {
		return s.logs.Close()
	}
	return nil
}

// withSession runs fn with a session in mode and closes it afterwards.
func (c *cli) withSession(mode controller.Mode, fn func(s *session) error) error {
	s, err := c.openSession(mode)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	return fn(s)
}

// exactArgs wraps cobra.ExactArgs with a usage hint.
func exactArgs(n int, usage string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return fmt.Errorf("usage: %s %s", cmd.CommandPath(), usage)
		}
		return nil
	}
}
