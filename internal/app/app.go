// Package app holds the explicit application context shared by the editor's
// components. It is built once at startup and passed down.
package app

import (
	"fmt"
	"log/slog"

	"github.com/npratt/mapedit/internal/config"
	"github.com/npratt/mapedit/internal/events"
	"github.com/npratt/mapedit/internal/prefs"
	"github.com/npratt/mapedit/internal/prompt"
)

// Context carries configuration and the shared services.
type Context struct {
	Config  *config.Config
	Logger  *slog.Logger
	Prefs   *prefs.Store
	Bus     *events.Bus
	UI      prompt.UI
	journal *events.Journal
}

// Option configures a Context.
type Option func(*Context)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Context) { c.Logger = logger }
}

// WithPrefs sets the preference store.
func WithPrefs(store *prefs.Store) Option {
	return func(c *Context) { c.Prefs = store }
}

// WithUI sets the user interaction surface.
func WithUI(ui prompt.UI) Option {
	return func(c *Context) { c.UI = ui }
}

// New builds a Context. Services not supplied by options are created from
// cfg: preferences from cfg.Paths.Preferences, a terminal UI and, when
// cfg.Paths.Journal is set, an event journal subscribed to the bus.
func New(cfg *config.Config, opts ...Option) (*Context, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	c := &Context{Config: cfg, Bus: events.NewBus()}
	for _, opt := range opts {
		opt(c)
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}

	if c.Prefs == nil {
		store, err := prefs.Open(cfg.Paths.Preferences)
		if err != nil {
			return nil, err
		}
		c.Prefs = store
	}
	if c.UI == nil {
		c.UI = prompt.NewTerminal(cfg.Prompt, c.Logger)
	}

	if cfg.Paths.Journal != "" {
		c.journal = events.NewJournal(cfg.Paths.Journal)
		if err := c.journal.Open(); err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		c.Bus.Subscribe(c.journal)
	}
	return c, nil
}

// Close stops event delivery and closes the journal.
func (c *Context) Close() error {
	c.Bus.Close()
	if c.journal != nil {
		return c.journal.Close()
	}
	return nil
}
