package main

import (
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/TimelordUK/tailtree/internal/config"
	"github.com/TimelordUK/tailtree/internal/logging"
)

type commandContext struct {
	configFlag *string
	verbose    *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	log    *slog.Logger
	closer io.Closer
}

func newCommandContext(configFlag *string, verbose *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		verbose:    verbose,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.verbose != nil && *c.verbose {
			cfg.Logging.Level = "debug"
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// logger builds the diagnostic logger on first use. toTerminal adds stderr
// next to the configured log file; it is false while the TUI owns the screen.
// A logger that cannot be built falls back to a discarding one.
func (c *commandContext) logger(toTerminal bool) *slog.Logger {
	if c.log != nil {
		return c.log
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		cfg = config.DefaultConfig()
	}
	logger, closer, err := logging.NewFromConfig(cfg, toTerminal)
	if err != nil {
		c.log = logging.Discard()
		return c.log
	}
	c.log, c.closer = logger, closer
	return c.log
}

func (c *commandContext) close() error {
	if c.closer == nil {
		return nil
	}
	err := c.closer.Close()
	c.closer = nil
	return err
}
