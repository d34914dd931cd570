package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Poll interval bounds accepted at runtime.
const (
	MinPollInterval = 50 * time.Millisecond
	MaxPollInterval = 5000 * time.Millisecond
)

// Config holds all application configuration
type Config struct {
	Engine    EngineConfig   `toml:"engine"`
	Preview   PreviewConfig  `toml:"preview"`
	LogLevels LogLevelConfig `toml:"log_levels"`
	Logging   LoggingConfig  `toml:"logging"`
	Theme     ThemeConfig    `toml:"theme"`
}

// EngineConfig tunes the tail engine
type EngineConfig struct {
	PollIntervalMs  int `toml:"poll_interval_ms"`
	MaxBufferLines  int `toml:"max_buffer_lines"`
	IdleThresholdMs int `toml:"idle_threshold_ms"`
	MaxLinesPerPoll int `toml:"max_lines_per_poll"` // per file; 0 disables throttling
	ReadWorkers     int `toml:"read_workers"`
}

// PreviewConfig tunes the preview loader
type PreviewConfig struct {
	FollowLines        int   `toml:"follow_lines"`
	MmapThresholdBytes int64 `toml:"mmap_threshold_bytes"`
	ContextLines       int   `toml:"context_lines"`
}

// LogLevelConfig defines log level detection patterns
type LogLevelConfig struct {
	TracePatterns []string `toml:"trace_patterns"`
	DebugPatterns []string `toml:"debug_patterns"`
	InfoPatterns  []string `toml:"info_patterns"`
	WarnPatterns  []string `toml:"warn_patterns"`
	ErrorPatterns []string `toml:"error_patterns"`
	FatalPatterns []string `toml:"fatal_patterns"`
}

// LoggingConfig controls the application's own diagnostic log
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

// ThemeConfig defines color schemes
type ThemeConfig struct {
	ActiveGroup   string         `toml:"active_group"`
	IdleGroup     string         `toml:"idle_group"`
	PausedFile    string         `toml:"paused_file"`
	StatusBar     string         `toml:"status_bar"`
	StatusBarText string         `toml:"status_bar_text"`
	Dropped       string         `toml:"dropped"`
	Levels        LogLevelColors `toml:"levels"`
}

// LogLevelColors defines colors for each log level
type LogLevelColors struct {
	Trace string `toml:"trace"`
	Debug string `toml:"debug"`
	Info  string `toml:"info"`
	Warn  string `toml:"warn"`
	Error string `toml:"error"`
	Fatal string `toml:"fatal"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			PollIntervalMs:  250,
			MaxBufferLines:  10000,
			IdleThresholdMs: 2000,
			MaxLinesPerPoll: 5000,
			ReadWorkers:     4,
		},
		Preview: PreviewConfig{
			FollowLines:        1000,
			MmapThresholdBytes: 10 * 1024 * 1024,
			ContextLines:       50,
		},
		LogLevels: LogLevelConfig{
			TracePatterns: []string{"[TRC]", "[TRACE]", "TRACE:", "<trace>", "TRACE", "TRC"},
			DebugPatterns: []string{"[DBG]", "[DEBUG]", "DEBUG:", "<debug>", "DEBUG", "DBG"},
			InfoPatterns:  []string{"[INF]", "[INFO]", "INFO:", "<info>", "INFO", "INF"},
			WarnPatterns:  []string{"[WRN]", "[WARN]", "[WARNING]", "WARN:", "<warn>", "WARN", "WRN", "WARNING"},
			ErrorPatterns: []string{"[ERR]", "[ERROR]", "ERROR:", "<error>", "ERROR", "ERR"},
			FatalPatterns: []string{"[FTL]", "[FATAL]", "FATAL:", "<fatal>", "FATAL", "FTL", "[CRIT]", "CRITICAL"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			File:   "~/.local/state/tailtree/tailtree.log",
		},
		Theme: ThemeConfig{
			ActiveGroup:   "42",  // Green
			IdleGroup:     "245", // Gray
			PausedFile:    "214", // Orange
			StatusBar:     "236",
			StatusBarText: "252",
			Dropped:       "196",
			Levels: LogLevelColors{
				Trace: "240",
				Debug: "244",
				Info:  "250",
				Warn:  "214",
				Error: "167",
				Fatal: "196",
			},
		},
	}
}

// Load reads config from path, or from the default location when path is
// empty. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	resolved := strings.TrimSpace(path)
	if resolved == "" {
		resolved = getConfigPath()
		if resolved == "" {
			return cfg, nil
		}
	}
	resolved, err := ExpandPath(resolved)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.normalize()

	return cfg, nil
}

// Save writes config to path, or to the default location when path is empty
func Save(path string, cfg *Config) error {
	resolved := strings.TrimSpace(path)
	if resolved == "" {
		resolved = getConfigPath()
		if resolved == "" {
			return errors.New("config path unavailable")
		}
	}
	resolved, err := ExpandPath(resolved)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(resolved, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// normalize replaces zero or out-of-range values with defaults
func (c *Config) normalize() {
	def := DefaultConfig()

	if c.Engine.PollIntervalMs <= 0 {
		c.Engine.PollIntervalMs = def.Engine.PollIntervalMs
	}
	c.Engine.PollIntervalMs = int(ClampPollInterval(c.PollInterval()) / time.Millisecond)
	if c.Engine.MaxBufferLines <= 0 {
		c.Engine.MaxBufferLines = def.Engine.MaxBufferLines
	}
	if c.Engine.IdleThresholdMs <= 0 {
		c.Engine.IdleThresholdMs = def.Engine.IdleThresholdMs
	}
	if c.Engine.MaxLinesPerPoll < 0 {
		c.Engine.MaxLinesPerPoll = 0
	}
	if c.Engine.ReadWorkers <= 0 {
		c.Engine.ReadWorkers = def.Engine.ReadWorkers
	}

	if c.Preview.FollowLines <= 0 {
		c.Preview.FollowLines = def.Preview.FollowLines
	}
	if c.Preview.MmapThresholdBytes <= 0 {
		c.Preview.MmapThresholdBytes = def.Preview.MmapThresholdBytes
	}
	if c.Preview.ContextLines < 0 {
		c.Preview.ContextLines = def.Preview.ContextLines
	}

	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = def.Logging.Level
	}
	if strings.TrimSpace(c.Logging.Format) == "" {
		c.Logging.Format = def.Logging.Format
	}
}

// PollInterval returns the engine poll interval as a duration
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Engine.PollIntervalMs) * time.Millisecond
}

// IdleThreshold returns how long a file may be quiet before it is idle
func (c *Config) IdleThreshold() time.Duration {
	return time.Duration(c.Engine.IdleThresholdMs) * time.Millisecond
}

// ClampPollInterval bounds d to [MinPollInterval, MaxPollInterval]
func ClampPollInterval(d time.Duration) time.Duration {
	if d < MinPollInterval {
		return MinPollInterval
	}
	if d > MaxPollInterval {
		return MaxPollInterval
	}
	return d
}

// ExpandPath resolves a leading ~ and returns an absolute path
func ExpandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}

// getConfigPath returns the config file path
func getConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "tailtree", "config.toml")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".config", "tailtree", "config.toml")
}

// GetConfigPath exports the config path for user reference
func GetConfigPath() string {
	return getConfigPath()
}
