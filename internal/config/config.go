package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/l1jgo/hashbounds/internal/hashbounds"
)

type Config struct {
	Index    IndexConfig    `toml:"index"`
	Sim      SimConfig      `toml:"sim"`
	Scenario ScenarioConfig `toml:"scenario"`
	Viewer   ViewerConfig   `toml:"viewer"`
	Store    StoreConfig    `toml:"store"`
	Logging  LoggingConfig  `toml:"logging"`
}

type IndexConfig struct {
	MinSize       float64    `toml:"min_size"`
	LevelCount    int        `toml:"level_count"`
	InitialBounds *BoundsSet `toml:"initial_bounds"` // optional pre-warm area
	PruneInterval int        `toml:"prune_interval"` // ticks between prunes, 0 = never
}

// BoundsSet is a box as written in TOML. Either x/y/width/height or
// min_x/min_y/max_x/max_y must be given; Box() decides which.
type BoundsSet struct {
	X      *float64 `toml:"x"`
	Y      *float64 `toml:"y"`
	Width  *float64 `toml:"width"`
	Height *float64 `toml:"height"`
	MinX   *float64 `toml:"min_x"`
	MinY   *float64 `toml:"min_y"`
	MaxX   *float64 `toml:"max_x"`
	MaxY   *float64 `toml:"max_y"`
}

// Box converts the set into a normalized box.
func (b BoundsSet) Box() (hashbounds.Box, error) {
	switch {
	case b.X != nil && b.Y != nil && b.Width != nil && b.Height != nil:
		return hashbounds.PosSize(*b.X, *b.Y, *b.Width, *b.Height), nil
	case b.MinX != nil && b.MinY != nil && b.MaxX != nil && b.MaxY != nil:
		return hashbounds.MinMax(*b.MinX, *b.MinY, *b.MaxX, *b.MaxY), nil
	}
	return hashbounds.Box{}, fmt.Errorf("%w: need x/y/width/height or min_x/min_y/max_x/max_y", hashbounds.ErrInvalidBoxFormat)
}

type SimConfig struct {
	TickRate           time.Duration `toml:"tick_rate"` // 0 runs ticks back to back
	Ticks              int           `toml:"ticks"`     // 0 runs until interrupted
	Seed               int64         `toml:"seed"`
	CrossCheckInterval int           `toml:"cross_check_interval"` // ticks, 0 = off
	RefCellSize        float64       `toml:"ref_cell_size"`
}

type ScenarioConfig struct {
	File       string  `toml:"file"`        // empty generates Bodies random bodies
	ScriptsDir string  `toml:"scripts_dir"` // empty disables Lua hooks
	Bodies     int     `toml:"bodies"`
	MinBody    float64 `toml:"min_body"`
	MaxBody    float64 `toml:"max_body"`
	MaxSpeed   float64 `toml:"max_speed"`
}

type ViewerConfig struct {
	Enabled       bool          `toml:"enabled"`
	BindAddress   string        `toml:"bind_address"`
	FrameInterval int           `toml:"frame_interval"` // ticks between frames
	WriteTimeout  time.Duration `toml:"write_timeout"`
	SendQueueSize int           `toml:"send_queue_size"`
}

type StoreConfig struct {
	Driver          string        `toml:"driver"` // "postgres", "sqlite" or "" for none
	DSN             string        `toml:"dsn"`
	MaxOpenConns    int           `toml:"max_open_conns"`
	MaxIdleConns    int           `toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
	FlushInterval   int           `toml:"flush_interval"` // ticks between sample batches
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := defaults()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Index.LevelCount < 1 {
		return fmt.Errorf("index.level_count: %w", hashbounds.ErrInvalidLevelCount)
	}
	if c.Index.MinSize <= 0 {
		return fmt.Errorf("index.min_size: %w", hashbounds.ErrInvalidMinSize)
	}
	if c.Index.InitialBounds != nil {
		if _, err := c.Index.InitialBounds.Box(); err != nil {
			return fmt.Errorf("index.initial_bounds: %w", err)
		}
	}
	switch c.Store.Driver {
	case "", "postgres", "sqlite":
	default:
		return fmt.Errorf("store.driver: unknown driver %q", c.Store.Driver)
	}
	return nil
}

func defaults() *Config {
	return &Config{
		Index: IndexConfig{
			MinSize:       16,
			LevelCount:    5,
			PruneInterval: 300,
		},
		Sim: SimConfig{
			TickRate:           50 * time.Millisecond,
			Ticks:              0,
			Seed:               29482,
			CrossCheckInterval: 100,
			RefCellSize:        64,
		},
		Scenario: ScenarioConfig{
			Bodies:   1000,
			MinBody:  5,
			MaxBody:  80,
			MaxSpeed: 120,
		},
		Viewer: ViewerConfig{
			Enabled:       false,
			BindAddress:   "127.0.0.1:7070",
			FrameInterval: 2,
			WriteTimeout:  10 * time.Second,
			SendQueueSize: 16,
		},
		Store: StoreConfig{
			Driver:          "",
			DSN:             "",
			MaxOpenConns:    4,
			MaxIdleConns:    1,
			ConnMaxLifetime: 30 * time.Minute,
			FlushInterval:   100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
