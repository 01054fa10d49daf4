// Package config loads and validates the application configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	apperrors "github.com/FunctionalFactory/music-assistant-v2/internal/errors"
	"github.com/FunctionalFactory/music-assistant-v2/internal/onset"
)

// Server holds HTTP server settings.
type Server struct {
	Port          int   `toml:"port"`
	MaxUploadSize int64 `toml:"max_upload_size"`
}

// Analysis holds the default transcription parameters. Requests may
// override delta, wait and bpm per call within the same ranges.
type Analysis struct {
	Delta             float64 `toml:"delta"`
	Wait              float64 `toml:"wait"`
	FrameSize         int     `toml:"frame_size"`
	HopSize           int     `toml:"hop_size"`
	MaxWaveformPoints int     `toml:"max_waveform_points"`
	GridWidth         int     `toml:"grid_width"`
	GridHeight        int     `toml:"grid_height"`
}

// Config is the root application configuration.
type Config struct {
	Server   Server   `toml:"server"`
	Analysis Analysis `toml:"analysis"`
	DataDir  string   `toml:"data_dir"`
	LogLevel string   `toml:"log_level"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: Server{
			Port:          8080,
			MaxUploadSize: 50 * 1024 * 1024,
		},
		Analysis: Analysis{
			Delta:             0.14,
			Wait:              0.03,
			FrameSize:         2048,
			HopSize:           512,
			MaxWaveformPoints: 2000,
			GridWidth:         100,
			GridHeight:        100,
		},
		DataDir:  defaultDataDir(),
		LogLevel: "info",
	}
}

// Load reads a TOML config file, filling unset fields with defaults. A
// missing file is not an error; invalid values are.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate range-checks every field once, at the boundary.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return apperrors.NewConfigError("server.port", float64(c.Server.Port), 1, 65535)
	}
	if c.Server.MaxUploadSize <= 0 {
		return apperrors.NewConfigError("server.max_upload_size", float64(c.Server.MaxUploadSize), 1, 1<<31)
	}
	a := c.Analysis
	if a.Delta < onset.MinDelta || a.Delta > onset.MaxDelta {
		return apperrors.NewConfigError("analysis.delta", a.Delta, onset.MinDelta, onset.MaxDelta)
	}
	if a.Wait < onset.MinWait || a.Wait > onset.MaxWait {
		return apperrors.NewConfigError("analysis.wait", a.Wait, onset.MinWait, onset.MaxWait)
	}
	if a.FrameSize <= 0 || a.FrameSize&(a.FrameSize-1) != 0 {
		return apperrors.NewConfigError("analysis.frame_size", float64(a.FrameSize), 2, 1<<16)
	}
	if a.HopSize <= 0 || a.HopSize > a.FrameSize {
		return apperrors.NewConfigError("analysis.hop_size", float64(a.HopSize), 1, float64(a.FrameSize))
	}
	if a.MaxWaveformPoints <= 0 {
		return apperrors.NewConfigError("analysis.max_waveform_points", float64(a.MaxWaveformPoints), 1, 1<<20)
	}
	if a.GridWidth <= 0 || a.GridWidth > 4096 {
		return apperrors.NewConfigError("analysis.grid_width", float64(a.GridWidth), 1, 4096)
	}
	if a.GridHeight <= 0 || a.GridHeight > 4096 {
		return apperrors.NewConfigError("analysis.grid_height", float64(a.GridHeight), 1, 4096)
	}
	return nil
}

// EnsureDataDir creates the data directory if needed.
func (c *Config) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	return nil
}

// DatabasePath returns the task store location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "tasks.db")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".music-assistant"
	}
	return filepath.Join(home, ".local", "share", "music-assistant")
}
