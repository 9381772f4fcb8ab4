package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
)

// Config represents the harness configuration
type Config struct {
	// Benchmark settings
	Bench struct {
		ArraySize   int    `toml:"array_size"`    // number of doubles in the input array
		NumRanges   int    `toml:"num_ranges"`    // ranges per batch
		MaxWidth    int    `toml:"max_width"`     // widest sampled range
		Trials      int    `toml:"trials"`        // batch evaluations per run
		Seed        int64  `toml:"seed"`          // RNG seed for input and range sampling
		SortByWidth bool   `toml:"sort_by_width"` // sort ranges by width before running
		Mode        string `toml:"mode"`          // base, fast, faster, fasterb, onlysum, jit
	} `toml:"bench"`

	// Display settings
	Display struct {
		BytesPerLine int  `toml:"bytes_per_line"`
		ColorOutput  bool `toml:"color_output"`
	} `toml:"display"`

	// API server settings
	API struct {
		Port int `toml:"port"`
	} `toml:"api"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Benchmark defaults match the historical measurement setup.
	cfg.Bench.ArraySize = 1000
	cfg.Bench.NumRanges = 5000
	cfg.Bench.MaxWidth = 10
	cfg.Bench.Trials = 10000
	cfg.Bench.Seed = 12345
	cfg.Bench.SortByWidth = false
	cfg.Bench.Mode = "jit"

	cfg.Display.BytesPerLine = 16
	cfg.Display.ColorOutput = true

	cfg.API.Port = 8080

	return cfg
}

// GetConfigPath returns the platform-specific config file path
func GetConfigPath() string {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		// Windows: %APPDATA%\logsumexp-approx\config.toml
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		configDir = filepath.Join(configDir, "logsumexp-approx")

	case "darwin", "linux":
		// macOS/Linux: ~/.config/logsumexp-approx/config.toml
		homeDir, err := os.UserHomeDir()
		if err != nil {
			// Fallback to current directory
			return "config.toml"
		}
		configDir = filepath.Join(homeDir, ".config", "logsumexp-approx")

	default:
		// Unknown platform: use current directory
		return "config.toml"
	}

	// Ensure directory exists
	if err := os.MkdirAll(configDir, 0750); err != nil {
		// If we can't create the directory, fall back to current directory
		return "config.toml"
	}

	return filepath.Join(configDir, "config.toml")
}

// Load loads configuration from the default config file
func Load() (*Config, error) {
	return LoadFrom(GetConfigPath())
}

// LoadFrom loads configuration from the specified file. A missing file is
// not an error; defaults are returned.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to the default config file
func (c *Config) Save() error {
	return c.SaveTo(GetConfigPath())
}

// SaveTo saves configuration to the specified file
func (c *Config) SaveTo(path string) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path) // #nosec G304 -- user config file path
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close config file: %w", closeErr)
		}
	}()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}

// Validate checks the configuration for values the harness cannot run with
func (c *Config) Validate() error {
	if c.Bench.ArraySize < 1 {
		return fmt.Errorf("bench.array_size must be positive, got %d", c.Bench.ArraySize)
	}
	if c.Bench.NumRanges < 0 {
		return fmt.Errorf("bench.num_ranges must be non-negative, got %d", c.Bench.NumRanges)
	}
	if c.Bench.MaxWidth < 1 || c.Bench.MaxWidth > c.Bench.ArraySize {
		return fmt.Errorf("bench.max_width must be in [1, array_size], got %d", c.Bench.MaxWidth)
	}
	if c.Bench.Trials < 1 {
		return fmt.Errorf("bench.trials must be positive, got %d", c.Bench.Trials)
	}
	if c.Display.BytesPerLine < 1 {
		return fmt.Errorf("display.bytes_per_line must be positive, got %d", c.Display.BytesPerLine)
	}
	if c.API.Port < 1 || c.API.Port > 65535 {
		return fmt.Errorf("api.port must be in [1, 65535], got %d", c.API.Port)
	}
	return nil
}
