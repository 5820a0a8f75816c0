package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/imageturbo/smartcrop"
	"github.com/imageturbo/smartcrop/pkg/saliency"
	"github.com/imageturbo/smartcrop/pkg/window"
)

// Config holds the application configuration
type Config struct {
	Saliency SaliencyConfig `json:"saliency"`
	Window   WindowConfig   `json:"window"`
	Output   OutputConfig   `json:"output"`
}

// SaliencyConfig holds the block-scoring weights
type SaliencyConfig struct {
	EdgeWeight       float64 `json:"edge_weight"`
	ContrastWeight   float64 `json:"contrast_weight"`
	SaturationWeight float64 `json:"saturation_weight"`
	SkinWeight       float64 `json:"skin_weight"`
	MaxGridDim       int     `json:"max_grid_dim"`
}

// WindowConfig holds the window-search constants
type WindowConfig struct {
	ThirdsWeight float64 `json:"thirds_weight"`
	ThirdsSigma  float64 `json:"thirds_sigma"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	Format    string `json:"format"`
	Quality   int    `json:"quality"`
	Lossless  bool   `json:"lossless"`
	OutputDir string `json:"output_dir"`
	Suffix    string `json:"suffix"`
}

// Default returns a configuration with the reference tuning
func Default() *Config {
	s := saliency.DefaultConfig()
	w := window.DefaultConfig()
	return &Config{
		Saliency: SaliencyConfig{
			EdgeWeight:       s.EdgeWeight,
			ContrastWeight:   s.ContrastWeight,
			SaturationWeight: s.SaturationWeight,
			SkinWeight:       s.SkinWeight,
			MaxGridDim:       s.MaxGridDim,
		},
		Window: WindowConfig{
			ThirdsWeight: w.ThirdsWeight,
			ThirdsSigma:  w.ThirdsSigma,
		},
		Output: OutputConfig{
			Format:    "png",
			Quality:   90,
			Lossless:  false,
			OutputDir: "./output",
			Suffix:    "_cropped",
		},
	}
}

// EngineConfig converts the file configuration into engine tuning.
func (c *Config) EngineConfig() smartcrop.Config {
	return smartcrop.Config{
		Saliency: saliency.Config{
			EdgeWeight:       c.Saliency.EdgeWeight,
			ContrastWeight:   c.Saliency.ContrastWeight,
			SaturationWeight: c.Saliency.SaturationWeight,
			SkinWeight:       c.Saliency.SkinWeight,
			MaxGridDim:       c.Saliency.MaxGridDim,
		},
		Window: window.Config{
			ThirdsWeight: c.Window.ThirdsWeight,
			ThirdsSigma:  c.Window.ThirdsSigma,
		},
	}
}

// LoadFromFile loads configuration from a JSON file. Fields the file
// omits keep their defaults, so partial configs stay valid.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	weights := []struct {
		name  string
		value float64
	}{
		{"saliency.edge_weight", c.Saliency.EdgeWeight},
		{"saliency.contrast_weight", c.Saliency.ContrastWeight},
		{"saliency.saturation_weight", c.Saliency.SaturationWeight},
		{"saliency.skin_weight", c.Saliency.SkinWeight},
	}
	for _, w := range weights {
		if w.value < 0 || w.value > 1 {
			return fmt.Errorf("%s must be between 0 and 1", w.name)
		}
	}

	if c.Saliency.MaxGridDim < 1 {
		return fmt.Errorf("saliency.max_grid_dim must be positive")
	}

	if c.Window.ThirdsWeight < 0 {
		return fmt.Errorf("window.thirds_weight must not be negative")
	}

	if c.Window.ThirdsSigma <= 0 {
		return fmt.Errorf("window.thirds_sigma must be positive")
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	switch c.Output.Format {
	case "png", "jpg", "jpeg", "webp":
	default:
		return fmt.Errorf("output.format must be png, jpg or webp")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "smartcrop", "config.json")
}
