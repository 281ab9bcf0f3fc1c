package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for reconciliation tuning
// parameters. Fields are pointers so that a partial JSON file only overrides
// the values it names; the Get* accessors supply defaults for the rest.
type TuningConfig struct {
	// Quality analyzer params
	MinConfidence             *float64 `json:"min_confidence,omitempty"`
	BoundaryEpsilon           *float64 `json:"boundary_epsilon,omitempty"`
	OffScreenConfidence       *float64 `json:"off_screen_confidence,omitempty"`
	OffScreenKeypointFraction *float64 `json:"off_screen_keypoint_fraction,omitempty"`
	MinOffScreenRun           *int     `json:"min_off_screen_run,omitempty"`
	OutlierWindowSize         *int     `json:"outlier_window_size,omitempty"`
	OutlierThreshold          *float64 `json:"outlier_threshold,omitempty"`

	// Frame geometry. Keypoint coordinates are assumed normalized to [0,1]
	// unless the upstream estimator reports pixel space, in which case these
	// carry the frame dimensions used by the off-screen check.
	FrameWidth  *float64 `json:"frame_width,omitempty"`
	FrameHeight *float64 `json:"frame_height,omitempty"`

	// Gap fill params
	MaxInterpolationGap *int `json:"max_interpolation_gap,omitempty"`
	CacheCapacity       *int `json:"cache_capacity,omitempty"`

	// Smoothing params
	SmoothingEnabled *bool    `json:"smoothing_enabled,omitempty"`
	ProcessNoise     *float64 `json:"process_noise,omitempty"`
	MeasurementNoise *float64 `json:"measurement_noise,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the
// max file size. Fields omitted from the JSON file retain their default
// values, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from internal/pose/ and deeper
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.MinConfidence != nil {
		if *c.MinConfidence < 0 || *c.MinConfidence > 1 {
			return fmt.Errorf("min_confidence must be between 0 and 1, got %f", *c.MinConfidence)
		}
	}
	if c.BoundaryEpsilon != nil {
		if *c.BoundaryEpsilon < 0 || *c.BoundaryEpsilon > 0.5 {
			return fmt.Errorf("boundary_epsilon must be between 0 and 0.5, got %f", *c.BoundaryEpsilon)
		}
	}
	if c.OffScreenConfidence != nil {
		if *c.OffScreenConfidence < 0 || *c.OffScreenConfidence > 1 {
			return fmt.Errorf("off_screen_confidence must be between 0 and 1, got %f", *c.OffScreenConfidence)
		}
	}
	if c.OffScreenKeypointFraction != nil {
		if *c.OffScreenKeypointFraction <= 0 || *c.OffScreenKeypointFraction > 1 {
			return fmt.Errorf("off_screen_keypoint_fraction must be in (0, 1], got %f", *c.OffScreenKeypointFraction)
		}
	}
	if c.MinOffScreenRun != nil && *c.MinOffScreenRun < 1 {
		return fmt.Errorf("min_off_screen_run must be at least 1, got %d", *c.MinOffScreenRun)
	}
	if c.OutlierWindowSize != nil && *c.OutlierWindowSize < 3 {
		return fmt.Errorf("outlier_window_size must be at least 3, got %d", *c.OutlierWindowSize)
	}
	if c.OutlierThreshold != nil && *c.OutlierThreshold <= 0 {
		return fmt.Errorf("outlier_threshold must be positive, got %f", *c.OutlierThreshold)
	}
	if c.FrameWidth != nil && *c.FrameWidth <= 0 {
		return fmt.Errorf("frame_width must be positive, got %f", *c.FrameWidth)
	}
	if c.FrameHeight != nil && *c.FrameHeight <= 0 {
		return fmt.Errorf("frame_height must be positive, got %f", *c.FrameHeight)
	}
	if c.MaxInterpolationGap != nil && *c.MaxInterpolationGap < 1 {
		return fmt.Errorf("max_interpolation_gap must be at least 1, got %d", *c.MaxInterpolationGap)
	}
	if c.CacheCapacity != nil && *c.CacheCapacity < 1 {
		return fmt.Errorf("cache_capacity must be at least 1, got %d", *c.CacheCapacity)
	}
	if c.ProcessNoise != nil && *c.ProcessNoise <= 0 {
		return fmt.Errorf("process_noise must be positive, got %f", *c.ProcessNoise)
	}
	if c.MeasurementNoise != nil && *c.MeasurementNoise <= 0 {
		return fmt.Errorf("measurement_noise must be positive, got %f", *c.MeasurementNoise)
	}
	return nil
}

// GetMinConfidence returns the min_confidence value or the default.
func (c *TuningConfig) GetMinConfidence() float64 {
	if c.MinConfidence == nil {
		return 0.6
	}
	return *c.MinConfidence
}

// GetBoundaryEpsilon returns the boundary_epsilon value or the default.
func (c *TuningConfig) GetBoundaryEpsilon() float64 {
	if c.BoundaryEpsilon == nil {
		return 0.05
	}
	return *c.BoundaryEpsilon
}

// GetOffScreenConfidence returns the off_screen_confidence value or the default.
func (c *TuningConfig) GetOffScreenConfidence() float64 {
	if c.OffScreenConfidence == nil {
		return 0.3
	}
	return *c.OffScreenConfidence
}

// GetOffScreenKeypointFraction returns the off_screen_keypoint_fraction value or the default.
func (c *TuningConfig) GetOffScreenKeypointFraction() float64 {
	if c.OffScreenKeypointFraction == nil {
		return 0.4
	}
	return *c.OffScreenKeypointFraction
}

// GetMinOffScreenRun returns the min_off_screen_run value or the default.
func (c *TuningConfig) GetMinOffScreenRun() int {
	if c.MinOffScreenRun == nil {
		return 3
	}
	return *c.MinOffScreenRun
}

// GetOutlierWindowSize returns the outlier_window_size value or the default.
func (c *TuningConfig) GetOutlierWindowSize() int {
	if c.OutlierWindowSize == nil {
		return 7
	}
	return *c.OutlierWindowSize
}

// GetOutlierThreshold returns the outlier_threshold value or the default.
func (c *TuningConfig) GetOutlierThreshold() float64 {
	if c.OutlierThreshold == nil {
		return 0.3
	}
	return *c.OutlierThreshold
}

// GetFrameWidth returns the frame_width value or the default (normalized space).
func (c *TuningConfig) GetFrameWidth() float64 {
	if c.FrameWidth == nil {
		return 1.0
	}
	return *c.FrameWidth
}

// GetFrameHeight returns the frame_height value or the default (normalized space).
func (c *TuningConfig) GetFrameHeight() float64 {
	if c.FrameHeight == nil {
		return 1.0
	}
	return *c.FrameHeight
}

// GetMaxInterpolationGap returns the max_interpolation_gap value or the default.
func (c *TuningConfig) GetMaxInterpolationGap() int {
	if c.MaxInterpolationGap == nil {
		return 10
	}
	return *c.MaxInterpolationGap
}

// GetCacheCapacity returns the cache_capacity value or the default.
func (c *TuningConfig) GetCacheCapacity() int {
	if c.CacheCapacity == nil {
		return 256
	}
	return *c.CacheCapacity
}

// GetSmoothingEnabled returns the smoothing_enabled value or the default.
func (c *TuningConfig) GetSmoothingEnabled() bool {
	if c.SmoothingEnabled == nil {
		return true
	}
	return *c.SmoothingEnabled
}

// GetProcessNoise returns the process_noise (Q) value or the default.
func (c *TuningConfig) GetProcessNoise() float64 {
	if c.ProcessNoise == nil {
		return 0.01
	}
	return *c.ProcessNoise
}

// GetMeasurementNoise returns the measurement_noise (R) value or the default.
func (c *TuningConfig) GetMeasurementNoise() float64 {
	if c.MeasurementNoise == nil {
		return 4.0
	}
	return *c.MeasurementNoise
}
