package config

import (
	"fmt"
	"strings"

	"github.com/breeze-rmm/spicec/internal/logging"
)

var log = logging.L("config")

var knownChannels = map[string]bool{
	"display":  true,
	"inputs":   true,
	"cursor":   true,
	"playback": true,
	"record":   true,
	"tunnel":   true,
}

var knownCanvasTypes = map[string]bool{
	"sw": true,
	"gl": true,
}

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

// ValidationResult separates validation problems that must block startup
// (Fatals) from ones that were auto-corrected or are merely advisory
// (Warnings).
type ValidationResult struct {
	Fatals   []error
	Warnings []error
}

func (r ValidationResult) HasFatals() bool { return len(r.Fatals) > 0 }

// AllErrors returns fatals followed by warnings, for callers that just
// want to log everything.
func (r ValidationResult) AllErrors() []error {
	all := make([]error, 0, len(r.Fatals)+len(r.Warnings))
	all = append(all, r.Fatals...)
	all = append(all, r.Warnings...)
	return all
}

// ValidateTiered checks the config for invalid values. Dangerous
// zero-or-missing values that would prevent connecting are clamped to
// safe defaults and reported as warnings; values that make the config
// actively wrong (no host, neither port set, the main channel disabled,
// control characters in the password) are fatal.
func (c *Config) ValidateTiered() ValidationResult {
	var r ValidationResult

	if c.Host == "" {
		r.Fatals = append(r.Fatals, fmt.Errorf("host is required"))
	}

	if c.Port < 0 && c.SecurePort < 0 {
		r.Fatals = append(r.Fatals, fmt.Errorf("at least one of port or secure_port must be set"))
	}

	for _, r2 := range c.Password {
		if r2 < 0x20 && r2 != '\t' {
			r.Fatals = append(r.Fatals, fmt.Errorf("password contains control characters"))
			break
		}
	}

	for _, name := range c.DisabledChannels {
		if name == "main" {
			r.Fatals = append(r.Fatals, fmt.Errorf("the main channel cannot be disabled"))
		} else if !knownChannels[strings.ToLower(name)] {
			r.Warnings = append(r.Warnings, fmt.Errorf("unknown channel %q in disabled_channels", name))
		}
	}
	for _, name := range c.SecureChannels {
		if !knownChannels[strings.ToLower(name)] && name != "main" {
			r.Warnings = append(r.Warnings, fmt.Errorf("unknown channel %q in secure_channels", name))
		}
	}

	if len(c.CanvasType) == 0 {
		r.Warnings = append(r.Warnings, fmt.Errorf("canvas_type empty, defaulting to [sw]"))
		c.CanvasType = []string{"sw"}
	}
	for _, t := range c.CanvasType {
		if !knownCanvasTypes[strings.ToLower(t)] {
			r.Warnings = append(r.Warnings, fmt.Errorf("unknown canvas_type %q", t))
		}
	}

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		r.Warnings = append(r.Warnings, fmt.Errorf("log_level %q is not valid (use debug, info, warn, error)", c.LogLevel))
	}
	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		r.Warnings = append(r.Warnings, fmt.Errorf("log_format %q is not valid (use text or json)", c.LogFormat))
	}

	if c.PixmapCacheSizeMB < 4 {
		r.Warnings = append(r.Warnings, fmt.Errorf("pixmap_cache_size_mb %d is below minimum 4, clamping", c.PixmapCacheSizeMB))
		c.PixmapCacheSizeMB = 4
	} else if c.PixmapCacheSizeMB > 2048 {
		r.Warnings = append(r.Warnings, fmt.Errorf("pixmap_cache_size_mb %d exceeds maximum 2048, clamping", c.PixmapCacheSizeMB))
		c.PixmapCacheSizeMB = 2048
	}

	if c.GLZWindowSizeMB < 1 {
		r.Warnings = append(r.Warnings, fmt.Errorf("glz_window_size_mb %d is below minimum 1, clamping", c.GLZWindowSizeMB))
		c.GLZWindowSizeMB = 1
	} else if c.GLZWindowSizeMB > 1024 {
		r.Warnings = append(r.Warnings, fmt.Errorf("glz_window_size_mb %d exceeds maximum 1024, clamping", c.GLZWindowSizeMB))
		c.GLZWindowSizeMB = 1024
	}

	return r
}
