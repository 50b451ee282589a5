package config

import (
	"fmt"
	"strings"
	"testing"
)

func TestValidateTieredMissingHostIsFatal(t *testing.T) {
	cfg := Default()
	result := cfg.ValidateTiered()
	if !result.HasFatals() {
		t.Fatal("missing host should be fatal")
	}
}

func TestValidateTieredNoPortsIsFatal(t *testing.T) {
	cfg := Default()
	cfg.Host = "spice.example.com"
	result := cfg.ValidateTiered()
	if !result.HasFatals() {
		t.Fatal("no port or secure_port set should be fatal")
	}
}

func TestValidateTieredDisablingMainChannelIsFatal(t *testing.T) {
	cfg := Default()
	cfg.Host = "spice.example.com"
	cfg.Port = 5900
	cfg.DisabledChannels = []string{"main"}
	result := cfg.ValidateTiered()
	if !result.HasFatals() {
		t.Fatal("disabling the main channel should be fatal")
	}
}

func TestValidateTieredControlCharsInPasswordIsFatal(t *testing.T) {
	cfg := Default()
	cfg.Host = "spice.example.com"
	cfg.Port = 5900
	cfg.Password = "pw\x00ord"
	result := cfg.ValidateTiered()
	if !result.HasFatals() {
		t.Fatal("control chars in password should be fatal")
	}
}

func TestValidateTieredEmptyCanvasTypeIsWarningAndDefaulted(t *testing.T) {
	cfg := Default()
	cfg.Host = "spice.example.com"
	cfg.Port = 5900
	cfg.CanvasType = nil
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatalf("empty canvas_type should be warning, not fatal: %v", result.Fatals)
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected warning for empty canvas_type")
	}
	if len(cfg.CanvasType) != 1 || cfg.CanvasType[0] != "sw" {
		t.Fatalf("CanvasType = %v, want [sw] (defaulted)", cfg.CanvasType)
	}
}

func TestValidateTieredUnknownChannelIsWarning(t *testing.T) {
	cfg := Default()
	cfg.Host = "spice.example.com"
	cfg.Port = 5900
	cfg.DisabledChannels = []string{"bogus_channel"}
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatal("unknown channel should not be fatal")
	}
	found := false
	for _, err := range result.Warnings {
		if strings.Contains(err.Error(), "bogus_channel") {
			found = true
		}
	}
	if !found {
		t.Fatal("expected warning about unknown channel")
	}
}

func TestValidateTieredUnknownLogLevelIsWarning(t *testing.T) {
	cfg := Default()
	cfg.Host = "spice.example.com"
	cfg.Port = 5900
	cfg.LogLevel = "verbose"
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatal("unknown log level should not be fatal")
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected warning for unknown log level")
	}
}

func TestValidateTieredCacheSizeClamping(t *testing.T) {
	cfg := Default()
	cfg.Host = "spice.example.com"
	cfg.Port = 5900
	cfg.PixmapCacheSizeMB = 0
	cfg.GLZWindowSizeMB = 0
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatalf("clamped cache sizes should be warning: %v", result.Fatals)
	}
	if cfg.PixmapCacheSizeMB != 4 {
		t.Fatalf("PixmapCacheSizeMB = %d, want 4", cfg.PixmapCacheSizeMB)
	}
	if cfg.GLZWindowSizeMB != 1 {
		t.Fatalf("GLZWindowSizeMB = %d, want 1", cfg.GLZWindowSizeMB)
	}
}

func TestHasFatals(t *testing.T) {
	r := ValidationResult{}
	if r.HasFatals() {
		t.Fatal("HasFatals() on empty result should be false")
	}
	r.Fatals = append(r.Fatals, fmt.Errorf("test error"))
	if !r.HasFatals() {
		t.Fatal("HasFatals() should be true with a fatal error")
	}
}

func TestAllErrorsReturnsBoth(t *testing.T) {
	cfg := Default()
	cfg.DisabledChannels = []string{"fake"} // warning
	// host left empty: fatal
	result := cfg.ValidateTiered()

	all := result.AllErrors()
	if len(all) < 2 {
		t.Fatalf("AllErrors() returned %d errors, expected at least 2 (fatals + warnings)", len(all))
	}
}

func TestValidConfigHasNoErrors(t *testing.T) {
	cfg := Default()
	cfg.Host = "spice.example.com"
	cfg.Port = 5900
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		t.Fatalf("valid config has fatals: %v", result.Fatals)
	}
	if len(result.Warnings) > 0 {
		t.Fatalf("valid config has warnings: %v", result.Warnings)
	}
}
