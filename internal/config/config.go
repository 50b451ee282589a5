// Package config loads and validates the client's connection and display
// settings, the way the teacher's agent config loads its management
// settings: viper-backed, with a tiered (fatal vs. warning) validation
// pass that clamps unsafe values instead of refusing to start.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
)

// Config is the full set of settings needed to open a SPICE session and
// run the client's display/input pipeline.
type Config struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	SecurePort int    `mapstructure:"secure_port"`
	Password   string `mapstructure:"password"`

	CAFile             string `mapstructure:"ca_file"`
	CertSubject        string `mapstructure:"cert_subject"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`

	// ProxyAddr, when set, routes every channel's TCP connection through a
	// SOCKS5 proxy at this host:port before the TLS handshake (if any).
	ProxyAddr string `mapstructure:"proxy_addr"`

	// DisabledChannels/SecureChannels name channel types ("display",
	// "inputs", "cursor", "playback", "record", "tunnel") the client should
	// skip opening, or should require the secure port for.
	DisabledChannels []string `mapstructure:"disabled_channels"`
	SecureChannels   []string `mapstructure:"secure_channels"`

	FullScreen bool     `mapstructure:"full_screen"`
	AutoConf   bool     `mapstructure:"auto_conf"`
	CanvasType []string `mapstructure:"canvas_type"` // preference order, e.g. ["gl","sw"]

	EnableAudio      bool `mapstructure:"enable_audio"`
	EnableSmartcard  bool `mapstructure:"enable_smartcard"`
	EnableUSBRedir   bool `mapstructure:"enable_usb_redir"`

	ControllerEnabled bool `mapstructure:"controller_enabled"`
	ControllerAddr    string `mapstructure:"controller_addr"`

	// Logging configuration.
	LogLevel      string `mapstructure:"log_level"`
	LogFormat     string `mapstructure:"log_format"`
	LogFile       string `mapstructure:"log_file"`
	LogMaxSizeMB  int    `mapstructure:"log_max_size_mb"`
	LogMaxBackups int    `mapstructure:"log_max_backups"`

	// Cache/window budgets, tunable for constrained environments.
	PixmapCacheSizeMB int `mapstructure:"pixmap_cache_size_mb"`
	GLZWindowSizeMB   int `mapstructure:"glz_window_size_mb"`
}

func Default() *Config {
	return &Config{
		Port:              -1,
		SecurePort:        -1,
		CanvasType:        []string{"sw"},
		LogLevel:          "info",
		LogFormat:         "text",
		LogMaxSizeMB:      50,
		LogMaxBackups:     3,
		PixmapCacheSizeMB: 64,
		GLZWindowSizeMB:   32,
		ControllerAddr:    "127.0.0.1:0",
	}
}

func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("spicec")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(configDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("SPICEC")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	result := cfg.ValidateTiered()
	for _, err := range result.Warnings {
		log.Warn("config validation", "error", err)
	}
	if result.HasFatals() {
		for _, err := range result.Fatals {
			log.Error("config validation fatal", "error", err)
		}
		return nil, fmt.Errorf("config has fatal validation errors: %v", result.Fatals[0])
	}

	return cfg, nil
}

func Save(cfg *Config) error {
	return SaveTo(cfg, "")
}

func SaveTo(cfg *Config, cfgFile string) error {
	viper.Set("host", cfg.Host)
	viper.Set("port", cfg.Port)
	viper.Set("secure_port", cfg.SecurePort)
	viper.Set("password", cfg.Password)
	viper.Set("ca_file", cfg.CAFile)
	viper.Set("disabled_channels", cfg.DisabledChannels)
	viper.Set("proxy_addr", cfg.ProxyAddr)
	viper.Set("secure_channels", cfg.SecureChannels)
	viper.Set("canvas_type", cfg.CanvasType)

	var cfgPath string
	if cfgFile != "" {
		cfgPath = cfgFile
		dir := filepath.Dir(cfgPath)
		if dir != "." {
			if err := os.MkdirAll(dir, 0700); err != nil {
				return err
			}
		}
	} else {
		cfgPath = filepath.Join(configDir(), "spicec.yaml")
		if err := os.MkdirAll(configDir(), 0700); err != nil {
			return err
		}
	}

	if err := viper.WriteConfigAs(cfgPath); err != nil {
		return err
	}

	// Restrict config file to owner-only access (it may contain a password).
	return os.Chmod(cfgPath, 0600)
}

// GetDataDir returns the platform-specific data directory for spicec.
// Nothing in the client reads or writes it; the session caches live in
// memory only.
func GetDataDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "spicec", "data")
	case "darwin":
		return "/Library/Application Support/spicec/data"
	default:
		return "/var/lib/spicec"
	}
}

func configDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "spicec")
	case "darwin":
		return "/Library/Application Support/spicec"
	default:
		return "/etc/spicec"
	}
}
