package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the fully resolved meetscribe configuration.
type Config struct {
	Audio      AudioConfig      `mapstructure:"audio" yaml:"audio"`
	Output     OutputConfig     `mapstructure:"output" yaml:"output"`
	Storage    StorageConfig    `mapstructure:"storage" yaml:"storage"`
	Transcribe TranscribeConfig `mapstructure:"transcribe" yaml:"transcribe"`
}

type AudioConfig struct {
	SampleRate int    `mapstructure:"sample_rate" yaml:"sample_rate"`
	Channels   int    `mapstructure:"channels" yaml:"channels"`
	Device     string `mapstructure:"device" yaml:"device"`   // input device name, empty = host default
	Backend    string `mapstructure:"backend" yaml:"backend"` // "portaudio", "auto"

	// Samples whose magnitude exceeds NoiseFloor are amplified by Gain and
	// clamped; samples at or below the floor pass through unchanged.
	Gain       float64 `mapstructure:"gain" yaml:"gain"`
	NoiseFloor float64 `mapstructure:"noise_floor" yaml:"noise_floor"`
}

type OutputConfig struct {
	Directory string `mapstructure:"directory" yaml:"directory"`
}

type StorageConfig struct {
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`
}

type TranscribeConfig struct {
	// Backend selects the recognition backend: "local" runs whisper as a
	// subprocess, "remote" posts to an OpenAI-compatible endpoint.
	Backend string `mapstructure:"backend" yaml:"backend"`

	Language  string `mapstructure:"language" yaml:"language"`
	ModelSize string `mapstructure:"model_size" yaml:"model_size"`

	PythonPath string        `mapstructure:"python_path" yaml:"python_path"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`

	RemoteURL     string        `mapstructure:"remote_url" yaml:"remote_url"`
	RemoteTimeout time.Duration `mapstructure:"remote_timeout" yaml:"remote_timeout"`

	// APIKey only ever comes from the environment, never from the file.
	APIKey string `mapstructure:"-" yaml:"-"`
}

var validModelSizes = []string{"tiny", "base", "small", "medium", "large"}

func defaultConfig() *Config {
	home := os.Getenv("HOME")
	return &Config{
		Audio: AudioConfig{
			SampleRate: 16000,
			Channels:   1,
			Backend:    "auto",
			Gain:       3.0,
			NoiseFloor: 0.001,
		},
		Output: OutputConfig{
			Directory: filepath.Join(home, "Audio", "MeetScribe"),
		},
		Storage: StorageConfig{
			DatabasePath: filepath.Join(home, ".local", "share", "meetscribe", "meetscribe.db"),
		},
		Transcribe: TranscribeConfig{
			Backend:       "local",
			Language:      "ja",
			ModelSize:     "small",
			Timeout:       10 * time.Minute,
			RemoteURL:     "https://api.openai.com",
			RemoteTimeout: 2 * time.Minute,
		},
	}
}

// Load reads the configuration file, applies defaults and environment
// overrides, and validates the result. A missing file yields the defaults.
func Load(configFile string) (*Config, error) {
	cfg := defaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("MEETSCRIBE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			if !os.IsNotExist(err) {
				if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
					return nil, fmt.Errorf("failed to read config %s: %w", configFile, err)
				}
			}
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if key := os.Getenv("MEETSCRIBE_API_KEY"); key != "" {
		cfg.Transcribe.APIKey = key
	} else if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.Transcribe.APIKey = key
	}

	cfg.Output.Directory = expandPath(cfg.Output.Directory)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks the invariants the rest of the system relies on.
func (c *Config) Validate() error {
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be positive, got %d", c.Audio.SampleRate)
	}
	if c.Audio.Channels < 1 || c.Audio.Channels > 2 {
		return fmt.Errorf("audio.channels must be 1 or 2, got %d", c.Audio.Channels)
	}
	if c.Audio.Gain < 1.0 {
		return fmt.Errorf("audio.gain must be >= 1.0, got %g", c.Audio.Gain)
	}
	if c.Audio.NoiseFloor < 0 || c.Audio.NoiseFloor >= 1.0 {
		return fmt.Errorf("audio.noise_floor must be in [0,1), got %g", c.Audio.NoiseFloor)
	}

	switch strings.ToLower(c.Audio.Backend) {
	case "", "auto", "portaudio":
	default:
		return fmt.Errorf("audio.backend must be 'portaudio' or 'auto', got %q", c.Audio.Backend)
	}

	if c.Output.Directory == "" {
		return fmt.Errorf("output.directory is required")
	}
	if c.Storage.DatabasePath == "" {
		return fmt.Errorf("storage.database_path is required")
	}

	switch c.Transcribe.Backend {
	case "local", "remote":
	default:
		return fmt.Errorf("transcribe.backend must be 'local' or 'remote', got %q", c.Transcribe.Backend)
	}

	if !isValidModelSize(c.Transcribe.ModelSize) {
		return fmt.Errorf("transcribe.model_size must be one of %v, got %q",
			validModelSizes, c.Transcribe.ModelSize)
	}
	if c.Transcribe.Language == "" {
		return fmt.Errorf("transcribe.language is required")
	}
	if c.Transcribe.Timeout <= 0 {
		return fmt.Errorf("transcribe.timeout must be positive, got %s", c.Transcribe.Timeout)
	}
	if c.Transcribe.Backend == "remote" {
		if c.Transcribe.RemoteURL == "" {
			return fmt.Errorf("transcribe.remote_url is required for the remote backend")
		}
		if c.Transcribe.RemoteTimeout <= 0 {
			return fmt.Errorf("transcribe.remote_timeout must be positive, got %s", c.Transcribe.RemoteTimeout)
		}
	}

	return nil
}

// Save writes the configuration to path as YAML, creating parent
// directories as needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// YAML renders the resolved configuration for display.
func (c *Config) YAML() (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}
	return string(data), nil
}

func isValidModelSize(size string) bool {
	for _, s := range validModelSizes {
		if s == size {
			return true
		}
	}
	return false
}

// expandPath expands a leading tilde to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
