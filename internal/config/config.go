// SPDX-License-Identifier: MIT

// Package config loads the service configuration with the precedence
// ENV > file > defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dschwenke/clippy/internal/errkind"
)

// Config is the resolved runtime configuration.
type Config struct {
	DataDir  string `yaml:"dataDir,omitempty"`
	LogLevel string `yaml:"logLevel,omitempty"`

	Server ServerConfig `yaml:"server,omitempty"`
	Clips  ClipsConfig  `yaml:"clips,omitempty"`
	Media  MediaConfig  `yaml:"media,omitempty"`
	AI     AIConfig     `yaml:"ai,omitempty"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Listen          string        `yaml:"listen,omitempty"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout,omitempty"`
	CreateRateLimit int           `yaml:"createRateLimit,omitempty"`
}

// ClipsConfig holds clip production settings.
type ClipsConfig struct {
	DefaultDuration float64       `yaml:"defaultDuration,omitempty"`
	MaxDuration     float64       `yaml:"maxDuration,omitempty"`
	AnonTTL         time.Duration `yaml:"anonTTL,omitempty"`
	SweepInterval   time.Duration `yaml:"sweepInterval,omitempty"`
}

// MediaConfig holds the external tool paths.
type MediaConfig struct {
	FFmpegPath   string `yaml:"ffmpegPath,omitempty"`
	FFprobePath  string `yaml:"ffprobePath,omitempty"`
	VideoBitrate string `yaml:"videoBitrate,omitempty"`
}

// AIConfig holds the transcription backend settings.
type AIConfig struct {
	APIKey  string `yaml:"apiKey,omitempty"`
	BaseURL string `yaml:"baseURL,omitempty"`
	Model   string `yaml:"model,omitempty"`
}

// Derived paths under DataDir.
func (c Config) DownloadsDir() string { return c.DataDir + "/downloads" }
func (c Config) ClipsDir() string     { return c.DataDir + "/clips" }
func (c Config) RegistryDir() string  { return c.DataDir + "/registry" }
func (c Config) WorkDir() string      { return c.DataDir + "/work" }

// Load resolves the configuration: defaults, then the YAML file at
// path (optional, "" skips it), then CLIPPY_* environment variables.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		if err := mergeFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	mergeEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		DataDir:  "./data",
		LogLevel: "info",
		Server: ServerConfig{
			Listen:          ":8080",
			ShutdownTimeout: 15 * time.Second,
			CreateRateLimit: 10,
		},
		Clips: ClipsConfig{
			DefaultDuration: 30,
			MaxDuration:     180,
			AnonTTL:         24 * time.Hour,
			SweepInterval:   time.Hour,
		},
		Media: MediaConfig{
			FFmpegPath:   "ffmpeg",
			FFprobePath:  "ffprobe",
			VideoBitrate: "3M",
		},
		AI: AIConfig{
			Model: "whisper-1",
		},
	}
}

func mergeFile(cfg *Config, path string) error {
	buf, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errkind.Wrap(errkind.KindIO, err, "read config file")
	}
	dec := yaml.NewDecoder(strings.NewReader(string(buf)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return errkind.Wrap(errkind.KindParse, err, "parse config file")
	}
	return nil
}

func mergeEnv(cfg *Config) {
	cfg.DataDir = ParseString("CLIPPY_DATA", cfg.DataDir)
	cfg.LogLevel = ParseString("CLIPPY_LOG_LEVEL", cfg.LogLevel)

	cfg.Server.Listen = ParseString("CLIPPY_LISTEN", cfg.Server.Listen)
	cfg.Server.ShutdownTimeout = ParseDuration("CLIPPY_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)
	cfg.Server.CreateRateLimit = ParseInt("CLIPPY_CREATE_RATE_LIMIT", cfg.Server.CreateRateLimit)

	cfg.Clips.DefaultDuration = ParseFloat("CLIPPY_DEFAULT_DURATION", cfg.Clips.DefaultDuration)
	cfg.Clips.MaxDuration = ParseFloat("CLIPPY_MAX_DURATION", cfg.Clips.MaxDuration)
	cfg.Clips.AnonTTL = ParseDuration("CLIPPY_ANON_TTL", cfg.Clips.AnonTTL)
	cfg.Clips.SweepInterval = ParseDuration("CLIPPY_SWEEP_INTERVAL", cfg.Clips.SweepInterval)

	cfg.Media.FFmpegPath = ParseString("CLIPPY_FFMPEG", cfg.Media.FFmpegPath)
	cfg.Media.FFprobePath = ParseString("CLIPPY_FFPROBE", cfg.Media.FFprobePath)
	cfg.Media.VideoBitrate = ParseString("CLIPPY_VIDEO_BITRATE", cfg.Media.VideoBitrate)

	cfg.AI.APIKey = ParseString("CLIPPY_OPENAI_API_KEY", cfg.AI.APIKey)
	cfg.AI.BaseURL = ParseString("CLIPPY_OPENAI_BASE_URL", cfg.AI.BaseURL)
	cfg.AI.Model = ParseString("CLIPPY_WHISPER_MODEL", cfg.AI.Model)
}

func (c Config) validate() error {
	if c.DataDir == "" {
		return errkind.New(errkind.KindInvalidInput, "dataDir must not be empty")
	}
	if c.Clips.DefaultDuration <= 0 {
		return errkind.New(errkind.KindInvalidInput, "defaultDuration must be positive")
	}
	if c.Clips.MaxDuration < c.Clips.DefaultDuration {
		return errkind.New(errkind.KindInvalidInput,
			"maxDuration %.0fs is below defaultDuration %.0fs", c.Clips.MaxDuration, c.Clips.DefaultDuration)
	}
	if c.Clips.AnonTTL <= 0 {
		return errkind.New(errkind.KindInvalidInput, "anonTTL must be positive")
	}
	if c.Server.Listen == "" {
		return errkind.New(errkind.KindInvalidInput, "server listen address must not be empty")
	}
	switch strings.ToLower(c.LogLevel) {
	case "trace", "debug", "info", "warn", "error":
	default:
		return errkind.New(errkind.KindInvalidInput, "unknown log level %q", c.LogLevel)
	}
	return nil
}

// EnsureDirs creates the working directory tree.
func (c Config) EnsureDirs() error {
	for _, dir := range []string{c.DownloadsDir(), c.ClipsDir(), c.RegistryDir(), c.WorkDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errkind.Wrap(errkind.KindIO, err, fmt.Sprintf("create %s", dir))
		}
	}
	return nil
}
