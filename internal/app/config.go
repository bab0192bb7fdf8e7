package app

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

// Duration accepts "10m" style strings in yaml, which yaml.v2 cannot decode
// into a bare time.Duration.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// ServerConfig defines how the chat backend runs. Values come from the yaml
// config file when one is given, with MEDIACHAT_* environment variables
// layered on top.
type ServerConfig struct {
	Addr             string        `yaml:"addr"`
	UploadDir        string        `yaml:"upload_dir"`
	VideoDir         string        `yaml:"video_dir"`
	DBPath           string        `yaml:"db_path"`
	MaxUploadBytes   int64         `yaml:"max_upload_bytes"`
	FFmpegPath       string        `yaml:"ffmpeg_path"`
	TranscodeWorkers int64         `yaml:"transcode_workers"`
	TranscodeTimeout Duration      `yaml:"transcode_timeout"`
	AllowedOrigin    string        `yaml:"allowed_origin"`
	LogLevel         string        `yaml:"log_level"`
	LogJSON          bool          `yaml:"log_json"`
}

// ClientConfig defines the parameters the terminal client needs.
type ClientConfig struct {
	ServerURL string
	Username  string
}

// DefaultServerConfig returns the config used when no file or overrides are
// present.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:             ":5000",
		UploadDir:        "uploads",
		VideoDir:         "compressed_videos",
		DBPath:           "mediachat.db",
		MaxUploadBytes:   100 << 20,
		TranscodeWorkers: 2,
		TranscodeTimeout: Duration(10 * time.Minute),
		AllowedOrigin:    "*",
		LogLevel:         "info",
	}
}

// LoadServerConfig reads the yaml file at path (skipped when empty) over
// the defaults, then applies environment overrides.
func LoadServerConfig(path string) (ServerConfig, error) {
	cfg := DefaultServerConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (cfg *ServerConfig) applyEnv() {
	cfg.Addr = getEnv("MEDIACHAT_ADDR", cfg.Addr)
	cfg.UploadDir = getEnv("MEDIACHAT_UPLOAD_DIR", cfg.UploadDir)
	cfg.VideoDir = getEnv("MEDIACHAT_VIDEO_DIR", cfg.VideoDir)
	cfg.DBPath = getEnv("MEDIACHAT_DB_PATH", cfg.DBPath)
	cfg.FFmpegPath = getEnv("MEDIACHAT_FFMPEG", cfg.FFmpegPath)
	cfg.AllowedOrigin = getEnv("MEDIACHAT_ORIGIN", cfg.AllowedOrigin)
	cfg.LogLevel = getEnv("MEDIACHAT_LOG_LEVEL", cfg.LogLevel)
	if v := os.Getenv("MEDIACHAT_MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.MaxUploadBytes = n
		}
	}
	if v := os.Getenv("MEDIACHAT_TRANSCODE_WORKERS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.TranscodeWorkers = n
		}
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
