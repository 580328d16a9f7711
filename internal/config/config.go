package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	DefaultBrowserUserAgent  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	DefaultDownloadUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Extractor ExtractorConfig `yaml:"extractor"`
	Browser   BrowserConfig   `yaml:"browser"`
	Download  DownloadConfig  `yaml:"download"`
	Session   SessionConfig   `yaml:"session"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string        `yaml:"host" envconfig:"SERVER_HOST"`
	Port         int           `yaml:"port" envconfig:"SERVER_PORT"`
	APIKey       string        `yaml:"api_key" envconfig:"API_KEY"`
	ReadTimeout  time.Duration `yaml:"read_timeout" envconfig:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT"`
	LogLevel     string        `yaml:"log_level" envconfig:"LOG_LEVEL"`
}

// ExtractorConfig holds metadata extraction configuration.
type ExtractorConfig struct {
	YTDLPPath     string        `yaml:"ytdlp_path" envconfig:"YTDLP_PATH"`
	Format        string        `yaml:"format" envconfig:"YTDLP_FORMAT"`
	Timeout       time.Duration `yaml:"timeout" envconfig:"EXTRACTOR_TIMEOUT"`
	BrowserHosts  []string      `yaml:"browser_hosts" envconfig:"BROWSER_HOSTS"`
	CookiesPath   string        `yaml:"cookies_path" envconfig:"COOKIES_PATH"`
	NativeYouTube bool          `yaml:"native_youtube" envconfig:"NATIVE_YOUTUBE"`
}

// BrowserConfig holds headless browser configuration.
type BrowserConfig struct {
	ExecPath          string        `yaml:"exec_path" envconfig:"CHROME_PATH"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout" envconfig:"BROWSER_NAVIGATION_TIMEOUT"`
	SettleDelay       time.Duration `yaml:"settle_delay" envconfig:"BROWSER_SETTLE_DELAY"`
	UserAgent         string        `yaml:"user_agent" envconfig:"BROWSER_USER_AGENT"`
}

// DownloadConfig holds download proxy configuration.
type DownloadConfig struct {
	HeaderTimeout time.Duration `yaml:"header_timeout" envconfig:"DOWNLOAD_HEADER_TIMEOUT"`
	ReadTimeout   time.Duration `yaml:"read_timeout" envconfig:"DOWNLOAD_READ_TIMEOUT"`
	ChunkSize     int           `yaml:"chunk_size" envconfig:"DOWNLOAD_CHUNK_SIZE"`
	UserAgent     string        `yaml:"user_agent" envconfig:"DOWNLOAD_USER_AGENT"`
}

// SessionConfig holds WebSocket session configuration.
type SessionConfig struct {
	QueueSize       int           `yaml:"queue_size" envconfig:"SESSION_QUEUE_SIZE"`
	PingInterval    time.Duration `yaml:"ping_interval" envconfig:"SESSION_PING_INTERVAL"`
	MaxMessageBytes int64         `yaml:"max_message_bytes" envconfig:"SESSION_MAX_MESSAGE_BYTES"`
}

// Default returns the built-in configuration. Values from the config file
// and then the environment are layered on top of it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8000,
			ReadTimeout: 30 * time.Second,
			// WriteTimeout stays zero so long downloads are not cut off.
			LogLevel: "info",
		},
		Extractor: ExtractorConfig{
			YTDLPPath:    "yt-dlp",
			Format:       "bestvideo+bestaudio/best",
			Timeout:      60 * time.Second,
			BrowserHosts: []string{"youtube.com", "youtu.be"},
			CookiesPath:  "youtube_cookies.json",
		},
		Browser: BrowserConfig{
			NavigationTimeout: 45 * time.Second,
			SettleDelay:       2 * time.Second,
			UserAgent:         DefaultBrowserUserAgent,
		},
		Download: DownloadConfig{
			HeaderTimeout: 30 * time.Second,
			ReadTimeout:   60 * time.Second,
			ChunkSize:     1 << 20,
			UserAgent:     DefaultDownloadUserAgent,
		},
		Session: SessionConfig{
			QueueSize:       8,
			PingInterval:    30 * time.Second,
			MaxMessageBytes: 8 << 10,
		},
	}
}

// Load reads configuration from file and environment variables.
// Environment variables override file values, which override defaults.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are usable.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Extractor.YTDLPPath == "" {
		return fmt.Errorf("YTDLP_PATH is required")
	}
	if c.Download.ChunkSize <= 0 {
		return fmt.Errorf("DOWNLOAD_CHUNK_SIZE must be positive")
	}
	if c.Session.QueueSize <= 0 {
		return fmt.Errorf("SESSION_QUEUE_SIZE must be positive")
	}
	for name, d := range map[string]time.Duration{
		"EXTRACTOR_TIMEOUT":          c.Extractor.Timeout,
		"BROWSER_NAVIGATION_TIMEOUT": c.Browser.NavigationTimeout,
		"BROWSER_SETTLE_DELAY":       c.Browser.SettleDelay,
		"DOWNLOAD_HEADER_TIMEOUT":    c.Download.HeaderTimeout,
		"DOWNLOAD_READ_TIMEOUT":      c.Download.ReadTimeout,
		"SESSION_PING_INTERVAL":      c.Session.PingInterval,
	} {
		if d < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
