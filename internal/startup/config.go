package startup

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"instantsaver/internal/logging"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
)

// Config holds all application configuration. It is built once by
// LoadConfig and treated as read-only afterwards.
type Config struct {
	Port            string `env:"PORT" env-default:"3001"`
	MetricsPort     string `env:"METRICS_PORT" env-default:"9090"`
	MetricsEnabled  bool   `env:"METRICS_ENABLED" env-default:"true"`
	LogHealthChecks bool   `env:"LOG_HEALTH_CHECKS" env-default:"true"`

	YtDlpPath  string `env:"YTDLP_PATH" env-default:"yt-dlp"`
	FFmpegPath string `env:"FFMPEG_PATH" env-default:"ffmpeg"`

	InstagramCookies string `env:"INSTAGRAM_COOKIES"`
	CookiesDir       string `env:"COOKIES_DIR"`

	ManifestTimeout  time.Duration `env:"MANIFEST_TIMEOUT" env-default:"45s"`
	DirectURLTimeout time.Duration `env:"DIRECT_URL_TIMEOUT" env-default:"20s"`
	ManifestMaxBytes int64         `env:"MANIFEST_MAX_BYTES" env-default:"16777216"`
	ProfileTimeout   time.Duration `env:"PROFILE_TIMEOUT" env-default:"10s"`

	StreamMaxDuration  time.Duration `env:"STREAM_MAX_DURATION" env-default:"30m"`
	StreamIdleTimeout  time.Duration `env:"STREAM_IDLE_TIMEOUT" env-default:"60s"`
	StreamWriteTimeout time.Duration `env:"STREAM_WRITE_TIMEOUT" env-default:"30s"`

	AllowSilentPreview bool `env:"ALLOW_SILENT_PREVIEW" env-default:"false"`
	ExtractorWorkers   int  `env:"EXTRACTOR_WORKERS" env-default:"0"`

	RateLimitRPS   float64  `env:"RATE_LIMIT_RPS" env-default:"10"`
	RateLimitBurst int      `env:"RATE_LIMIT_BURST" env-default:"20"`
	CORSOrigins    []string `env:"CORS_ORIGINS" env-default:"*" env-separator:","`

	// Derived at load time
	CookiesPath string
	Extractor   ToolStatus
	FFmpeg      ToolStatus
}

// ErrInvalidConfig is returned when a loaded value is out of range.
var ErrInvalidConfig = errors.New("invalid configuration")

// LoadConfig loads and validates configuration from environment variables,
// checks the external binaries and materializes the cookie file.
func LoadConfig() (*Config, error) {
	logHeader()
	section("CONFIGURATION")

	if err := godotenv.Load(); err == nil {
		logging.Info("  [OK] Loaded .env file")
	}

	config, err := ReadConfig()
	if err != nil {
		return nil, err
	}
	logConfig(config)

	section("EXTERNAL TOOLS")

	config.Extractor = CheckTool(config.YtDlpPath, "--version")
	logToolStatus("yt-dlp", config.Extractor)
	config.FFmpeg = CheckTool(config.FFmpegPath, "-version")
	logToolStatus("ffmpeg", config.FFmpeg)

	if config.InstagramCookies != "" {
		path, err := WriteCookies(afero.NewOsFs(), config.CookiesDir, config.InstagramCookies)
		if err != nil {
			return nil, fmt.Errorf("failed to write cookie file: %w", err)
		}
		config.CookiesPath = path
		logging.Info("  [OK] Instagram cookies written to %s", path)
	} else {
		logging.Info("  Instagram cookies: not configured (anonymous requests)")
	}

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Resolve:   %s", enabledString(config.Extractor.Present))
	logging.Info("    Merging:   %s", enabledString(config.FFmpeg.Present))
	logging.Info("    Metrics:   %s", enabledString(config.MetricsEnabled))

	return config, nil
}

// ReadConfig reads the environment into a Config without any side effects
// beyond path expansion. Exposed for the CLI and tests.
func ReadConfig() (*Config, error) {
	var config Config
	if err := cleanenv.ReadEnv(&config); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	var err error
	if config.YtDlpPath, err = homedir.Expand(config.YtDlpPath); err != nil {
		return nil, fmt.Errorf("failed to expand YTDLP_PATH: %w", err)
	}
	if config.FFmpegPath, err = homedir.Expand(config.FFmpegPath); err != nil {
		return nil, fmt.Errorf("failed to expand FFMPEG_PATH: %w", err)
	}
	if config.CookiesDir == "" {
		config.CookiesDir = os.TempDir()
	}
	if config.CookiesDir, err = homedir.Expand(config.CookiesDir); err != nil {
		return nil, fmt.Errorf("failed to expand COOKIES_DIR: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) validate() error {
	switch {
	case c.ManifestTimeout <= 0:
		return fmt.Errorf("%w: MANIFEST_TIMEOUT must be positive", ErrInvalidConfig)
	case c.DirectURLTimeout <= 0:
		return fmt.Errorf("%w: DIRECT_URL_TIMEOUT must be positive", ErrInvalidConfig)
	case c.ManifestMaxBytes <= 0:
		return fmt.Errorf("%w: MANIFEST_MAX_BYTES must be positive", ErrInvalidConfig)
	case c.StreamMaxDuration <= 0:
		return fmt.Errorf("%w: STREAM_MAX_DURATION must be positive", ErrInvalidConfig)
	case c.RateLimitRPS < 0 || c.RateLimitBurst < 0:
		return fmt.Errorf("%w: rate limits must not be negative", ErrInvalidConfig)
	}
	return nil
}

func logConfig(c *Config) {
	logging.Info("  PORT:                  %s", c.Port)
	logging.Info("  METRICS_PORT:          %s", c.MetricsPort)
	logging.Info("  METRICS_ENABLED:       %v", c.MetricsEnabled)
	logging.Info("  YTDLP_PATH:            %s", c.YtDlpPath)
	logging.Info("  FFMPEG_PATH:           %s", c.FFmpegPath)
	logging.Info("  MANIFEST_TIMEOUT:      %s", c.ManifestTimeout)
	logging.Info("  DIRECT_URL_TIMEOUT:    %s", c.DirectURLTimeout)
	logging.Info("  MANIFEST_MAX_BYTES:    %d", c.ManifestMaxBytes)
	logging.Info("  PROFILE_TIMEOUT:       %s", c.ProfileTimeout)
	logging.Info("  STREAM_MAX_DURATION:   %s", c.StreamMaxDuration)
	logging.Info("  STREAM_IDLE_TIMEOUT:   %s", c.StreamIdleTimeout)
	logging.Info("  STREAM_WRITE_TIMEOUT:  %s", c.StreamWriteTimeout)
	logging.Info("  ALLOW_SILENT_PREVIEW:  %v", c.AllowSilentPreview)
	logging.Info("  EXTRACTOR_WORKERS:     %d (0 = auto)", c.ExtractorWorkers)
	logging.Info("  RATE_LIMIT:            %.1f rps, burst %d", c.RateLimitRPS, c.RateLimitBurst)
	logging.Info("  CORS_ORIGINS:          %s", strings.Join(c.CORSOrigins, ","))
	logging.Info("  LOG_HEALTH_CHECKS:     %v", c.LogHealthChecks)
	logging.Info("  LOG_LEVEL:             %s", logging.GetLevel())
}
