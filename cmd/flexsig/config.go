package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// Config is the process-wide configuration. It is built once at startup from
// defaults, an optional TOML file and environment overrides, in that order.
type Config struct {
	Port int `toml:"port" env:"PORT"`

	Log    LogConfig    `toml:"log" envPrefix:"FLEXSIG_LOG_"`
	Fetch  FetchConfig  `toml:"fetch" envPrefix:"FLEXSIG_FETCH_"`
	Ladder LadderConfig `toml:"ladder" envPrefix:"FLEXSIG_LADDER_"`
	Zone   ZoneConfig   `toml:"zone" envPrefix:"FLEXSIG_ZONE_"`
	Assets AssetsConfig `toml:"assets" envPrefix:"FLEXSIG_ASSETS_"`
	Layout LayoutConfig `toml:"layout" envPrefix:"FLEXSIG_LAYOUT_"`
	Avatar AvatarConfig `toml:"avatar" envPrefix:"FLEXSIG_AVATAR_"`
}

type LogConfig struct {
	// Level is one of trace, debug, info, warn, error, fail.
	Level string `toml:"level" env:"LEVEL"`
	// File enables a rotating log file instead of stderr.
	File      string `toml:"file" env:"FILE"`
	MaxSizeMB int    `toml:"max_size_mb" env:"MAX_SIZE_MB"`
}

type FetchConfig struct {
	Timeout time.Duration `toml:"timeout" env:"TIMEOUT"`
	// RetryMax is the number of extra attempts on 429, 5xx and transport errors.
	RetryMax int `toml:"retry_max" env:"RETRY_MAX"`
	// Backoff is "exponential" or "fixed".
	Backoff      string        `toml:"backoff" env:"BACKOFF"`
	RetryWaitMin time.Duration `toml:"retry_wait_min" env:"RETRY_WAIT_MIN"`
	RetryWaitMax time.Duration `toml:"retry_wait_max" env:"RETRY_WAIT_MAX"`
	UserAgent    string        `toml:"user_agent" env:"USER_AGENT"`
	MaxBodyBytes int64         `toml:"max_body_bytes" env:"MAX_BODY_BYTES"`
	// Browser switches the ladder fetch to a headless Chrome page load.
	Browser bool `toml:"browser" env:"BROWSER"`
}

type LadderConfig struct {
	URL      string `toml:"url" env:"URL"`
	Identity string `toml:"identity" env:"IDENTITY"`
	Title    string `toml:"title" env:"TITLE"`
	// Sentinel is drawn for fields the page does not publish.
	Sentinel string `toml:"sentinel" env:"SENTINEL"`
	// ErrorSentinel replaces every field when the fetch fails.
	ErrorSentinel       string `toml:"error_sentinel" env:"ERROR_SENTINEL"`
	Window              int    `toml:"window" env:"WINDOW"`
	MinExperienceDigits int    `toml:"min_experience_digits" env:"MIN_EXPERIENCE_DIGITS"`
}

type ZoneConfig struct {
	URL           string `toml:"url" env:"URL"`
	Title         string `toml:"title" env:"TITLE"`
	Sentinel      string `toml:"sentinel" env:"SENTINEL"`
	ErrorSentinel string `toml:"error_sentinel" env:"ERROR_SENTINEL"`
}

type AssetsConfig struct {
	Background string  `toml:"background" env:"BACKGROUND"`
	Font       string  `toml:"font" env:"FONT"`
	FontSize   float64 `toml:"font_size" env:"FONT_SIZE"`
}

type LayoutConfig struct {
	// Width and Height cover-scale the background when both are set.
	// Zero keeps the background's own size.
	Width       int  `toml:"width" env:"WIDTH"`
	Height      int  `toml:"height" env:"HEIGHT"`
	OriginX     int  `toml:"origin_x" env:"ORIGIN_X"`
	OriginY     int  `toml:"origin_y" env:"ORIGIN_Y"`
	TitleGap    int  `toml:"title_gap" env:"TITLE_GAP"`
	Pitch       int  `toml:"pitch" env:"PITCH"`
	GroupDigits bool `toml:"group_digits" env:"GROUP_DIGITS"`
}

type AvatarConfig struct {
	// FrameDelay is in hundredths of a second.
	FrameDelay int `toml:"frame_delay" env:"FRAME_DELAY"`
}

func DefaultConfig() Config {
	return Config{
		Port: 5000,
		Log: LogConfig{
			Level:     "info",
			MaxSizeMB: 10,
		},
		Fetch: FetchConfig{
			Timeout:      15 * time.Second,
			RetryMax:     2,
			Backoff:      "exponential",
			RetryWaitMin: 500 * time.Millisecond,
			RetryWaitMax: 4 * time.Second,
			UserAgent:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36",
			MaxBodyBytes: 2 << 20,
		},
		Ladder: LadderConfig{
			URL:                 "https://www.d2ladder.net/character/GUY_T",
			Identity:            "GUY_T",
			Title:               "LADDER FLEX",
			Sentinel:            "N/A",
			ErrorSentinel:       "Error",
			Window:              6,
			MinExperienceDigits: 4,
		},
		Zone: ZoneConfig{
			URL:           "https://d2emu.com/tz",
			Title:         "TERROR ZONE",
			Sentinel:      "UNKNOWN",
			ErrorSentinel: "Error",
		},
		Assets: AssetsConfig{
			Background: "assets/background.png",
			Font:       "assets/font.ttf",
			FontSize:   13,
		},
		Layout: LayoutConfig{
			OriginX:     10,
			OriginY:     8,
			TitleGap:    24,
			Pitch:       17,
			GroupDigits: true,
		},
		Avatar: AvatarConfig{
			FrameDelay: 200,
		},
	}
}

// LoadConfig builds the configuration. path may be empty, in which case only
// defaults and the environment are used.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port out of range: %d", c.Port))
	}
	if c.Ladder.URL == "" {
		errs = append(errs, errors.New("ladder.url is empty"))
	}
	if c.Zone.URL == "" {
		errs = append(errs, errors.New("zone.url is empty"))
	}
	if c.Fetch.Timeout <= 0 {
		errs = append(errs, errors.New("fetch.timeout must be positive"))
	}
	if c.Fetch.RetryMax < 0 {
		errs = append(errs, errors.New("fetch.retry_max must not be negative"))
	}
	switch c.Fetch.Backoff {
	case "exponential", "fixed":
	default:
		errs = append(errs, fmt.Errorf("unknown fetch.backoff %q", c.Fetch.Backoff))
	}
	if c.Ladder.Window <= 0 {
		errs = append(errs, errors.New("ladder.window must be positive"))
	}
	if c.Avatar.FrameDelay <= 0 {
		errs = append(errs, errors.New("avatar.frame_delay must be positive"))
	}
	return errors.Join(errs...)
}
