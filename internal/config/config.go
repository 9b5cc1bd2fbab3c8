// Package config loads Sentinel configuration. Every knob has a default;
// a .env file and process environment variables override, in that order.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/verimem/sentinel/internal/logging"
)

// Defaults.
const (
	DefaultTargetBaseURL     = "http://localhost:8000"
	DefaultCheckInterval     = 60 * time.Second
	DefaultAlertThreshold    = 3
	DefaultDedupWindow       = 30 * time.Minute
	DefaultSummaryInterval   = 24 * time.Hour
	DefaultTelegramRateLimit = 20
	DefaultAPIPort           = 9090
	DefaultDBPath            = "/var/lib/sentinel/sentinel.db"
	DefaultFailureWindow     = 5 * time.Minute
)

// Config holds all Sentinel settings.
type Config struct {
	// Target service under watch
	TargetBaseURL string

	// Scheduler
	CheckInterval time.Duration
	EnabledChecks []string // empty means the built-in default set

	// Alerting
	AlertThresholdFailures int
	FailureWindow          time.Duration
	DedupWindow            time.Duration
	SummaryInterval        time.Duration

	// Chat sink
	TelegramBotToken  string
	TelegramChatID    string
	TelegramRateLimit int

	// Optional ticket sink
	GitHubToken string
	GitHubRepo  string

	// Outbound credential for the probed service
	APIKey Credential

	// Operational tags
	LogLevel    string
	Environment string

	// Persistence
	DBPath string

	// Query API
	APIPort int
}

// knownEnvironments are the admissible values for the ENVIRONMENT tag.
var knownEnvironments = map[string]bool{
	"development": true,
	"dev":         true,
	"staging":     true,
	"production":  true,
	"prod":        true,
	"test":        true,
}

// Load builds the configuration from defaults, an optional .env file, and
// environment variables. It never fails; invalid operational values are
// logged and replaced with defaults. Fatal conditions (like the db path
// allow-list) are enforced where the resource is opened.
func Load() *Config {
	// Missing .env is normal; env vars may still be set by the supervisor.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Debug().Err(err).Msg("No .env file loaded")
	}

	cfg := &Config{
		TargetBaseURL:          DefaultTargetBaseURL,
		CheckInterval:          DefaultCheckInterval,
		AlertThresholdFailures: DefaultAlertThreshold,
		FailureWindow:          DefaultFailureWindow,
		DedupWindow:            DefaultDedupWindow,
		SummaryInterval:        DefaultSummaryInterval,
		TelegramRateLimit:      DefaultTelegramRateLimit,
		LogLevel:               "info",
		Environment:            "production",
		DBPath:                 DefaultDBPath,
		APIPort:                DefaultAPIPort,
	}

	if v := getenv("SENTINEL_TARGET_BASE_URL", "TARGET_BASE_URL"); v != "" {
		cfg.TargetBaseURL = strings.TrimRight(v, "/")
	}
	if v := getenv("SENTINEL_CHECK_INTERVAL_SECONDS", "CHECK_INTERVAL_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.CheckInterval = time.Duration(secs) * time.Second
		} else {
			log.Warn().Str("value", v).Msg("Invalid check interval, using default")
		}
	}
	if v := getenv("SENTINEL_ALERT_THRESHOLD_FAILURES", "ALERT_THRESHOLD_FAILURES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AlertThresholdFailures = n
		} else {
			log.Warn().Str("value", v).Msg("Invalid alert threshold, using default")
		}
	}
	if v := getenv("SENTINEL_DEDUP_WINDOW_MINUTES", "DEDUP_WINDOW_MINUTES"); v != "" {
		if mins, err := strconv.Atoi(v); err == nil && mins > 0 {
			cfg.DedupWindow = time.Duration(mins) * time.Minute
		} else {
			log.Warn().Str("value", v).Msg("Invalid dedup window, using default")
		}
	}
	if v := getenv("SENTINEL_SUMMARY_INTERVAL_HOURS", "SUMMARY_INTERVAL_HOURS"); v != "" {
		if hours, err := strconv.Atoi(v); err == nil && hours > 0 {
			cfg.SummaryInterval = time.Duration(hours) * time.Hour
		} else {
			log.Warn().Str("value", v).Msg("Invalid summary interval, using default")
		}
	}
	if v := getenv("SENTINEL_ENABLED_CHECKS", "ENABLED_CHECKS"); v != "" {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				cfg.EnabledChecks = append(cfg.EnabledChecks, id)
			}
		}
	}

	cfg.TelegramBotToken = getenv("SENTINEL_TELEGRAM_BOT_TOKEN", "TELEGRAM_BOT_TOKEN")
	cfg.TelegramChatID = getenv("SENTINEL_TELEGRAM_CHAT_ID", "TELEGRAM_CHAT_ID")
	if v := getenv("SENTINEL_TELEGRAM_RATE_LIMIT", "TELEGRAM_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.TelegramRateLimit = n
		} else {
			log.Warn().Str("value", v).Msg("Invalid telegram rate limit, using default")
		}
	}

	cfg.GitHubToken = getenv("SENTINEL_GITHUB_TOKEN", "GITHUB_TOKEN")
	cfg.GitHubRepo = getenv("SENTINEL_GITHUB_REPO", "GITHUB_REPO")

	// The credential may arrive under either of two historical names.
	rawKey := getenv("SENTINEL_API_KEY", "API_KEY_MCP")
	cred, err := ParseCredential(rawKey)
	if err != nil {
		// Logged once here; downstream code sees "no credential".
		log.Warn().Err(err).Msg("Invalid API credential format, proceeding without authentication")
	}
	cfg.APIKey = cred

	if v := getenv("SENTINEL_LOG_LEVEL", "LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := getenv("SENTINEL_ENVIRONMENT", "ENVIRONMENT"); v != "" {
		cfg.Environment = v
	}
	if v := getenv("SENTINEL_DB_PATH", "DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("SENTINEL_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 && port < 65536 {
			cfg.APIPort = port
		} else {
			log.Warn().Str("value", v).Msg("Invalid API port, using default")
		}
	}

	return cfg
}

// ValidateOperationalTags checks the log-level and environment tags.
// Invalid values are warnings, not fatal; the engine keeps running with
// defaults so a typo in deployment config cannot take monitoring down.
func (c *Config) ValidateOperationalTags() {
	if !logging.ValidLevel(c.LogLevel) {
		log.Warn().Str("log_level", c.LogLevel).Msg("Unknown log level, falling back to info")
		c.LogLevel = "info"
	}
	if !knownEnvironments[strings.ToLower(strings.TrimSpace(c.Environment))] {
		log.Warn().Str("environment", c.Environment).Msg("Unknown environment tag")
	}
}

// TelegramConfigured reports whether the chat sink can be constructed.
func (c *Config) TelegramConfigured() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != ""
}

// TicketsConfigured reports whether the ticket sink can be constructed.
func (c *Config) TicketsConfigured() bool {
	return c.GitHubToken != "" && c.GitHubRepo != ""
}

func getenv(names ...string) string {
	for _, name := range names {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v
		}
	}
	return ""
}
