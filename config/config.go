package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type ConfigStruct struct {
	Options   Options
	Extractor ExtractorConfig
	TikTok    TikTokConfig
	Database  DatabaseConfig
	Sentry    SentryConfig
}

type Options struct {
	Port     string
	TempDir  string
	LogLevel string
}

type ExtractorConfig struct {
	Binary          string
	MetadataTimeout time.Duration // zero means no deadline
	DownloadTimeout time.Duration // zero means no deadline
}

type TikTokConfig struct {
	// Session cookie for the authenticated keyword search. Optional.
	Cookie     string
	TikwmURL   string
	UserAgent  string
	ExpandHops int
}

type DatabaseConfig struct {
	Path string
}

type SentryConfig struct {
	DSN     string
	Release string
}

// MinCookieLength is the shortest cookie accepted for keyword search. Anything
// shorter is almost certainly a partial copy of the browser cookie header.
const MinCookieLength = 50

func (t *TikTokConfig) HasCookie() bool {
	return t.Cookie != ""
}

func (t *TikTokConfig) CookieLooksValid() bool {
	return len(t.Cookie) >= MinCookieLength
}

func (s *SentryConfig) IsEnabled() bool {
	return s.DSN != ""
}

var Config *ConfigStruct

func NewConfig() {
	config := &ConfigStruct{
		Options: Options{
			Port:     getPort(),
			TempDir:  getTempDir(),
			LogLevel: getLogLevel(),
		},
		Extractor: ExtractorConfig{
			Binary:          getExtractorBinary(),
			MetadataTimeout: getSeconds("EXTRACTOR_TIMEOUT_SECONDS", 120, 3600),
			DownloadTimeout: getSeconds("DOWNLOAD_TIMEOUT_SECONDS", 600, 7200),
		},
		TikTok: TikTokConfig{
			Cookie:     strings.TrimSpace(os.Getenv("TIKTOK_COOKIE")),
			TikwmURL:   getTikwmURL(),
			UserAgent:  DefaultUserAgent,
			ExpandHops: 10,
		},
		Database: DatabaseConfig{
			Path: getDatabasePath(),
		},
		Sentry: SentryConfig{
			DSN:     os.Getenv("SENTRY_DSN"),
			Release: os.Getenv("RELEASE"),
		},
	}

	Config = config
}

// DefaultUserAgent is sent on every outbound request that hits tiktok.com
// directly. TikTok serves a stripped page to unknown agents.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func getPort() string {
	port := os.Getenv("PORT")
	if port == "" {
		return "8080"
	}
	return port
}

func getTempDir() string {
	dir := os.Getenv("TEMP_DIR")
	if dir == "" {
		return filepath.Join(os.TempDir(), "tokgrab")
	}
	return dir
}

func getLogLevel() string {
	level := strings.ToLower(os.Getenv("LOG_LEVEL"))
	switch level {
	case "trace", "debug", "info", "warn", "error":
		return level
	default:
		return "info"
	}
}

func getExtractorBinary() string {
	bin := os.Getenv("YTDLP_PATH")
	if bin == "" {
		return "yt-dlp"
	}
	return bin
}

func getTikwmURL() string {
	base := os.Getenv("TIKWM_BASE_URL")
	if base == "" {
		return "https://www.tikwm.com"
	}
	return strings.TrimRight(base, "/")
}

func getDatabasePath() string {
	path := os.Getenv("DB_PATH")
	if path == "" {
		return "./data/tokgrab.db"
	}
	return path
}

// getSeconds reads a duration in whole seconds. Zero is allowed and disables
// the deadline; garbage and negatives fall back to the default.
func getSeconds(key string, def, max int) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return time.Duration(def) * time.Second
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs < 0 {
		return time.Duration(def) * time.Second
	}
	if secs > max {
		return time.Duration(max) * time.Second
	}
	return time.Duration(secs) * time.Second
}
