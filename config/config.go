package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Fetch     FetchConfig
	Walker    WalkerConfig
	Output    OutputConfig
	Store     StoreConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser sessions.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// MaxSessions caps how many browser sessions may be alive at once.
	MaxSessions int // default: 2

	// Proxy is passed to Chromium as --proxy-server when set.
	Proxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// WindowWidth and WindowHeight set both the window and the viewport.
	WindowWidth  int // default: 1200
	WindowHeight int // default: 720

	// UserAgents is the rotation list; one is picked at random per session.
	UserAgents []string

	// BlockedResourceTypes lists resource types to block.
	// default: ["Image", "Stylesheet", "Font", "Media"]
	BlockedResourceTypes []string
}

// FetchConfig controls page retrieval and the retry policy.
type FetchConfig struct {
	// Mode selects the fetch engine: "browser" or "http".
	Mode string // default: "browser"

	// BaseURL is the site root that listing ids and relative links resolve against.
	BaseURL string // default: "https://www.seek.com.au"

	// MaxAttempts is the retry cap per page.
	MaxAttempts int // default: 3

	// BackoffBase is multiplied by 2^attempt between attempts.
	BackoffBase time.Duration // default: 1s

	// ForbiddenBackoffBase replaces BackoffBase after an HTTP 403.
	ForbiddenBackoffBase time.Duration // default: 1s

	// NavigationTimeout bounds a single navigation.
	NavigationTimeout time.Duration // default: 45s

	// BodyWait bounds the wait for the document body after navigation.
	BodyWait time.Duration // default: 30s

	// HumanDelayMin/Max bound the random pause before each attempt. The
	// browser engine also settles for a pause in this range after navigation.
	HumanDelayMin time.Duration // default: 2s
	HumanDelayMax time.Duration // default: 5s

	// HTTPTimeout bounds a single request in http mode.
	HTTPTimeout time.Duration // default: 30s

	// DescriptionFormat is "text" or "markdown".
	DescriptionFormat string // default: "text"

	// CategoryRules optionally points at a YAML rule table overriding the built-in one.
	CategoryRules string
}

// WalkerConfig controls multi-page traversal.
type WalkerConfig struct {
	// PageDelayMin/Max bound the random pause between result pages.
	PageDelayMin time.Duration // default: 4s
	PageDelayMax time.Duration // default: 8s
}

// OutputConfig controls JSON result files.
type OutputConfig struct {
	// Dir is created at startup when non-empty.
	Dir string // default: "results"

	// SaveByDefault writes a file for every request unless the request says otherwise.
	SaveByDefault bool // default: false
}

// StoreConfig controls the optional SQLite listing history.
type StoreConfig struct {
	// Path of the SQLite database; empty disables the store.
	Path string
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: false

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 2

	// Burst is the maximum burst size per API key.
	Burst int // default: 5

	// CardsCost is how many tokens a card search draws.
	CardsCost int // default: 3
}

// CacheConfig controls the listing detail cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached records.
	MaxEntries int // default: 1000
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// DefaultUserAgents is the built-in user agent rotation.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:133.0) Gecko/20100101 Firefox/133.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_7_1) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.1 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
}

// Load reads configuration from environment variables with sane defaults.
// A .env file in the working directory is loaded first when present;
// variables already set in the environment win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Host: envOr("SEEKJOBS_HOST", "0.0.0.0"),
			Port: envIntOr("SEEKJOBS_PORT", 8080),
			Mode: envOr("SEEKJOBS_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:     envBoolOr("SEEKJOBS_HEADLESS", true),
			MaxSessions:  envIntOr("SEEKJOBS_MAX_SESSIONS", 2),
			Proxy:        os.Getenv("SEEKJOBS_PROXY"),
			NoSandbox:    envBoolOr("SEEKJOBS_NO_SANDBOX", false),
			BrowserBin:   os.Getenv("SEEKJOBS_BROWSER_BIN"),
			WindowWidth:  envIntOr("SEEKJOBS_WINDOW_WIDTH", 1200),
			WindowHeight: envIntOr("SEEKJOBS_WINDOW_HEIGHT", 720),
			UserAgents:   envListOr("SEEKJOBS_USER_AGENTS", "|", DefaultUserAgents),
			BlockedResourceTypes: envListOr("SEEKJOBS_BLOCKED_RESOURCES", ",", []string{
				"Image", "Stylesheet", "Font", "Media",
			}),
		},
		Fetch: FetchConfig{
			Mode:                 envOr("SEEKJOBS_FETCH_MODE", "browser"),
			BaseURL:              strings.TrimRight(envOr("SEEKJOBS_BASE_URL", "https://www.seek.com.au"), "/"),
			MaxAttempts:          envIntOr("SEEKJOBS_MAX_ATTEMPTS", 3),
			BackoffBase:          envDurationOr("SEEKJOBS_BACKOFF_BASE", time.Second),
			ForbiddenBackoffBase: envDurationOr("SEEKJOBS_FORBIDDEN_BACKOFF_BASE", time.Second),
			NavigationTimeout:    envDurationOr("SEEKJOBS_NAV_TIMEOUT", 45*time.Second),
			BodyWait:             envDurationOr("SEEKJOBS_BODY_WAIT", 30*time.Second),
			HumanDelayMin:        envDurationOr("SEEKJOBS_HUMAN_DELAY_MIN", 2*time.Second),
			HumanDelayMax:        envDurationOr("SEEKJOBS_HUMAN_DELAY_MAX", 5*time.Second),
			HTTPTimeout:          envDurationOr("SEEKJOBS_HTTP_TIMEOUT", 30*time.Second),
			DescriptionFormat:    envOr("SEEKJOBS_DESCRIPTION_FORMAT", "text"),
			CategoryRules:        os.Getenv("SEEKJOBS_CATEGORY_RULES"),
		},
		Walker: WalkerConfig{
			PageDelayMin: envDurationOr("SEEKJOBS_PAGE_DELAY_MIN", 4*time.Second),
			PageDelayMax: envDurationOr("SEEKJOBS_PAGE_DELAY_MAX", 8*time.Second),
		},
		Output: OutputConfig{
			Dir:           envOr("SEEKJOBS_OUTPUT_DIR", "results"),
			SaveByDefault: envBoolOr("SEEKJOBS_SAVE_RESULTS", false),
		},
		Store: StoreConfig{
			Path: os.Getenv("SEEKJOBS_DB_PATH"),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("SEEKJOBS_AUTH_ENABLED", false),
			APIKeys: envListOr("SEEKJOBS_API_KEYS", ",", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("SEEKJOBS_RATE_RPS", 2.0),
			Burst:             envIntOr("SEEKJOBS_RATE_BURST", 5),
			CardsCost:         envIntOr("SEEKJOBS_RATE_CARDS_COST", 3),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("SEEKJOBS_CACHE_MAX_ENTRIES", 1000),
		},
		Log: LogConfig{
			Level:  envOr("SEEKJOBS_LOG_LEVEL", "info"),
			Format: envOr("SEEKJOBS_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// envListOr splits on sep. User agents contain commas, so they use "|".
func envListOr(key, sep string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, sep)
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
