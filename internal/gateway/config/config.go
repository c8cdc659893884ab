package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultSiteURL       = "https://www.pokemon-card.com/deck/"
	defaultS3Endpoint    = "storage.googleapis.com"
	defaultPublicBaseURL = "https://storage.googleapis.com"
	d1EndpointFormat     = "https://api.cloudflare.com/client/v4/accounts/%s/d1/database/%s/query"
)

var defaultAllowedOrigins = []string{
	"http://localhost:8788",
	"https://artora.pages.dev",
	"https://develop.artora.pages.dev",
}

type Config struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string

	// PushToken is the shared secret carried in queue pushes.
	PushToken          string
	DirectRequireToken bool

	FirebaseProjectID string

	Artifact ArtifactConfig
	Record   RecordConfig
	Browser  BrowserConfig
	Deck     DeckConfig
}

type ArtifactConfig struct {
	Endpoint      string
	Region        string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	PublicBaseURL string
	// LocalDir stores artifacts on disk when S3 is not configured.
	LocalDir string
}

// CanUseS3 reports whether enough is configured to reach the object store.
func (c ArtifactConfig) CanUseS3() bool {
	return strings.TrimSpace(c.Endpoint) != "" &&
		strings.TrimSpace(c.AccessKey) != "" &&
		strings.TrimSpace(c.SecretKey) != "" &&
		strings.TrimSpace(c.Bucket) != ""
}

type RecordConfig struct {
	AccountID  string
	APIToken   string
	DatabaseID string
	// DSN selects the Postgres backend instead of D1.
	DSN string
}

func (c RecordConfig) CanUseD1() bool {
	return strings.TrimSpace(c.AccountID) != "" &&
		strings.TrimSpace(c.APIToken) != "" &&
		strings.TrimSpace(c.DatabaseID) != ""
}

type BrowserConfig struct {
	Bin            string
	Headless       bool
	ViewportWidth  int
	ViewportHeight int
}

type DeckConfig struct {
	SiteURL            string
	SettleDelay        time.Duration
	NavigationTimeout  time.Duration
	VisibleTimeout     time.Duration
	PopupTimeout       time.Duration
	ArtifactTimeout    time.Duration
	AcquisitionTimeout time.Duration
	NotFoundSelector   string
	MaxSessions        int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "local"
	}
	local := IsLocal(env)

	port := firstNonEmpty(strings.TrimSpace(os.Getenv("PORT")), "8080")
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}

	cfg := &Config{
		Port:               port,
		Env:                env,
		LogLevel:           firstNonEmpty(strings.TrimSpace(os.Getenv("LOG_LEVEL")), "info"),
		AllowedOrigins:     splitList(os.Getenv("ALLOWED_ORIGINS"), defaultAllowedOrigins),
		PushToken:          strings.TrimSpace(os.Getenv("API_TOKEN")),
		DirectRequireToken: envBool("DIRECT_REQUIRE_TOKEN", !local),
		FirebaseProjectID:  strings.TrimSpace(os.Getenv("FIREBASE_PROJECT_ID")),
		Artifact:           loadArtifactConfig(),
		Record: RecordConfig{
			AccountID:  strings.TrimSpace(os.Getenv("CLOUDFLARE_ACCOUNT_ID")),
			APIToken:   strings.TrimSpace(os.Getenv("CLOUDFLARE_API_TOKEN")),
			DatabaseID: strings.TrimSpace(os.Getenv("D1_DATABASE_ID")),
			DSN:        strings.TrimSpace(os.Getenv("RECORD_STORE_DSN")),
		},
		Browser: BrowserConfig{
			Bin:            strings.TrimSpace(os.Getenv("BROWSER_BIN")),
			Headless:       envBool("BROWSER_HEADLESS", true),
			ViewportWidth:  envInt("BROWSER_VIEWPORT_WIDTH", 1280),
			ViewportHeight: envInt("BROWSER_VIEWPORT_HEIGHT", 1024),
		},
		Deck: loadDeckConfig(),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadArtifactConfig() ArtifactConfig {
	bucket := strings.TrimSpace(os.Getenv("BUCKET_NAME"))
	return ArtifactConfig{
		Endpoint:      firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_ENDPOINT")), defaultS3Endpoint),
		Region:        firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_REGION")), "auto"),
		AccessKey:     strings.TrimSpace(os.Getenv("ARTIFACT_S3_ACCESS_KEY")),
		SecretKey:     strings.TrimSpace(os.Getenv("ARTIFACT_S3_SECRET_KEY")),
		Bucket:        bucket,
		UseSSL:        envBool("ARTIFACT_S3_USE_SSL", true),
		PublicBaseURL: resolvePublicBaseURL(bucket),
		LocalDir:      strings.TrimSpace(os.Getenv("ARTIFACT_LOCAL_DIR")),
	}
}

func resolvePublicBaseURL(bucket string) string {
	if v := strings.TrimSpace(os.Getenv("ARTIFACT_PUBLIC_BASE_URL")); v != "" {
		return strings.TrimSuffix(v, "/")
	}
	if bucket == "" {
		return ""
	}
	return defaultPublicBaseURL + "/" + bucket
}

func loadDeckConfig() DeckConfig {
	return DeckConfig{
		SiteURL:            firstNonEmpty(strings.TrimSpace(os.Getenv("DECK_SITE_URL")), defaultSiteURL),
		SettleDelay:        envDuration("DECK_SETTLE_DELAY", 300*time.Millisecond),
		NavigationTimeout:  envDuration("DECK_NAVIGATION_TIMEOUT", 30*time.Second),
		VisibleTimeout:     envDuration("DECK_VISIBLE_TIMEOUT", 30*time.Second),
		PopupTimeout:       envDuration("DECK_POPUP_TIMEOUT", 15*time.Second),
		ArtifactTimeout:    envDuration("DECK_ARTIFACT_TIMEOUT", 10*time.Second),
		AcquisitionTimeout: envDuration("DECK_ACQUISITION_TIMEOUT", 2*time.Minute),
		NotFoundSelector:   strings.TrimSpace(os.Getenv("DECK_NOT_FOUND_SELECTOR")),
		MaxSessions:        envInt("MAX_SESSIONS", 2),
	}
}

// D1Endpoint returns the query endpoint for the configured D1 database.
func (c RecordConfig) D1Endpoint() string {
	return fmt.Sprintf(d1EndpointFormat, c.AccountID, c.DatabaseID)
}

func IsLocal(env string) bool {
	return strings.EqualFold(strings.TrimSpace(env), "local")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func splitList(raw string, fallback []string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return append([]string(nil), fallback...)
	}
	out := make([]string, 0, 4)
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func envBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
