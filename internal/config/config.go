package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/kozaktomas/facewatch/internal/facematch"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Database  DatabaseConfig
	Embedding EmbeddingConfig
	Match     MatchConfig
	Worker    WorkerConfig
	Storage   StorageConfig
	Alert     AlertConfig
	Web       WebConfig
	Chat      ChatConfig
	Log       LogConfig
}

type DatabaseConfig struct {
	Driver       string // postgres (default) or mysql
	URL          string // connection URL / DSN
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type EmbeddingConfig struct {
	URL           string        // DeepFace API base URL, defaults to http://localhost:5005
	Timeout       time.Duration // bound for one extraction including detector fallbacks
	MaxImageSize  int           // longest side in pixels after normalization
	AllowDegraded bool          // registration may fall back to a full-image embedding
}

// MatchConfig wraps the shared match profile plus policy knobs that do not
// affect the embedding space.
type MatchConfig struct {
	Profile       facematch.Profile
	AlertCooldown time.Duration // 0 disables
}

type WorkerConfig struct {
	Concurrency int // embedding generation workers
	QueueSize   int // pending registrations before Submit rejects
}

type StorageConfig struct {
	Backend       string // local, s3 or memory
	UploadDir     string
	MaxUploadSize int64
	S3            S3Config
}

type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

type AlertConfig struct {
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFrom       string // e.g. whatsapp:+14155238886
	TwilioBaseURL    string // overridable for tests
	OfficerPhone     string // contact number printed in the alert
	CountryCode      string // prefix for bare national numbers
	ShoutrrrURLs     []string
	Timeout          time.Duration
}

// Enabled reports whether any alert transport is configured.
func (c *AlertConfig) Enabled() bool {
	return c.TwilioAccountSID != "" || len(c.ShoutrrrURLs) > 0
}

type WebConfig struct {
	OfficerUsername     string
	OfficerPasswordHash string // bcrypt hash
	SessionSecret       string
	AllowedOrigins      []string
}

// ChatConfig configures the officer assistant. An empty Provider picks
// OpenAI when a token is set, then Gemini.
type ChatConfig struct {
	Provider      string // openai, gemini, none or empty for auto
	OpenAIToken   string
	OpenAIModel   string
	OpenAIBaseURL string // overridable for tests and compatible gateways
	GeminiAPIKey  string
	GeminiModel   string
	Timeout       time.Duration
	MaxCases      int // cases included in the assistant context
}

// ResolvedProvider returns the backend that will serve chat requests, or
// "none" when nothing is configured.
func (c *ChatConfig) ResolvedProvider() string {
	switch c.Provider {
	case "openai", "gemini", "none":
		return c.Provider
	}
	switch {
	case c.OpenAIToken != "":
		return "openai"
	case c.GeminiAPIKey != "":
		return "gemini"
	default:
		return "none"
	}
}

type LogConfig struct {
	Level  string
	Format string
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads a positive float, falling back to the default.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envDuration reads a Go duration string ("30s", "5m"), falling back to the default.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d >= 0 {
		return d
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envList reads a comma-separated list, dropping empty items.
func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// DefaultProfile returns the embedded match profile defaults.
func DefaultProfile() facematch.Profile {
	var p facematch.Profile
	if err := yaml.Unmarshal(defaultsYAML, &p); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return p
}

func loadProfile() facematch.Profile {
	p := DefaultProfile()
	p.Model = envString("FACE_MODEL", p.Model)
	if detectors := envList("FACE_DETECTORS"); len(detectors) > 0 {
		p.Detectors = detectors
	}
	p.Threshold = envFloat("MATCH_THRESHOLD", p.Threshold)
	p.DisplayCutoff = envFloat("MATCH_DISPLAY_CUTOFF", p.DisplayCutoff)
	p.ConfirmCount = envInt("MATCH_CONFIRM_COUNT", p.ConfirmCount)
	return p
}

func Load() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:       envString("DATABASE_DRIVER", "postgres"),
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Embedding: EmbeddingConfig{
			URL:           envString("EMBEDDING_URL", "http://localhost:5005"),
			Timeout:       envDuration("EMBEDDING_TIMEOUT", 45*time.Second),
			MaxImageSize:  envInt("EMBEDDING_MAX_IMAGE_SIZE", 1280),
			AllowDegraded: envBool("EMBEDDING_ALLOW_DEGRADED", true),
		},
		Match: MatchConfig{
			Profile:       loadProfile(),
			AlertCooldown: envDuration("ALERT_COOLDOWN", 0),
		},
		Worker: WorkerConfig{
			Concurrency: envInt("WORKER_CONCURRENCY", 2),
			QueueSize:   envInt("WORKER_QUEUE_SIZE", 100),
		},
		Storage: StorageConfig{
			Backend:       envString("STORAGE_BACKEND", "local"),
			UploadDir:     envString("UPLOAD_DIR", "uploads"),
			MaxUploadSize: int64(envInt("MAX_UPLOAD_SIZE", 16<<20)),
			S3: S3Config{
				Endpoint:  os.Getenv("S3_ENDPOINT"),
				Bucket:    os.Getenv("S3_BUCKET"),
				Region:    os.Getenv("S3_REGION"),
				AccessKey: os.Getenv("S3_ACCESS_KEY"),
				SecretKey: os.Getenv("S3_SECRET_KEY"),
				UseSSL:    envBool("S3_USE_SSL", true),
			},
		},
		Alert: AlertConfig{
			TwilioAccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
			TwilioAuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
			TwilioFrom:       envString("TWILIO_FROM_WHATSAPP", "whatsapp:+14155238886"),
			TwilioBaseURL:    envString("TWILIO_BASE_URL", "https://api.twilio.com"),
			OfficerPhone:     os.Getenv("OFFICER_PHONE"),
			CountryCode:      envString("ALERT_COUNTRY_CODE", "91"),
			ShoutrrrURLs:     envList("ALERT_SHOUTRRR_URLS"),
			Timeout:          envDuration("ALERT_TIMEOUT", 10*time.Second),
		},
		Web: WebConfig{
			OfficerUsername:     envString("OFFICER_USERNAME", "admin"),
			OfficerPasswordHash: os.Getenv("OFFICER_PASSWORD_HASH"),
			SessionSecret:       os.Getenv("WEB_SESSION_SECRET"),
			AllowedOrigins:      envList("WEB_ALLOWED_ORIGINS"),
		},
		Chat: ChatConfig{
			Provider:      os.Getenv("CHAT_PROVIDER"),
			OpenAIToken:   envString("OPENAI_TOKEN", os.Getenv("OPENAI_API_KEY")),
			OpenAIModel:   envString("OPENAI_MODEL", "gpt-4o-mini"),
			OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
			GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
			GeminiModel:   envString("GEMINI_MODEL", "gemini-2.5-flash"),
			Timeout:       envDuration("CHAT_TIMEOUT", 30*time.Second),
			MaxCases:      envInt("CHAT_MAX_CASES", 200),
		},
		Log: LogConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Format: envString("LOG_FORMAT", "json"),
		},
	}
}

// Validate checks settings that would otherwise fail late or silently.
func (c *Config) Validate() error {
	if err := c.Match.Profile.Validate(); err != nil {
		return fmt.Errorf("match profile: %w", err)
	}
	if !slices.Contains([]string{"postgres", "mysql"}, c.Database.Driver) {
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.Database.Driver)
	}
	switch c.Storage.Backend {
	case "local":
		if c.Storage.UploadDir == "" {
			return errors.New("UPLOAD_DIR is required for local storage")
		}
	case "memory":
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return errors.New("S3_BUCKET is required for s3 storage")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND %q", c.Storage.Backend)
	}
	if c.Alert.TwilioAccountSID != "" && c.Alert.TwilioAuthToken == "" {
		return errors.New("TWILIO_AUTH_TOKEN must be set together with TWILIO_ACCOUNT_SID")
	}
	switch c.Chat.Provider {
	case "", "none":
	case "openai":
		if c.Chat.OpenAIToken == "" {
			return errors.New("OPENAI_TOKEN is required for CHAT_PROVIDER=openai")
		}
	case "gemini":
		if c.Chat.GeminiAPIKey == "" {
			return errors.New("GEMINI_API_KEY is required for CHAT_PROVIDER=gemini")
		}
	default:
		return fmt.Errorf("unsupported CHAT_PROVIDER %q", c.Chat.Provider)
	}
	return nil
}
