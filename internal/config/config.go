package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/JoahanSP/SECURENET/internal/constants"
	"gopkg.in/yaml.v3"
)

//go:embed messages.yaml
var messagesYAML []byte

type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Database DatabaseConfig
	Faces    FacesConfig
	Telegram TelegramConfig
	Alerts   AlertsConfig
	Archive  ArchiveConfig
	Events   EventsConfig
	Log      LogConfig
	Messages MessagesConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	SessionSecret   string
	APIKeys         []string // accepted X-API-Key values (camera and management clients)
	MaxUploadBytes  int64    // defaults to 16 MiB
	AllowedOrigins  []string
	UploadRateLimit int // uploads per minute per client IP
}

type StorageConfig struct {
	PendingDir    string // images without detection or with an authorized visitor
	IntruderDir   string
	AuthorizedDir string
	MaxFiles      int // retention cap per category (default 1000)
}

type DatabaseConfig struct {
	URL           string // PostgreSQL connection URL
	MaxOpenConns  int    // Maximum open connections (default 10)
	MaxIdleConns  int    // Maximum idle connections (default 2)
	HNSWIndexPath string // Path to persist the gallery HNSW index (optional)
}

type FacesConfig struct {
	ServiceURL        string  // face embedding service, defaults to http://localhost:8000
	DistanceThreshold float64 // max cosine distance for a gallery match
	MinDetScore       float64 // detections below this score are ignored
	MaxImageSize      int     // longest edge sent to the embedding service
}

type TelegramConfig struct {
	Token  string
	ChatID int64
	APIURL string // defaults to https://api.telegram.org
}

// Enabled reports whether enough settings are present to talk to the bot API.
func (c *TelegramConfig) Enabled() bool {
	return c.Token != "" && c.ChatID != 0
}

type AlertsConfig struct {
	PollInterval time.Duration // idle wait between queue checks (default 1s)
	ErrorBackoff time.Duration // pause after a failed worker iteration (default 5s)
	PendingTTL   time.Duration // lifetime of an unanswered "assign name" request
}

type ArchiveConfig struct {
	Bucket         string // S3 bucket for intruder snapshots, archival disabled when empty
	Prefix         string
	Endpoint       string
	Region         string
	AccessKey      string
	SecretKey      string
	ForcePathStyle bool
}

type EventsConfig struct {
	NATSURL       string // event publishing disabled when empty
	SubjectPrefix string
}

type LogConfig struct {
	Level string
}

// MessagesConfig holds every human-facing text sent to the Telegram chat.
type MessagesConfig struct {
	AlertCaption    string `yaml:"alert_caption"`
	ButtonAuthorize string `yaml:"button_authorize"`
	ButtonIntruder  string `yaml:"button_intruder"`
	ButtonName      string `yaml:"button_name"`
	Authorized      string `yaml:"authorized"`
	AuthorizeFailed string `yaml:"authorize_failed"`
	MarkedIntruder  string `yaml:"marked_intruder"`
	AskName         string `yaml:"ask_name"`
	NameAdded       string `yaml:"name_added"`
	NameFailed      string `yaml:"name_failed"`
	NameInvalid     string `yaml:"name_invalid"`
	CallbackFailed  string `yaml:"callback_failed"`
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

func envInt64(key string, defaultVal int64) int64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

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

// envDuration accepts Go duration strings ("1s", "250ms").
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
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

// envList splits a comma-separated variable, dropping empty items.
func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var messages MessagesConfig
	if err := yaml.Unmarshal(messagesYAML, &messages); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded messages.yaml: " + err.Error())
	}

	chatID, _ := strconv.ParseInt(os.Getenv("TELEGRAM_CHAT_ID"), 10, 64)

	return &Config{
		Server: ServerConfig{
			Host:            envString("HOST", "0.0.0.0"),
			Port:            envInt("PORT", 5000),
			SessionSecret:   os.Getenv("SESSION_SECRET"),
			APIKeys:         envList("API_KEYS"),
			MaxUploadBytes:  envInt64("MAX_UPLOAD_BYTES", constants.MaxUploadSize),
			AllowedOrigins:  envList("WEB_ALLOWED_ORIGINS"),
			UploadRateLimit: envInt("UPLOAD_RATE_LIMIT", 60),
		},
		Storage: StorageConfig{
			PendingDir:    envString("PENDING_DIR", "data/no_detection"),
			IntruderDir:   envString("INTRUDER_DIR", "data/intruders"),
			AuthorizedDir: envString("AUTHORIZED_DIR", "data/authorized"),
			MaxFiles:      envInt("MAX_FILES_PER_CATEGORY", constants.DefaultMaxFilesPerCategory),
		},
		Database: DatabaseConfig{
			URL:           os.Getenv("DATABASE_URL"),
			MaxOpenConns:  envInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns:  envInt("DATABASE_MAX_IDLE_CONNS", 2),
			HNSWIndexPath: os.Getenv("HNSW_INDEX_PATH"),
		},
		Faces: FacesConfig{
			ServiceURL:        os.Getenv("FACE_SERVICE_URL"),
			DistanceThreshold: envFloat("FACE_DISTANCE_THRESHOLD", constants.DefaultDistanceThreshold),
			MinDetScore:       envFloat("FACE_MIN_DET_SCORE", constants.DefaultMinDetScore),
			MaxImageSize:      envInt("FACE_MAX_IMAGE_SIZE", constants.MaxImageSize),
		},
		Telegram: TelegramConfig{
			Token:  os.Getenv("TELEGRAM_TOKEN"),
			ChatID: chatID,
			APIURL: os.Getenv("TELEGRAM_API_URL"),
		},
		Alerts: AlertsConfig{
			PollInterval: envDuration("ALERT_POLL_INTERVAL", constants.DefaultPollIntervalSeconds*time.Second),
			ErrorBackoff: envDuration("ALERT_ERROR_BACKOFF", constants.DefaultErrorBackoffSeconds*time.Second),
			PendingTTL:   envDuration("PENDING_NAME_TTL", constants.DefaultPendingTTLMinutes*time.Minute),
		},
		Archive: ArchiveConfig{
			Bucket:         os.Getenv("S3_BUCKET"),
			Prefix:         envString("S3_PREFIX", "intruders/"),
			Endpoint:       os.Getenv("S3_ENDPOINT"),
			Region:         envString("S3_REGION", "us-east-1"),
			AccessKey:      os.Getenv("S3_ACCESS_KEY"),
			SecretKey:      os.Getenv("S3_SECRET_KEY"),
			ForcePathStyle: envBool("S3_FORCE_PATH_STYLE", true),
		},
		Events: EventsConfig{
			NATSURL:       os.Getenv("NATS_URL"),
			SubjectPrefix: envString("NATS_SUBJECT_PREFIX", "securenet"),
		},
		Log: LogConfig{
			Level: envString("LOG_LEVEL", "info"),
		},
		Messages: messages,
	}
}
