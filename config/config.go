package config

import (
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/redis/go-redis/v9"
)

// Config - Global variable to export
var Config AppConfig

// AppConfig defines the application configuration
type AppConfig struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Cache    CacheConfig    `koanf:"cache"`
	Temporal TemporalConfig `koanf:"temporal"`
	Storage  StorageConfig  `koanf:"storage"`
	Minio    MinioConfig    `koanf:"minio"`
	GCS      GCSConfig      `koanf:"gcs"`
	Provider ProviderConfig `koanf:"provider"`
	Sandbox  SandboxConfig  `koanf:"sandbox"`
	RAG      RAGConfig      `koanf:"rag"`
	Context  ContextConfig  `koanf:"context"`
}

// ServerConfig defines HTTP server configurations
type ServerConfig struct {
	Port  int  `koanf:"port"`
	Debug bool `koanf:"debug"`
	// PublicURL is the externally reachable base URL, used to build the
	// embedding-completion callback URL handed to the RAG service.
	PublicURL   string `koanf:"publicurl" validate:"url"`
	MaxDataSize int    `koanf:"maxdatasize"`
}

// DatabaseConfig related to database
type DatabaseConfig struct {
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Name     string `koanf:"name"`
	Version  uint   `koanf:"version"`
	TimeZone string `koanf:"timezone"`
	Pool     struct {
		IdleConnections int           `koanf:"idleconnections"`
		MaxConnections  int           `koanf:"maxconnections"`
		ConnLifeTime    time.Duration `koanf:"connlifetime"`
	}
}

// CacheConfig related to Redis
type CacheConfig struct {
	Redis struct {
		RedisOptions redis.Options `koanf:"redisoptions"`
	}
}

// TemporalConfig is the Temporal server configuration.
type TemporalConfig struct {
	HostPort  string `koanf:"hostport"`
	Namespace string `koanf:"namespace"`
}

// StorageConfig selects the storage backend per strategy and the default.
type StorageConfig struct {
	// Default is the backend tag used when no per-strategy entry matches
	// (local, minio, gcs, provider).
	Default string `koanf:"default"`
	// Strategies maps a strategy name to a backend tag.
	Strategies map[string]string `koanf:"strategies"`
	Local      struct {
		Path string `koanf:"path"`
	} `koanf:"local"`
	DeleteConcurrency int `koanf:"deleteconcurrency"`
}

// MinioConfig is the MinIO object storage configuration.
type MinioConfig struct {
	Host       string `koanf:"host"`
	Port       string `koanf:"port"`
	User       string `koanf:"user"`
	Password   string `koanf:"password"`
	BucketName string `koanf:"bucketname"`
	Secure     bool   `koanf:"secure"`
}

// GCSConfig defines the configuration for Google Cloud Storage as an
// alternative object storage backend.
type GCSConfig struct {
	ProjectID string `koanf:"projectid"`
	Bucket    string `koanf:"bucket"`
	SAKey     string `koanf:"sakey"` // JSON string of service account key
}

// ProviderConfig is the model-provider hosted file API. Provider file APIs
// are quota constrained, so deletes against them go through the fairness
// queue.
type ProviderConfig struct {
	APIURL  string        `koanf:"apiurl"`
	APIKey  string        `koanf:"apikey"`
	Timeout time.Duration `koanf:"timeout"`
}

// SandboxConfig is the code-execution backend file API.
type SandboxConfig struct {
	APIURL  string        `koanf:"apiurl"`
	APIKey  string        `koanf:"apikey"`
	Timeout time.Duration `koanf:"timeout"`
}

// RAGConfig is the external text-extraction/embedding service.
type RAGConfig struct {
	APIURL    string        `koanf:"apiurl"`
	JWTSecret string        `koanf:"jwtsecret"`
	TokenTTL  time.Duration `koanf:"tokenttl"`
	Timeout   time.Duration `koanf:"timeout"`
	// OCRMimeTypes and STTMimeTypes gate the inline-text-context fallbacks.
	OCRMimeTypes []string `koanf:"ocrmimetypes"`
	STTMimeTypes []string `koanf:"sttmimetypes"`
}

// ContextConfig tunes the inline text-context strategy.
type ContextConfig struct {
	// MaxTokens caps the token count of text persisted for inline context.
	MaxTokens int `koanf:"maxtokens"`
	// Encoding is the tiktoken encoding used for the token budget.
	Encoding string `koanf:"encoding"`
}

// Init - Assign global config to decoded config struct
func Init(filePath string) error {
	k := koanf.New(".")
	parser := yaml.Parser()

	if err := k.Load(confmap.Provider(map[string]any{
		"storage.default":           "minio",
		"storage.deleteconcurrency": 2,
		"rag.tokenttl":              time.Hour,
		"context.maxtokens":         25000,
		"context.encoding":          "cl100k_base",
	}, "."), nil); err != nil {
		log.Fatal(err.Error())
	}

	if err := k.Load(file.Provider(filePath), parser); err != nil {
		log.Fatal(err.Error())
	}

	if err := k.Load(env.ProviderWithValue("CFG_", ".", func(s string, v string) (string, any) {
		key := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "CFG_")), "_", ".")
		if strings.Contains(v, ",") {
			return key, strings.Split(strings.TrimSpace(v), ",")
		}
		return key, v
	}), nil); err != nil {
		return err
	}

	if err := k.Unmarshal("", &Config); err != nil {
		return err
	}

	return ValidateConfig(&Config)
}

// ValidateConfig is for custom validation rules for the configuration
func ValidateConfig(cfg *AppConfig) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return err
	}
	return nil
}

var defaultConfigPath = "config/config.yaml"

// ParseConfigFlag allows clients to specify the relative path to the file
// from which the configuration will be loaded.
func ParseConfigFlag() string {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	configPath := fs.String("file", defaultConfigPath, "configuration file")
	flag.Parse()

	return *configPath
}
