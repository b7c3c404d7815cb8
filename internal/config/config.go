package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/roofdocs/nexus/pkg/logger"
	"github.com/roofdocs/nexus/pkg/parser"
)

var (
	globalConfig   *Config
	globalConfigMu sync.RWMutex
)

// Configure the logger from environment variables before anything else reads it.
func init() {
	logger.GetLogger().ConfigureFromEnv()
}

type Config struct {
	App       AppConfig       `yaml:"App"`
	Database  DatabaseConfig  `yaml:"Database"`
	AI        AIConfig        `yaml:"AI"`
	Auth      AuthConfig      `yaml:"Auth"`
	RateLimit RateLimitConfig `yaml:"RateLimit"`
	Upload    UploadConfig    `yaml:"Upload"`
	Email     EmailConfig     `yaml:"Email"`
	Weather   WeatherConfig   `yaml:"Weather"`
	Features  FeatureConfig   `yaml:"Features"`
	Training  TrainingConfig  `yaml:"Training"`
	RAG       RAGConfig       `yaml:"RAG"`
	Build     BuildConfig     `yaml:"-"`
}

type BuildConfig struct {
	Version string `yaml:"-"` // from ldflags
	Commit  string `yaml:"-"`
	Date    string `yaml:"-"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"` // development or production
	Debug       bool   `yaml:"debug"`
	Port        string `yaml:"port"`
	FrontendURL string `yaml:"frontendURL"`
}

type DatabaseConfig struct {
	Path            string `yaml:"path"`
	MaxOpenConns    int    `yaml:"maxOpenConns"`
	MaxIdleConns    int    `yaml:"maxIdleConns"`
	ConnLifetimeMin int    `yaml:"connLifetimeMin"`
}

type AIConfig struct {
	GroqAPIKey       string  `yaml:"-"`
	TogetherAPIKey   string  `yaml:"-"`
	OpenRouterAPIKey string  `yaml:"-"`
	OpenAIAPIKey     string  `yaml:"-"`
	GroqModel        string  `yaml:"groqModel"`
	TogetherModel    string  `yaml:"togetherModel"`
	OpenRouterModel  string  `yaml:"openRouterModel"`
	Temperature      float64 `yaml:"temperature"`
	MaxTokens        int     `yaml:"maxTokens"`
	TimeoutSeconds   int     `yaml:"timeoutSeconds"`
}

type AuthConfig struct {
	JWTSecretKey    string        `yaml:"-"` // env only, never written to file
	AccessTokenTTL  time.Duration `yaml:"-"`
	RefreshTokenTTL time.Duration `yaml:"-"`
}

type RateLimitConfig struct {
	PerMinute int    `yaml:"perMinute"`
	PerHour   int    `yaml:"perHour"`
	StoreDir  string `yaml:"storeDir"`
}

type UploadConfig struct {
	MaxSizeMB         int      `yaml:"maxSizeMB"`
	AllowedExtensions []string `yaml:"allowedExtensions"`
}

type EmailConfig struct {
	SMTPHost    string `yaml:"smtpHost"`
	SMTPPort    int    `yaml:"smtpPort"`
	SMTPUser    string `yaml:"-"`
	SMTPPass    string `yaml:"-"`
	FromAddress string `yaml:"fromAddress"`
}

type WeatherConfig struct {
	NOAABaseURL string `yaml:"noaaBaseURL"`
	NOAAToken   string `yaml:"-"`
}

type FeatureConfig struct {
	EnableRAG                bool `yaml:"enableRAG"`
	EnableEmailGenerator     bool `yaml:"enableEmailGenerator"`
	EnableDocumentProcessing bool `yaml:"enableDocumentProcessing"`
	EnableWeatherAPI         bool `yaml:"enableWeatherAPI"`
	EnableVoiceInput         bool `yaml:"enableVoiceInput"`
}

type TrainingConfig struct {
	SessionTimeoutMin int  `yaml:"sessionTimeoutMin"`
	MaxRetries        int  `yaml:"maxRetries"`
	BadgesEnabled     bool `yaml:"badgesEnabled"`
}

type RAGConfig struct {
	TopK                int     `yaml:"topK"`
	SimilarityThreshold float64 `yaml:"similarityThreshold"`
	MaxHistoryMessages  int     `yaml:"maxHistoryMessages"`
}

// Default values
var (
	defaultAppName         = "NEXUS Backend"
	defaultAppVersion      = "2.0.0"
	defaultEnvironment     = "development"
	defaultPort            = "8000"
	defaultDBPath          = "./data/nexus.db"
	defaultMaxOpenConns    = 20
	defaultMaxIdleConns    = 10
	defaultConnLifetimeMin = 30
	defaultGroqModel       = "llama-3.3-70b-versatile"
	defaultTogetherModel   = "Qwen/Qwen2.5-72B-Instruct-Turbo"
	defaultOpenRouterModel = "meta-llama/llama-3.3-70b-instruct"
	defaultTemperature     = 0.7
	defaultMaxTokens       = 2048
	defaultAITimeout       = 30
	defaultJWTSecret       = "change-me-in-production"
	defaultAccessTTL       = 24 * time.Hour
	defaultRefreshTTL      = 30 * 24 * time.Hour
	defaultRatePerMinute   = 60
	defaultRatePerHour     = 1000
	defaultRateStoreDir    = "./data/ratelimiter"
	defaultMaxUploadMB     = 10
	defaultExtensions      = []string{"pdf", "docx", "xlsx", "txt", "jpg", "jpeg", "png"}
	defaultSMTPPort        = 587
	defaultNOAABaseURL     = "https://www.ncdc.noaa.gov/cdo-web/api/v2"
	defaultSessionTimeout  = 30
	defaultMaxRetries      = 3
	defaultRAGTopK         = 5
	defaultRAGThreshold    = 0.7
	defaultMaxHistory      = 20
)

// applyDefaults fills zero-valued fields. Returns true if any default was applied.
func applyDefaults(c *Config) bool {
	applied := false
	setStr := func(field *string, name, value string) {
		if *field == "" {
			*field = value
			logger.Debug("Applied default value", "field", name, "value", value)
			applied = true
		}
	}
	setInt := func(field *int, name string, value int) {
		if *field == 0 {
			*field = value
			logger.Debug("Applied default value", "field", name, "value", value)
			applied = true
		}
	}

	setStr(&c.App.Name, "App.Name", defaultAppName)
	setStr(&c.App.Version, "App.Version", defaultAppVersion)
	setStr(&c.App.Environment, "App.Environment", defaultEnvironment)
	setStr(&c.App.Port, "App.Port", defaultPort)

	setStr(&c.Database.Path, "Database.Path", defaultDBPath)
	setInt(&c.Database.MaxOpenConns, "Database.MaxOpenConns", defaultMaxOpenConns)
	setInt(&c.Database.MaxIdleConns, "Database.MaxIdleConns", defaultMaxIdleConns)
	setInt(&c.Database.ConnLifetimeMin, "Database.ConnLifetimeMin", defaultConnLifetimeMin)

	setStr(&c.AI.GroqModel, "AI.GroqModel", defaultGroqModel)
	setStr(&c.AI.TogetherModel, "AI.TogetherModel", defaultTogetherModel)
	setStr(&c.AI.OpenRouterModel, "AI.OpenRouterModel", defaultOpenRouterModel)
	if c.AI.Temperature == 0 {
		c.AI.Temperature = defaultTemperature
		applied = true
	}
	setInt(&c.AI.MaxTokens, "AI.MaxTokens", defaultMaxTokens)
	setInt(&c.AI.TimeoutSeconds, "AI.TimeoutSeconds", defaultAITimeout)

	setStr(&c.Auth.JWTSecretKey, "Auth.JWTSecretKey", defaultJWTSecret)
	if c.Auth.AccessTokenTTL == 0 {
		c.Auth.AccessTokenTTL = defaultAccessTTL
	}
	if c.Auth.RefreshTokenTTL == 0 {
		c.Auth.RefreshTokenTTL = defaultRefreshTTL
	}

	setInt(&c.RateLimit.PerMinute, "RateLimit.PerMinute", defaultRatePerMinute)
	setInt(&c.RateLimit.PerHour, "RateLimit.PerHour", defaultRatePerHour)
	setStr(&c.RateLimit.StoreDir, "RateLimit.StoreDir", defaultRateStoreDir)

	setInt(&c.Upload.MaxSizeMB, "Upload.MaxSizeMB", defaultMaxUploadMB)
	if len(c.Upload.AllowedExtensions) == 0 {
		c.Upload.AllowedExtensions = append([]string(nil), defaultExtensions...)
		applied = true
	}

	setInt(&c.Email.SMTPPort, "Email.SMTPPort", defaultSMTPPort)
	setStr(&c.Weather.NOAABaseURL, "Weather.NOAABaseURL", defaultNOAABaseURL)

	setInt(&c.Training.SessionTimeoutMin, "Training.SessionTimeoutMin", defaultSessionTimeout)
	setInt(&c.Training.MaxRetries, "Training.MaxRetries", defaultMaxRetries)

	setInt(&c.RAG.TopK, "RAG.TopK", defaultRAGTopK)
	if c.RAG.SimilarityThreshold == 0 {
		c.RAG.SimilarityThreshold = defaultRAGThreshold
	}
	setInt(&c.RAG.MaxHistoryMessages, "RAG.MaxHistoryMessages", defaultMaxHistory)

	return applied
}

// applyEnvOverrides layers environment variables on top of file/default values.
// Env always wins so containers can configure everything without a file.
func applyEnvOverrides(c *Config) {
	envStr := func(field *string, key string) {
		if v := os.Getenv(key); v != "" {
			*field = v
		}
	}
	envInt := func(field *int, key string) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				logger.Warn("Ignoring invalid integer env value", "key", key, "value", v)
				return
			}
			*field = n
		}
	}
	envBool := func(field *bool, key string) {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				logger.Warn("Ignoring invalid boolean env value", "key", key, "value", v)
				return
			}
			*field = b
		}
	}
	envFloat := func(field *float64, key string) {
		if v := os.Getenv(key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				logger.Warn("Ignoring invalid float env value", "key", key, "value", v)
				return
			}
			*field = f
		}
	}

	envStr(&c.App.Name, "APP_NAME")
	envStr(&c.App.Version, "APP_VERSION")
	envStr(&c.App.Environment, "ENVIRONMENT")
	envBool(&c.App.Debug, "DEBUG")
	envStr(&c.App.Port, "PORT")
	envStr(&c.App.FrontendURL, "FRONTEND_URL")

	envStr(&c.Database.Path, "DATABASE_URL")

	envStr(&c.AI.GroqAPIKey, "GROQ_API_KEY")
	envStr(&c.AI.TogetherAPIKey, "TOGETHER_API_KEY")
	envStr(&c.AI.OpenRouterAPIKey, "OPENROUTER_API_KEY")
	envStr(&c.AI.OpenAIAPIKey, "OPENAI_API_KEY")
	envStr(&c.AI.GroqModel, "GROQ_MODEL")
	envStr(&c.AI.TogetherModel, "TOGETHER_MODEL")
	envStr(&c.AI.OpenRouterModel, "OPENROUTER_MODEL")
	envFloat(&c.AI.Temperature, "AI_TEMPERATURE")
	envInt(&c.AI.MaxTokens, "AI_MAX_TOKENS")
	envInt(&c.AI.TimeoutSeconds, "AI_TIMEOUT_SECONDS")

	envStr(&c.Auth.JWTSecretKey, "JWT_SECRET_KEY")

	envInt(&c.RateLimit.PerMinute, "RATE_LIMIT_PER_MINUTE")
	envInt(&c.RateLimit.PerHour, "RATE_LIMIT_PER_HOUR")

	envInt(&c.Upload.MaxSizeMB, "MAX_UPLOAD_SIZE_MB")

	envStr(&c.Email.SMTPHost, "SMTP_HOST")
	envInt(&c.Email.SMTPPort, "SMTP_PORT")
	envStr(&c.Email.SMTPUser, "SMTP_USER")
	envStr(&c.Email.SMTPPass, "SMTP_PASSWORD")
	envStr(&c.Email.FromAddress, "EMAIL_FROM")

	envStr(&c.Weather.NOAABaseURL, "NOAA_API_BASE_URL")
	envStr(&c.Weather.NOAAToken, "NOAA_API_TOKEN")

	envBool(&c.Features.EnableRAG, "ENABLE_RAG")
	envBool(&c.Features.EnableEmailGenerator, "ENABLE_EMAIL_GENERATOR")
	envBool(&c.Features.EnableDocumentProcessing, "ENABLE_DOCUMENT_PROCESSING")
	envBool(&c.Features.EnableWeatherAPI, "ENABLE_WEATHER_API")
	envBool(&c.Features.EnableVoiceInput, "ENABLE_VOICE_INPUT")

	envInt(&c.Training.SessionTimeoutMin, "SESSION_TIMEOUT_MINUTES")
	envInt(&c.Training.MaxRetries, "MAX_RETRIES")
	envBool(&c.Training.BadgesEnabled, "BADGES_ENABLED")

	envInt(&c.RAG.TopK, "RAG_TOP_K")
	envFloat(&c.RAG.SimilarityThreshold, "RAG_SIMILARITY_THRESHOLD")
	envInt(&c.RAG.MaxHistoryMessages, "RAG_MAX_HISTORY")
}

// Validate rejects configurations that would be unsafe to run with.
func (c *Config) Validate() error {
	if c.IsProduction() {
		if c.Auth.JWTSecretKey == "" || c.Auth.JWTSecretKey == defaultJWTSecret {
			return errors.New("JWT_SECRET_KEY must be set to a non-default value in production")
		}
		if !c.HasAnyProviderKey() {
			return errors.New("at least one AI provider key is required in production (GROQ_API_KEY, TOGETHER_API_KEY or OPENROUTER_API_KEY)")
		}
	}
	if c.App.Environment != "development" && c.App.Environment != "production" {
		return fmt.Errorf("invalid ENVIRONMENT %q (want development or production)", c.App.Environment)
	}
	if _, err := strconv.Atoi(c.App.Port); err != nil {
		return fmt.Errorf("invalid PORT %q: %w", c.App.Port, err)
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		return fmt.Errorf("AI_TEMPERATURE %v out of range [0,2]", c.AI.Temperature)
	}
	if c.RAG.SimilarityThreshold < 0 || c.RAG.SimilarityThreshold > 1 {
		return fmt.Errorf("RAG_SIMILARITY_THRESHOLD %v out of range [0,1]", c.RAG.SimilarityThreshold)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.App.Environment, "production")
}

func (c *Config) HasAnyProviderKey() bool {
	return c.AI.GroqAPIKey != "" || c.AI.TogetherAPIKey != "" || c.AI.OpenRouterAPIKey != ""
}

// AITimeout returns the per-request provider timeout as a duration.
func (c *Config) AITimeout() time.Duration {
	return time.Duration(c.AI.TimeoutSeconds) * time.Second
}

// MaxUploadBytes returns the upload cap in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Upload.MaxSizeMB) << 20
}

// CORSOrigins returns the allowed browser origins for this environment.
func (c *Config) CORSOrigins() []string {
	origins := []string{"http://localhost:3000", "http://localhost:8000"}
	if c.App.FrontendURL != "" {
		origins = append([]string{c.App.FrontendURL}, origins...)
	}
	if c.IsProduction() {
		origins = append(origins, "https://*.railway.app")
	}
	return origins
}

// Load reads the optional config.yml overlay, applies defaults and env
// overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	// Feature flags default on; env overrides below can still turn them off.
	cfg.Features = FeatureConfig{
		EnableRAG:                true,
		EnableEmailGenerator:     true,
		EnableDocumentProcessing: true,
		EnableWeatherAPI:         true,
	}
	cfg.Training.BadgesEnabled = true

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			dir, file := filepath.Split(path)
			if dir == "" {
				dir = "."
			}
			if err := parser.ParseYAMLFile(os.DirFS(dir), file, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
			logger.Debug("Loaded configuration file", "path", path)
		}
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	globalConfigMu.Lock()
	globalConfig = cfg
	globalConfigMu.Unlock()
	return cfg, nil
}

// Get returns the process-wide configuration, loading it on first use.
func Get() *Config {
	globalConfigMu.RLock()
	cfg := globalConfig
	globalConfigMu.RUnlock()
	if cfg != nil {
		return cfg
	}

	cfg, err := Load(os.Getenv("NEXUS_CONFIG_FILE"))
	if err != nil {
		logger.Fatal("Failed to load configuration", "error", err)
	}
	return cfg
}
