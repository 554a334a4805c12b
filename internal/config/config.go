package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	MongoURI       string
	PostgresURI    string
	RedisURI       string
	Port           string
	Host           string   // Raw HOST env (e.g. https://backend.salvioris.com)
	AllowedHost    string   // Hostname only for strict host check (production only)
	Environment    string   // ENV: production, development, etc.
	AllowedOrigins []string // CORS: from ALLOWED_ORIGINS or FRONTEND_URL

	// Content-domain collaborators
	ServicesDomainURL     string
	ProjectsDomainURL     string
	PublicationsDomainURL string
	DomainAPIKey          string

	ClassifierURL    string
	ClassifierAPIKey string
	ClassifierModel  string
	ClassifierRPS    float64

	SummarizerURL    string
	SummarizerAPIKey string
	SummarizerModel  string

	MailerURL    string
	MailerAPIKey string
	MailerFrom   string

	EventBackend       string // "redis" or "kafka"
	KafkaBrokers       []string
	EventChannelPrefix string

	SchedulerEnabled  bool
	SchedulerTimezone string
	AnalysisHour      int
	AnalysisMinute    int
	ReactivationHour  int
	ReactivationMin   int

	BatchSize         int
	BatchPause        time.Duration
	ReportRetention   time.Duration
	ExternalTimeout   time.Duration
	ViolationKeywords []string
}

type configFile struct {
	Service struct {
		Port        string `yaml:"port"`
		Environment string `yaml:"environment"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURI  string   `yaml:"postgres_uri"`
		MongoURI     string   `yaml:"mongo_uri"`
		RedisURI     string   `yaml:"redis_uri"`
		KafkaBrokers []string `yaml:"kafka_brokers"`
		EventBackend string   `yaml:"event_backend"`
	} `yaml:"dependencies"`
	Domains struct {
		Services     string `yaml:"services_url"`
		Projects     string `yaml:"projects_url"`
		Publications string `yaml:"publications_url"`
	} `yaml:"domains"`
	Moderation struct {
		BatchSize         int      `yaml:"batch_size"`
		BatchPauseSeconds int      `yaml:"batch_pause_seconds"`
		RetentionDays     int      `yaml:"report_retention_days"`
		ViolationKeywords []string `yaml:"violation_keywords"`
		AnalysisHour      *int     `yaml:"analysis_hour"`
		ReactivationHour  *int     `yaml:"reactivation_hour"`
		Timezone          string   `yaml:"timezone"`
	} `yaml:"moderation"`
}

// Load builds the configuration from defaults, an optional YAML file and
// the environment, in that order of precedence.
func Load(path string) (*Config, error) {
	cfg := &Config{
		MongoURI:           "mongodb://localhost:27017/salvioris",
		PostgresURI:        "postgres://localhost:5432/salvioris?sslmode=disable",
		RedisURI:           "redis://localhost:6379/0",
		Port:               "8080",
		Environment:        "development",
		Host:               "http://localhost:8080",
		ClassifierURL:      "https://api.openai.com/v1",
		ClassifierModel:    "omni-moderation-latest",
		ClassifierRPS:      5,
		SummarizerURL:      "https://api.openai.com/v1",
		SummarizerModel:    "gpt-4o-mini",
		MailerFrom:         "trust@salvioris.com",
		EventBackend:       "redis",
		EventChannelPrefix: "events:",
		SchedulerEnabled:   true,
		SchedulerTimezone:  "UTC",
		AnalysisHour:       3,
		AnalysisMinute:     0,
		ReactivationHour:   0,
		ReactivationMin:    5,
		BatchSize:          10,
		BatchPause:         15 * time.Second,
		ReportRetention:    365 * 24 * time.Hour,
		ExternalTimeout:    15 * time.Second,
		ViolationKeywords:  []string{"deceptive", "fraudulent", "false"},
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err == nil {
			if err := applyFile(cfg, raw); err != nil {
				return nil, err
			}
		}
	}

	cfg.MongoURI = getEnv("MONGODB_URI", getEnv("MONGO_URI", cfg.MongoURI))
	cfg.PostgresURI = getEnv("POSTGRES_URI", cfg.PostgresURI)
	cfg.RedisURI = getEnv("REDIS_URI", cfg.RedisURI)
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.Environment = strings.ToLower(strings.TrimSpace(getEnv("ENV", cfg.Environment)))
	cfg.Host = getEnv("HOST", cfg.Host)

	cfg.ServicesDomainURL = getEnv("SERVICES_DOMAIN_URL", cfg.ServicesDomainURL)
	cfg.ProjectsDomainURL = getEnv("PROJECTS_DOMAIN_URL", cfg.ProjectsDomainURL)
	cfg.PublicationsDomainURL = getEnv("PUBLICATIONS_DOMAIN_URL", cfg.PublicationsDomainURL)
	cfg.DomainAPIKey = getEnv("DOMAIN_API_KEY", cfg.DomainAPIKey)

	cfg.ClassifierURL = getEnv("CLASSIFIER_URL", cfg.ClassifierURL)
	cfg.ClassifierAPIKey = getEnv("CLASSIFIER_API_KEY", getEnv("OPENAI_API_KEY", cfg.ClassifierAPIKey))
	cfg.ClassifierModel = getEnv("CLASSIFIER_MODEL", cfg.ClassifierModel)
	cfg.ClassifierRPS = envFloat("CLASSIFIER_RPS", cfg.ClassifierRPS)

	cfg.SummarizerURL = getEnv("SUMMARIZER_URL", cfg.SummarizerURL)
	cfg.SummarizerAPIKey = getEnv("SUMMARIZER_API_KEY", getEnv("OPENAI_API_KEY", cfg.SummarizerAPIKey))
	cfg.SummarizerModel = getEnv("SUMMARIZER_MODEL", cfg.SummarizerModel)

	cfg.MailerURL = getEnv("MAILER_URL", cfg.MailerURL)
	cfg.MailerAPIKey = getEnv("MAILER_API_KEY", cfg.MailerAPIKey)
	cfg.MailerFrom = getEnv("MAILER_FROM", cfg.MailerFrom)

	cfg.EventBackend = strings.ToLower(getEnv("EVENT_BACKEND", cfg.EventBackend))
	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.EventChannelPrefix = getEnv("EVENT_CHANNEL_PREFIX", cfg.EventChannelPrefix)

	cfg.SchedulerEnabled = envBool("SCHEDULER_ENABLED", cfg.SchedulerEnabled)
	cfg.SchedulerTimezone = getEnv("SCHEDULER_TIMEZONE", cfg.SchedulerTimezone)
	cfg.AnalysisHour = envInt("ANALYSIS_HOUR", cfg.AnalysisHour)
	cfg.AnalysisMinute = envInt("ANALYSIS_MINUTE", cfg.AnalysisMinute)
	cfg.ReactivationHour = envInt("REACTIVATION_HOUR", cfg.ReactivationHour)
	cfg.ReactivationMin = envInt("REACTIVATION_MINUTE", cfg.ReactivationMin)

	cfg.BatchSize = envInt("BATCH_SIZE", cfg.BatchSize)
	cfg.BatchPause = time.Duration(envInt("BATCH_PAUSE_SECONDS", int(cfg.BatchPause.Seconds()))) * time.Second
	cfg.ReportRetention = time.Duration(envInt("REPORT_RETENTION_DAYS", int(cfg.ReportRetention.Hours()/24))) * 24 * time.Hour
	cfg.ExternalTimeout = time.Duration(envInt("EXTERNAL_TIMEOUT_SECONDS", int(cfg.ExternalTimeout.Seconds()))) * time.Second
	cfg.ViolationKeywords = envCSV("VIOLATION_KEYWORDS", cfg.ViolationKeywords)

	cfg.AllowedOrigins = parseOrigins(getEnv("ALLOWED_ORIGINS", ""))
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{getEnv("FRONTEND_URL", "http://localhost:3000")}
	}
	if cfg.IsProduction() {
		cfg.AllowedHost = hostname(cfg.Host)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, raw []byte) error {
	var f configFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	if f.Service.Port != "" {
		cfg.Port = f.Service.Port
	}
	if f.Service.Environment != "" {
		cfg.Environment = f.Service.Environment
	}
	if f.Dependencies.PostgresURI != "" {
		cfg.PostgresURI = f.Dependencies.PostgresURI
	}
	if f.Dependencies.MongoURI != "" {
		cfg.MongoURI = f.Dependencies.MongoURI
	}
	if f.Dependencies.RedisURI != "" {
		cfg.RedisURI = f.Dependencies.RedisURI
	}
	if len(f.Dependencies.KafkaBrokers) > 0 {
		cfg.KafkaBrokers = trimNonEmpty(f.Dependencies.KafkaBrokers)
	}
	if f.Dependencies.EventBackend != "" {
		cfg.EventBackend = f.Dependencies.EventBackend
	}
	if f.Domains.Services != "" {
		cfg.ServicesDomainURL = f.Domains.Services
	}
	if f.Domains.Projects != "" {
		cfg.ProjectsDomainURL = f.Domains.Projects
	}
	if f.Domains.Publications != "" {
		cfg.PublicationsDomainURL = f.Domains.Publications
	}
	if f.Moderation.BatchSize > 0 {
		cfg.BatchSize = f.Moderation.BatchSize
	}
	if f.Moderation.BatchPauseSeconds > 0 {
		cfg.BatchPause = time.Duration(f.Moderation.BatchPauseSeconds) * time.Second
	}
	if f.Moderation.RetentionDays > 0 {
		cfg.ReportRetention = time.Duration(f.Moderation.RetentionDays) * 24 * time.Hour
	}
	if len(f.Moderation.ViolationKeywords) > 0 {
		cfg.ViolationKeywords = trimNonEmpty(f.Moderation.ViolationKeywords)
	}
	if f.Moderation.AnalysisHour != nil {
		cfg.AnalysisHour = *f.Moderation.AnalysisHour
	}
	if f.Moderation.ReactivationHour != nil {
		cfg.ReactivationHour = *f.Moderation.ReactivationHour
	}
	if f.Moderation.Timezone != "" {
		cfg.SchedulerTimezone = f.Moderation.Timezone
	}
	return nil
}

func (c *Config) validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("BATCH_SIZE must be positive")
	}
	if c.AnalysisHour < 0 || c.AnalysisHour > 23 || c.ReactivationHour < 0 || c.ReactivationHour > 23 {
		return fmt.Errorf("scheduler hours must be within 0-23")
	}
	if c.AnalysisMinute < 0 || c.AnalysisMinute > 59 || c.ReactivationMin < 0 || c.ReactivationMin > 59 {
		return fmt.Errorf("scheduler minutes must be within 0-59")
	}
	if c.EventBackend != "redis" && c.EventBackend != "kafka" {
		return fmt.Errorf("EVENT_BACKEND must be redis or kafka, got %q", c.EventBackend)
	}
	if c.EventBackend == "kafka" && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("EVENT_BACKEND=kafka requires KAFKA_BROKERS")
	}
	if _, err := time.LoadLocation(c.SchedulerTimezone); err != nil {
		return fmt.Errorf("invalid SCHEDULER_TIMEZONE: %w", err)
	}
	return nil
}

// IsProduction returns true when ENV is set to "production".
func (c *Config) IsProduction() bool {
	return strings.ToLower(strings.TrimSpace(c.Environment)) == "production"
}

// Location is the scheduler's time zone; validated during Load.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.SchedulerTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func hostname(host string) string {
	for _, prefix := range []string{"https://", "http://"} {
		host = strings.TrimPrefix(host, prefix)
	}
	if idx := strings.Index(host, "/"); idx != -1 {
		host = host[:idx]
	}
	if idx := strings.Index(host, ":"); idx != -1 {
		host = host[:idx]
	}
	return strings.TrimSpace(host)
}

func parseOrigins(s string) []string {
	if s == "" {
		return nil
	}
	return trimNonEmpty(strings.Split(s, ","))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envFloat(name string, fallback float64) float64 {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}

func envBool(name string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	default:
		return fallback
	}
}

func envCSV(name string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	return trimNonEmpty(strings.Split(raw, ","))
}

func trimNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
