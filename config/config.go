package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the market intelligence agent.
type Config struct {
	General  GeneralConfig   `mapstructure:"general"`
	Server   ServerConfig    `mapstructure:"server"`
	LLM      LLMConfig       `mapstructure:"llm"`
	Tools    ToolsConfig     `mapstructure:"tools"`
	Storage  StorageConfig   `mapstructure:"storage"`
	Memory   MemoryConfig    `mapstructure:"memory"`
	Schedule []StandingOrder `mapstructure:"schedule"`
}

// GeneralConfig contains general application settings.
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server and auth settings.
type ServerConfig struct {
	Address     string   `mapstructure:"address"`
	JWTSecret   string   `mapstructure:"jwt_secret"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// LLMConfig selects and configures the language-model backend. The provider
// is chosen once per process; every mission in the process shares the client.
type LLMConfig struct {
	Provider       string            `mapstructure:"provider"` // gemini, groq, huggingface
	RequestTimeout time.Duration     `mapstructure:"request_timeout"`
	Gemini         GeminiConfig      `mapstructure:"gemini"`
	Groq           GroqConfig        `mapstructure:"groq"`
	HuggingFace    HuggingFaceConfig `mapstructure:"huggingface"`
}

// GeminiConfig configures the Gemini backend and the embedding model.
type GeminiConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	EmbedModel string `mapstructure:"embed_model"`
}

// GroqConfig configures the Groq OpenAI-compatible backend.
type GroqConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

// HuggingFaceConfig configures the HuggingFace inference backend.
type HuggingFaceConfig struct {
	Token string `mapstructure:"token"`
	Model string `mapstructure:"model"`
	URL   string `mapstructure:"url"`
}

// ToolsConfig configures the research and publish capabilities.
type ToolsConfig struct {
	ScraperTimeout time.Duration `mapstructure:"scraper_timeout"`
	HTTPTimeout    time.Duration `mapstructure:"http_timeout"`
	SearchCacheTTL time.Duration `mapstructure:"search_cache_ttl"`
	Notion         NotionConfig  `mapstructure:"notion"`
	Email          EmailConfig   `mapstructure:"email"`
}

// NotionConfig configures the Notion archive publisher.
type NotionConfig struct {
	Token  string `mapstructure:"token"`
	PageID string `mapstructure:"page_id"`
}

// EmailConfig configures the Resend email publisher.
type EmailConfig struct {
	ResendAPIKey string `mapstructure:"resend_api_key"`
	From         string `mapstructure:"from"`
	To           string `mapstructure:"to"`
}

// StorageConfig contains database connections.
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig describes the audit/RAG database.
type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN builds the Postgres connection string, preferring an explicit URL.
func (p PostgresConfig) DSN() (string, error) {
	if p.URL != "" {
		return p.URL, nil
	}
	if p.Host == "" || p.DBName == "" {
		return "", fmt.Errorf("postgres not configured (storage.postgres.host/dbname or url)")
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl), nil
}

// RedisConfig describes the optional cache/lock backend.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
}

// Addr returns host:port, or empty when redis is not configured.
func (r RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	port := r.Port
	if port == "" {
		port = "6379"
	}
	return r.Host + ":" + port
}

// MemoryConfig tunes RAG chunking and retrieval.
type MemoryConfig struct {
	ChunkSize    int `mapstructure:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`
	TopK         int `mapstructure:"top_k"`
}

// StandingOrder is a cron-scheduled recurring mission.
type StandingOrder struct {
	Cron    string `mapstructure:"cron"`
	Mission string `mapstructure:"mission"`
}

// Load reads configuration from file (mia.{json,yaml} in ./config or .) with
// MIA_* environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("mia")
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath("./config")
	v.AddConfigPath(".")
	v.SetEnvPrefix("MIA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Missing file is fine; env + defaults carry a full config.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.log_level", "info")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("llm.provider", "groq")
	v.SetDefault("llm.request_timeout", 60*time.Second)
	v.SetDefault("llm.gemini.model", "gemini-2.0-flash")
	v.SetDefault("llm.gemini.embed_model", "text-embedding-004")
	v.SetDefault("llm.groq.model", "llama-3.1-8b-instant")
	v.SetDefault("llm.groq.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("llm.huggingface.model", "deepseek-ai/DeepSeek-V3")
	v.SetDefault("llm.huggingface.url", "https://api-inference.huggingface.co/models/deepseek-ai/DeepSeek-V3")
	v.SetDefault("tools.scraper_timeout", 30*time.Second)
	v.SetDefault("tools.http_timeout", 30*time.Second)
	v.SetDefault("tools.search_cache_ttl", 15*time.Minute)
	v.SetDefault("storage.redis.port", "6379")
	v.SetDefault("memory.chunk_size", 900)
	v.SetDefault("memory.chunk_overlap", 150)
	v.SetDefault("memory.top_k", 3)
}

// Validate fails fast on construction-time misconfiguration: a selected LLM
// provider without credentials never gets to serve a mission.
func (c *Config) Validate() error {
	switch strings.ToLower(c.LLM.Provider) {
	case "gemini":
		if c.LLM.Gemini.APIKey == "" {
			return fmt.Errorf("llm.gemini.api_key is required when provider is gemini")
		}
	case "groq":
		if c.LLM.Groq.APIKey == "" {
			return fmt.Errorf("llm.groq.api_key is required when provider is groq")
		}
	case "huggingface", "hf":
		if c.LLM.HuggingFace.Token == "" {
			return fmt.Errorf("llm.huggingface.token is required when provider is huggingface")
		}
	default:
		return fmt.Errorf("unsupported llm provider: %s", c.LLM.Provider)
	}
	for _, so := range c.Schedule {
		if so.Cron == "" || so.Mission == "" {
			return fmt.Errorf("schedule entries require both cron and mission")
		}
	}
	return nil
}
