package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Qdrant     QdrantConfig     `mapstructure:"qdrant"`
	Embedding  EmbeddingConfig  `mapstructure:"embedding"`
	Similarity SimilarityConfig `mapstructure:"similarity"`
	Network    NetworkConfig    `mapstructure:"network"`
	Categorize CategorizeConfig `mapstructure:"categorize"`
	Batch      BatchConfig      `mapstructure:"batch"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN builds the driver-specific connection string.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
	}
	return c.Path
}

// QdrantConfig configures the optional ANN index for post embeddings.
// When disabled, candidate pools come from the relational store instead.
type QdrantConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Collection string `mapstructure:"collection"`
	APIKey     string `mapstructure:"api_key"`
	UseTLS     bool   `mapstructure:"use_tls"`
}

type EmbeddingConfig struct {
	Provider   string        `mapstructure:"provider"`
	Model      string        `mapstructure:"model"`
	APIKey     string        `mapstructure:"api_key"`
	BaseURL    string        `mapstructure:"base_url"`
	Dimensions int           `mapstructure:"dimensions"`
	BatchSize  int           `mapstructure:"batch_size"`
	CacheSize  int           `mapstructure:"cache_size"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
}

type SimilarityConfig struct {
	Threshold     float64 `mapstructure:"threshold"`
	MaxCandidates int     `mapstructure:"max_candidates"`
}

type NetworkConfig struct {
	SharedWeight        float64 `mapstructure:"shared_weight"`
	AIWeight            float64 `mapstructure:"ai_weight"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	MinPosts            int     `mapstructure:"min_posts"`
	MaxPosts            int     `mapstructure:"max_posts"`
	MaxPostConnections  int     `mapstructure:"max_post_connections"`
}

type CategorizeConfig struct {
	SuggestThreshold float64 `mapstructure:"suggest_threshold"`
	AssignThreshold  float64 `mapstructure:"assign_threshold"`
	TopK             int     `mapstructure:"top_k"`
}

type BatchConfig struct {
	PostLimit int `mapstructure:"post_limit"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	// Set config file path
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable override
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/topicsloop.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("qdrant.enabled", false)
	v.SetDefault("qdrant.host", "localhost")
	v.SetDefault("qdrant.port", 6334)
	v.SetDefault("qdrant.collection", "posts")
	v.SetDefault("embedding.provider", "remote")
	v.SetDefault("embedding.model", "all-MiniLM-L6-v2")
	v.SetDefault("embedding.dimensions", 384)
	v.SetDefault("embedding.batch_size", 32)
	v.SetDefault("embedding.cache_size", 4096)
	v.SetDefault("embedding.cache_ttl", time.Hour)
	v.SetDefault("similarity.threshold", 0.5)
	v.SetDefault("similarity.max_candidates", 100)
	v.SetDefault("network.shared_weight", 0.5)
	v.SetDefault("network.ai_weight", 0.5)
	v.SetDefault("network.similarity_threshold", 0.5)
	v.SetDefault("network.min_posts", 1)
	v.SetDefault("network.max_posts", 20)
	v.SetDefault("network.max_post_connections", 30)
	v.SetDefault("categorize.suggest_threshold", 0.7)
	v.SetDefault("categorize.assign_threshold", 0.8)
	v.SetDefault("categorize.top_k", 3)
	v.SetDefault("batch.post_limit", 50)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("qdrant.host", "QDRANT_HOST")
	v.BindEnv("qdrant.port", "QDRANT_PORT")
	v.BindEnv("qdrant.api_key", "QDRANT_API_KEY")
	v.BindEnv("embedding.api_key", "EMBEDDING_API_KEY")
	v.BindEnv("embedding.base_url", "EMBEDDING_BASE_URL")
	v.BindEnv("embedding.model", "EMBEDDING_MODEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
