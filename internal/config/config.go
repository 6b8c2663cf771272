package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config armazena as configurações da aplicação
type Config struct {
	TokenAPI     string
	TokenAPIHash string
	Port         string
	GinMode      string
	LogLevel     string
	LogJSON      bool

	Database DatabaseConfig

	RateLimitRPS          float64
	RateLimitBurst        int
	CacheTTLMinutes       int
	WebhookTimeoutSeconds int
}

// DatabaseConfig contém os parâmetros de conexão com o PostgreSQL
type DatabaseConfig struct {
	Host            string `yaml:"host"`
	Port            string `yaml:"port"`
	User            string `yaml:"user"`
	Password        string `yaml:"password"`
	Name            string `yaml:"name"`
	SSLMode         string `yaml:"sslmode"`
	MaxOpenConns    int    `yaml:"maxOpenConns"`
	MaxIdleConns    int    `yaml:"maxIdleConns"`
	ConnMaxLifetime int    `yaml:"connMaxLifetimeMinutes"`
	ConnMaxIdleTime int    `yaml:"connMaxIdleTimeMinutes"`
}

// fileConfig é o formato do arquivo YAML opcional
type fileConfig struct {
	Server struct {
		Port     string `yaml:"port"`
		GinMode  string `yaml:"ginMode"`
		LogLevel string `yaml:"logLevel"`
		LogJSON  *bool  `yaml:"logJSON"`
	} `yaml:"server"`
	Database  DatabaseConfig `yaml:"database"`
	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rateLimit"`
	Cache struct {
		TTLMinutes int `yaml:"ttlMinutes"`
	} `yaml:"cache"`
	Webhook struct {
		TimeoutSeconds int `yaml:"timeoutSeconds"`
	} `yaml:"webhook"`
}

// ErrMissingToken indica que um token obrigatório não foi configurado
var ErrMissingToken = errors.New("TOKEN_API ou TOKEN_API_HASH não configurado")

// Load carrega as configurações: defaults, arquivo YAML e variáveis de ambiente
func Load() (*Config, error) {
	// Tenta carregar .env de múltiplos locais
	_ = godotenv.Load()          // ./.env
	_ = godotenv.Load("../.env") // ../.env

	cfg := Defaults()

	if err := applyFile(cfg, os.Getenv("CONFIG_FILE")); err != nil {
		return nil, err
	}
	applyEnv(cfg)

	// Validações obrigatórias
	if cfg.TokenAPI == "" && cfg.TokenAPIHash == "" {
		return nil, ErrMissingToken
	}

	return cfg, nil
}

// Defaults retorna a configuração padrão
func Defaults() *Config {
	return &Config{
		Port:     "8080",
		GinMode:  "debug",
		LogLevel: "info",
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    "5432",
			User:    "postgres",
			Name:    "minute_allocation",
			SSLMode: "disable",
		},
		RateLimitRPS:          10,
		RateLimitBurst:        20,
		CacheTTLMinutes:       10,
		WebhookTimeoutSeconds: 30,
	}
}

// applyFile mescla o arquivo YAML na configuração. Sem caminho explícito,
// procura configs/config.yaml e ignora sua ausência.
func applyFile(cfg *Config, path string) error {
	explicit := path != ""
	if !explicit {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if explicit {
			return fmt.Errorf("erro ao ler arquivo de configuração %s: %w", path, err)
		}
		return nil
	}

	var parsed fileConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("erro ao interpretar arquivo de configuração %s: %w", path, err)
	}

	merge(cfg, parsed)
	return nil
}

func merge(dst *Config, src fileConfig) {
	if src.Server.Port != "" {
		dst.Port = src.Server.Port
	}
	if src.Server.GinMode != "" {
		dst.GinMode = src.Server.GinMode
	}
	if src.Server.LogLevel != "" {
		dst.LogLevel = src.Server.LogLevel
	}
	if src.Server.LogJSON != nil {
		dst.LogJSON = *src.Server.LogJSON
	}

	db := src.Database
	if db.Host != "" {
		dst.Database.Host = db.Host
	}
	if db.Port != "" {
		dst.Database.Port = db.Port
	}
	if db.User != "" {
		dst.Database.User = db.User
	}
	if db.Password != "" {
		dst.Database.Password = db.Password
	}
	if db.Name != "" {
		dst.Database.Name = db.Name
	}
	if db.SSLMode != "" {
		dst.Database.SSLMode = db.SSLMode
	}
	if db.MaxOpenConns != 0 {
		dst.Database.MaxOpenConns = db.MaxOpenConns
	}
	if db.MaxIdleConns != 0 {
		dst.Database.MaxIdleConns = db.MaxIdleConns
	}
	if db.ConnMaxLifetime != 0 {
		dst.Database.ConnMaxLifetime = db.ConnMaxLifetime
	}
	if db.ConnMaxIdleTime != 0 {
		dst.Database.ConnMaxIdleTime = db.ConnMaxIdleTime
	}

	if src.RateLimit.RPS > 0 {
		dst.RateLimitRPS = src.RateLimit.RPS
	}
	if src.RateLimit.Burst > 0 {
		dst.RateLimitBurst = src.RateLimit.Burst
	}
	if src.Cache.TTLMinutes > 0 {
		dst.CacheTTLMinutes = src.Cache.TTLMinutes
	}
	if src.Webhook.TimeoutSeconds > 0 {
		dst.WebhookTimeoutSeconds = src.Webhook.TimeoutSeconds
	}
}

// applyEnv aplica variáveis de ambiente, que têm precedência sobre o arquivo
func applyEnv(cfg *Config) {
	setString(&cfg.TokenAPI, "TOKEN_API")
	setString(&cfg.TokenAPIHash, "TOKEN_API_HASH")
	setString(&cfg.Port, "PORT")
	setString(&cfg.GinMode, "GIN_MODE")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	if raw := strings.TrimSpace(os.Getenv("LOG_JSON")); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			cfg.LogJSON = v
		}
	}

	setString(&cfg.Database.Host, "DB_HOST")
	setString(&cfg.Database.Port, "DB_PORT")
	setString(&cfg.Database.User, "DB_USER")
	setString(&cfg.Database.Password, "DB_PASSWORD")
	setString(&cfg.Database.Name, "DB_NAME")
	setString(&cfg.Database.SSLMode, "DB_SSLMODE")
	setPositiveInt(&cfg.Database.MaxOpenConns, "DB_MAX_OPEN_CONNS")
	setPositiveInt(&cfg.Database.MaxIdleConns, "DB_MAX_IDLE_CONNS")

	if raw := strings.TrimSpace(os.Getenv("RATE_LIMIT_RPS")); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil && v > 0 {
			cfg.RateLimitRPS = v
		}
	}
	setPositiveInt(&cfg.RateLimitBurst, "RATE_LIMIT_BURST")
	setPositiveInt(&cfg.CacheTTLMinutes, "CACHE_TTL_MINUTES")
	setPositiveInt(&cfg.WebhookTimeoutSeconds, "WEBHOOK_TIMEOUT_SECONDS")
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setPositiveInt(dst *int, key string) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return
	}
	if v, err := strconv.Atoi(raw); err == nil && v > 0 {
		*dst = v
	}
}
