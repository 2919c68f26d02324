package shared

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv   string `env:"APP_ENV" envDefault:"prod"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	// HBNBEnv=test wipes the relational schema on startup.
	HBNBEnv string `env:"HBNB_ENV"`

	APIHost     string `env:"HBNB_API_HOST" envDefault:"0.0.0.0"`
	APIPort     int    `env:"HBNB_API_PORT" envDefault:"5000"`
	MetricsAddr string `env:"METRICS_ADDR"`

	StorageType string `env:"HBNB_TYPE_STORAGE"`
	FilePath    string `env:"HBNB_FILE_PATH" envDefault:"file.json"`
	DBDialect   string `env:"HBNB_DB_DIALECT" envDefault:"mysql"`
	DBDSN       string `env:"HBNB_DB_DSN"`
	MySQLUser   string `env:"HBNB_MYSQL_USER"`
	MySQLPwd    string `env:"HBNB_MYSQL_PWD"`
	MySQLHost   string `env:"HBNB_MYSQL_HOST" envDefault:"localhost"`
	MySQLDB     string `env:"HBNB_MYSQL_DB"`

	RedisAddr string        `env:"REDIS_ADDR"`
	RedisPass string        `env:"REDIS_PASSWORD"`
	RedisDB   int           `env:"REDIS_DB" envDefault:"0"`
	CacheTTL  time.Duration `env:"CACHE_TTL" envDefault:"5m"`

	RateLimitRPS float64  `env:"RATE_LIMIT_RPS" envDefault:"0"`
	CORSOrigins  []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`

	ImportWorkers   int `env:"IMPORT_WORKERS" envDefault:"4"`
	ImportBatchSize int `env:"IMPORT_BATCH_SIZE" envDefault:"100"`
}

// Parse reads the configuration from the environment.
func Parse() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if c.ImportWorkers < 1 {
		c.ImportWorkers = 1
	}
	if c.ImportBatchSize < 1 {
		c.ImportBatchSize = 1
	}
	return c, nil
}

// Load is Parse for binaries: a bad environment is fatal.
func Load() Config {
	c, err := Parse()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if c.UseDB() && c.DBDSN == "" && c.MySQLUser == "" {
		log.Warn().Msg("HBNB_MYSQL_USER is empty")
	}
	return c
}

func (c Config) HTTPAddr() string {
	return net.JoinHostPort(c.APIHost, strconv.Itoa(c.APIPort))
}

// UseDB reports whether the relational backend is selected.
func (c Config) UseDB() bool { return c.StorageType == "db" }

// DropAll reports whether relational tables are dropped on open.
func (c Config) DropAll() bool { return c.HBNBEnv == "test" }

func (c Config) CacheTTLSeconds() int { return int(c.CacheTTL / time.Second) }
