// Package config holds the runtime configuration of bizsync.
//
// Every tunable is a flag whose default is seeded from an environment
// variable, so the same binary is driven by a .env.local file, the process
// environment or explicit flags, in increasing order of precedence:
//
//	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
//	cfg := config.Bind(fs, func(k string) string { return env[k] })
//	_ = fs.Parse([]string{"--limit=10"})
package config

import (
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"bizsync/internal/storage"
)

// Config is the fully resolved configuration of one invocation. The env
// tag names the seeding variable and is used as the path in validation
// issues.
type Config struct {
	Input  string `env:"DATA_FILE" validate:"required"`
	TmpDir string `env:"TMP_DIR" validate:"required"`

	Driver string `env:"DB_DRIVER" validate:"required,oneof=postgres sqlite mssql"`
	DSN    string `env:"DB_DSN" validate:"required_unless=Driver postgres"`

	// Discrete PostgreSQL settings, used when DSN is empty.
	Host     string `env:"POSTGRES_HOST"`
	Port     string `env:"POSTGRES_PORT" validate:"omitempty,numeric"`
	Database string `env:"POSTGRES_DB"`
	User     string `env:"POSTGRES_USER"`
	Password string `env:"POSTGRES_PASSWORD"`
	SSL      bool   `env:"POSTGRES_SSL"`

	Limit         int `env:"BUSINESS_LIMIT" validate:"gte=0"`
	ChunkMB       int `env:"CHUNK_MAX_MB" validate:"gte=1"`
	DirectParseMB int `env:"DIRECT_PARSE_MB" validate:"gte=0"`
	BatchSize     int `env:"BATCH_SIZE" validate:"gte=1"`
	StatementRows int `env:"STATEMENT_ROWS" validate:"gte=1,lte=1000"`

	MetricsBackend string `env:"METRICS_BACKEND" validate:"oneof=none pushgateway datadog"`
	PushgatewayURL string `env:"PUSHGATEWAY_URL" validate:"required_if=MetricsBackend pushgateway"`
	DatadogAddr    string `env:"DATADOG_ADDR" validate:"required_if=MetricsBackend datadog"`

	LogLevel  string `env:"LOG_LEVEL" validate:"oneof=panic fatal error warn warning info debug trace"`
	LogFile   string `env:"LOG_FILE"`
	LogFormat string `env:"LOG_FORMAT" validate:"oneof=text json"`

	Progress bool `env:"PROGRESS"`
}

// Bind defines every flag on fs with its default taken from getenv and
// returns the Config the flags write into. Parse fs afterwards.
func Bind(fs *pflag.FlagSet, getenv func(string) string) *Config {
	cfg := &Config{}

	str := func(k, d string) string {
		if v := getenv(k); v != "" {
			return v
		}
		return d
	}
	num := func(k string, d int) int {
		if v := getenv(k); v != "" {
			if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				return i
			}
		}
		return d
	}
	flag := func(k string, d bool) bool {
		switch strings.ToLower(strings.TrimSpace(getenv(k))) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
		return d
	}

	fs.StringVar(&cfg.Input, "input", str("DATA_FILE", "data/data.json"), "Bulk JSON dataset to sync")
	fs.StringVar(&cfg.TmpDir, "tmp-dir", str("TMP_DIR", "data/tmp"), "Directory for run chunk files")

	fs.StringVar(&cfg.Driver, "driver", str("DB_DRIVER", string(storage.Postgres)), "Store kind: postgres, sqlite or mssql")
	fs.StringVar(&cfg.DSN, "dsn", getenv("DB_DSN"), "Full DSN (required for sqlite and mssql)")
	fs.StringVar(&cfg.Host, "host", getenv("POSTGRES_HOST"), "PostgreSQL host")
	fs.StringVar(&cfg.Port, "port", str("POSTGRES_PORT", "5432"), "PostgreSQL port")
	fs.StringVar(&cfg.Database, "database", getenv("POSTGRES_DB"), "PostgreSQL database")
	fs.StringVar(&cfg.User, "user", getenv("POSTGRES_USER"), "PostgreSQL user")
	fs.StringVar(&cfg.Password, "password", getenv("POSTGRES_PASSWORD"), "PostgreSQL password")
	fs.BoolVar(&cfg.SSL, "ssl", flag("POSTGRES_SSL", true), "PostgreSQL sslmode=require (false: disable)")

	fs.IntVar(&cfg.Limit, "limit", num("BUSINESS_LIMIT", 0), "Stop after this many records with a data_id (0: no limit)")
	fs.IntVar(&cfg.ChunkMB, "chunk-mb", num("CHUNK_MAX_MB", 5), "Chunk file size ceiling in MiB")
	fs.IntVar(&cfg.DirectParseMB, "direct-parse-mb", num("DIRECT_PARSE_MB", 100), "Parse inputs below this size in one pass (MiB)")
	fs.IntVar(&cfg.BatchSize, "batch-size", num("BATCH_SIZE", 100), "New businesses per write batch")
	fs.IntVar(&cfg.StatementRows, "statement-rows", num("STATEMENT_ROWS", 50), "Rows per insert statement")

	fs.StringVar(&cfg.MetricsBackend, "metrics-backend", str("METRICS_BACKEND", "none"), "Metrics backend: none, pushgateway or datadog")
	fs.StringVar(&cfg.PushgatewayURL, "pushgateway-url", getenv("PUSHGATEWAY_URL"), "Prometheus Pushgateway base URL")
	fs.StringVar(&cfg.DatadogAddr, "datadog-addr", getenv("DATADOG_ADDR"), "DogStatsD address")

	fs.StringVar(&cfg.LogLevel, "log-level", str("LOG_LEVEL", "info"), "Log level")
	fs.StringVar(&cfg.LogFile, "log-file", getenv("LOG_FILE"), "Also write logs to this rotated file")
	fs.StringVar(&cfg.LogFormat, "log-format", str("LOG_FORMAT", "text"), "Log format: text or json")

	fs.BoolVar(&cfg.Progress, "progress", flag("PROGRESS", false), "Show a progress bar")
	return cfg
}

// ConnString returns the DSN for the configured driver. For PostgreSQL
// without an explicit DSN it is assembled from the discrete settings.
func (c *Config) ConnString() string {
	if c.DSN != "" || c.Driver != string(storage.Postgres) {
		return c.DSN
	}
	mode := "disable"
	if c.SSL {
		mode = "require"
	}
	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": {mode}}.Encode(),
	}
	if c.User != "" {
		if c.Password != "" {
			u.User = url.UserPassword(c.User, c.Password)
		} else {
			u.User = url.User(c.User)
		}
	}
	return u.String()
}

// Storage returns the backend selection for storage.Open.
func (c *Config) Storage() storage.Config {
	return storage.Config{Kind: c.Driver, DSN: c.ConnString()}
}
