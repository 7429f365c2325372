package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
)

var DefaultEnvFiles = []string{".env", ".env.local"}

type Config struct {
	HTTPAddr  string `env:"SITEOPS_HTTP_ADDR" envDefault:":8080"`
	RPCSocket string `env:"SITEOPS_RPC_SOCKET" envDefault:"/tmp/siteops.sock"`
	DBPath    string `env:"SITEOPS_DB_PATH" envDefault:"siteops.db"`

	BootstrapAdminEmail    string `env:"SITEOPS_BOOTSTRAP_ADMIN_EMAIL" envDefault:"admin@siteops.local"`
	BootstrapAdminPassword string `env:"SITEOPS_BOOTSTRAP_ADMIN_PASSWORD" envDefault:"admin"`

	LogLevel  string `env:"SITEOPS_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"SITEOPS_LOG_FORMAT" envDefault:"text"`

	CORSOrigins     []string      `env:"SITEOPS_CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`
	SessionDuration time.Duration `env:"SITEOPS_SESSION_DURATION" envDefault:"168h"`
	MaxUploadSize   int64         `env:"SITEOPS_MAX_UPLOAD_SIZE" envDefault:"33554432"`
}

// LoadEnv loads the env files that exist and reports how many were read.
// Variables already set in the process environment win.
func LoadEnv(envFiles []string) (int, error) {
	existing := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if info, err := os.Stat(file); err == nil && !info.IsDir() {
			existing = append(existing, file)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = DefaultEnvFiles
	}
	if _, err := LoadEnv(envFiles); err != nil {
		return Config{}, errors.Wrap(err, "load env files")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "parse environment")
	}
	return cfg, nil
}
