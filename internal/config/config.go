package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	_ "github.com/joho/godotenv/autoload"
)

// Config holds every setting the API reads from the environment.
type Config struct {
	Port    string   `env:"PORT" envDefault:"8080"`
	AppEnv  string   `env:"APP_ENV" envDefault:"development"`
	Origins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`

	DB DBConfig

	JWTSecret string        `env:"JWT_SECRET,required,notEmpty"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"72h"`

	// TxMaxAttempts bounds how many times a conflicting vote transaction is
	// replayed before the caller sees a transient failure.
	TxMaxAttempts int `env:"TX_MAX_ATTEMPTS" envDefault:"5"`

	// SelfVoteKarma controls whether voting on your own content moves your
	// karma. Open product question; true keeps the historical behavior.
	SelfVoteKarma bool `env:"SELF_VOTE_KARMA" envDefault:"true"`

	CommentRenderDepth int `env:"COMMENT_RENDER_DEPTH" envDefault:"200"`
}

type DBConfig struct {
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER"`
	Password string `env:"DB_PASSWORD"`
	Name     string `env:"DB_NAME"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
}

// DSN renders the connection string understood by the postgres driver.
func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode,
	)
}

// Load parses the environment (after .env autoload) into a Config.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.TxMaxAttempts < 1 {
		return nil, fmt.Errorf("TX_MAX_ATTEMPTS must be at least 1, got %d", cfg.TxMaxAttempts)
	}
	if cfg.CommentRenderDepth < 1 {
		return nil, fmt.Errorf("COMMENT_RENDER_DEPTH must be at least 1, got %d", cfg.CommentRenderDepth)
	}
	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}
