package database

import (
	"errors"
	"net/url"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func openPostgres(cfg Config) (*gorm.DB, error) {
	dsn, err := buildPostgresDSN(cfg)
	if err != nil {
		return nil, err
	}
	return gorm.Open(postgres.Open(dsn), gormConfig(cfg))
}

// buildPostgresDSN renders a postgres:// URL. TLS is off unless sslmode is
// given in the options.
func buildPostgresDSN(cfg Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}
	if cfg.User == "" {
		return "", errors.New("postgres configuration requires a user")
	}

	query := url.Values{}
	query.Set("sslmode", "disable")
	for key, value := range cfg.Options {
		query.Set(key, value)
	}

	dsn := url.URL{
		Scheme:   "postgres",
		User:     url.User(cfg.User),
		Host:     hostPort(cfg.Host, "localhost", cfg.Port, 5432),
		Path:     "/" + databaseName(cfg),
		RawQuery: query.Encode(),
	}
	if cfg.Password != "" {
		dsn.User = url.UserPassword(cfg.User, cfg.Password)
	}
	return dsn.String(), nil
}
