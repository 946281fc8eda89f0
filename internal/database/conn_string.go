package database

import (
	"fmt"
	"net/url"

	"github.com/mvoss-labs/pumpsentinel/internal/config"
)

// BuildConnString builds a PostgreSQL connection string for the optional
// episode archive sink from cfg.
func BuildConnString(cfg config.DatabaseConfig) string {
	escapedPassword := url.QueryEscape(cfg.Password)

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User,
		escapedPassword,
		cfg.Host,
		cfg.Port,
		cfg.Name,
		sslMode,
	)
}
