package database

import (
	"fmt"
	"net/url"
	"strings"
)

// Config holds database connection settings shared across bots.
// URL, when set, takes precedence over the discrete fields.
type Config struct {
	URL            string `yaml:"url" envconfig:"URL"`
	Host           string `yaml:"host" envconfig:"HOST"`
	Port           string `yaml:"port" envconfig:"PORT"`
	User           string `yaml:"user" envconfig:"USER"`
	Password       string `yaml:"password" envconfig:"PASSWORD"`
	Name           string `yaml:"name" envconfig:"NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"MAX_CONNECTIONS"`
	MigrationsDir  string `yaml:"migrations_dir" envconfig:"MIGRATIONS_DIR"`
}

// DSN returns a postgres:// connection URL usable by both lib/pq and golang-migrate.
func (c Config) DSN() string {
	if u := strings.TrimSpace(c.URL); u != "" {
		return u
	}
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	host := c.Host
	if c.Port != "" {
		host = host + ":" + c.Port
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     host,
		Path:     "/" + c.Name,
		RawQuery: "sslmode=" + url.QueryEscape(sslmode),
	}
	return u.String()
}

// Target describes the database for logs without leaking credentials.
func (c Config) Target() (host, port, name string) {
	if strings.TrimSpace(c.URL) == "" {
		return c.Host, c.Port, c.Name
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return "", "", ""
	}
	return u.Hostname(), u.Port(), strings.TrimPrefix(u.Path, "/")
}

// Validate reports missing connection settings.
func (c Config) Validate() error {
	if strings.TrimSpace(c.URL) != "" {
		if _, err := url.Parse(c.URL); err != nil {
			return fmt.Errorf("database.url: %w", err)
		}
		return nil
	}
	if c.Host == "" || c.Name == "" || c.User == "" {
		return fmt.Errorf("database host, name and user are required when database.url is empty")
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("database.max_connections must be >= 0")
	}
	return nil
}
