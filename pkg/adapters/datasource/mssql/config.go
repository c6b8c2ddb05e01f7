package mssql

import (
	"fmt"
	"net/url"
)

// Config holds SQL Server connection settings.
type Config struct {
	Server   string
	Port     int
	Database string
	Username string
	Password string
	// Encrypt is passed through to the driver: "true", "false" or "disable".
	Encrypt string
}

// Validate checks that required connection fields are present.
func (c *Config) Validate() error {
	if c.Server == "" {
		return fmt.Errorf("server is required")
	}
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	if c.Username == "" {
		return fmt.Errorf("username is required")
	}
	return nil
}

// DSN builds the sqlserver:// connection URL.
func (c *Config) DSN() string {
	port := c.Port
	if port == 0 {
		port = 1433
	}

	query := url.Values{}
	query.Set("database", c.Database)
	if c.Encrypt != "" {
		query.Set("encrypt", c.Encrypt)
	}

	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(c.Username, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Server, port),
		RawQuery: query.Encode(),
	}
	return u.String()
}
