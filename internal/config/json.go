package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/userkit/internal/flagx"
	"github.com/dmitrijs2005/userkit/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations use
// timex.Duration, so "30m" and integer nanoseconds are both accepted.
type JsonConfig struct {
	DatabaseDSN                  string         `json:"database_dsn"`
	SecretKey                    string         `json:"secret_key"`
	SessionTokenValidityDuration timex.Duration `json:"session_token_validity_duration"`
	DefaultRole                  string         `json:"default_role"`
	LogLevel                     string         `json:"log_level"`
	GeneratedPasswordBytes       int            `json:"generated_password_bytes"`
	PageSize                     int            `json:"page_size"`
}

// parseJson loads the file named by -c/-config, if any, and copies its
// non-empty values into config. Unreadable files and invalid JSON panic.
func parseJson(config *Config, args []string) {
	path := flagx.ConfigPath(args)
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.SecretKey != "" {
		config.SecretKey = c.SecretKey
	}
	if c.SessionTokenValidityDuration.Duration > 0 {
		config.SessionTokenValidityDuration = c.SessionTokenValidityDuration.Duration
	}
	if c.DefaultRole != "" {
		config.DefaultRole = c.DefaultRole
	}
	if c.LogLevel != "" {
		config.LogLevel = c.LogLevel
	}
	if c.GeneratedPasswordBytes > 0 {
		config.GeneratedPasswordBytes = c.GeneratedPasswordBytes
	}
	if c.PageSize > 0 {
		config.PageSize = c.PageSize
	}
}
