package config

import (
	"flag"
	"time"

	"github.com/dmitrijs2005/userkit/internal/flagx"
)

// parseFlags overlays Config with command-line flags.
//
//	-d string   PostgreSQL DSN
//	-s string   session token secret
//	-t int      session token validity, minutes
//	-r string   default role for new accounts
//	-l string   log level
//	-p int      generated password bytes
//	-n int      default page size
//
// Unknown flags are filtered out first so other components may define their
// own. Invalid values panic, like a failed JSON config.
func parseFlags(config *Config, args []string) {
	args = flagx.FilterArgs(args, []string{"-d", "-s", "-t", "-r", "-l", "-p", "-n"})

	fs := flag.NewFlagSet("userkit", flag.ContinueOnError)

	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "session token secret")
	validity := fs.Int("t", int(config.SessionTokenValidityDuration.Minutes()), "session token validity (in minutes)")
	fs.StringVar(&config.DefaultRole, "r", config.DefaultRole, "default role for new accounts")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.IntVar(&config.GeneratedPasswordBytes, "p", config.GeneratedPasswordBytes, "generated password bytes")
	fs.IntVar(&config.PageSize, "n", config.PageSize, "default page size")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.SessionTokenValidityDuration = time.Duration(*validity) * time.Minute
}
