package config

import (
	"flag"

	"github.com/dmitrijs2005/gophguard/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags:
//
//	-a string            HTTP bind address (e.g., ":8080")
//	-g string            gRPC health bind address (e.g., ":50051")
//	-d string            PostgreSQL DSN
//	-s string            session token HMAC secret
//	-t duration          access token validity (e.g., "15m")
//	-r duration          refresh token validity (e.g., "168h")
//	-max-attempts int    failed logins before lockout
//	-lockout duration    lockout window
//	-mfa-skew uint       accepted TOTP skew in 30s steps
//	-log-level string    debug, info, warn or error
//
// The function filters args to the flags it recognizes using
// flagx.FilterArgs, so -c/-config and flags of other components do not
// collide.
func parseFlags(config *Config, args []string) {
	args = flagx.FilterArgs(args, []string{
		"-a", "-g", "-d", "-s", "-t", "-r",
		"-max-attempts", "-lockout", "-mfa-skew", "-log-level",
	})

	fs := flag.NewFlagSet("server", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run the HTTP API")
	fs.StringVar(&config.GRPCAddr, "g", config.GRPCAddr, "address and port to run the gRPC health endpoint")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "session token secret key")
	fs.DurationVar(&config.AccessTokenValidityDuration, "t", config.AccessTokenValidityDuration, "access token validity")
	fs.DurationVar(&config.RefreshTokenValidityDuration, "r", config.RefreshTokenValidityDuration, "refresh token validity")
	fs.IntVar(&config.MaxLoginAttempts, "max-attempts", config.MaxLoginAttempts, "failed logins before lockout")
	fs.DurationVar(&config.LockoutDuration, "lockout", config.LockoutDuration, "lockout window")
	fs.UintVar(&config.MfaSkew, "mfa-skew", config.MfaSkew, "accepted TOTP skew in 30s steps")
	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
