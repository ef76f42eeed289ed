package config

import (
	"strconv"
	"time"
)

const envPrefix = "GOPHGUARD_"

// parseEnv overlays GOPHGUARD_* environment variables. Values that fail to
// parse are ignored and the previous layer's value is kept.
func parseEnv(config *Config, lookup func(string) (string, bool)) {
	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v, ok := lookup(envPrefix + name); ok {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}
	num := func(name string, dst *int) {
		if v, ok := lookup(envPrefix + name); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	flag := func(name string, dst *bool) {
		if v, ok := lookup(envPrefix + name); ok {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	str("HTTP_ADDR", &config.HTTPAddr)
	str("GRPC_ADDR", &config.GRPCAddr)
	str("DATABASE_DSN", &config.DatabaseDSN)
	str("SECRET_KEY", &config.SecretKey)
	dur("ACCESS_TOKEN_TTL", &config.AccessTokenValidityDuration)
	dur("REFRESH_TOKEN_TTL", &config.RefreshTokenValidityDuration)
	num("MAX_LOGIN_ATTEMPTS", &config.MaxLoginAttempts)
	dur("LOCKOUT_DURATION", &config.LockoutDuration)
	str("MFA_ISSUER", &config.MfaIssuer)
	if v, ok := lookup(envPrefix + "MFA_SKEW"); ok {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			config.MfaSkew = uint(n)
		}
	}
	num("BCRYPT_COST", &config.BcryptCost)
	flag("COOKIE_SECURE", &config.CookieSecure)
	str("COOKIE_SAMESITE", &config.CookieSameSite)
	str("COOKIE_DOMAIN", &config.CookieDomain)
	flag("REVOKE_CHAIN_ON_REUSE", &config.RevokeChainOnReuse)
	str("LOG_LEVEL", &config.LogLevel)
}
