package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/gophguard/internal/flagx"
	"github.com/dmitrijs2005/gophguard/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Pointer fields
// distinguish "absent" from a zero value so a partial file only overrides
// what it names. Durations use timex.Duration ("15m" or nanoseconds).
type JsonConfig struct {
	HTTPAddr                     *string         `json:"http_addr"`
	GRPCAddr                     *string         `json:"grpc_addr"`
	DatabaseDSN                  *string         `json:"database_dsn"`
	SecretKey                    *string         `json:"secret_key"`
	AccessTokenValidityDuration  *timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration *timex.Duration `json:"refresh_token_validity_duration"`
	MaxLoginAttempts             *int            `json:"max_login_attempts"`
	LockoutDuration              *timex.Duration `json:"lockout_duration"`
	MfaIssuer                    *string         `json:"mfa_issuer"`
	MfaSkew                      *uint           `json:"mfa_skew"`
	BcryptCost                   *int            `json:"bcrypt_cost"`
	CookieSecure                 *bool           `json:"cookie_secure"`
	CookieSameSite               *string         `json:"cookie_same_site"`
	CookieDomain                 *string         `json:"cookie_domain"`
	RevokeChainOnReuse           *bool           `json:"revoke_chain_on_reuse"`
	LogLevel                     *string         `json:"log_level"`
}

// parseJson overlays values from the JSON file named by -c/-config (or
// GOPHGUARD_CONFIG) onto config. No path means nothing is loaded. An
// unreadable or invalid file panics: the process must not start half
// configured.
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

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.GRPCAddr, c.GRPCAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	if c.AccessTokenValidityDuration != nil {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration != nil {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	if c.MaxLoginAttempts != nil {
		config.MaxLoginAttempts = *c.MaxLoginAttempts
	}
	if c.LockoutDuration != nil {
		config.LockoutDuration = c.LockoutDuration.Duration
	}
	setString(&config.MfaIssuer, c.MfaIssuer)
	if c.MfaSkew != nil {
		config.MfaSkew = *c.MfaSkew
	}
	if c.BcryptCost != nil {
		config.BcryptCost = *c.BcryptCost
	}
	if c.CookieSecure != nil {
		config.CookieSecure = *c.CookieSecure
	}
	setString(&config.CookieSameSite, c.CookieSameSite)
	setString(&config.CookieDomain, c.CookieDomain)
	if c.RevokeChainOnReuse != nil {
		config.RevokeChainOnReuse = *c.RevokeChainOnReuse
	}
	setString(&config.LogLevel, c.LogLevel)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
