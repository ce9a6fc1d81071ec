package config

// Sanitize returns a copy of cfg with backend credentials redacted, for
// logging the effective configuration at startup without leaking secrets.
func (c *Config) Sanitize() *Config {
	sanitized := *c
	if c.Audit.Backend == "postgres" {
		sanitized.Audit.Path = "***REDACTED***"
	}
	if c.Cache.Backend == "redis" && c.Cache.RedisAddr != "" {
		sanitized.Cache.RedisAddr = "***REDACTED***"
	}
	return &sanitized
}
