package config

import "time"

// Settings is the typed, immutable view of the gateway configuration.
// Built once at startup; components receive it by value and never mutate it
type Settings struct {
	ServerName    string
	ServerVersion string
	LogLevel      string
	UserAgent     string

	RequestTimeout time.Duration

	RateLimitEnabled bool
	RateLimitMax     int
	RateLimitWindow  time.Duration

	InstanceBlockingEnabled bool
	BlockedInstances        []string

	AuditLogEnabled    bool
	AuditLogMaxEntries int

	RespectContentWarnings bool
	AllowHTTP              bool
	AllowIPLiterals        bool

	CacheTTLActor time.Duration
	// CacheTTLMedia bounds how long an uploaded media id stays attachable
	CacheTTLMedia time.Duration
	// InstanceCacheTTL bounds the instance-info probe cache
	InstanceCacheTTL time.Duration

	// Single-account env bundle; empty Instance means unset
	DefaultInstance string
	DefaultToken    string
	DefaultUsername string
	// Multi-account records "id:instance:token:username" joined by commas
	Accounts []string

	MaxConcurrent            int
	MaxConcurrentPerInstance int
}

// Load reads Settings from the environment using the Conf accessors
func Load(c Conf) Settings {
	return Settings{
		ServerName:    c.MayString("SERVER_NAME", "activitypub-mcp"),
		ServerVersion: c.MayString("SERVER_VERSION", "1.1.0"),
		LogLevel:      c.MayEnum("LOG_LEVEL", "info", "debug", "info", "warning", "error"),
		UserAgent:     c.MayString("USER_AGENT", "ActivityPub-MCP-Client/1.1"),

		RequestTimeout: c.MayMillis("REQUEST_TIMEOUT_MS", 10*time.Second),

		RateLimitEnabled: c.MayBool("RATE_LIMIT_ENABLED", false),
		RateLimitMax:     c.MayInt("RATE_LIMIT_MAX", 100),
		RateLimitWindow:  c.MayMillis("RATE_LIMIT_WINDOW_MS", 15*time.Minute),

		InstanceBlockingEnabled: c.MayBool("INSTANCE_BLOCKING_ENABLED", true),
		BlockedInstances:        c.MayCSV("BLOCKED_INSTANCES", nil),

		AuditLogEnabled:    c.MayBool("AUDIT_LOG_ENABLED", true),
		AuditLogMaxEntries: c.MayInt("AUDIT_LOG_MAX_ENTRIES", 10000),

		RespectContentWarnings: c.MayBool("RESPECT_CONTENT_WARNINGS", true),
		AllowHTTP:              c.MayBool("ALLOW_HTTP", false),
		AllowIPLiterals:        c.MayBool("ALLOW_IP_LITERALS", false),

		CacheTTLActor:    c.MayMillis("CACHE_TTL_ACTOR_MS", 5*time.Minute),
		CacheTTLMedia:    c.MayMillis("CACHE_TTL_MEDIA_MS", time.Hour),
		InstanceCacheTTL: c.MayMillis("DYNAMIC_INSTANCE_CACHE_TTL_MS", time.Hour),

		DefaultInstance: c.MayString("ACTIVITYPUB_DEFAULT_INSTANCE", ""),
		DefaultToken:    c.MayString("ACTIVITYPUB_DEFAULT_TOKEN", ""),
		DefaultUsername: c.MayString("ACTIVITYPUB_DEFAULT_USERNAME", ""),
		Accounts:        c.MayCSV("ACTIVITYPUB_ACCOUNTS", nil),

		MaxConcurrent:            c.MayInt("MAX_CONCURRENT", 16),
		MaxConcurrentPerInstance: c.MayInt("MAX_CONCURRENT_PER_INSTANCE", 4),
	}
}
