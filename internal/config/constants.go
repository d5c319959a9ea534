package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Contact session lifetime
const (
	SessionDuration      = 24 * time.Hour
	AutoRefreshThreshold = 4 * time.Hour
)

// Background job intervals
const (
	CleanupJobInterval = time.Hour
	CleanupJobTimeout  = 30 * time.Second
)

// In-memory rate limiter housekeeping
const (
	RateLimitSweepInterval = 5 * time.Minute
	RateLimitRetention     = time.Hour
)

// Rate limit policies
const (
	MessageCreationMaxRequests = 10
	MessageCreationWindow      = 60 * time.Second
	SessionCreationMaxRequests = 5
	SessionCreationWindow      = 5 * time.Minute

	// Coarse per-IP limit on the public widget surface
	PublicIPRateLimitPerMin = 120
)

// List endpoint page sizes
const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

// Organization membership caps by subscription state
const (
	ActiveMembershipLimit   = 5
	InactiveMembershipLimit = 1
)

// AI reply budget
const (
	AgentReplyTimeout      = 60 * time.Second
	AgentMaxToolRounds     = 4
	KnowledgeSearchLimit   = 5
	ConversationHistoryMax = 50
)
