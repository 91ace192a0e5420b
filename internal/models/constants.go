package models

import "time"

const (
	// DefaultUpstreamBaseURL is the local development backend.
	DefaultUpstreamBaseURL = "http://localhost:5198/api"

	// DefaultUpstreamTimeout bounds a single upstream call.
	DefaultUpstreamTimeout = 10 * time.Second

	// DefaultKitFetchConcurrency caps parallel kit lookups per load.
	DefaultKitFetchConcurrency = 8

	// DefaultLookupCacheTTL is how long service/user tables stay cached in Redis.
	DefaultLookupCacheTTL = 5 * time.Minute

	// DefaultSnapshotTTL is how long a user's rows are kept between requests.
	DefaultSnapshotTTL = 30 * time.Minute

	// DefaultUserClaim carries the user id in the session token.
	DefaultUserClaim = "sub"

	// DefaultRoleClaim carries the role in the session token.
	DefaultRoleClaim = "role"

	// DefaultResultURLTemplate is where "view result" points.
	DefaultResultURLTemplate = "/results/{bookingId}"

	// RateLimitRPS and RateLimitBurst apply per user.
	RateLimitRPS   = 5
	RateLimitBurst = 10
)
