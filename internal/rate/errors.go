package rate

import "errors"

var (
	// ErrRateLimited reports an exhausted budget or an active flood wait.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps backend failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
