package rate

import "errors"

var (
	// ErrRateLimited is returned once a policy budget is used up.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps counter backend failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
