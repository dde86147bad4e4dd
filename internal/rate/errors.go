package rate

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrLimited reports that a counter exceeded its ceiling.
	ErrLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps transport failures talking to Redis.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

// LimitError carries the scope that tripped and how long until the
// window resets. It matches ErrLimited under errors.Is.
type LimitError struct {
	Scope      string
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("rate limited on %q, retry after %s", e.Scope, e.RetryAfter)
}

func (e *LimitError) Is(target error) bool {
	return target == ErrLimited
}
