package catalog

import (
	"errors"
	"fmt"
	"time"
)

// Типизированные ошибки границы апстрим-каталога.
// Кэш и резолвер переводят их в fail-closed отказ, никогда в allow.
var (
	ErrNotFound     = errors.New("catalog: item not found")
	ErrUnauthorized = errors.New("catalog: tenant credentials rejected")
	ErrUnavailable  = errors.New("catalog: upstream unavailable")
)

// ThrottleError — апстрим попросил притормозить (вычитан Retry-After).
type ThrottleError struct {
	RetryAfter time.Duration
	Cause      error
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("throttled: retry after %v (cause: %v)", e.RetryAfter, e.Cause)
}

func (e *ThrottleError) Unwrap() error {
	return e.Cause
}
