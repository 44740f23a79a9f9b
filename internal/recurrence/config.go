package recurrence

import "time"

const (
	defaultMaxOccurrences = 1000
	defaultMaxSpan        = 2 * 365 * 24 * time.Hour
	defaultLookupLimit    = 100
)

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithCache memoizes expansions in a cache sized by config.
func WithCache(config CacheConfig) EngineOption {
	return func(e *Engine) {
		e.cache = NewCache(config)
	}
}

// WithoutCache expands every request from scratch.
func WithoutCache() EngineOption {
	return func(e *Engine) {
		e.cache = nil
	}
}

// WithExpansionLimits caps the occurrences returned by Expand and the
// length of the range it considers. Zero lifts a cap.
func WithExpansionLimits(maxOccurrences int, maxSpan time.Duration) EngineOption {
	return func(e *Engine) {
		e.maxOccurrences = maxOccurrences
		e.maxSpan = maxSpan
	}
}

// NewEngine creates a recurrence engine. Without options it caches
// expansions with DefaultCacheConfig and covers two orchestra seasons.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		cache:          NewCache(DefaultCacheConfig),
		maxOccurrences: defaultMaxOccurrences,
		maxSpan:        defaultMaxSpan,
		lookupLimit:    defaultLookupLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}
