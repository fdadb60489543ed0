// Package ratelimiter implements token bucket rate limiting with an
// in-memory store and HTTP middleware.
//
// A bucket holds up to Capacity tokens and gains RefillRate tokens every
// RefillInterval. Each request takes one token; a request arriving at an
// empty bucket is rejected with 429 and a Retry-After header.
//
//	store := ratelimiter.NewMemoryStore()
//	defer store.Close()
//	tb, err := ratelimiter.NewTokenBucket(store, ratelimiter.Config{
//		Capacity:       30,
//		RefillRate:     30,
//		RefillInterval: time.Minute,
//	})
//	r.With(ratelimiter.Middleware(tb, ratelimiter.ByClientIP)).Handle("/bell/door", d)
package ratelimiter
