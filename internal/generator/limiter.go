package generator

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// KeyedLimiter rate-limits per key, here the scoped domain, so one busy
// domain cannot starve the others.
type KeyedLimiter struct {
	mu sync.Mutex
	m  map[string]*rate.Limiter
	r  rate.Limit
	b  int
}

func NewKeyedLimiter(reqPerSec float64, burst int) *KeyedLimiter {
	if burst < 1 {
		burst = 1
	}
	return &KeyedLimiter{
		m: make(map[string]*rate.Limiter),
		r: rate.Limit(reqPerSec),
		b: burst,
	}
}

func (kl *KeyedLimiter) limiterFor(key string) *rate.Limiter {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	if lim, ok := kl.m[key]; ok {
		return lim
	}
	lim := rate.NewLimiter(kl.r, kl.b)
	kl.m[key] = lim
	return lim
}

// Wait blocks until key may send. An empty key shares one bucket.
func (kl *KeyedLimiter) Wait(ctx context.Context, key string) error {
	if kl == nil || kl.r <= 0 {
		return nil
	}
	if key == "" {
		key = "_"
	}
	return kl.limiterFor(key).Wait(ctx)
}
