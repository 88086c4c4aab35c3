package handlers

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiterIdle is how long a client IP may stay silent before its limiter
// is dropped.
const limiterIdle = 10 * time.Minute

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipRateLimiter keeps one token bucket per client IP.
type ipRateLimiter struct {
	mu    sync.Mutex
	ips   map[string]*ipLimiter
	r     rate.Limit
	b     int
	now   func() time.Time
	swept time.Time
}

func newIPRateLimiter(perSecond float64, burst int) *ipRateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &ipRateLimiter{
		ips: make(map[string]*ipLimiter),
		r:   rate.Limit(perSecond),
		b:   burst,
		now: time.Now,
	}
}

func (i *ipRateLimiter) allow(ip string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	now := i.now()
	i.sweep(now)

	l, ok := i.ips[ip]
	if !ok {
		l = &ipLimiter{limiter: rate.NewLimiter(i.r, i.b)}
		i.ips[ip] = l
	}
	l.lastSeen = now
	return l.limiter.AllowN(now, 1)
}

// sweep forgets idle IPs at most once per limiterIdle. Caller holds mu.
func (i *ipRateLimiter) sweep(now time.Time) {
	if now.Sub(i.swept) < limiterIdle {
		return
	}
	for ip, l := range i.ips {
		if now.Sub(l.lastSeen) >= limiterIdle {
			delete(i.ips, ip)
		}
	}
	i.swept = now
}
