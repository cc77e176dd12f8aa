package websocket

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

const (
	rateLimiterIdle    = 10 * time.Minute
	rateLimiterCleanup = 5 * time.Minute
)

// LimitReason is also the label value of the rejections metric.
type LimitReason string

const (
	LimitReasonGlobal LimitReason = "global_limit"
	LimitReasonPerIP  LimitReason = "per_ip_limit"
	LimitReasonRate   LimitReason = "rate_limit"
)

type globalLimiter struct {
	current atomic.Int64
	max     int64
}

func (l *globalLimiter) acquire() bool {
	for {
		current := l.current.Load()
		if current >= l.max {
			return false
		}
		if l.current.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

func (l *globalLimiter) release() {
	l.current.Add(-1)
}

type ipLimiter struct {
	mu     sync.Mutex
	ips    map[string]int
	maxPer int
}

func (l *ipLimiter) acquire(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ips[ip] >= l.maxPer {
		return false
	}
	l.ips[ip]++
	return true
}

func (l *ipLimiter) release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ips[ip] <= 1 {
		delete(l.ips, ip)
		return
	}
	l.ips[ip]--
}

func (l *ipLimiter) count(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ips[ip]
}

// upgradeRateLimiter is a token bucket per IP for new upgrades.
type upgradeRateLimiter struct {
	clock     clockwork.Clock
	mu        sync.Mutex
	limiters  map[string]*rateEntry
	rate      rate.Limit
	burst     int
	cleanupAt time.Time
}

type rateEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func (l *upgradeRateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if now.After(l.cleanupAt) {
		cutoff := now.Add(-rateLimiterIdle)
		for key, entry := range l.limiters {
			if entry.lastSeen.Before(cutoff) {
				delete(l.limiters, key)
			}
		}
		l.cleanupAt = now.Add(rateLimiterCleanup)
	}

	entry, ok := l.limiters[ip]
	if !ok {
		entry = &rateEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[ip] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// Limits gates websocket upgrades by rate, instance-wide cap and per-IP cap.
type Limits struct {
	global *globalLimiter
	perIP  *ipLimiter
	rate   *upgradeRateLimiter
}

func NewLimits(globalMax int64, perIPMax int, upgradesPerSecond float64, burst int, clock clockwork.Clock) *Limits {
	return &Limits{
		global: &globalLimiter{max: globalMax},
		perIP:  &ipLimiter{ips: make(map[string]int), maxPer: perIPMax},
		rate: &upgradeRateLimiter{
			clock:     clock,
			limiters:  make(map[string]*rateEntry),
			rate:      rate.Limit(upgradesPerSecond),
			burst:     burst,
			cleanupAt: clock.Now().Add(rateLimiterCleanup),
		},
	}
}

// Acquire reserves a slot for ip. On success the caller must Release the same ip.
func (l *Limits) Acquire(ip string) (bool, LimitReason) {
	if !l.rate.allow(ip) {
		return false, LimitReasonRate
	}
	if !l.global.acquire() {
		return false, LimitReasonGlobal
	}
	if !l.perIP.acquire(ip) {
		l.global.release()
		return false, LimitReasonPerIP
	}
	return true, ""
}

func (l *Limits) Release(ip string) {
	l.perIP.release(ip)
	l.global.release()
}

func (l *Limits) Current() int64 { return l.global.current.Load() }
func (l *Limits) Max() int64     { return l.global.max }
func (l *Limits) IPCount(ip string) int {
	return l.perIP.count(ip)
}
