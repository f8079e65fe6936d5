package auth

import (
	"sync"
	"time"
)

// LoginLimiter counts failed sign-in attempts per client IP and email and
// locks the pair out once the budget for the window is spent.
type LoginLimiter struct {
	mu       sync.Mutex
	failures map[string]*failureWindow

	maxAttempts int
	window      time.Duration
	lockout     time.Duration
	now         func() time.Time

	stop chan struct{}
	once sync.Once
}

type failureWindow struct {
	count       int
	start       time.Time
	lockedUntil time.Time
}

// LoginLimiterConfig configures a LoginLimiter. Zero values fall back to
// 5 attempts per 15 minutes with a 30 minute lockout.
type LoginLimiterConfig struct {
	MaxAttempts     int
	Window          time.Duration
	Lockout         time.Duration
	CleanupInterval time.Duration
}

func NewLoginLimiter(cfg LoginLimiterConfig) *LoginLimiter {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Window <= 0 {
		cfg.Window = 15 * time.Minute
	}
	if cfg.Lockout <= 0 {
		cfg.Lockout = 30 * time.Minute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}

	l := &LoginLimiter{
		failures:    make(map[string]*failureWindow),
		maxAttempts: cfg.MaxAttempts,
		window:      cfg.Window,
		lockout:     cfg.Lockout,
		now:         time.Now,
		stop:        make(chan struct{}),
	}
	go l.sweep(cfg.CleanupInterval)
	return l
}

// Stop ends the background sweep. Safe to call more than once.
func (l *LoginLimiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}

func limiterKey(ip, email string) string {
	return ip + "|" + email
}

// Allow reports whether another attempt may be made, and if not, how long
// the caller has to wait.
func (l *LoginLimiter) Allow(ip, email string) (bool, time.Duration) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	f, ok := l.failures[limiterKey(ip, email)]
	switch {
	case !ok:
		return true, 0
	case now.Before(f.lockedUntil):
		return false, f.lockedUntil.Sub(now)
	case now.Sub(f.start) > l.window:
		return true, 0
	case f.count < l.maxAttempts:
		return true, 0
	}
	return false, l.lockout
}

// RecordFailure counts a failed attempt and reports whether it triggered a
// lockout.
func (l *LoginLimiter) RecordFailure(ip, email string) bool {
	now := l.now()
	key := limiterKey(ip, email)

	l.mu.Lock()
	defer l.mu.Unlock()

	f, ok := l.failures[key]
	if !ok || now.Sub(f.start) > l.window {
		f = &failureWindow{start: now}
		l.failures[key] = f
	}

	f.count++
	if f.count >= l.maxAttempts {
		f.lockedUntil = now.Add(l.lockout)
		return true
	}
	return false
}

// RecordSuccess forgets the pair's failures.
func (l *LoginLimiter) RecordSuccess(ip, email string) {
	l.mu.Lock()
	delete(l.failures, limiterKey(ip, email))
	l.mu.Unlock()
}

func (l *LoginLimiter) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.purge()
		case <-l.stop:
			return
		}
	}
}

func (l *LoginLimiter) purge() {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, f := range l.failures {
		if now.Sub(f.start) > l.window && !now.Before(f.lockedUntil) {
			delete(l.failures, key)
		}
	}
}
