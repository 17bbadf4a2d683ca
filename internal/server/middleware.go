package server

import (
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/taxintel/taxintel/internal/config"
)

// endpointClass selects which token bucket a request draws from
type endpointClass int

const (
	classChat endpointClass = iota
	classCalc
	classRead
)

// rateLimiter holds per-IP token buckets, one set per endpoint class
type rateLimiter struct {
	cfg config.RateLimitConfig

	mu      sync.Mutex
	buckets map[endpointClass]map[string]*bucketEntry
}

type bucketEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// pruneAfter is how long an idle IP keeps its buckets
const pruneAfter = 10 * time.Minute

func newRateLimiter(cfg config.RateLimitConfig) *rateLimiter {
	return &rateLimiter{
		cfg: cfg,
		buckets: map[endpointClass]map[string]*bucketEntry{
			classChat: {},
			classCalc: {},
			classRead: {},
		},
	}
}

func (rl *rateLimiter) perMinute(class endpointClass) int {
	switch class {
	case classChat:
		return rl.cfg.ChatPerMin
	case classCalc:
		return rl.cfg.CalcPerMin
	default:
		return rl.cfg.ReadPerMin
	}
}

// allow reports whether ip may make another request in the given class
func (rl *rateLimiter) allow(class endpointClass, ip string) bool {
	perMin := rl.perMinute(class)
	if perMin <= 0 {
		return true
	}
	burst := rl.cfg.Burst
	if burst < 1 {
		burst = 1
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	entries := rl.buckets[class]
	entry, ok := entries[ip]
	if !ok {
		entry = &bucketEntry{limiter: rate.NewLimiter(rate.Limit(float64(perMin)/60), burst)}
		entries[ip] = entry
	}
	entry.lastSeen = now

	// Opportunistic pruning of idle IPs.
	if len(entries) > 1000 {
		for addr, e := range entries {
			if now.Sub(e.lastSeen) > pruneAfter {
				delete(entries, addr)
			}
		}
	}

	return entry.limiter.Allow()
}

// limited wraps a handler with the per-IP rate limit for its class
func (s *Server) limited(class endpointClass, next http.HandlerFunc) http.HandlerFunc {
	if s.limiter == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(class, clientIP(r)) {
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, please slow down")
			return
		}
		next(w, r)
	}
}

// clientIP extracts the caller's address, honoring X-Forwarded-For from a
// fronting proxy.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		for i := 0; i < len(fwd); i++ {
			if fwd[i] == ',' {
				return fwd[:i]
			}
		}
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// statusRecorder captures the response code for the request log
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Printf("%s %s %d %v", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
