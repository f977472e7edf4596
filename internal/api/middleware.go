package api

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// ipLimiter hands out one token bucket per client IP. Idle buckets age out
// of the cache.
type ipLimiter struct {
	perSecond  rate.Limit
	burst      int
	retryAfter int
	buckets    *cache.Cache
}

func newIPLimiter(perSecond float64, burst int) *ipLimiter {
	l := &ipLimiter{
		perSecond: rate.Limit(perSecond),
		burst:     burst,
		buckets:   cache.New(10*time.Minute, 20*time.Minute),
	}
	if perSecond > 0 {
		l.retryAfter = int(math.Ceil(1 / perSecond))
	}
	if l.retryAfter < 1 {
		l.retryAfter = 1
	}
	return l
}

func (l *ipLimiter) enabled() bool {
	return l.perSecond > 0 && l.burst > 0
}

func (l *ipLimiter) bucket(ip string) *rate.Limiter {
	if v, found := l.buckets.Get(ip); found {
		return v.(*rate.Limiter)
	}
	lim := rate.NewLimiter(l.perSecond, l.burst)
	// Add fails if a concurrent request stored one first; use theirs.
	if err := l.buckets.Add(ip, lim, cache.DefaultExpiration); err != nil {
		if v, found := l.buckets.Get(ip); found {
			return v.(*rate.Limiter)
		}
	}
	return lim
}

func (l *ipLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.enabled() {
			next.ServeHTTP(w, r)
			return
		}

		ip := clientIP(r)
		if !l.bucket(ip).Allow() {
			log.Warn().Str("ip", ip).Str("path", r.URL.Path).Msg("rate limit exceeded")
			w.Header().Set("Retry-After", strconv.Itoa(l.retryAfter))
			writeError(w, http.StatusTooManyRequests, "too many requests, slow down")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// statusWriter remembers the status code for the request log.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	if sw.status == 0 {
		sw.status = http.StatusOK
	}
	return sw.ResponseWriter.Write(b)
}

func requestLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)

		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("query", r.URL.RawQuery).
			Int("status", sw.status).
			Dur("latency", time.Since(start)).
			Msg("http request")
	})
}

func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}
				log.Error().
					Interface("panic", err).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Msg("PANIC_RECOVERED")
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
