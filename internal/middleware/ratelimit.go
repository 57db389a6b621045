package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	internal_errors "github.com/linkup-dev/linkup/internal/errors"
	"github.com/linkup-dev/linkup/internal/logger"
	"github.com/linkup-dev/linkup/internal/utils"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/time/rate"
)

type bucket struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64
}

// RateLimiter keeps one token bucket per key. Buckets idle for longer than
// ttl are dropped by Prune.
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	ttl     time.Duration
	buckets *xsync.MapOf[string, *bucket]
}

// NewRateLimiter allows burst requests at once and one more every interval.
func NewRateLimiter(every time.Duration, burst int, ttl time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:   rate.Every(every),
		burst:   burst,
		ttl:     ttl,
		buckets: xsync.NewMapOf[string, *bucket](),
	}
}

func (l *RateLimiter) Allow(key string) bool {
	b, _ := l.buckets.LoadOrCompute(key, func() *bucket {
		return &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
	})
	b.lastSeen.Store(time.Now().UnixNano())
	return b.limiter.Allow()
}

// Prune drops buckets not used since now-ttl and returns how many were dropped.
func (l *RateLimiter) Prune(now time.Time) int {
	cutoff := now.Add(-l.ttl).UnixNano()
	pruned := 0
	l.buckets.Range(func(key string, b *bucket) bool {
		l.buckets.Compute(key, func(cur *bucket, loaded bool) (*bucket, bool) {
			if !loaded {
				return nil, true
			}
			if cur.lastSeen.Load() >= cutoff {
				return cur, false
			}
			pruned++
			return nil, true
		})
		return true
	})
	return pruned
}

func (l *RateLimiter) Len() int {
	return l.buckets.Size()
}

// StartJanitor prunes idle buckets every interval until ctx is done.
func (l *RateLimiter) StartJanitor(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				l.Prune(now)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// KeyFunc extracts the rate limiting key of a request.
type KeyFunc func(r *http.Request) (string, error)

// RateLimit rejects requests whose key ran out of tokens. Admins are exempt.
func RateLimit(l *RateLimiter, key KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if identity := GetIdentity(r); identity != nil && identity.IsAdmin() {
				next.ServeHTTP(w, r)
				return
			}

			k, err := key(r)
			if err != nil {
				utils.WriteErrorAndStatusCode(w, err)
				return
			}
			if !l.Allow(k) {
				logger.Log.Debug("rate limited", "path", r.URL.Path)
				utils.WriteErrorAndStatusCode(w, internal_errors.ErrRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ByIP keys on the TCP peer address. Forwarding headers are not trusted.
func ByIP(r *http.Request) (string, error) {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	if net.ParseIP(ip) == nil {
		return "", internal_errors.Validation(fmt.Sprintf("Invalid client address %q", ip))
	}
	return ip, nil
}

// ByEmailInBody keys on the email field of a JSON body and restores the body for the handler.
func ByEmailInBody(r *http.Request) (string, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return "", internal_errors.Validation("Failed to read request body")
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	var data struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return "", internal_errors.Validation("Body is invalid json")
	}
	email := strings.ToLower(strings.TrimSpace(data.Email))
	if email == "" {
		return "", internal_errors.Validation("Email is required")
	}
	return email, nil
}
