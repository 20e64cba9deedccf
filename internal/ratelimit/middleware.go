package ratelimit

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	MsgTooManyAttempts = "Muitas tentativas, tente novamente mais tarde"

	maxInspectBytes = 1 << 20
)

// Policy holds the window and per-scope limits for one group of routes.
// A zero limit disables that scope.
type Policy struct {
	name       string
	window     time.Duration
	ipLimit    int
	emailLimit int
}

func NewPolicy(name string, window time.Duration, ipLimit, emailLimit int) Policy {
	return Policy{
		name:       strings.ToLower(strings.TrimSpace(name)),
		window:     window,
		ipLimit:    ipLimit,
		emailLimit: emailLimit,
	}
}

func (p Policy) enabled() bool {
	return p.window > 0 && (p.ipLimit > 0 || p.emailLimit > 0)
}

func (p Policy) scope() string {
	if p.name == "" {
		return "auth"
	}
	return p.name
}

func (p Policy) key(kind, value string) string {
	return fmt.Sprintf("%s:rl:%s:%s:%s", keyNamespace, kind, p.scope(), value)
}

// Middleware throttles requests per client IP and per e-mail found in the
// JSON body. Store failures are logged and the request is let through.
func Middleware(policy Policy, store Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if policy.ipLimit > 0 {
				if ip := clientIP(r); ip != "" {
					if !allow(ctx, store, policy, "ip", ip, policy.ipLimit) {
						respondTooManyRequests(w)
						return
					}
				}
			}

			if policy.emailLimit > 0 {
				body, err := io.ReadAll(io.LimitReader(r.Body, maxInspectBytes))
				if err != nil {
					log.Warn().Err(err).Msg("Failed to read request body for rate limiting")
				}
				r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), r.Body))

				if email := normalizeEmail(extractEmail(body)); email != "" {
					if !allow(ctx, store, policy, "email", hashValue(email), policy.emailLimit) {
						respondTooManyRequests(w)
						return
					}
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func allow(ctx context.Context, store Store, policy Policy, kind, value string, limit int) bool {
	count, err := store.IncrWithTTL(ctx, policy.key(kind, value), policy.window)
	if err != nil {
		log.Error().Err(err).Str("policy", policy.scope()).Str("scope", kind).Msg("Rate limit store unavailable, allowing request")
		return true
	}
	if count <= int64(limit) {
		return true
	}

	event := log.Warn().
		Str("policy", policy.scope()).
		Str("scope", kind).
		Int64("attempts", count).
		Int("limit", limit).
		Dur("window", policy.window)
	if kind == "ip" {
		event = event.Str("ip", value)
	} else {
		event = event.Str("email_hash", value)
	}
	event.Msg("Rate limit exceeded")
	return false
}

func respondTooManyRequests(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": MsgTooManyAttempts}); err != nil {
		log.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// clientIP expects chi's RealIP middleware to have already rewritten
// RemoteAddr from the proxy headers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}

func extractEmail(payload []byte) string {
	var body struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}
	return body.Email
}

func normalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func hashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
