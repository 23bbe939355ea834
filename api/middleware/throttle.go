package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/mediagateway/api/responses"
	pkgerrors "github.com/angelmondragon/mediagateway/pkg/errors"
	"github.com/angelmondragon/mediagateway/pkg/logger"
	"github.com/angelmondragon/mediagateway/pkg/redis"
)

// Limiter counts hits in fixed windows. *redis.Client implements it.
type Limiter interface {
	Hit(ctx context.Context, scope string, limit int64, window time.Duration) (redis.Window, error)
}

// ThrottlePolicy caps requests per client address on one surface. Forwarding
// headers name the client only when TrustProxy is set; otherwise the socket
// peer does.
type ThrottlePolicy struct {
	Surface    string
	Window     time.Duration
	PerIP      int
	TrustProxy bool
}

func (p ThrottlePolicy) scope(ip string) string {
	surface := strings.ToLower(strings.TrimSpace(p.Surface))
	if surface == "" {
		surface = "default"
	}
	return surface + ":" + ip
}

// Throttle guards brute-forceable endpoints such as /auth. It is a
// pass-through when the limiter is nil or the policy has a zero limit.
func Throttle(policy ThrottlePolicy, limiter Limiter, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil || policy.Window <= 0 || policy.PerIP <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ip := remoteIP(r, policy.TrustProxy)
			if ip == "" {
				next.ServeHTTP(w, r)
				return
			}

			win, err := limiter.Hit(ctx, policy.scope(ip), int64(policy.PerIP), policy.Window)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
				return
			}

			remaining := win.Limit - win.Count
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(win.Limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			if win.Allowed() {
				next.ServeHTTP(w, r)
				return
			}

			if logg != nil {
				logg.Warn(logg.WithFields(ctx, map[string]any{
					"surface":  policy.Surface,
					"ip":       ip,
					"attempts": win.Count,
					"reset_in": win.ResetIn.String(),
				}), "throttle.blocked")
			}
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(win.ResetIn.Seconds()))))
			responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
		})
	}
}

// remoteIP returns the socket peer. Behind a trusted proxy it prefers the
// first X-Forwarded-For hop, then X-Real-IP.
func remoteIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
		if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
