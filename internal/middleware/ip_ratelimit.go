package middleware

import (
	"net/http"

	"github.com/supportdesk/support-server-go/internal/audit"
	"github.com/supportdesk/support-server-go/internal/httputil"
	"github.com/supportdesk/support-server-go/internal/service"
)

// IPRateLimitMiddleware caps unauthenticated widget traffic per client
// address. CORS preflights are not counted.
type IPRateLimitMiddleware struct {
	limiter service.RateLimiter
	policy  service.RateLimitPolicy
}

func NewIPRateLimitMiddleware(limiter service.RateLimiter, policy service.RateLimitPolicy) *IPRateLimitMiddleware {
	return &IPRateLimitMiddleware{limiter: limiter, policy: policy}
}

func (m *IPRateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		ip := audit.ClientIP(r)
		err := m.limiter.Check(r.Context(), ip, m.policy)
		if err == nil {
			next.ServeHTTP(w, r)
			return
		}

		audit.LogFromRequest(r, audit.Event{
			Type: audit.EventRateLimitExceed,
			Details: map[string]any{
				"policy": m.policy.Name,
				"method": r.Method,
				"path":   r.URL.Path,
			},
		})
		httputil.WriteError(w, err)
	})
}
