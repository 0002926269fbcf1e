package server

import (
	"net"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// logRequests logs every request with its status and latency.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		s.logger.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapper.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", s.clientIP(r))
	})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

// withCORS answers preflight requests and tags responses for allowed origins.
func (s *Server) withCORS(next http.Handler) http.Handler {
	methods := strings.Join(s.cors.Methods, ", ")
	headers := strings.Join(s.cors.Headers, ", ")
	anyOrigin := slices.Contains(s.cors.Origins, "*")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (anyOrigin || slices.Contains(s.cors.Origins, origin)) {
			h := w.Header()
			if anyOrigin && !s.cors.Credentials {
				h.Set("Access-Control-Allow-Origin", "*")
			} else {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}
			if s.cors.Credentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Allow-Methods", methods)
				h.Set("Access-Control-Allow-Headers", headers)
				h.Set("Access-Control-Max-Age", strconv.Itoa(int((12 * time.Hour).Seconds())))
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// tokenGate rejects requests without a valid bearer token.
func (s *Server) tokenGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || token == "" {
			s.writeError(w, http.StatusUnauthorized, "Missing API token")
			return
		}
		if _, err := s.users.VerifyToken(r.Context(), token); err != nil {
			s.logger.Warn("Rejected API token", "ip", s.clientIP(r), "error", err)
			s.writeError(w, http.StatusUnauthorized, "Invalid API token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimiter hands out a token bucket per client IP.
type rateLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	clients map[string]*client
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newRateLimiter allows requests per window for each IP, all at once if needed.
func newRateLimiter(requests int, window time.Duration) *rateLimiter {
	if requests < 1 || window <= 0 {
		return &rateLimiter{limit: rate.Inf, burst: 1, clients: make(map[string]*client)}
	}
	return &rateLimiter{
		limit:   rate.Every(window / time.Duration(requests)),
		burst:   requests,
		clients: make(map[string]*client),
	}
}

func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()

	// Clean idle entries
	for k, c := range rl.clients {
		if now.Sub(c.lastSeen) > time.Hour {
			delete(rl.clients, k)
		}
	}

	c, ok := rl.clients[ip]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[ip] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := s.clientIP(r)
		if !s.limiter.allow(ip) {
			s.logger.Warn("Rate limit exceeded", "ip", ip, "path", r.URL.Path)
			s.writeError(w, http.StatusTooManyRequests, "Too many requests. Please try again later.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP returns the address used for rate limiting and logs. Forwarding
// headers are client controlled, so they are only read behind a trusted
// proxy, which appends the peer it saw as the last X-Forwarded-For entry.
func (s *Server) clientIP(r *http.Request) string {
	if s.trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			if i := strings.LastIndexByte(xff, ','); i >= 0 {
				xff = xff[i+1:]
			}
			if ip := strings.TrimSpace(xff); ip != "" {
				return ip
			}
		}
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			return xri
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
