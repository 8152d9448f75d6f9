package api

import (
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"tunefriends/internal/app"
	apperrors "tunefriends/internal/errors"
)

// Auth states what a route needs from the caller's session.
type Auth int

const (
	// Public routes accept any caller.
	Public Auth = iota
	// User routes require a live session.
	User
	// Guest routes require that the caller is not logged in.
	Guest
)

// sessionToken reads the bearer token or, failing that, the session cookie.
func sessionToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := c.Cookie(sessionCookie); err == nil {
		return cookie
	}
	return ""
}

// principal resolves the caller for route's auth mode. ok is false when
// the request has already been answered.
func (s *Server) principal(c *gin.Context, auth Auth) (p app.Principal, ok bool) {
	token := sessionToken(c)
	switch auth {
	case User:
		if token == "" {
			s.fail(c, apperrors.Unauthenticated("Must be logged in!"))
			return app.Principal{}, false
		}
		p, err := s.app.Authenticate(c.Request.Context(), token)
		if err != nil {
			s.fail(c, err)
			return app.Principal{}, false
		}
		return p, true
	case Guest:
		if token == "" {
			return app.Principal{}, true
		}
		if _, err := s.app.Authenticate(c.Request.Context(), token); err == nil {
			s.fail(c, apperrors.New(apperrors.KindNotAllowed, apperrors.CodeLoggedIn, "Must be logged out!"))
			return app.Principal{}, false
		}
		return app.Principal{}, true
	default:
		if token == "" {
			return app.Principal{}, true
		}
		p, err := s.app.Authenticate(c.Request.Context(), token)
		if err != nil {
			return app.Principal{}, true
		}
		return p, true
	}
}

// RateLimiter keeps one token bucket per client address.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = int(perSecond) + 1
	}
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(perSecond),
		burst:    burst,
	}
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	l, ok := rl.limiters[key]
	if !ok {
		if len(rl.limiters) >= 10000 {
			rl.limiters = make(map[string]*rate.Limiter)
		}
		l = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[key] = l
	}
	return l
}

func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.rate <= 0 || c.Request.URL.Path == "/health" || c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}
		if !rl.limiter(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"msg":  "Too many requests, slow down!",
				"code": apperrors.CodeRateLimited,
			})
			return
		}
		c.Next()
	}
}
