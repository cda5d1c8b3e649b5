// README: Per-caller token bucket for routes that call the maps provider.
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// idleLimiter is how long an unused caller bucket is kept.
const idleLimiter = 10 * time.Minute

type callerLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type limiterSet struct {
	mu      sync.Mutex
	perSec  rate.Limit
	burst   int
	callers map[string]*callerLimiter
	now     func() time.Time
}

func (s *limiterSet) get(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, cl := range s.callers {
		if now.Sub(cl.lastSeen) > idleLimiter {
			delete(s.callers, k)
		}
	}
	cl, ok := s.callers[key]
	if !ok {
		cl = &callerLimiter{limiter: rate.NewLimiter(s.perSec, s.burst)}
		s.callers[key] = cl
	}
	cl.lastSeen = now
	return cl.limiter
}

// RateLimit keys on the authenticated uid, falling back to the client IP.
// A non-positive perSecond disables limiting.
func RateLimit(perSecond float64, burst int) gin.HandlerFunc {
	if perSecond <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if burst < 1 {
		burst = 1
	}
	set := &limiterSet{
		perSec:  rate.Limit(perSecond),
		burst:   burst,
		callers: map[string]*callerLimiter{},
		now:     time.Now,
	}
	return func(c *gin.Context) {
		key := CallerUID(c)
		if key == "" {
			key = c.ClientIP()
		}
		if !set.get(key).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
