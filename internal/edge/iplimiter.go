package edge

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/limiter"
)

// NewIPLimiter returns the outermost throttle layer: a fixed-window rate limit keyed by client IP (fiber/v3's
// limiter middleware keys by c.IP() unless a KeyGenerator is set, which this layer deliberately leaves at its
// default so every route shares one IP-scoped window regardless of path).
func NewIPLimiter(maxRequests, windowSeconds int) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        maxRequests,
		Expiration: time.Duration(windowSeconds) * time.Second,
	})
}
