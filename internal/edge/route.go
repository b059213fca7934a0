// Package edge implements the Edge Gateway (C11): route registration, CORS, the three throttle layers, and the
// principal-keyed response cache that sit in front of every handler.
package edge

import (
	"time"

	"github.com/gofiber/fiber/v3"
)

// AuthMode names the authentication requirement a Route carries. Routing itself stays a static data table rather
// than a sequence of fluent app.Get/app.Post calls so the auth mode and throttle tier travel with the route
// definition instead of being implied by where a call appears in a long registration function.
type AuthMode int

const (
	// Public routes require no bearer token (health checks, the gateway upgrade handshake, which authenticates
	// inside the WebSocket itself).
	Public AuthMode = iota
	// APIKeyOrPublic routes accept an API key header in addition to no credential at all (webhook deliveries,
	// verified instead by their own signature check rather than a bearer token).
	APIKeyOrPublic
	// Bearer routes require a valid Authorization: Bearer token, verified by auth.RequireBearer.
	Bearer
)

// Route is one entry in the static method+path routing table.
type Route struct {
	Method  string
	Path    string
	Auth    AuthMode
	Handler fiber.Handler

	// Sensitive marks a route as subject to the tighter per-sensitive-method limiter, keyed separately from the
	// usage-plan limiter's burst/daily counters.
	Sensitive bool

	// CacheTTL, when non-zero, wraps Handler in the principal-keyed response cache with this TTL. Only meaningful
	// for GET routes; registering it on a mutating method is a programming error the table doesn't need to guard
	// against since the table is authored, not user input.
	CacheTTL time.Duration
}

// Table is the full static routing table, registered onto a fiber.App in declaration order.
type Table []Route

// Middlewares supplies the shared middleware Register wraps each route with, beyond the per-route Auth/Sensitive/
// CacheTTL concerns already carried on the Route itself.
type Middlewares struct {
	RequireBearer fiber.Handler
	PlanLimiter   fiber.Handler
	Sensitive     fiber.Handler
	Cache         *ResponseCache
}

// Register installs every route in t onto app, composing per-route middleware in a fixed order: auth, then the
// usage-plan limiter (which needs the principal auth attaches), then the sensitive-route limiter, then the response
// cache, then the handler itself.
func (t Table) Register(app *fiber.App, mw Middlewares) {
	for _, r := range t {
		chain := make([]fiber.Handler, 0, 4)

		if r.Auth == Bearer {
			chain = append(chain, mw.RequireBearer, mw.PlanLimiter)
		}
		if r.Sensitive {
			chain = append(chain, mw.Sensitive)
		}

		handler := r.Handler
		if r.CacheTTL > 0 && mw.Cache != nil {
			handler = mw.Cache.Wrap(r.CacheTTL, handler)
		}
		chain = append(chain, handler)

		switch r.Method {
		case fiber.MethodGet:
			app.Get(r.Path, chain...)
		case fiber.MethodPost:
			app.Post(r.Path, chain...)
		case fiber.MethodPut:
			app.Put(r.Path, chain...)
		case fiber.MethodPatch:
			app.Patch(r.Path, chain...)
		case fiber.MethodDelete:
			app.Delete(r.Path, chain...)
		default:
			panic("edge: unsupported route method " + r.Method)
		}
	}
}
