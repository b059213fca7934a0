package auth

import (
	"github.com/gofiber/fiber/v3"

	"github.com/goalguild/core-service/internal/httputil"
)

// RequireBearer returns Fiber middleware that runs the C1 Token Authorizer against the Authorization header and
// stores the resulting Principal in c.Locals("principal"), mirroring the teacher's RequireAuth.
func RequireBearer(authorizer *Authorizer) fiber.Handler {
	return func(c fiber.Ctx) error {
		principal, err := authorizer.Authorize(c.Context(), c.Get("Authorization"))
		if err != nil {
			return httputil.HandleError(c, err)
		}
		c.Locals("principal", principal)
		return c.Next()
	}
}

// PrincipalFromContext extracts the Principal stored by RequireBearer. Panics if called on a route not behind
// RequireBearer, which is a programming error, not a request-time condition.
func PrincipalFromContext(c fiber.Ctx) Principal {
	p, ok := c.Locals("principal").(Principal)
	if !ok {
		panic("auth.PrincipalFromContext: no principal in context; route is missing RequireBearer")
	}
	return p
}
