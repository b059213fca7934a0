package edge

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
)

// allowedHeaders is the static preflight allow-headers set every route answers with, regardless of which headers
// the particular request actually needs.
var allowedHeaders = []string{
	"Accept",
	"Content-Type",
	"Authorization",
	"X-Api-Key",
	"Origin",
	"Referer",
	"X-Amz-Date",
	"X-Amz-Security-Token",
	"X-Requested-With",
}

// NewCORS builds the CORS middleware for the configured allowed origins.
func NewCORS(allowedOrigins []string) fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins:  allowedOrigins,
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  allowedHeaders,
		ExposeHeaders: []string{"X-Request-ID"},
	})
}
