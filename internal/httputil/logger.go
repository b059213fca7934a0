package httputil

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"
)

// RequestLogger returns Fiber middleware that logs every request through the provided zerolog logger. It should be
// registered after the requestid middleware so that the request ID is available in Locals. Paths in excludePaths are
// skipped entirely (used to keep health checks out of the logs).
func RequestLogger(logger zerolog.Logger, excludePaths ...string) fiber.Handler {
	skip := make(map[string]bool, len(excludePaths))
	for _, p := range excludePaths {
		skip[p] = true
	}

	return func(c fiber.Ctx) error {
		if skip[c.Path()] {
			return c.Next()
		}

		err := c.Next()

		status := c.Response().StatusCode()
		event := levelForStatus(logger, status)

		if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
			event.Str("request_id", rid)
		}

		event.
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Str("latency", strings.ReplaceAll(time.Since(c.Context().Time()).String(), "µ", "u")).
			Str("ip", c.IP()).
			Msg("Request")

		return err
	}
}

// levelForStatus selects the appropriate log level based on the HTTP status code: Error for 5xx, Warn for 4xx, and
// Info for everything else.
func levelForStatus(logger zerolog.Logger, status int) *zerolog.Event {
	switch {
	case status >= 500:
		return logger.Error()
	case status >= 400:
		return logger.Warn()
	default:
		return logger.Info()
	}
}

// AuditEvent is a single structured audit record as required by §7: timestamp, principal, source, resource, action,
// outcome and a free-form details map. No secrets are ever placed in Details.
type AuditEvent struct {
	Timestamp    time.Time      `json:"timestamp"`
	UserID       string         `json:"userId,omitempty"`
	SourceIP     string         `json:"sourceIp"`
	UserAgent    string         `json:"userAgent"`
	ResourceType string         `json:"resourceType"`
	ResourceID   string         `json:"resourceId,omitempty"`
	Action       string         `json:"action"`
	Outcome      string         `json:"outcome"`
	Details      map[string]any `json:"details,omitempty"`
}

// Audit emits one structured audit log line, UTC ISO-8601 timestamped, through logger at Info level. Audit
// emission never itself blocks the response: callers fire it after writing the response body.
func Audit(logger zerolog.Logger, ev AuditEvent) {
	logger.Info().
		Str("component", "audit").
		Str("timestamp", ev.Timestamp.UTC().Format(time.RFC3339)).
		Str("user_id", ev.UserID).
		Str("source_ip", ev.SourceIP).
		Str("user_agent", ev.UserAgent).
		Str("resource_type", ev.ResourceType).
		Str("resource_id", ev.ResourceID).
		Str("action", ev.Action).
		Str("outcome", ev.Outcome).
		Interface("details", ev.Details).
		Msg("audit")
}
