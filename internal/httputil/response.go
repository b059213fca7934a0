// Package httputil holds the response envelope, error translation, and request/audit logging middleware shared by
// every HTTP handler.
package httputil

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/goalguild/core-service/internal/apierrors"
	"github.com/goalguild/core-service/internal/store"
)

// SuccessResponse wraps successful API responses.
type SuccessResponse struct {
	Data any `json:"data"`
}

// ErrorBody holds structured error details returned to the caller.
type ErrorBody struct {
	Code    apierrors.Code         `json:"code"`
	Message string                 `json:"message"`
	Fields  []apierrors.FieldError `json:"fields,omitempty"`
}

// ErrorResponse wraps failed API responses.
type ErrorResponse struct {
	Error         ErrorBody `json:"error"`
	CorrelationID string    `json:"correlationId,omitempty"`
}

// Success sends a 200 JSON response with the given data.
func Success(c fiber.Ctx, data any) error {
	return c.JSON(SuccessResponse{Data: data})
}

// SuccessStatus sends a JSON response with a custom status code.
func SuccessStatus(c fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(SuccessResponse{Data: data})
}

// Fail sends a JSON error response with the given status, code, and message.
func Fail(c fiber.Ctx, status int, code apierrors.Code, message string) error {
	return c.Status(status).JSON(ErrorResponse{
		Error: ErrorBody{Code: code, Message: message},
	})
}

// HandleError translates a service-layer error into the single HTTP error response boundary. apierrors.Error values
// carry their own kind and are surfaced verbatim (with per-field detail for validation failures); a
// store.ErrVersionConflict that reaches the boundary becomes conflict.version (409); any other error is treated as
// internal and the response body carries only a correlation id, per the propagation policy in §7.
func HandleError(c fiber.Ctx, err error) error {
	var apiErr *apierrors.Error
	if errors.As(err, &apiErr) {
		status := apierrors.Status(apiErr.Kind)
		if status >= 500 {
			rid, _ := c.Locals("requestid").(string)
			return c.Status(status).JSON(ErrorResponse{
				Error:         ErrorBody{Code: apiErr.Kind, Message: "An internal error occurred"},
				CorrelationID: rid,
			})
		}
		return c.Status(status).JSON(ErrorResponse{
			Error: ErrorBody{Code: apiErr.Kind, Message: apiErr.Message, Fields: apiErr.Fields},
		})
	}

	if errors.Is(err, store.ErrVersionConflict) {
		return c.Status(apierrors.Status(apierrors.ConflictVersion)).JSON(ErrorResponse{
			Error: ErrorBody{Code: apierrors.ConflictVersion, Message: "resource was modified concurrently"},
		})
	}

	rid, _ := c.Locals("requestid").(string)
	return c.Status(apierrors.Status(apierrors.Internal)).JSON(ErrorResponse{
		Error:         ErrorBody{Code: apierrors.Internal, Message: "An internal error occurred"},
		CorrelationID: rid,
	})
}
