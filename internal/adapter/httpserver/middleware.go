package httpserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/labstack/echo/v4"

	"github.com/pscheid92/hashpulse/internal/platform/correlation"
	apperrors "github.com/pscheid92/hashpulse/internal/platform/errors"
)

var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// correlationMiddleware reuses a well-formed X-Request-ID from the caller and echoes the ID back.
func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Request().Header.Get(echo.HeaderXRequestID)
		if !requestIDPattern.MatchString(id) {
			id = correlation.NewID()
		}
		c.Response().Header().Set(echo.HeaderXRequestID, id)

		ctx := correlation.WithID(c.Request().Context(), id)
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

func ErrorHandlingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}
			if c.Response().Committed {
				slog.ErrorContext(c.Request().Context(), "Error after response was committed", "error", err)
				return nil
			}

			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				return writeHTTPError(c, httpErr)
			}

			return HandleError(c, err)
		}
	}
}

// HandleError writes err as a structured JSON response.
func HandleError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}

	structuredErr := apperrors.AsStructuredError(err)
	logError(c, structuredErr)
	if err := c.JSON(structuredErr.HTTPStatus(), structuredErr.ToResponse()); err != nil {
		return fmt.Errorf("failed to write error response: %w", err)
	}
	return nil
}

func logError(c echo.Context, err *apperrors.Error) {
	attrs := []any{
		"error_type", err.Type,
		"message", err.Message,
		"path", c.Request().URL.Path,
		"method", c.Request().Method,
		"status", err.HTTPStatus(),
	}
	if err.StatusCode != 0 {
		attrs = append(attrs, "upstream_status", err.StatusCode)
	}

	for k, v := range err.Context {
		attrs = append(attrs, k, v)
	}

	ctx := c.Request().Context()
	switch err.Type {
	case apperrors.TypeValidation:
		slog.InfoContext(ctx, "Validation error", attrs...)
	case apperrors.TypeNotFound:
		slog.InfoContext(ctx, "Not found", attrs...)
	case apperrors.TypeTransport, apperrors.TypeAuth, apperrors.TypeExtraction, apperrors.TypeParse:
		if err.Cause != nil {
			attrs = append(attrs, "cause", err.Cause)
		}
		slog.WarnContext(ctx, "Upstream error", attrs...)
	case apperrors.TypeInternal:
		if err.Cause != nil {
			attrs = append(attrs, "cause", err.Cause)
		}
		slog.ErrorContext(ctx, "Internal error", attrs...)
	default:
		slog.ErrorContext(ctx, "Unknown error type", attrs...)
	}
}

// writeHTTPError keeps echo's status code (404 for unknown routes, 405, 429 ...) but uses the structured body.
func writeHTTPError(c echo.Context, httpErr *echo.HTTPError) error {
	resp := WrapHTTPError(httpErr).ToResponse()
	if err := c.JSON(httpErr.Code, resp); err != nil {
		return fmt.Errorf("failed to write error response: %w", err)
	}
	return nil
}

func WrapHTTPError(httpErr *echo.HTTPError) *apperrors.Error {
	message := http.StatusText(httpErr.Code)
	if msg, ok := httpErr.Message.(string); ok && msg != "" {
		message = msg
	}

	var errType apperrors.ErrorType
	switch {
	case httpErr.Code == http.StatusNotFound:
		errType = apperrors.TypeNotFound
	case httpErr.Code >= 400 && httpErr.Code < 500:
		errType = apperrors.TypeValidation
	case httpErr.Code == http.StatusBadGateway:
		errType = apperrors.TypeTransport
	default:
		errType = apperrors.TypeInternal
	}

	err := &apperrors.Error{
		Type:    errType,
		Message: message,
		Context: make(map[string]any),
	}

	if httpErr.Internal != nil {
		err.Cause = httpErr.Internal
	}

	return err
}
