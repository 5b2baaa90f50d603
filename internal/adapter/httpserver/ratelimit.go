package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	apperrors "github.com/pscheid92/hashpulse/internal/platform/errors"
)

const rateLimiterExpiry = 5 * time.Minute

// newRateLimiter limits each client IP to ratePerSecond with the given burst.
func newRateLimiter(ratePerSecond float64, burst int) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(
		middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(ratePerSecond),
			Burst:     burst,
			ExpiresIn: rateLimiterExpiry,
		},
	)
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		Store: store,
		DenyHandler: func(c echo.Context, identifier string, _ error) error {
			slog.InfoContext(c.Request().Context(), "Rate limit exceeded", "client", identifier, "path", c.Request().URL.Path)
			return c.JSON(http.StatusTooManyRequests, apperrors.ErrorResponse{
				Error: "rate limit exceeded",
				Type:  apperrors.TypeValidation,
			})
		},
	})
}
