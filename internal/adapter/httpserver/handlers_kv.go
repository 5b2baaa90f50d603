package httpserver

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	apperrors "github.com/pscheid92/hashpulse/internal/platform/errors"
)

type kvEntry struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Value     string `json:"value"`
}

type putKVRequest struct {
	Value *string `json:"value"`
}

func (s *Server) registerKVRoutes(api *echo.Group) {
	api.GET("/kv/:namespace/:key", s.handleGetKV)
	api.PUT("/kv/:namespace/:key", s.handlePutKV)
	api.DELETE("/kv/:namespace/:key", s.handleDeleteKV)
}

func (s *Server) handleGetKV(c echo.Context) error {
	ns, key := c.Param("namespace"), c.Param("key")

	value, err := s.app.GetKV(c.Request().Context(), ns, key)
	if err != nil {
		return err
	}

	if err := c.JSON(http.StatusOK, kvEntry{Namespace: ns, Key: key, Value: value}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handlePutKV(c echo.Context) error {
	var body putKVRequest
	if err := decodeBody(c, &body); err != nil {
		return err
	}
	if body.Value == nil {
		return apperrors.ValidationError("value is required")
	}

	if err := s.app.PutKV(c.Request().Context(), c.Param("namespace"), c.Param("key"), *body.Value); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleDeleteKV(c echo.Context) error {
	if err := s.app.DeleteKV(c.Request().Context(), c.Param("namespace"), c.Param("key")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
