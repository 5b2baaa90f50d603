package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"

	"github.com/labstack/echo/v4"

	"github.com/pscheid92/hashpulse/internal/app"
	apperrors "github.com/pscheid92/hashpulse/internal/platform/errors"
)

const maxRequestBody = 1 << 20

type runTaskRequest struct {
	Namespace  string          `json:"namespace"`
	Inputs     map[string]any  `json:"inputs"`
	Properties json.RawMessage `json:"properties"`
}

func (s *Server) registerTaskRoutes(api *echo.Group) {
	api.GET("/tasks", s.handleListTasks)
	api.POST("/tasks/:type", s.handleRunTask)
	api.GET("/blobs", s.handleGetBlob)
}

func (s *Server) handleListTasks(c echo.Context) error {
	if err := c.JSON(http.StatusOK, map[string][]string{"types": s.app.TaskTypes()}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleRunTask(c echo.Context) error {
	var body runTaskRequest
	if err := decodeBody(c, &body); err != nil {
		return err
	}

	result, err := s.app.Run(c.Request().Context(), app.RunRequest{
		Type:       c.Param("type"),
		Namespace:  body.Namespace,
		Inputs:     body.Inputs,
		Properties: body.Properties,
	})
	if err != nil {
		return err
	}

	if err := c.JSON(http.StatusOK, result); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleGetBlob(c echo.Context) error {
	uri := c.QueryParam("uri")
	if uri == "" {
		return apperrors.ValidationError("uri query parameter is required")
	}

	data, err := s.app.ReadBlob(c.Request().Context(), uri)
	if err != nil {
		return err
	}

	contentType := mime.TypeByExtension(path.Ext(uri))
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	if err := c.Blob(http.StatusOK, contentType, data); err != nil {
		return fmt.Errorf("failed to send blob response: %w", err)
	}
	return nil
}

// decodeBody reads a JSON object of at most maxRequestBody bytes. An empty body leaves v untouched.
func decodeBody(c echo.Context, v any) error {
	dec := json.NewDecoder(io.LimitReader(c.Request().Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apperrors.ValidationError(fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}
