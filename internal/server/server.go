// Package server exposes the HTTP surface: report upload, diagnosis
// queries and doctor-facing history browsing.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"medreport/internal/answer"
	"medreport/internal/domain"
	"medreport/internal/ingest"
)

const principalKey = "principal"

// Server wires the core pipelines behind echo handlers.
type Server struct {
	echo     *echo.Echo
	pipeline *ingest.Pipeline
	answerer *answer.Answerer
	auth     domain.Authenticator
	log      zerolog.Logger
}

func New(pipeline *ingest.Pipeline, answerer *answer.Answerer, auth domain.Authenticator, log zerolog.Logger) *Server {
	s := &Server{
		pipeline: pipeline,
		answerer: answerer,
		auth:     auth,
		log:      log.With().Str("component", "http").Logger(),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(s.requestLogger)

	e.GET("/", s.handleRoot)
	e.GET("/health", s.handleHealth)

	authed := e.Group("", echomw.BasicAuth(s.basicAuth))
	authed.POST("/reports/upload", s.handleUpload)
	authed.POST("/diagnosis/from_report", s.handleDiagnosis)
	authed.GET("/diagnosis/by_patient_name", s.handleHistory)

	s.echo = e
	return s
}

// Handler exposes the routing tree, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

func (s *Server) Start(addr string) error { return s.echo.Start(addr) }

func (s *Server) Shutdown(ctx context.Context) error { return s.echo.Shutdown(ctx) }

func (s *Server) basicAuth(username, password string, c echo.Context) (bool, error) {
	p, err := s.auth.Authenticate(c.Request().Context(), username, password)
	if err != nil {
		return false, nil
	}
	c.Set(principalKey, p)
	return true, nil
}

func principalFrom(c echo.Context) domain.Principal {
	p, _ := c.Get(principalKey).(domain.Principal)
	return p
}

func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		s.log.Info().
			Str("method", c.Request().Method).
			Str("path", c.Request().URL.Path).
			Int("status", c.Response().Status).
			Dur("elapsed", time.Since(start)).
			Msg("request")
		return err
	}
}

// respondError maps the closed error taxonomy onto HTTP statuses in one
// place so handlers never invent status codes.
func respondError(c echo.Context, err error) error {
	var ingErr *domain.IngestionError
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrGenerationFailed):
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	case errors.Is(err, domain.ErrServiceUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &ingErr):
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	case errors.Is(err, context.Canceled):
		// Client went away; 499 is conventional even if unregistered.
		return echo.NewHTTPError(499, "request cancelled")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleRoot(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"message": "Welcome to AI-Medical!"})
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"message": "OK"})
}
