package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"promptforge/internal/config"
	"promptforge/internal/ledger"
	"promptforge/internal/models"
	"promptforge/internal/pipeline"
)

const (
	maxBodyBytes        = 1 << 20 // 1 MiB
	shutdownGracePeriod = 10 * time.Second
	readTimeout         = 30 * time.Second
	writeTimeout        = 120 * time.Second
	idleTimeout         = 120 * time.Second
)

type Server struct {
	cfg      config.Config
	pipeline *pipeline.Pipeline
	ledger   ledger.Ledger
	app      *echo.Echo
	address  string
}

// New constructs an HTTP server wired with routing and middleware.
func New(cfg config.Config, p *pipeline.Pipeline, creditLedger ledger.Ledger) (*Server, error) {
	if p == nil {
		return nil, errors.New("pipeline must not be nil")
	}
	if creditLedger == nil {
		return nil, errors.New("ledger must not be nil")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogLatency: true,
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"error", v.Error,
			)
			return nil
		},
	}))
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'; form-action 'none'",
	}))

	srv := &Server{
		cfg:      cfg,
		pipeline: p,
		ledger:   creditLedger,
		app:      e,
		address:  fmt.Sprintf(":%d", cfg.Server.Port),
	}

	srv.registerRoutes()

	return srv, nil
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	slog.Info("starting server", "addr", s.address)

	httpServer := &http.Server{
		Addr:         s.address,
		Handler:      s.app,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.app.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := s.app.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		slog.Info("server shutdown complete")
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) registerRoutes() {
	s.app.GET("/health", s.handleHealth)
	s.app.POST("/v1/generate", s.handleGenerate)
	s.app.POST("/v1/improve", s.handleImprove)
	s.app.POST("/v1/suggest", s.handleSuggest)
	s.app.GET("/v1/balance/:account", s.handleBalance)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type generateRequest struct {
	AccountID   string `json:"account_id"`
	Input       string `json:"input"`
	Constraints string `json:"constraints,omitempty"`
	Language    string `json:"language,omitempty"`
	ModelID     string `json:"model_id,omitempty"`
}

type generateResponse struct {
	Text           string `json:"text"`
	CreditsCharged int    `json:"credits_charged"`
	Provider       string `json:"provider"`
}

type suggestResponse struct {
	Categories     []models.SuggestionCategory `json:"categories"`
	CreditsCharged int                         `json:"credits_charged"`
}

type balanceResponse struct {
	AccountID string `json:"account_id"`
	Tier      string `json:"tier"`
	Balance   int    `json:"balance"`
}

func (s *Server) handleGenerate(c echo.Context) error {
	return s.runGeneration(c, models.OpGenerate)
}

func (s *Server) handleImprove(c echo.Context) error {
	return s.runGeneration(c, models.OpImprove)
}

func (s *Server) runGeneration(c echo.Context, op models.OperationKind) error {
	var req generateRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}
	if err := req.validate(); err != nil {
		return err
	}

	result, err := s.pipeline.Generate(c.Request().Context(), models.GenerationRequest{
		Op:             op,
		AccountID:      req.AccountID,
		Input:          req.Input,
		Constraints:    req.Constraints,
		TargetLanguage: req.Language,
		ModelID:        req.ModelID,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, generateResponse{
		Text:           result.Text,
		CreditsCharged: result.CreditsCharged,
		Provider:       string(result.Provider),
	})
}

func (s *Server) handleSuggest(c echo.Context) error {
	var req generateRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}
	if err := req.validate(); err != nil {
		return err
	}

	set, charged, err := s.pipeline.Suggest(c.Request().Context(), models.GenerationRequest{
		Op:             models.OpSuggest,
		AccountID:      req.AccountID,
		Input:          req.Input,
		TargetLanguage: req.Language,
		ModelID:        req.ModelID,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, suggestResponse{
		Categories:     set.Categories,
		CreditsCharged: charged,
	})
}

func (s *Server) handleBalance(c echo.Context) error {
	accountID := c.Param("account")
	account, err := s.ledger.Account(c.Request().Context(), accountID)
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, balanceResponse{
		AccountID: account.ID,
		Tier:      account.Tier,
		Balance:   account.Balance,
	})
}

func (r generateRequest) validate() error {
	if r.AccountID == "" {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "account_id is required",
			Kind:    "invalid_request",
		}
	}
	if r.Input == "" {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "input is required",
			Kind:    "invalid_request",
		}
	}
	return nil
}

func decodeRequestBody[T any](c echo.Context, target *T) error {
	req := c.Request()
	defer req.Body.Close()

	req.Body = http.MaxBytesReader(c.Response(), req.Body, maxBodyBytes)

	decoder := json.NewDecoder(req.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return requestError{
				Status:  http.StatusBadRequest,
				Message: "request body is required",
				Kind:    "invalid_request",
			}
		}
		return requestError{
			Status:  http.StatusBadRequest,
			Message: fmt.Sprintf("invalid JSON payload: %v", err),
			Kind:    "invalid_request",
		}
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "request body must contain a single JSON object",
			Kind:    "invalid_request",
		}
	}
	return nil
}
