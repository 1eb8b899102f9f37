// Package fakeapi serves an in-process imitation of the Grok HTTP API. Tests
// and the serve command use it to exercise clients without network access.
package fakeapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	openai "github.com/sashabaranov/go-openai"
)

const (
	maxBodyBytes        = 1 << 20 // 1 MiB
	shutdownGracePeriod = 10 * time.Second
	readTimeout         = 30 * time.Second
	writeTimeout        = 45 * time.Second
	idleTimeout         = 120 * time.Second
)

// Reply scripts the answer to one chat completion request.
type Reply struct {
	// Content is the assistant text of a successful completion.
	Content string
	// Status, when >= 400, turns the reply into a provider error carrying Message.
	Status  int
	Message string
	// Body, when set, is written verbatim with Status (200 if unset).
	Body any
	// Delay holds the reply back, for timeout tests.
	Delay time.Duration
}

// Config describes a fake API instance.
type Config struct {
	APIKey string
	Port   int
	Models []openai.Model
}

// Server is the fake API application.
type Server struct {
	cfg     Config
	catalog *Catalog
	app     *echo.Echo
	address string

	mu       sync.Mutex
	replies  []Reply
	requests []map[string]any
}

// New constructs a fake API wired with routing and middleware.
func New(cfg Config) (*Server, error) {
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("port %d must be a valid TCP port", cfg.Port)
	}

	models := cfg.Models
	if len(models) == 0 {
		models = DefaultModels()
	}
	catalog, err := NewCatalog(models...)
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = openAIErrorHandler

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogLatency: true,
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("fakeapi request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"error", v.Error,
			)
			return nil
		},
	}))

	srv := &Server{
		cfg:     cfg,
		catalog: catalog,
		app:     e,
		address: fmt.Sprintf(":%d", cfg.Port),
	}
	e.Use(srv.requireAPIKey)

	srv.registerRoutes()

	return srv, nil
}

// DefaultModels is the catalog used when none is configured.
func DefaultModels() []openai.Model {
	return []openai.Model{
		{ID: "grok-1", Object: "model", OwnedBy: "xai", CreatedAt: 1699574400},
		{ID: "grok-2", Object: "model", OwnedBy: "xai", CreatedAt: 1723680000},
	}
}

// Handler exposes the application for httptest servers.
func (s *Server) Handler() http.Handler {
	return s.app
}

// Catalog returns the model catalog served by the fake.
func (s *Server) Catalog() *Catalog {
	return s.catalog
}

// Enqueue appends scripted replies. Requests beyond the script echo the last
// user message back.
func (s *Server) Enqueue(replies ...Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, replies...)
}

// Requests returns the decoded chat completion payloads received so far.
func (s *Server) Requests() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, len(s.requests))
	copy(out, s.requests)
	return out
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	slog.Info("starting fake api", "addr", s.address)

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
		slog.Info("fake api shutdown complete")
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) registerRoutes() {
	s.app.POST("/chat/completions", s.handleChatCompletions)
	s.app.GET("/models", s.handleListModels)
	s.app.GET("/models/:id", s.handleGetModel)
}

func (s *Server) requireAPIKey(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.cfg.APIKey == "" {
			return next(c)
		}
		if c.Request().Header.Get(echo.HeaderAuthorization) != "Bearer "+s.cfg.APIKey {
			return requestError{
				Status:  http.StatusUnauthorized,
				Message: "Incorrect API key provided",
				Type:    "invalid_request_error",
				Code:    "invalid_api_key",
			}
		}
		return next(c)
	}
}

func (s *Server) handleChatCompletions(c echo.Context) error {
	var payload map[string]any
	if err := decodeRequestBody(c, &payload); err != nil {
		return err
	}

	s.mu.Lock()
	s.requests = append(s.requests, payload)
	var reply Reply
	scripted := len(s.replies) > 0
	if scripted {
		reply = s.replies[0]
		s.replies = s.replies[1:]
	}
	s.mu.Unlock()

	if reply.Delay > 0 {
		select {
		case <-time.After(reply.Delay):
		case <-c.Request().Context().Done():
			return c.Request().Context().Err()
		}
	}

	if reply.Body != nil {
		status := reply.Status
		if status == 0 {
			status = http.StatusOK
		}
		return c.JSON(status, reply.Body)
	}
	if reply.Status >= 400 {
		return requestError{
			Status:  reply.Status,
			Message: reply.Message,
			Type:    "invalid_request_error",
		}
	}

	model, _ := payload["model"].(string)
	if strings.TrimSpace(model) == "" {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "model must be provided",
			Type:    "invalid_request_error",
		}
	}
	messages, ok := payload["messages"].([]any)
	if !ok || len(messages) == 0 {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "at least one message is required",
			Type:    "invalid_request_error",
		}
	}

	content := reply.Content
	if !scripted {
		content = lastUserContent(messages)
	}

	promptTokens := countWords(messages)
	completionTokens := len(strings.Fields(content))
	resp := openai.ChatCompletionResponse{
		ID:      "chatcmpl-" + uuid.NewString(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []openai.ChatCompletionChoice{
			{
				Index: 0,
				Message: openai.ChatCompletionMessage{
					Role:    openai.ChatMessageRoleAssistant,
					Content: content,
				},
				FinishReason: openai.FinishReasonStop,
			},
		},
		Usage: openai.Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		},
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListModels(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"object": "list",
		"data":   s.catalog.List(),
	})
}

func (s *Server) handleGetModel(c echo.Context) error {
	model, err := s.catalog.Lookup(c.Param("id"))
	if err != nil {
		return requestError{
			Status:  http.StatusNotFound,
			Message: fmt.Sprintf("The model %q does not exist", c.Param("id")),
			Type:    "invalid_request_error",
			Code:    "model_not_found",
		}
	}
	return c.JSON(http.StatusOK, model)
}

func lastUserContent(messages []any) string {
	for i := len(messages) - 1; i >= 0; i-- {
		msg, ok := messages[i].(map[string]any)
		if !ok {
			continue
		}
		if role, _ := msg["role"].(string); role == openai.ChatMessageRoleUser {
			content, _ := msg["content"].(string)
			return content
		}
	}
	return ""
}

func countWords(messages []any) int {
	total := 0
	for _, raw := range messages {
		if msg, ok := raw.(map[string]any); ok {
			content, _ := msg["content"].(string)
			total += len(strings.Fields(content))
		}
	}
	return total
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
				Type:    "invalid_request_error",
			}
		}
		return requestError{
			Status:  http.StatusBadRequest,
			Message: fmt.Sprintf("invalid JSON payload: %v", err),
			Type:    "invalid_request_error",
		}
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "request body must contain a single JSON object",
			Type:    "invalid_request_error",
		}
	}
	return nil
}

type requestError struct {
	Status  int
	Message string
	Type    string
	Code    string
}

func (e requestError) Error() string {
	return e.Message
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code,omitempty"`
	} `json:"error"`
}

func writeError(c echo.Context, status int, message, errType, code string) error {
	var payload errorBody
	payload.Error.Message = message
	payload.Error.Type = errType
	payload.Error.Code = code
	return c.JSON(status, payload)
}

func openAIErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var reqErr requestError
	if errors.As(err, &reqErr) {
		_ = writeError(c, reqErr.Status, reqErr.Message, reqErr.Type, reqErr.Code)
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		_ = writeError(c, he.Code, http.StatusText(he.Code), "invalid_request_error", "")
		return
	}

	_ = writeError(c, http.StatusInternalServerError, "internal server error", "server_error", "")
}
