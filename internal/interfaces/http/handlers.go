package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aibymlMelissa/aibyml-business/internal/application/port"
	"github.com/aibymlMelissa/aibyml-business/internal/application/workflow"
	"github.com/aibymlMelissa/aibyml-business/internal/domain/entity"
	domainworkflow "github.com/aibymlMelissa/aibyml-business/internal/domain/workflow"
)

// ChatService answers chatbot conversations
type ChatService interface {
	Converse(ctx context.Context, input entity.ConversationInput) (*entity.ChatbotResponse, error)
	Welcome() string
}

// Notifier is the real-time notification channel
type Notifier interface {
	SubscriberCount() int
	ServeWS(c *gin.Context)
}

// ComponentHealth is the health of one backing component
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// HealthFunc reports component health by name
type HealthFunc func() map[string]ComponentHealth

// Handlers contains all HTTP request handlers
type Handlers struct {
	engine   workflow.WorkflowEngine
	chatbot  ChatService
	exporter port.RequestExporter
	notifier Notifier
	health   HealthFunc
	logger   Logger
	now      func() time.Time
}

// NewHandlers creates a new Handlers instance
func NewHandlers(deps Dependencies, logger Logger) *Handlers {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Handlers{
		engine:   deps.Engine,
		chatbot:  deps.Chatbot,
		exporter: deps.Exporter,
		notifier: deps.Notifier,
		health:   deps.Health,
		logger:   logger,
		now:      time.Now,
	}
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status           string                     `json:"status"`
	Timestamp        string                     `json:"timestamp"`
	WebSocketClients int                        `json:"websocketClients"`
	Components       map[string]ComponentHealth `json:"components,omitempty"`
}

// CloseRequestBody is the body of POST /:id/close
type CloseRequestBody struct {
	ClosedBy string `json:"closedBy"`
}

// AbortRequestBody is the body of POST /:id/abort
type AbortRequestBody struct {
	Reason string `json:"reason"`
}

// WelcomeResponse is the body of GET /api/chatbot/welcome
type WelcomeResponse struct {
	Message string `json:"message"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: h.now().UTC().Format(time.RFC3339),
	}
	if h.notifier != nil {
		resp.WebSocketClients = h.notifier.SubscriberCount()
	}

	code := http.StatusOK
	if h.health != nil {
		resp.Components = h.health()
		for _, comp := range resp.Components {
			if !comp.Healthy {
				resp.Status = "degraded"
				code = http.StatusServiceUnavailable
			}
		}
	}

	c.JSON(code, resp)
}

// CreateRequest handles POST /api/service-requests
func (h *Handlers) CreateRequest(c *gin.Context) {
	var input entity.CreateServiceRequestInput
	if !h.bind(c, &input) {
		return
	}

	req, err := h.engine.CreateServiceRequest(c.Request.Context(), input)
	if err != nil {
		h.fail(c, "create", "", err)
		return
	}
	c.JSON(http.StatusCreated, req)
}

// ListRequests handles GET /api/service-requests
func (h *Handlers) ListRequests(c *gin.Context) {
	filter, ok := h.filter(c)
	if !ok {
		return
	}

	requests, err := h.engine.GetAllRequests(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, "list", "", err)
		return
	}
	if requests == nil {
		requests = []*entity.ServiceRequest{}
	}
	c.JSON(http.StatusOK, requests)
}

// ExportRequests handles GET /api/service-requests/export
func (h *Handlers) ExportRequests(c *gin.Context) {
	filter, ok := h.filter(c)
	if !ok {
		return
	}

	requests, err := h.engine.GetAllRequests(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, "export", "", err)
		return
	}

	var buf bytes.Buffer
	if err := h.exporter.Export(c.Request.Context(), &buf, requests); err != nil {
		h.fail(c, "export", "", err)
		return
	}

	filename := fmt.Sprintf("service-requests-%s%s", h.now().UTC().Format("20060102-150405"), h.exporter.FileExtension())
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, h.exporter.ContentType(), buf.Bytes())
}

// GetRequest handles GET /api/service-requests/:id
func (h *Handlers) GetRequest(c *gin.Context) {
	id := c.Param("id")
	req, err := h.engine.GetRequestByID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "get", id, err)
		return
	}
	if req == nil {
		h.notFound(c)
		return
	}
	c.JSON(http.StatusOK, req)
}

// UpdateRequest handles PUT /api/service-requests/:id
func (h *Handlers) UpdateRequest(c *gin.Context) {
	id := c.Param("id")
	var patch entity.UpdateServiceRequestInput
	if !h.bind(c, &patch) {
		return
	}

	req, err := h.engine.UpdateRequest(c.Request.Context(), id, patch)
	if err != nil {
		h.fail(c, "update", id, err)
		return
	}
	if req == nil {
		h.notFound(c)
		return
	}
	c.JSON(http.StatusOK, req)
}

// RegisterRequest handles POST /api/service-requests/:id/register
func (h *Handlers) RegisterRequest(c *gin.Context) {
	h.transition(c, "register", h.engine.RegisterRequest)
}

// ClassifyRequest handles POST /api/service-requests/:id/classify
func (h *Handlers) ClassifyRequest(c *gin.Context) {
	h.transition(c, "classify", h.engine.ClassifyRequest)
}

// HandleRequest handles POST /api/service-requests/:id/handle
func (h *Handlers) HandleRequest(c *gin.Context) {
	h.transition(c, "handle", h.engine.HandleRequest)
}

// CloseRequest handles POST /api/service-requests/:id/close
func (h *Handlers) CloseRequest(c *gin.Context) {
	var body CloseRequestBody
	if !h.bindOptional(c, &body) {
		return
	}
	h.transition(c, "close", func(ctx context.Context, id string) (*entity.ServiceRequest, error) {
		return h.engine.CloseRequest(ctx, id, body.ClosedBy)
	})
}

// AbortRequest handles POST /api/service-requests/:id/abort
func (h *Handlers) AbortRequest(c *gin.Context) {
	var body AbortRequestBody
	if !h.bindOptional(c, &body) {
		return
	}
	if body.Reason == "" {
		body.Reason = "Aborted by user"
	}
	h.transition(c, "abort", func(ctx context.Context, id string) (*entity.ServiceRequest, error) {
		return h.engine.AbortRequest(ctx, id, body.Reason)
	})
}

// GetHistory handles GET /api/service-requests/:id/history
func (h *Handlers) GetHistory(c *gin.Context) {
	id := c.Param("id")
	history, err := h.engine.GetRequestHistory(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "history", id, err)
		return
	}
	if history == nil {
		history = []*entity.WorkflowHistory{}
	}
	c.JSON(http.StatusOK, history)
}

// GetAILogs handles GET /api/service-requests/:id/ai-logs
func (h *Handlers) GetAILogs(c *gin.Context) {
	id := c.Param("id")
	logs, err := h.engine.GetAIProcessingHistory(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "ai-logs", id, err)
		return
	}
	if logs == nil {
		logs = []*entity.AIProcessingLog{}
	}
	c.JSON(http.StatusOK, logs)
}

// Converse handles POST /api/chatbot/conversation
func (h *Handlers) Converse(c *gin.Context) {
	if h.chatbot == nil {
		h.chatbotUnavailable(c)
		return
	}
	var input entity.ConversationInput
	if !h.bind(c, &input) {
		return
	}

	resp, err := h.chatbot.Converse(c.Request.Context(), input)
	if err != nil {
		h.fail(c, "chatbot", "", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Welcome handles GET /api/chatbot/welcome
func (h *Handlers) Welcome(c *gin.Context) {
	if h.chatbot == nil {
		h.chatbotUnavailable(c)
		return
	}
	c.JSON(http.StatusOK, WelcomeResponse{Message: h.chatbot.Welcome()})
}

func (h *Handlers) transition(c *gin.Context, op string, fn func(ctx context.Context, id string) (*entity.ServiceRequest, error)) {
	id := c.Param("id")
	req, err := fn(c.Request.Context(), id)
	if err != nil {
		h.fail(c, op, id, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (h *Handlers) filter(c *gin.Context) (entity.RequestFilter, bool) {
	var filter entity.RequestFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.badRequest(c, map[string]string{"query": err.Error()})
		return filter, false
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		h.badRequest(c, map[string]string{"status": fmt.Sprintf("unknown status %q", filter.Status)})
		return filter, false
	}
	return filter, true
}

// bind decodes a required JSON body
func (h *Handlers) bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.badRequest(c, map[string]string{"body": err.Error()})
		return false
	}
	return true
}

// bindOptional decodes a JSON body when one was sent. An empty body, chunked
// or not, leaves dst untouched.
func (h *Handlers) bindOptional(c *gin.Context, dst interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return true
		}
		h.badRequest(c, map[string]string{"body": err.Error()})
		return false
	}
	return true
}

func (h *Handlers) badRequest(c *gin.Context, details map[string]string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Validation failed", Details: details})
}

func (h *Handlers) chatbotUnavailable(c *gin.Context) {
	c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Chatbot is not configured"})
}

func (h *Handlers) notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, ErrorResponse{Error: "Service request not found"})
}

// fail maps domain errors onto status codes
func (h *Handlers) fail(c *gin.Context, op, id string, err error) {
	var verr *entity.ValidationError
	switch {
	case errors.As(err, &verr):
		h.badRequest(c, verr.Fields)
	case errors.Is(err, entity.ErrValidation):
		h.badRequest(c, map[string]string{"body": err.Error()})
	case errors.Is(err, entity.ErrNotFound):
		h.notFound(c)
	case errors.Is(err, domainworkflow.ErrInvalidTransition):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	default:
		h.logger.Error("Request failed", "op", op, "request_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
	}
}
