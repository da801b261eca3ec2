package http

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/chatcart/backend/internal/domain"
	"github.com/chatcart/backend/internal/usecase"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	serviceName    = "chatcart-backend"
	serviceVersion = "1.0.0"

	maxImageBytes    = 5 << 20
	defaultImageType = "image/jpeg"
	// Base64 image plus the rest of the JSON body
	maxRequestBytes = maxImageBytes*4/3 + 64<<10

	healthCheckTimeout = 2 * time.Second
)

// ChatUseCase is the application surface the handlers depend on
type ChatUseCase interface {
	Chat(ctx context.Context, req *usecase.ChatRequest) (*usecase.ChatResponse, error)
	Recommend(ctx context.Context, req *usecase.RecommendRequest) (*usecase.ChatResponse, error)
}

// HealthCheck pings one backing dependency
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	chat   ChatUseCase
	checks []HealthCheck
	logger *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(chat ChatUseCase, logger *zap.Logger, checks ...HealthCheck) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{chat: chat, checks: checks, logger: logger}
}

// ChatMessageRequest is the body of POST /stores/:storeId/chat
type ChatMessageRequest struct {
	ConversationID string `json:"conversationId"`
	SessionID      string `json:"sessionId"`
	Message        string `json:"message"`
	Image          string `json:"image"`         // data URL or raw base64
	ImageMIMEType  string `json:"imageMimeType"` // raw base64 only, defaults to image/jpeg
	Limit          int    `json:"limit"`
}

// RecommendationsRequest is the body of POST /stores/:storeId/recommendations
type RecommendationsRequest struct {
	ConversationID string `json:"conversationId"`
	SessionID      string `json:"sessionId"`
	Preferences    string `json:"preferences"`
	Limit          int    `json:"limit"`
}

// DiscoveryResponse is returned by both discovery endpoints
type DiscoveryResponse struct {
	ConversationID string           `json:"conversationId,omitempty"`
	Reply          string           `json:"reply"`
	Products       []domain.Product `json:"products"`
	CartOffer      bool             `json:"cartOffer"`
	Description    string           `json:"description,omitempty"`
}

// HealthCheck returns the health status of the API and its dependencies
func (h *Handler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	status := http.StatusOK
	deps := make(gin.H, len(h.checks))
	for _, check := range h.checks {
		if err := check.Check(ctx); err != nil {
			h.logger.Warn("health check failed", zap.String("dependency", check.Name), zap.Error(err))
			deps[check.Name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		deps[check.Name] = "ok"
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{
		"status":       state,
		"service":      serviceName,
		"version":      serviceVersion,
		"dependencies": deps,
	})
}

// Chat handles a shopper message
func (h *Handler) Chat(c *gin.Context) {
	var req ChatMessageRequest
	if !bindBody(c, &req) {
		return
	}

	image, err := decodeImage(req.Image, req.ImageMIMEType)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.chat.Chat(c.Request.Context(), &usecase.ChatRequest{
		StoreID:        c.Param("storeId"),
		ConversationID: req.ConversationID,
		SessionID:      sessionID(c, req.SessionID),
		Text:           req.Message,
		Image:          image,
		Limit:          req.Limit,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, toResponse(resp))
}

// Recommendations returns personalised product suggestions
func (h *Handler) Recommendations(c *gin.Context) {
	var req RecommendationsRequest
	if !bindBody(c, &req) {
		return
	}

	resp, err := h.chat.Recommend(c.Request.Context(), &usecase.RecommendRequest{
		StoreID:        c.Param("storeId"),
		ConversationID: req.ConversationID,
		SessionID:      sessionID(c, req.SessionID),
		Preferences:    req.Preferences,
		Limit:          req.Limit,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, toResponse(resp))
}

// bindBody decodes a size-limited JSON body, writing the error response on failure
func bindBody(c *gin.Context, req interface{}) bool {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBytes)
	if err := c.ShouldBindJSON(req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
			return false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return false
	}
	return true
}

// respondError maps domain errors to HTTP status codes
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrStoreNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "store not found"})
	case errors.Is(err, domain.ErrConversationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
	case errors.Is(err, domain.ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
	case errors.Is(err, domain.ErrCartNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "cart not found"})
	case errors.Is(err, domain.ErrSnippetNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "training snippet not found"})
	case errors.Is(err, domain.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
	default:
		logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("storeId", c.Param("storeId")),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func toResponse(resp *usecase.ChatResponse) DiscoveryResponse {
	out := DiscoveryResponse{ConversationID: resp.ConversationID, Products: []domain.Product{}}
	if resp.Result == nil {
		return out
	}
	out.Reply = resp.Result.Reply
	out.CartOffer = resp.Result.CartOffer
	out.Description = resp.Result.Description
	if resp.Result.Products != nil {
		out.Products = resp.Result.Products
	}
	return out
}

// sessionID prefers the body value, then the X-Session-ID header
func sessionID(c *gin.Context, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	return c.GetHeader("X-Session-ID")
}

// decodeImage accepts "data:<mime>;base64,<payload>" or raw base64 with an optional MIME type
func decodeImage(raw, mimeType string) (*domain.Image, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	payload := raw
	if strings.HasPrefix(raw, "data:") {
		header, data, ok := strings.Cut(raw, ",")
		if !ok || !strings.HasSuffix(header, ";base64") {
			return nil, fmt.Errorf("image must be a base64 data URL")
		}
		mimeType = strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
		payload = data
	} else if mimeType == "" {
		mimeType = defaultImageType
	}

	if !strings.HasPrefix(mimeType, "image/") {
		return nil, fmt.Errorf("unsupported image type %q", mimeType)
	}
	if base64.StdEncoding.DecodedLen(len(payload)) > maxImageBytes+3 {
		return nil, fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("image is not valid base64")
	}
	if len(data) == 0 {
		return nil, nil
	}
	return &domain.Image{Data: data, MIMEType: mimeType}, nil
}
