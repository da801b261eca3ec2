package http

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/chatcart/backend/config"
	"github.com/chatcart/backend/internal/domain"
	"github.com/chatcart/backend/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// MockChatUseCase records the last request and returns canned results
type MockChatUseCase struct {
	chatReq      *usecase.ChatRequest
	recommendReq *usecase.RecommendRequest
	resp         *usecase.ChatResponse
	err          error
}

func (m *MockChatUseCase) Chat(ctx context.Context, req *usecase.ChatRequest) (*usecase.ChatResponse, error) {
	m.chatReq = req
	return m.resp, m.err
}

func (m *MockChatUseCase) Recommend(ctx context.Context, req *usecase.RecommendRequest) (*usecase.ChatResponse, error) {
	m.recommendReq = req
	return m.resp, m.err
}

func setupTestRouter(chat ChatUseCase, checks ...HealthCheck) *gin.Engine {
	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:           "8080",
			Environment:    "test",
			AllowedOrigins: []string{"https://shop.example.com"},
		},
		RateLimit: config.RateLimitConfig{PerIP: 1000},
	}
	return SetupRouter(cfg, NewHandler(chat, nil, checks...), nil, nil)
}

func postJSON(router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealthCheckEndpoint(t *testing.T) {
	t.Run("returns healthy status", func(t *testing.T) {
		router := setupTestRouter(&MockChatUseCase{}, HealthCheck{
			Name:  "postgres",
			Check: func(ctx context.Context) error { return nil },
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "healthy", body["status"])
		assert.Equal(t, "chatcart-backend", body["service"])
		assert.NotEmpty(t, body["version"])
		assert.Equal(t, map[string]interface{}{"postgres": "ok"}, body["dependencies"])
	})

	t.Run("reports failing dependencies", func(t *testing.T) {
		router := setupTestRouter(&MockChatUseCase{}, HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return errors.New("connection refused") },
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "degraded", body["status"])
		assert.Equal(t, map[string]interface{}{"redis": "unavailable"}, body["dependencies"])
	})

	t.Run("accepts GET requests only", func(t *testing.T) {
		router := setupTestRouter(&MockChatUseCase{})

		for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(method, "/health", nil))
			assert.Equal(t, http.StatusNotFound, w.Code, method)
		}
	})
}

func TestMetricsEndpoint(t *testing.T) {
	router := setupTestRouter(&MockChatUseCase{})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}

func TestChatEndpoint(t *testing.T) {
	t.Run("returns the discovery result", func(t *testing.T) {
		price := 49.0
		chat := &MockChatUseCase{resp: &usecase.ChatResponse{
			ConversationID: "conv-1",
			Result: &domain.DiscoveryResult{
				Reply: "Great choice! Would you like me to add it to your cart?",
				Products: []domain.Product{{
					ID: "p1", Title: "Blue Hoodie", Status: domain.ProductStatusActive,
					Price: &domain.PriceRange{Min: &price},
				}},
				CartOffer: true,
			},
		}}
		router := setupTestRouter(chat)

		w := postJSON(router, "/api/v1/stores/store-1/chat",
			`{"message":"Do you have the Blue Hoodie?","sessionId":"sess-9","limit":3}`)

		assert.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "conv-1", body["conversationId"])
		assert.Equal(t, true, body["cartOffer"])
		assert.Len(t, body["products"], 1)
		assert.NotContains(t, body, "description")

		require.NotNil(t, chat.chatReq)
		assert.Equal(t, "store-1", chat.chatReq.StoreID)
		assert.Equal(t, "Do you have the Blue Hoodie?", chat.chatReq.Text)
		assert.Equal(t, "sess-9", chat.chatReq.SessionID)
		assert.Equal(t, 3, chat.chatReq.Limit)
		assert.Nil(t, chat.chatReq.Image)
	})

	t.Run("products is never null", func(t *testing.T) {
		chat := &MockChatUseCase{resp: &usecase.ChatResponse{
			ConversationID: "conv-1",
			Result:         &domain.DiscoveryResult{Reply: "Hello!"},
		}}
		router := setupTestRouter(chat)

		w := postJSON(router, "/api/v1/stores/store-1/chat", `{"message":"hi"}`)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"products":[]`)
	})

	t.Run("decodes a data URL image", func(t *testing.T) {
		chat := &MockChatUseCase{resp: &usecase.ChatResponse{Result: &domain.DiscoveryResult{}}}
		router := setupTestRouter(chat)
		encoded := base64.StdEncoding.EncodeToString([]byte("png-bytes"))

		w := postJSON(router, "/api/v1/stores/store-1/chat",
			fmt.Sprintf(`{"image":"data:image/png;base64,%s"}`, encoded))

		assert.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, chat.chatReq.Image)
		assert.Equal(t, "image/png", chat.chatReq.Image.MIMEType)
		assert.Equal(t, []byte("png-bytes"), chat.chatReq.Image.Data)
	})

	t.Run("session id from header", func(t *testing.T) {
		chat := &MockChatUseCase{resp: &usecase.ChatResponse{Result: &domain.DiscoveryResult{}}}
		router := setupTestRouter(chat)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/stores/store-1/chat", strings.NewReader(`{"message":"hi"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Session-ID", "header-session")
		router.ServeHTTP(httptest.NewRecorder(), req)

		assert.Equal(t, "header-session", chat.chatReq.SessionID)
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		router := setupTestRouter(&MockChatUseCase{})

		w := postJSON(router, "/api/v1/stores/store-1/chat", `{"message":`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("raw base64 defaults to jpeg", func(t *testing.T) {
		chat := &MockChatUseCase{resp: &usecase.ChatResponse{Result: &domain.DiscoveryResult{}}}
		router := setupTestRouter(chat)

		w := postJSON(router, "/api/v1/stores/store-1/chat",
			fmt.Sprintf(`{"image":"%s"}`, base64.StdEncoding.EncodeToString([]byte("jpeg-bytes"))))

		assert.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, chat.chatReq.Image)
		assert.Equal(t, "image/jpeg", chat.chatReq.Image.MIMEType)
	})

	t.Run("rejects oversized bodies before decoding", func(t *testing.T) {
		chat := &MockChatUseCase{}
		router := setupTestRouter(chat)

		w := postJSON(router, "/api/v1/stores/store-1/chat",
			`{"message":"`+strings.Repeat("a", maxRequestBytes)+`"}`)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Nil(t, chat.chatReq)
	})

	t.Run("rejects bad images", func(t *testing.T) {
		router := setupTestRouter(&MockChatUseCase{})

		for _, body := range []string{
			`{"image":"data:image/png,rawtext"}`,
			`{"image":"aGVsbG8=","imageMimeType":"text/plain"}`,
			`{"image":"!!!not-base64!!!","imageMimeType":"image/png"}`,
		} {
			w := postJSON(router, "/api/v1/stores/store-1/chat", body)
			assert.Equal(t, http.StatusBadRequest, w.Code, body)
		}
	})
}

func TestChatEndpoint_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"invalid request", fmt.Errorf("%w: message or image is required", domain.ErrInvalidRequest), http.StatusBadRequest},
		{"store not found", fmt.Errorf("load store: %w", domain.ErrStoreNotFound), http.StatusNotFound},
		{"conversation not found", fmt.Errorf("load history: %w", domain.ErrConversationNotFound), http.StatusNotFound},
		{"rate limited", fmt.Errorf("%w: slow down", domain.ErrRateLimited), http.StatusTooManyRequests},
		{"anything else", errors.New("database is down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupTestRouter(&MockChatUseCase{err: tt.err})

			w := postJSON(router, "/api/v1/stores/store-1/chat", `{"message":"hi"}`)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, decodeBody(t, w), "error")
		})
	}
}

func TestRecommendationsEndpoint(t *testing.T) {
	chat := &MockChatUseCase{resp: &usecase.ChatResponse{
		ConversationID: "conv-2",
		Result: &domain.DiscoveryResult{
			Reply:    "Based on your preferences, here are some products you might like:",
			Products: []domain.Product{{ID: "p1", Title: "Canvas Tote", Status: domain.ProductStatusActive}},
		},
	}}
	router := setupTestRouter(chat)

	w := postJSON(router, "/api/v1/stores/store-1/recommendations",
		`{"conversationId":"conv-2","preferences":"eco-friendly bags"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "conv-2", body["conversationId"])
	assert.Equal(t, false, body["cartOffer"])

	require.NotNil(t, chat.recommendReq)
	assert.Equal(t, "store-1", chat.recommendReq.StoreID)
	assert.Equal(t, "conv-2", chat.recommendReq.ConversationID)
	assert.Equal(t, "eco-friendly bags", chat.recommendReq.Preferences)
}

func TestRouter_PreflightOnAPIRoute(t *testing.T) {
	router := setupTestRouter(&MockChatUseCase{})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/stores/store-1/chat", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://shop.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestDecodeImage(t *testing.T) {
	img, err := decodeImage("", "")
	assert.NoError(t, err)
	assert.Nil(t, img)

	img, err = decodeImage(base64.StdEncoding.EncodeToString([]byte{1, 2, 3}), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, &domain.Image{Data: []byte{1, 2, 3}, MIMEType: "image/jpeg"}, img)

	img, err = decodeImage(base64.StdEncoding.EncodeToString([]byte{1}), "")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", img.MIMEType)

	_, err = decodeImage("data:;base64,AQ==", "")
	assert.Error(t, err)
}
