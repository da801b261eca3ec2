package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/chatcart/backend/internal/domain"
	"go.uber.org/zap"
)

// ChatServiceConfig holds configuration for the chat service
type ChatServiceConfig struct {
	CacheTTL      time.Duration
	HistoryWindow int
}

// ChatRequest is one shopper message addressed to a store
type ChatRequest struct {
	StoreID        string
	ConversationID string
	SessionID      string
	Text           string
	Image          *domain.Image
	Limit          int
}

// RecommendRequest asks a store for personalised product suggestions
type RecommendRequest struct {
	StoreID        string
	ConversationID string
	SessionID      string
	Preferences    string
	Limit          int
}

// ChatResponse carries the discovery result and the conversation it belongs to
type ChatResponse struct {
	ConversationID string
	Result         *domain.DiscoveryResult
}

// ChatService loads store data, keeps the conversation log and runs discovery
type ChatService struct {
	discovery     *DiscoveryService
	catalog       domain.CatalogRepository
	stores        domain.StoreRepository
	conversations domain.ConversationRepository
	analytics     domain.AnalyticsRecorder
	cache         domain.CacheRepository
	cacheTTL      time.Duration
	historyWindow int
	logger        *zap.Logger
}

// NewChatService creates a new chat service with dependencies
func NewChatService(
	discovery *DiscoveryService,
	catalog domain.CatalogRepository,
	stores domain.StoreRepository,
	conversations domain.ConversationRepository,
	analytics domain.AnalyticsRecorder,
	cache domain.CacheRepository,
	config ChatServiceConfig,
	logger *zap.Logger,
) *ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}

	cacheTTL := config.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = time.Hour
	}

	historyWindow := config.HistoryWindow
	if historyWindow <= 0 {
		historyWindow = defaultHistoryWindow
	}

	return &ChatService{
		discovery:     discovery,
		catalog:       catalog,
		stores:        stores,
		conversations: conversations,
		analytics:     analytics,
		cache:         cache,
		cacheTTL:      cacheTTL,
		historyWindow: historyWindow,
		logger:        logger,
	}
}

// Chat handles a shopper message.
// Flow: load store + catalog -> open conversation -> log user turn -> discover -> log reply -> track
func (s *ChatService) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if req == nil || strings.TrimSpace(req.StoreID) == "" {
		return nil, fmt.Errorf("%w: store id is required", domain.ErrInvalidRequest)
	}
	hasImage := req.Image != nil && len(req.Image.Data) > 0
	if strings.TrimSpace(req.Text) == "" && !hasImage {
		return nil, fmt.Errorf("%w: message or image is required", domain.ErrInvalidRequest)
	}

	store, catalog, err := s.loadStore(ctx, req.StoreID)
	if err != nil {
		return nil, err
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID, err = s.conversations.CreateConversation(ctx, req.StoreID, req.SessionID)
		if err != nil {
			return nil, fmt.Errorf("create conversation: %w", err)
		}
	}

	history, err := s.conversations.RecentTurns(ctx, req.StoreID, conversationID, s.historyWindow)
	if err != nil {
		return nil, fmt.Errorf("load conversation history: %w", err)
	}

	userTurn := domain.ConversationTurn{
		Role:      domain.RoleUser,
		Content:   req.Text,
		Image:     req.Image,
		Timestamp: time.Now().UTC(),
	}
	if err := s.conversations.AppendTurn(ctx, req.StoreID, conversationID, userTurn); err != nil {
		return nil, fmt.Errorf("save user message: %w", err)
	}

	outcome := s.discovery.ResolveTurn(ctx, domain.DiscoveryTurn{
		Text:    req.Text,
		Image:   req.Image,
		Catalog: catalog,
		Store:   *store,
		History: history,
		Limit:   req.Limit,
	})

	assistantTurn := domain.ConversationTurn{
		Role:      domain.RoleAssistant,
		Content:   outcome.Result.Reply,
		Timestamp: time.Now().UTC(),
	}
	if err := s.conversations.AppendTurn(ctx, req.StoreID, conversationID, assistantTurn); err != nil {
		// Reply is still returned when the log write fails
		s.logger.Warn("failed to save assistant message",
			zap.String("conversationId", conversationID),
			zap.Error(err))
	}

	s.track(ctx, req.StoreID, req.SessionID, conversationID, hasImage, outcome)

	return &ChatResponse{ConversationID: conversationID, Result: outcome.Result}, nil
}

// Recommend returns personalised suggestions, using the conversation history when one is given
func (s *ChatService) Recommend(ctx context.Context, req *RecommendRequest) (*ChatResponse, error) {
	if req == nil || strings.TrimSpace(req.StoreID) == "" {
		return nil, fmt.Errorf("%w: store id is required", domain.ErrInvalidRequest)
	}

	store, catalog, err := s.loadStore(ctx, req.StoreID)
	if err != nil {
		return nil, err
	}

	var history []domain.ConversationTurn
	if req.ConversationID != "" {
		history, err = s.conversations.RecentTurns(ctx, req.StoreID, req.ConversationID, s.historyWindow)
		if err != nil {
			return nil, fmt.Errorf("load conversation history: %w", err)
		}
	}

	outcome := s.discovery.ResolveRecommendation(ctx, domain.RecommendationRequest{
		Preferences: req.Preferences,
		Catalog:     catalog,
		Store:       *store,
		History:     history,
		Limit:       req.Limit,
	})

	s.track(ctx, req.StoreID, req.SessionID, req.ConversationID, false, outcome)

	return &ChatResponse{ConversationID: req.ConversationID, Result: outcome.Result}, nil
}

// loadStore fetches store context and active catalog, through the cache when possible
func (s *ChatService) loadStore(ctx context.Context, storeID string) (*domain.StoreContext, []domain.Product, error) {
	var store domain.StoreContext
	if !s.getFromCache(ctx, storeCacheKey(storeID), &store) {
		fetched, err := s.stores.GetStoreContext(ctx, storeID)
		if err != nil {
			return nil, nil, fmt.Errorf("load store: %w", err)
		}
		store = *fetched
		s.setInCache(ctx, storeCacheKey(storeID), store)
	}

	var catalog []domain.Product
	if !s.getFromCache(ctx, catalogCacheKey(storeID), &catalog) {
		fetched, err := s.catalog.ListActiveProducts(ctx, storeID)
		if err != nil {
			return nil, nil, fmt.Errorf("load catalog: %w", err)
		}
		catalog = fetched
		s.setInCache(ctx, catalogCacheKey(storeID), catalog)
	}

	return &store, catalog, nil
}

// track records analytics events for an outcome. Failures are logged only.
func (s *ChatService) track(ctx context.Context, storeID, sessionID, conversationID string, hasImage bool, outcome Outcome) {
	if s.analytics == nil {
		return
	}

	now := time.Now().UTC()
	events := []domain.AnalyticsEvent{{
		EventType: domain.EventChatMessage,
		EventData: map[string]interface{}{
			"conversationId": conversationID,
			"hasImage":       hasImage,
			"path":           outcome.Path,
		},
	}}

	result := outcome.Result
	if result.CartOffer && len(result.Products) == 1 {
		events = append(events, domain.AnalyticsEvent{
			EventType: domain.EventDirectOffer,
			EventData: map[string]interface{}{"productId": result.Products[0].ID},
		})
	}
	if len(result.Products) > 0 {
		productIDs := make([]string, len(result.Products))
		for i, p := range result.Products {
			productIDs[i] = p.ID
		}
		events = append(events, domain.AnalyticsEvent{
			EventType: domain.EventProductRecommended,
			EventData: map[string]interface{}{"productIds": productIDs},
		})
	}
	if outcome.Fallback() {
		events = append(events, domain.AnalyticsEvent{
			EventType: domain.EventAIFallback,
			EventData: map[string]interface{}{"conversationId": conversationID},
		})
	}

	for _, event := range events {
		event.StoreID = storeID
		event.SessionID = sessionID
		event.CreatedAt = now
		if err := s.analytics.Record(ctx, event); err != nil {
			s.logger.Warn("failed to record analytics event",
				zap.String("eventType", event.EventType),
				zap.String("storeId", storeID),
				zap.Error(err))
		}
	}
}

// getFromCache decodes a cached value into out. Misses and cache errors both report false.
func (s *ChatService) getFromCache(ctx context.Context, key string, out interface{}) bool {
	if s.cache == nil {
		return false
	}

	value, err := s.cache.Get(ctx, key)
	if err != nil {
		return false
	}

	// Cached values come back as generic JSON structures
	data, err := json.Marshal(value)
	if err != nil {
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		s.logger.Debug("discarding undecodable cache entry", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (s *ChatService) setInCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache value", zap.String("key", key), zap.Error(err))
	}
}

func storeCacheKey(storeID string) string {
	return "store:" + storeID
}

func catalogCacheKey(storeID string) string {
	return "catalog:" + storeID
}
