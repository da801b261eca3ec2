package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chatcart/backend/internal/domain"
	"github.com/chatcart/backend/internal/platform/metrics"
	"go.uber.org/zap"
)

const (
	defaultResultLimit   = 5
	defaultMaxLimit      = 10
	defaultHistoryWindow = 5
)

// Fallback stages reported on the fallback metric
const (
	stageTextSearch     = "text_search"
	stageImageSearch    = "image_search"
	stageConversational = "conversational"
	stageRecommendation = "recommendation"
)

// DiscoveryConfig holds configuration for the discovery service
type DiscoveryConfig struct {
	ResultLimit        int
	MaxLimit           int
	HistoryWindow      int
	MinCoverage        float64
	ImageFallbackCount int
}

// DiscoveryService resolves shopper turns into discovery results.
// Its operations are total: model failures degrade to fallback results
// and are never returned to the caller.
type DiscoveryService struct {
	model    domain.ModelClient
	matcher  *CatalogMatcher
	prompts  *PromptBuilder
	parser   *ResponseParser
	fallback *FallbackResolver
	config   DiscoveryConfig
	logger   *zap.Logger
}

// NewDiscoveryService creates a new discovery service around the given model client
func NewDiscoveryService(model domain.ModelClient, config DiscoveryConfig, logger *zap.Logger) *DiscoveryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.ResultLimit <= 0 {
		config.ResultLimit = defaultResultLimit
	}
	if config.MaxLimit <= 0 {
		config.MaxLimit = defaultMaxLimit
	}
	if config.ResultLimit > config.MaxLimit {
		config.ResultLimit = config.MaxLimit
	}
	if config.HistoryWindow <= 0 {
		config.HistoryWindow = defaultHistoryWindow
	}

	return &DiscoveryService{
		model:    model,
		matcher:  NewCatalogMatcher(MatcherConfig{MinCoverage: config.MinCoverage}, NewQueryPreprocessor(logger), logger),
		prompts:  NewPromptBuilder(),
		parser:   NewResponseParser(logger),
		fallback: NewFallbackResolver(config.ImageFallbackCount),
		config:   config,
		logger:   logger,
	}
}

// attemptResult is the outcome of one model stage: either parsed output with
// its matched products, or the error that sends the stage to fallback.
type attemptResult struct {
	kind     domain.TaskKind
	parsed   *domain.ParsedModelOutput
	products []domain.Product
	err      error
}

func (r attemptResult) ok() bool {
	return r.err == nil
}

func (r attemptResult) failureReason() FailureReason {
	if errors.Is(r.err, domain.ErrContractViolation) {
		return FailureContract
	}
	return FailureTransport
}

// Outcome pairs a discovery result with the resolution path that produced it
type Outcome struct {
	Result *domain.DiscoveryResult
	Path   string
}

// Fallback reports whether the result came from the fallback resolver
func (o Outcome) Fallback() bool {
	return o.Path == metrics.PathFallback
}

// Discover resolves a single shopper turn
func (s *DiscoveryService) Discover(ctx context.Context, turn domain.DiscoveryTurn) *domain.DiscoveryResult {
	return s.ResolveTurn(ctx, turn).Result
}

// ResolveTurn is Discover with the resolution path attached
func (s *DiscoveryService) ResolveTurn(ctx context.Context, turn domain.DiscoveryTurn) Outcome {
	catalog := domain.ActiveProducts(turn.Catalog)
	limit := s.limit(turn.Limit)
	history := domain.TrailingWindow(turn.History, s.config.HistoryWindow)
	text := strings.TrimSpace(turn.Text)

	if turn.Image != nil && len(turn.Image.Data) > 0 {
		prompt := s.prompts.Build(PromptRequest{
			Kind:    domain.TaskImageSearch,
			Catalog: catalog,
			Store:   turn.Store,
			Query:   text,
			Limit:   limit,
			Image:   turn.Image,
		})
		return s.resolveImage(s.attempt(ctx, prompt, catalog, limit), catalog)
	}

	if text == "" {
		return s.record(metrics.PathConversational, s.fallback.Conversational(""))
	}

	// Policy questions that name a product still need an answer, not a cart offer
	if _, policy := s.fallback.PolicyReply(text); !policy {
		if product, ok := s.matcher.FindExact(text, catalog); ok {
			return s.directOffer(*product, turn.Store)
		}
	}

	search := s.attempt(ctx, s.prompts.Build(PromptRequest{
		Kind:    domain.TaskTextSearch,
		Catalog: catalog,
		Store:   turn.Store,
		Query:   text,
		Limit:   limit,
	}), catalog, limit)

	if search.ok() && len(search.products) == 0 {
		conversation := s.attempt(ctx, s.prompts.Build(PromptRequest{
			Kind:    domain.TaskConversational,
			Store:   turn.Store,
			History: history,
			Query:   text,
		}), catalog, limit)
		return s.resolveConversational(conversation, text)
	}

	return s.resolveSearch(search, text, catalog, limit)
}

// Recommend suggests products from shopper preferences and recent conversation
func (s *DiscoveryService) Recommend(ctx context.Context, req domain.RecommendationRequest) *domain.DiscoveryResult {
	return s.ResolveRecommendation(ctx, req).Result
}

// ResolveRecommendation is Recommend with the resolution path attached
func (s *DiscoveryService) ResolveRecommendation(ctx context.Context, req domain.RecommendationRequest) Outcome {
	catalog := domain.ActiveProducts(req.Catalog)
	limit := s.limit(req.Limit)

	prompt := s.prompts.Build(PromptRequest{
		Kind:    domain.TaskRecommendation,
		Catalog: catalog,
		Store:   req.Store,
		History: domain.TrailingWindow(req.History, s.config.HistoryWindow),
		Query:   strings.TrimSpace(req.Preferences),
		Limit:   limit,
	})

	return s.resolveRecommendation(s.attempt(ctx, prompt, catalog, limit), catalog)
}

// attempt performs one model call and parses its output. It never panics.
func (s *DiscoveryService) attempt(ctx context.Context, prompt Prompt, catalog []domain.Product, limit int) (result attemptResult) {
	result.kind = prompt.Kind

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("model stage panicked",
				zap.String("kind", string(prompt.Kind)),
				zap.Any("panic", r))
			result = attemptResult{
				kind: prompt.Kind,
				err:  fmt.Errorf("%w: panic: %v", domain.ErrModelUnavailable, r),
			}
		}
	}()

	if s.model == nil {
		result.err = fmt.Errorf("%w: no model client configured", domain.ErrModelUnavailable)
		return result
	}

	raw, err := s.model.Complete(ctx, prompt.Text, prompt.Image)
	if err != nil {
		result.err = err
		return result
	}

	parsed, products, err := s.parser.Parse(prompt.Kind, raw, catalog, limit)
	if err != nil {
		result.err = err
		return result
	}

	result.parsed = parsed
	result.products = products
	return result
}

func (s *DiscoveryService) directOffer(product domain.Product, store domain.StoreContext) Outcome {
	availability := "is available"
	if product.Price != nil && product.Price.Min != nil {
		availability += " for " + FormatPrice(product.Price, store.CurrencyCode())
	}
	reply := fmt.Sprintf("I found exactly what you're looking for! \"%s\" %s. Would you like me to add it to your cart?",
		product.Title, availability)

	return s.record(metrics.PathDirectOffer, &domain.DiscoveryResult{
		Reply:     reply,
		Products:  []domain.Product{product},
		CartOffer: true,
	})
}

func (s *DiscoveryService) resolveSearch(res attemptResult, query string, catalog []domain.Product, limit int) Outcome {
	if !res.ok() {
		s.degraded(stageTextSearch, res)
		result := s.fallback.TextSearch(query, catalog, limit)
		if len(result.Products) == 0 {
			// Policy questions get their canned answer rather than "no matches"
			if _, ok := s.fallback.PolicyReply(query); ok {
				result = s.fallback.Conversational(query)
			}
		}
		return s.record(metrics.PathFallback, result)
	}

	return s.record(metrics.PathSearchResults, &domain.DiscoveryResult{
		Reply:    res.parsed.Explanation + " Here are the products I found:",
		Products: res.products,
	})
}

func (s *DiscoveryService) resolveImage(res attemptResult, catalog []domain.Product) Outcome {
	if !res.ok() {
		s.degraded(stageImageSearch, res)
		return s.record(metrics.PathFallback, s.fallback.Image(catalog, res.failureReason()))
	}

	reply := res.parsed.Description
	if res.parsed.Explanation != "" {
		reply += " " + res.parsed.Explanation
	}

	return s.record(metrics.PathImageResults, &domain.DiscoveryResult{
		Reply:       reply,
		Products:    res.products,
		Description: res.parsed.Description,
	})
}

func (s *DiscoveryService) resolveConversational(res attemptResult, text string) Outcome {
	if !res.ok() {
		s.degraded(stageConversational, res)
		return s.record(metrics.PathFallback, s.fallback.Conversational(text))
	}

	return s.record(metrics.PathConversational, &domain.DiscoveryResult{
		Reply:    res.parsed.Text,
		Products: []domain.Product{},
	})
}

func (s *DiscoveryService) resolveRecommendation(res attemptResult, catalog []domain.Product) Outcome {
	if !res.ok() {
		s.degraded(stageRecommendation, res)
		return s.record(metrics.PathFallback, s.fallback.Recommendation(catalog))
	}

	return s.record(metrics.PathRecommendation, &domain.DiscoveryResult{
		Reply:    res.parsed.Explanation,
		Products: res.products,
	})
}

func (s *DiscoveryService) degraded(stage string, res attemptResult) {
	reason := res.failureReason()
	metrics.DiscoveryFallbacks.WithLabelValues(stage, string(reason)).Inc()
	s.logger.Warn("model stage degraded to fallback",
		zap.String("stage", stage),
		zap.String("kind", string(res.kind)),
		zap.String("reason", string(reason)),
		zap.Error(res.err))
}

func (s *DiscoveryService) record(path string, result *domain.DiscoveryResult) Outcome {
	if result.Products == nil {
		result.Products = []domain.Product{}
	}
	metrics.DiscoveryResults.WithLabelValues(path).Inc()
	s.logger.Debug("discovery resolved",
		zap.String("path", path),
		zap.Int("products", len(result.Products)),
		zap.Bool("cartOffer", result.CartOffer))
	return Outcome{Result: result, Path: path}
}

// limit applies the configured default and ceiling to a requested result count
func (s *DiscoveryService) limit(requested int) int {
	if requested <= 0 {
		return s.config.ResultLimit
	}
	if requested > s.config.MaxLimit {
		return s.config.MaxLimit
	}
	return requested
}
