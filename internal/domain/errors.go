package domain

import "errors"

var (
	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheUnavailable is returned when cache service is unavailable
	ErrCacheUnavailable = errors.New("cache service unavailable")

	// ErrRateLimited is returned when rate limit is exceeded
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrModelUnavailable is returned when the generative model call fails
	ErrModelUnavailable = errors.New("generative model request failed")

	// ErrModelResponse is returned when the model answers with no usable content
	ErrModelResponse = errors.New("generative model returned no content")

	// ErrContractViolation is returned when model output breaks the structured output contract
	ErrContractViolation = errors.New("model output violates response contract")

	// ErrStoreNotFound is returned when the store does not exist
	ErrStoreNotFound = errors.New("store not found")

	// ErrConversationNotFound is returned when the conversation does not exist
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrProductNotFound is returned when a product is not in the store's active catalog
	ErrProductNotFound = errors.New("product not found")

	// ErrCartNotFound is returned when a session has no cart yet
	ErrCartNotFound = errors.New("cart not found")

	// ErrSnippetNotFound is returned when a training snippet does not exist for the store
	ErrSnippetNotFound = errors.New("training snippet not found")
)
