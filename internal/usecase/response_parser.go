package usecase

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/chatcart/backend/internal/domain"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
)

// Default phrases used when the model leaves a text field blank
const (
	defaultSearchExplanation         = "Found relevant products for your search."
	defaultImageDescription          = "I can see items in this image that might match our products."
	defaultRecommendationExplanation = "Here are some products I think you'll love!"
)

const searchContractSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["productIds", "explanation"],
  "properties": {
    "productIds": {"type": "array", "items": {"type": ["string", "integer"]}},
    "explanation": {"type": "string"}
  }
}`

const imageContractSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["description", "productIds", "explanation"],
  "properties": {
    "description": {"type": "string"},
    "productIds": {"type": "array", "items": {"type": ["string", "integer"]}},
    "explanation": {"type": "string"}
  }
}`

// Output contracts per task kind. Conversational calls have none.
var contractSchemas = map[domain.TaskKind]*gojsonschema.Schema{
	domain.TaskTextSearch:     mustCompileSchema(searchContractSchema),
	domain.TaskRecommendation: mustCompileSchema(searchContractSchema),
	domain.TaskImageSearch:    mustCompileSchema(imageContractSchema),
}

func mustCompileSchema(schema string) *gojsonschema.Schema {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schema))
	if err != nil {
		panic(fmt.Sprintf("compile output contract schema: %v", err))
	}
	return compiled
}

// ResponseParser turns untrusted model text into typed discovery output
type ResponseParser struct {
	logger *zap.Logger
}

// NewResponseParser creates a new response parser
func NewResponseParser(logger *zap.Logger) *ResponseParser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResponseParser{logger: logger}
}

// Parse validates raw against the output contract of kind and resolves the claimed
// product ids against catalog. Any contract breach returns ErrContractViolation and
// no products; nothing is repaired or partially honored.
func (p *ResponseParser) Parse(kind domain.TaskKind, raw string, catalog []domain.Product, limit int) (*domain.ParsedModelOutput, []domain.Product, error) {
	if kind == domain.TaskConversational {
		text := strings.TrimSpace(raw)
		if text == "" {
			return nil, nil, fmt.Errorf("%w: empty conversational reply", domain.ErrContractViolation)
		}
		return &domain.ParsedModelOutput{Text: text}, nil, nil
	}

	parsed, err := p.decode(kind, raw)
	if err != nil {
		p.logger.Debug("model output rejected",
			zap.String("kind", string(kind)),
			zap.Error(err))
		return nil, nil, err
	}

	return parsed, MatchProducts(parsed.ProductIDs, catalog, limit), nil
}

func (p *ResponseParser) decode(kind domain.TaskKind, raw string) (*domain.ParsedModelOutput, error) {
	schema, ok := contractSchemas[kind]
	if !ok {
		return nil, fmt.Errorf("%w: no output contract for task kind %q", domain.ErrContractViolation, kind)
	}

	doc, err := decodeSingleObject(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrContractViolation, err)
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("%w: validate: %v", domain.ErrContractViolation, err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrContractViolation, errs)
	}

	claimed := doc["productIds"].([]interface{})
	ids := make([]string, 0, len(claimed))
	for _, v := range claimed {
		id, err := canonicalID(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrContractViolation, err)
		}
		ids = append(ids, id)
	}

	parsed := &domain.ParsedModelOutput{
		ProductIDs:  ids,
		Explanation: strings.TrimSpace(doc["explanation"].(string)),
	}
	if description, ok := doc["description"].(string); ok {
		parsed.Description = strings.TrimSpace(description)
	}

	switch kind {
	case domain.TaskTextSearch:
		if parsed.Explanation == "" {
			parsed.Explanation = defaultSearchExplanation
		}
	case domain.TaskRecommendation:
		if parsed.Explanation == "" {
			parsed.Explanation = defaultRecommendationExplanation
		}
	case domain.TaskImageSearch:
		if parsed.Description == "" {
			parsed.Description = defaultImageDescription
		}
	}

	return parsed, nil
}

// decodeSingleObject requires raw to hold exactly one JSON object and nothing else
func decodeSingleObject(raw string) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(strings.TrimSpace(raw))))
	dec.UseNumber()

	var value interface{}
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("malformed JSON: %v", err)
	}

	var extra interface{}
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing content after JSON object")
	}

	doc, ok := value.(map[string]interface{})
	if !ok {
		return nil, errors.New("top-level JSON value is not an object")
	}
	return doc, nil
}

// canonicalID renders a claimed id the way catalog ids are compared
func canonicalID(v interface{}) (string, error) {
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id), nil
	case json.Number:
		if n, err := id.Int64(); err == nil {
			return strconv.FormatInt(n, 10), nil
		}
		f, err := id.Float64()
		if err != nil || f != math.Trunc(f) || f >= math.MaxInt64 || f < math.MinInt64 {
			return "", fmt.Errorf("product id %s is not an integer", id)
		}
		return strconv.FormatInt(int64(f), 10), nil
	default:
		return "", fmt.Errorf("product id has unsupported type %T", v)
	}
}

// MatchProducts returns the catalog products referenced by ids, in catalog order,
// without duplicates and truncated to limit. Ids may name either the catalog-local
// id or the external platform id.
func MatchProducts(ids []string, catalog []domain.Product, limit int) []domain.Product {
	if len(ids) == 0 || len(catalog) == 0 || limit <= 0 {
		return []domain.Product{}
	}

	matched := make([]domain.Product, 0, limit)
	seen := make(map[string]bool)

	for _, product := range catalog {
		if seen[product.ID] {
			continue
		}
		for _, id := range ids {
			if product.MatchesID(id) {
				seen[product.ID] = true
				matched = append(matched, product)
				break
			}
		}
		if len(matched) == limit {
			break
		}
	}

	return matched
}
