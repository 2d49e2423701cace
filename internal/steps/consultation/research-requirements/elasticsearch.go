// internal/steps/consultation/research-requirements/elasticsearch.go
package researchrequirements

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/redis/go-redis/v9"

	"visa-guru/internal/models"
)

var (
	ErrNoRequirements = errors.New("NO_REQUIREMENTS_FOUND")
	ErrSearchFailed   = errors.New("SEARCH_FAILED")
)

// requirementDoc is one document of the requirements index.
type requirementDoc struct {
	Destination    string   `json:"destination_country"`
	Nationalities  []string `json:"nationalities"`
	Purposes       []string `json:"travel_purposes"`
	VisaRequired   *bool    `json:"visa_required"`
	ProcessingTime string   `json:"processing_time"`
	Validity       string   `json:"validity"`
	EntryType      string   `json:"entry_type"`
	Sources        []string `json:"sources"`
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Score  float64        `json:"_score"`
			Source requirementDoc `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// ElasticsearchSource looks up the best matching requirement document,
// optionally through a Redis cache.
type ElasticsearchSource struct {
	client   *elasticsearch.Client
	cache    *redis.Client
	index    string
	cacheTTL time.Duration
}

func NewElasticsearchSource(client *elasticsearch.Client, cache *redis.Client, cfg *Config) *ElasticsearchSource {
	return &ElasticsearchSource{
		client:   client,
		cache:    cache,
		index:    cfg.Index,
		cacheTTL: cfg.CacheTTL,
	}
}

func (s *ElasticsearchSource) Lookup(ctx context.Context, req *models.ConsultationRequest) (*models.ResearchSummary, error) {
	key := cacheKey(req)
	if s.cache != nil {
		if val, err := s.cache.Get(ctx, key).Bytes(); err == nil {
			var summary models.ResearchSummary
			if err := json.Unmarshal(val, &summary); err == nil {
				return &summary, nil
			}
		}
	}

	summary, err := s.search(ctx, req)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(summary); err == nil {
			s.cache.Set(ctx, key, data, s.cacheTTL)
		}
	}
	return summary, nil
}

func (s *ElasticsearchSource) search(ctx context.Context, req *models.ConsultationRequest) (*models.ResearchSummary, error) {
	body, _ := json.Marshal(buildQuery(req))
	size := 1

	searchReq := esapi.SearchRequest{
		Index: []string{s.index},
		Body:  bytes.NewReader(body),
		Size:  &size,
	}

	res, err := searchReq.Do(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("%w: %s", ErrSearchFailed, res.Status())
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrSearchFailed, err)
	}
	if len(parsed.Hits.Hits) == 0 {
		return nil, ErrNoRequirements
	}

	return toSummary(req, parsed.Hits.Hits[0].Source), nil
}

// buildQuery requires the destination and prefers documents that also match
// the applicant's nationality and purpose.
func buildQuery(req *models.ConsultationRequest) map[string]interface{} {
	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": []interface{}{
					map[string]interface{}{
						"term": map[string]interface{}{"destination_country": strings.ToLower(req.DestinationCountry)},
					},
				},
				"should": []interface{}{
					map[string]interface{}{
						"term": map[string]interface{}{"nationalities": strings.ToLower(req.Nationality)},
					},
					map[string]interface{}{
						"term": map[string]interface{}{"travel_purposes": string(req.TravelPurpose)},
					},
					map[string]interface{}{
						"match": map[string]interface{}{"description": searchQuery(req)},
					},
				},
			},
		},
	}
}

// toSummary fills gaps in the document from the static summary.
func toSummary(req *models.ConsultationRequest, doc requirementDoc) *models.ResearchSummary {
	summary := StaticSummary(req)
	if doc.VisaRequired != nil {
		summary.VisaRequired = *doc.VisaRequired
	}
	if doc.ProcessingTime != "" {
		summary.ProcessingTime = doc.ProcessingTime
	}
	if doc.Validity != "" {
		summary.Validity = doc.Validity
	}
	if doc.EntryType != "" {
		summary.EntryType = doc.EntryType
	}
	if len(doc.Sources) > 0 {
		summary.Sources = doc.Sources
	}
	return &summary
}

func cacheKey(req *models.ConsultationRequest) string {
	return fmt.Sprintf("research:%s:%s:%s",
		strings.ToLower(req.DestinationCountry),
		strings.ToLower(req.Nationality),
		req.TravelPurpose)
}
