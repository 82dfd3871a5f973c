// Package enrichment integrates the external lead enrichment collaborator
// that fills in firmographic data and value-proposition matching before a
// campaign lead becomes sendable.
package enrichment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/config"
)

type EnrichRequest struct {
	Email        string   `json:"email"`
	FirstName    string   `json:"firstName,omitempty"`
	LastName     string   `json:"lastName,omitempty"`
	CompanyName  string   `json:"companyName,omitempty"`
	JobTitle     string   `json:"jobTitle,omitempty"`
	Industry     string   `json:"industry,omitempty"`
	ValuePropIDs []string `json:"valuePropIds,omitempty"`
}

type EnrichResponse struct {
	Data               json.RawMessage `json:"data"`
	MatchedValuePropID string          `json:"matchedValuePropId"`
	MatchReasoning     string          `json:"matchReasoning"`
}

// Enricher produces enrichment output for one lead.
type Enricher interface {
	Enrich(ctx context.Context, req EnrichRequest) (EnrichResponse, error)
}

// HTTPClient calls the enrichment API over HTTP.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPClient(cfg config.EnrichmentConfig) *HTTPClient {
	return &HTTPClient{
		baseURL: cfg.GetEnrichmentAPIURL(),
		apiKey:  cfg.GetEnrichmentAPIKey(),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) Enrich(ctx context.Context, req EnrichRequest) (EnrichResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return EnrichResponse{}, fmt.Errorf("failed to marshal enrichment request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/enrich", bytes.NewReader(payload))
	if err != nil {
		return EnrichResponse{}, fmt.Errorf("failed to create enrichment request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return EnrichResponse{}, apperr.External("enrichment provider unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return EnrichResponse{}, apperr.External("failed to read enrichment response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return EnrichResponse{}, apperr.External(
			fmt.Sprintf("enrichment provider returned %d", resp.StatusCode),
			fmt.Errorf("%s", string(body)))
	}

	var out EnrichResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return EnrichResponse{}, apperr.External("failed to decode enrichment response", err)
	}
	return out, nil
}

// StaticEnricher is the stand-in when no enrichment API is configured. It
// echoes back the known lead fields so composition can proceed.
type StaticEnricher struct{}

func (StaticEnricher) Enrich(_ context.Context, req EnrichRequest) (EnrichResponse, error) {
	data, err := json.Marshal(map[string]string{
		"companyName": req.CompanyName,
		"jobTitle":    req.JobTitle,
		"industry":    req.Industry,
	})
	if err != nil {
		return EnrichResponse{}, err
	}
	matched := ""
	if len(req.ValuePropIDs) > 0 {
		matched = req.ValuePropIDs[0]
	}
	return EnrichResponse{
		Data:               data,
		MatchedValuePropID: matched,
		MatchReasoning:     "enrichment disabled, defaulted to first value proposition",
	}, nil
}
