package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/turtacn/topk-planner/internal/application/planning"
	"github.com/turtacn/topk-planner/internal/domain/catalog"
	"github.com/turtacn/topk-planner/internal/domain/preference"
	"github.com/turtacn/topk-planner/pkg/errors"
)

// Wire types shared with the server.
type (
	RecommendRequest   = planning.RecommendRequest
	RecommendResponse  = planning.RecommendResponse
	ItemInput          = planning.ItemInput
	ConstraintsInput   = planning.ConstraintsInput
	SaveCatalogRequest = planning.SaveCatalogRequest
	CatalogView        = planning.CatalogView
	CatalogSummary     = catalog.Summary
	Profile            = preference.Profile
)

// BatchResult is one entry of a batch response.  Exactly one of Response
// and Error is set.
type BatchResult struct {
	Index    int                `json:"index"`
	Response *RecommendResponse `json:"response,omitempty"`
	Error    *APIError          `json:"error,omitempty"`
}

// BatchResponse lists results in request order.
type BatchResponse struct {
	Results   []BatchResult `json:"results"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
}

// Recommend returns the top-K plans for req.
func (c *Client) Recommend(ctx context.Context, req *RecommendRequest) (*RecommendResponse, error) {
	if req == nil {
		return nil, errors.InvalidParam("request cannot be nil")
	}
	var resp RecommendResponse
	if err := c.do(ctx, http.MethodPost, apiPrefix+"/recommendations", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RecommendText returns the plans as the server's plain-text report.
func (c *Client) RecommendText(ctx context.Context, req *RecommendRequest) (string, error) {
	if req == nil {
		return "", errors.InvalidParam("request cannot be nil")
	}
	raw, err := c.doRaw(ctx, http.MethodPost, apiPrefix+"/recommendations?format=text", req, "text/plain")
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// RecommendBatch runs several independent requests.  A failed entry is
// reported in its BatchResult; the returned error covers the call itself.
func (c *Client) RecommendBatch(ctx context.Context, reqs []*RecommendRequest) (*BatchResponse, error) {
	body := struct {
		Requests []*RecommendRequest `json:"requests"`
	}{Requests: reqs}

	var resp BatchResponse
	if err := c.do(ctx, http.MethodPost, apiPrefix+"/recommendations/batch", body, &resp); err != nil {
		return nil, err
	}
	for i := range resp.Results {
		if e := resp.Results[i].Error; e != nil && e.StatusCode == 0 {
			e.StatusCode = errors.HTTPStatusForCode(errors.ErrorCode(e.Code))
		}
	}
	return &resp, nil
}

// ListProfiles returns the named preference profiles.
func (c *Client) ListProfiles(ctx context.Context) ([]Profile, error) {
	var resp struct {
		Profiles []Profile `json:"profiles"`
	}
	if err := c.do(ctx, http.MethodGet, apiPrefix+"/profiles", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Profiles, nil
}

// ListCatalogs returns the stored catalogs.
func (c *Client) ListCatalogs(ctx context.Context) ([]CatalogSummary, error) {
	var resp struct {
		Catalogs []CatalogSummary `json:"catalogs"`
	}
	if err := c.do(ctx, http.MethodGet, apiPrefix+"/catalogs", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Catalogs, nil
}

// GetCatalog returns one stored catalog.
func (c *Client) GetCatalog(ctx context.Context, id string) (*CatalogView, error) {
	if id == "" {
		return nil, errors.InvalidParam("catalog id is required")
	}
	var view CatalogView
	if err := c.do(ctx, http.MethodGet, apiPrefix+"/catalogs/"+url.PathEscape(id), nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// PutCatalog creates or replaces the catalog req.ID.
func (c *Client) PutCatalog(ctx context.Context, req *SaveCatalogRequest) (*CatalogSummary, error) {
	if req == nil || req.ID == "" {
		return nil, errors.InvalidParam("catalog id is required")
	}
	var summary CatalogSummary
	if err := c.do(ctx, http.MethodPut, apiPrefix+"/catalogs/"+url.PathEscape(req.ID), req, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// Ready reports whether the server and its dependencies are healthy.
func (c *Client) Ready(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/readyz", nil, nil)
}
