package meilisearch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Aman-CERP/bananaindex/internal/document"
	"github.com/Aman-CERP/bananaindex/internal/engine"
)

func indexPath(uid string, rest ...string) string {
	p := "/indexes/" + url.PathEscape(uid)
	for _, r := range rest {
		p += "/" + r
	}
	return p
}

// Health checks GET /health.
func (c *Client) Health(ctx context.Context) error {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/health", nil, nil, &out); err != nil {
		return err
	}
	if out.Status != "" && out.Status != "available" {
		return fmt.Errorf("%w: status %q", engine.ErrUnreachable, out.Status)
	}
	return nil
}

// IndexStats returns document count and indexing flag.
func (c *Client) IndexStats(ctx context.Context, uid string) (engine.IndexStats, error) {
	var stats engine.IndexStats
	err := c.do(ctx, http.MethodGet, indexPath(uid, "stats"), nil, nil, &stats)
	return stats, err
}

// CreateIndex enqueues index creation. An existing index surfaces as a
// failed task with code index_already_exists.
func (c *Client) CreateIndex(ctx context.Context, uid, primaryKey string) (engine.TaskInfo, error) {
	body := map[string]string{"uid": uid, "primaryKey": primaryKey}
	var info engine.TaskInfo
	err := c.do(ctx, http.MethodPost, "/indexes", nil, body, &info)
	return info, err
}

// DeleteIndex enqueues index deletion.
func (c *Client) DeleteIndex(ctx context.Context, uid string) (engine.TaskInfo, error) {
	var info engine.TaskInfo
	err := c.do(ctx, http.MethodDelete, indexPath(uid), nil, nil, &info)
	return info, err
}

// UpdateSettings patches attribute settings.
func (c *Client) UpdateSettings(ctx context.Context, uid string, s engine.Settings) (engine.TaskInfo, error) {
	var info engine.TaskInfo
	err := c.do(ctx, http.MethodPatch, indexPath(uid, "settings"), nil, s, &info)
	return info, err
}

// AddDocuments upserts docs.
func (c *Client) AddDocuments(ctx context.Context, uid string, docs []document.Document, primaryKey string) (engine.TaskInfo, error) {
	q := url.Values{}
	if primaryKey != "" {
		q.Set("primaryKey", primaryKey)
	}
	if docs == nil {
		docs = []document.Document{}
	}
	var info engine.TaskInfo
	err := c.do(ctx, http.MethodPost, indexPath(uid, "documents"), q, docs, &info)
	return info, err
}

// GetTask fetches one task.
func (c *Client) GetTask(ctx context.Context, taskUID int64) (engine.Task, error) {
	var task engine.Task
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/tasks/%d", taskUID), nil, nil, &task)
	return task, err
}

// ListTasks lists tasks newest first.
func (c *Client) ListTasks(ctx context.Context, tq engine.TaskQuery) ([]engine.Task, error) {
	q := url.Values{}
	if tq.IndexUID != "" {
		q.Set("indexUids", tq.IndexUID)
	}
	if len(tq.Types) > 0 {
		q.Set("types", strings.Join(tq.Types, ","))
	}
	if len(tq.Statuses) > 0 {
		s := make([]string, len(tq.Statuses))
		for i, st := range tq.Statuses {
			s[i] = string(st)
		}
		q.Set("statuses", strings.Join(s, ","))
	}
	if tq.Limit > 0 {
		q.Set("limit", fmt.Sprint(tq.Limit))
	}

	var out struct {
		Results []engine.Task `json:"results"`
	}
	if err := c.do(ctx, http.MethodGet, "/tasks", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

type searchBody struct {
	Q      string `json:"q"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
	Filter string `json:"filter,omitempty"`
}

type searchResult struct {
	Hits               []document.Document `json:"hits"`
	EstimatedTotalHits *int64              `json:"estimatedTotalHits"`
	TotalHits          *int64              `json:"totalHits"`
	Limit              int                 `json:"limit"`
	Offset             int                 `json:"offset"`
	ProcessingTimeMs   int64               `json:"processingTimeMs"`
}

// Search runs a query. The filter is sent in Meilisearch string syntax.
func (c *Client) Search(ctx context.Context, uid string, req engine.SearchRequest) (engine.SearchResponse, error) {
	body := searchBody{
		Q:      req.Query,
		Limit:  req.Limit,
		Offset: req.Offset,
		Filter: req.Filter.String(),
	}
	var out searchResult
	if err := c.do(ctx, http.MethodPost, indexPath(uid, "search"), nil, body, &out); err != nil {
		return engine.SearchResponse{}, err
	}

	resp := engine.SearchResponse{
		Hits:             out.Hits,
		Limit:            out.Limit,
		Offset:           out.Offset,
		ProcessingTimeMs: out.ProcessingTimeMs,
	}
	switch {
	case out.TotalHits != nil:
		resp.TotalHits = *out.TotalHits
	case out.EstimatedTotalHits != nil:
		resp.TotalHits = *out.EstimatedTotalHits
	default:
		resp.TotalHits = int64(len(out.Hits))
	}
	if resp.Hits == nil {
		resp.Hits = []document.Document{}
	}
	return resp, nil
}

// GetDocument fetches one document by id.
func (c *Client) GetDocument(ctx context.Context, uid, id string) (document.Document, error) {
	var doc document.Document
	err := c.do(ctx, http.MethodGet, indexPath(uid, "documents", url.PathEscape(id)), nil, nil, &doc)
	return doc, err
}
