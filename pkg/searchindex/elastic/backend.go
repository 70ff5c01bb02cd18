package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"ai-docsearch-be/pkg/searchindex"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// sourceFields are returned with every hit. The embedding is never fetched.
var sourceFields = []string{"content", "file_id", "chunk_id", "user_id", "page_number", "filename", "chunk_index", "created_at"}

type Config struct {
	// Endpoint and APIKey select a serverless project.
	Endpoint string
	// CloudID and APIKey select a hosted deployment.
	CloudID string
	APIKey  string
	// Hosts select a self-managed cluster.
	Hosts []string
	// Refresh is passed on writes ("true", "wait_for" or empty).
	Refresh   string
	Transport http.RoundTripper
}

func (c Config) Validate() error {
	switch {
	case c.Endpoint != "" && c.APIKey != "":
	case c.CloudID != "" && c.APIKey != "":
	case len(c.Hosts) > 0:
	default:
		return errors.New("elasticsearch needs endpoint+api key, cloud id+api key, or hosts")
	}
	return nil
}

type Backend struct {
	es      *elasticsearch.Client
	refresh string
}

func NewBackend(cfg Config) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	esCfg := elasticsearch.Config{Transport: cfg.Transport}
	switch {
	case cfg.Endpoint != "" && cfg.APIKey != "":
		esCfg.Addresses = []string{cfg.Endpoint}
		esCfg.APIKey = cfg.APIKey
	case cfg.CloudID != "":
		esCfg.CloudID = cfg.CloudID
		esCfg.APIKey = cfg.APIKey
	default:
		esCfg.Addresses = cfg.Hosts
	}

	es, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return &Backend{es: es, refresh: cfg.Refresh}, nil
}

func (b *Backend) Name() string { return "elasticsearch" }

// Ping checks connectivity once at startup.
func (b *Backend) Ping(ctx context.Context) error {
	res, err := b.es.Ping(b.es.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch ping failed: %w", decodeError(res))
	}
	return nil
}

func (b *Backend) Exists(ctx context.Context, index string) (bool, error) {
	res, err := b.es.Indices.Exists([]string{index}, b.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return false, err
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("index exists check: %w", decodeError(res))
	}
}

func mapping(def searchindex.IndexDefinition) map[string]interface{} {
	body := map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"content": map[string]interface{}{"type": "text", "analyzer": "english"},
				"embedding": map[string]interface{}{
					"type":       "dense_vector",
					"dims":       def.Dimension,
					"index":      true,
					"similarity": string(def.Similarity),
				},
				"file_id":     map[string]interface{}{"type": "keyword"},
				"chunk_id":    map[string]interface{}{"type": "keyword"},
				"chunk_index": map[string]interface{}{"type": "integer"},
				"page_number": map[string]interface{}{"type": "integer"},
				"user_id":     map[string]interface{}{"type": "keyword"},
				"filename":    map[string]interface{}{"type": "keyword"},
				"created_at":  map[string]interface{}{"type": "date"},
			},
		},
	}
	if def.Settings != nil {
		body["settings"] = def.Settings
	}
	return body
}

func (b *Backend) CreateIndex(ctx context.Context, index string, def searchindex.IndexDefinition) error {
	if def.Similarity == "" {
		def.Similarity = searchindex.SimilarityCosine
	}
	body, err := encode(mapping(def))
	if err != nil {
		return err
	}

	res, err := b.es.Indices.Create(index,
		b.es.Indices.Create.WithBody(body),
		b.es.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if !res.IsError() {
		return nil
	}
	apiErr := decodeError(res)
	if apiErr.Type == "resource_already_exists_exception" {
		return nil
	}
	if def.Settings != nil && apiErr.settingsRejected() {
		return fmt.Errorf("%w: %s", searchindex.ErrSettingsRejected, apiErr)
	}
	return apiErr
}

func (b *Backend) Upsert(ctx context.Context, index string, entry searchindex.Entry) error {
	body, err := encode(entry)
	if err != nil {
		return err
	}

	opts := []func(*esapi.IndexRequest){
		b.es.Index.WithDocumentID(entry.ChunkID),
		b.es.Index.WithContext(ctx),
	}
	if b.refresh != "" {
		opts = append(opts, b.es.Index.WithRefresh(b.refresh))
	}

	res, err := b.es.Index(index, body, opts...)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return decodeError(res)
	}
	return nil
}

func termFilters(f searchindex.Filter) []interface{} {
	var terms []interface{}
	if f.FileID != "" {
		terms = append(terms, term("file_id", f.FileID))
	}
	if f.UserID != "" {
		terms = append(terms, term("user_id", f.UserID))
	}
	return terms
}

func term(field, value string) map[string]interface{} {
	return map[string]interface{}{"term": map[string]interface{}{field: value}}
}

func filterQuery(f searchindex.Filter) map[string]interface{} {
	if f.IsEmpty() {
		return map[string]interface{}{"match_all": map[string]interface{}{}}
	}
	return map[string]interface{}{"bool": map[string]interface{}{"filter": termFilters(f)}}
}

func (b *Backend) DeleteByQuery(ctx context.Context, index string, filter searchindex.Filter) (int64, error) {
	if filter.IsEmpty() {
		return 0, searchindex.ErrEmptyFilter
	}
	body, err := encode(map[string]interface{}{"query": filterQuery(filter)})
	if err != nil {
		return 0, err
	}

	opts := []func(*esapi.DeleteByQueryRequest){b.es.DeleteByQuery.WithContext(ctx)}
	if b.refresh != "" {
		opts = append(opts, b.es.DeleteByQuery.WithRefresh(true))
	}
	res, err := b.es.DeleteByQuery([]string{index}, body, opts...)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, decodeError(res)
	}

	var out struct {
		Deleted int64 `json:"deleted"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode delete_by_query response: %w", err)
	}
	return out.Deleted, nil
}

// searchBody builds the knn + bool query. The owner term is applied to both
// the knn clause and the lexical query so neither stage can leak entries.
func searchBody(q searchindex.Query) map[string]interface{} {
	owner := term("user_id", q.OwnerID)
	knn := map[string]interface{}{
		"field":          "embedding",
		"query_vector":   q.Vector,
		"k":              q.K,
		"num_candidates": q.NumCandidates,
		"filter":         owner,
	}

	var query map[string]interface{}
	if q.Hybrid && q.Text != "" {
		knn["boost"] = searchindex.VectorWeight
		query = map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": []interface{}{owner},
				"should": []interface{}{
					map[string]interface{}{"match": map[string]interface{}{
						"content": map[string]interface{}{"query": q.Text, "boost": searchindex.KeywordWeight},
					}},
				},
			},
		}
	} else {
		query = map[string]interface{}{"bool": map[string]interface{}{"filter": []interface{}{owner}}}
	}

	return map[string]interface{}{
		"size":    q.K,
		"query":   query,
		"knn":     knn,
		"_source": sourceFields,
	}
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string            `json:"_id"`
			Score  float64           `json:"_score"`
			Source searchindex.Entry `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (b *Backend) Search(ctx context.Context, index string, q searchindex.Query) ([]searchindex.Hit, error) {
	if q.OwnerID == "" {
		return nil, searchindex.ErrOwnerRequired
	}
	body, err := encode(searchBody(q))
	if err != nil {
		return nil, err
	}

	res, err := b.es.Search(
		b.es.Search.WithIndex(index),
		b.es.Search.WithBody(body),
		b.es.Search.WithContext(ctx),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, decodeError(res)
	}

	var out searchResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	hits := make([]searchindex.Hit, 0, len(out.Hits.Hits))
	for _, h := range out.Hits.Hits {
		entry := h.Source
		if entry.ChunkID == "" {
			entry.ChunkID = h.ID
		}
		hits = append(hits, searchindex.Hit{Entry: entry, Score: h.Score})
	}
	return searchindex.OwnedOnly(hits, q.OwnerID), nil
}

func (b *Backend) Count(ctx context.Context, index string, filter searchindex.Filter) (int64, error) {
	body, err := encode(map[string]interface{}{"query": filterQuery(filter)})
	if err != nil {
		return 0, err
	}

	res, err := b.es.Count(
		b.es.Count.WithIndex(index),
		b.es.Count.WithBody(body),
		b.es.Count.WithContext(ctx),
	)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, decodeError(res)
	}

	var out struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode count response: %w", err)
	}
	return out.Count, nil
}

// SizeInBytes reads the store size from the stats API, which serverless
// projects do not expose.
func (b *Backend) SizeInBytes(ctx context.Context, index string) (int64, error) {
	res, err := b.es.Indices.Stats(
		b.es.Indices.Stats.WithIndex(index),
		b.es.Indices.Stats.WithMetric("store"),
		b.es.Indices.Stats.WithContext(ctx),
	)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()
	if res.IsError() {
		apiErr := decodeError(res)
		if apiErr.statsUnavailable() {
			return 0, fmt.Errorf("%w: %s", searchindex.ErrStatsUnavailable, apiErr)
		}
		return 0, apiErr
	}

	var out struct {
		Indices map[string]struct {
			Total struct {
				Store struct {
					SizeInBytes int64 `json:"size_in_bytes"`
				} `json:"store"`
			} `json:"total"`
		} `json:"indices"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode stats response: %w", err)
	}
	stats, ok := out.Indices[index]
	if !ok {
		return 0, fmt.Errorf("%w: %s", searchindex.ErrIndexNotFound, index)
	}
	return stats.Total.Store.SizeInBytes, nil
}

// APIError is the error envelope Elasticsearch returns on failed requests.
type APIError struct {
	Status int
	Type   string
	Reason string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("elasticsearch %d %s: %s", e.Status, e.Type, e.Reason)
}

// Unwrap maps statuses that no retry can fix onto searchindex sentinels.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return searchindex.ErrUnauthorized
	case http.StatusBadRequest:
		if strings.Contains(strings.ToLower(e.Reason), "dimensions") {
			return searchindex.ErrDimensionMismatch
		}
		return searchindex.ErrBadRequest
	}
	return nil
}

func (e *APIError) settingsRejected() bool {
	text := strings.ToLower(e.Type + " " + e.Reason)
	return strings.Contains(text, "illegal_argument") || strings.Contains(text, "serverless")
}

func (e *APIError) statsUnavailable() bool {
	text := strings.ToLower(e.Type + " " + e.Reason)
	return strings.Contains(text, "serverless") || strings.Contains(text, "api_not_available") ||
		e.Status == http.StatusGone || e.Status == http.StatusNotImplemented
}

func decodeError(res *esapi.Response) *APIError {
	apiErr := &APIError{Status: res.StatusCode}
	raw, _ := io.ReadAll(res.Body)

	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || len(envelope.Error) == 0 {
		apiErr.Reason = strings.TrimSpace(string(raw))
		return apiErr
	}

	var detail struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(envelope.Error, &detail); err != nil {
		// some endpoints report a bare string
		var msg string
		_ = json.Unmarshal(envelope.Error, &msg)
		apiErr.Reason = msg
		return apiErr
	}
	apiErr.Type = detail.Type
	apiErr.Reason = detail.Reason
	return apiErr
}

func encode(v interface{}) (io.Reader, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}
	return &buf, nil
}
