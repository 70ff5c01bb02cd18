package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"ai-docsearch-be/pkg/embedding"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type embeddingsCall struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// fakeEmbeddings answers /embeddings with [len(text), position in request] per input.
type fakeEmbeddings struct {
	mu    sync.Mutex
	calls []embeddingsCall
	auth  []string
}

func (f *fakeEmbeddings) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/embeddings" {
		http.NotFound(w, r)
		return
	}
	var call embeddingsCall
	if err := json.NewDecoder(r.Body).Decode(&call); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.auth = append(f.auth, r.Header.Get("Authorization"))
	f.mu.Unlock()

	data := make([]string, len(call.Input))
	for i, text := range call.Input {
		data[i] = fmt.Sprintf(`{"object":"embedding","index":%d,"embedding":[%d,%d]}`, i, len(text), i)
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = fmt.Fprintf(w, `{"object":"list","model":%q,"data":[%s],"usage":{"prompt_tokens":1,"total_tokens":1}}`,
		call.Model, strings.Join(data, ","))
}

func TestProviderKeepsInputOrderAcrossBatches(t *testing.T) {
	fake := &fakeEmbeddings{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	p, err := NewProvider(Config{
		BaseURL:   srv.URL,
		APIKey:    "secret",
		Model:     "nomic-embed-text",
		Dimension: 2,
		BatchSize: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, "openai:nomic-embed-text", p.Name())
	assert.Equal(t, embedding.TierSemantic, p.Tier())

	out, err := p.GenerateBatch(context.Background(), []string{"a", "bb", "line one\nline two"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {2, 1}, {17, 0}}, out)

	require.Len(t, fake.calls, 2)
	assert.Equal(t, []string{"a", "bb"}, fake.calls[0].Input)
	assert.Equal(t, []string{"line one line two"}, fake.calls[1].Input)
	assert.Equal(t, "nomic-embed-text", fake.calls[0].Model)
	assert.Equal(t, "Bearer secret", fake.auth[0])

	vec, err := p.Generate(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 0}, vec)
}

func TestProviderErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{
			name:    "dimension mismatch",
			status:  http.StatusOK,
			body:    `{"object":"list","data":[{"object":"embedding","index":0,"embedding":[1,2,3]}]}`,
			wantErr: embedding.ErrDimensionMismatch,
		},
		{name: "missing vectors", status: http.StatusOK, body: `{"object":"list","data":[]}`},
		{name: "http failure", status: http.StatusUnauthorized, body: `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			p, err := NewProvider(Config{BaseURL: srv.URL, Dimension: 2})
			require.NoError(t, err)

			_, err = p.GenerateBatch(context.Background(), []string{"a"})
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestNewProviderValidates(t *testing.T) {
	_, err := NewProvider(Config{Dimension: 0})
	assert.ErrorIs(t, err, embedding.ErrInvalidDimension)

	p, err := NewProvider(Config{Dimension: 4})
	require.NoError(t, err)
	assert.Equal(t, "openai:text-embedding-3-small", p.Name())

	out, err := p.GenerateBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}
