package pgindex

import (
	"context"
	"testing"

	"ai-docsearch-be/pkg/searchindex"

	"github.com/stretchr/testify/assert"
)

func TestCreateIndexRejectsShardSettings(t *testing.T) {
	b := NewBackend(nil)

	err := b.CreateIndex(context.Background(), "documents", searchindex.IndexDefinition{
		Dimension: 384,
		Settings:  &searchindex.ShardSettings{Shards: 1, Replicas: 1},
	})
	assert.ErrorIs(t, err, searchindex.ErrSettingsRejected)
}

func TestTableName(t *testing.T) {
	tests := []struct {
		index   string
		want    string
		wantErr bool
	}{
		{index: "documents", want: "search_documents"},
		{index: "docs_v2", want: "search_docs_v2"},
		{index: "Documents", wantErr: true},
		{index: "docs; DROP TABLE users", wantErr: true},
		{index: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.index, func(t *testing.T) {
			got, err := table(tt.index)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpsClass(t *testing.T) {
	assert.Equal(t, "vector_cosine_ops", opsClass(searchindex.SimilarityCosine))
	assert.Equal(t, "vector_cosine_ops", opsClass(""))
	assert.Equal(t, "vector_ip_ops", opsClass(searchindex.SimilarityDot))
	assert.Equal(t, "vector_l2_ops", opsClass(searchindex.SimilarityL2))
}
