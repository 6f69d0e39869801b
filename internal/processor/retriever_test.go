package processor

import (
	"context"
	"errors"
	"testing"

	"resumate-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrieverCollectsAllSources(t *testing.T) {
	store := &mockStore{
		resumeChunks: []types.RetrievedChunk{
			{ChunkIndex: 0, Content: "负责订单服务重构", Similarity: 0.91},
			{ChunkIndex: 2, Content: "搭建CI/CD流水线", Similarity: 0.85},
		},
		marketEntries: []types.KnowledgeEntry{{Content: "Senior backend roles expect system design depth"}},
		atsEntries:    []types.KnowledgeEntry{{Content: "Use standard section headers"}},
		trendEntries:  []types.KnowledgeEntry{{Content: "Kubernetes adoption keeps growing"}},
	}

	r := NewRetriever(store, &mockEmbedder{}, nil, 3, 5)
	bundle, err := r.Retrieve(context.Background(), "resume-1", longJD("senior backend"))
	require.NoError(t, err)

	assert.Len(t, bundle.UserExperience, 2)
	assert.Len(t, bundle.MarketCriteria, 1)
	assert.Len(t, bundle.ATSBestPractices, 1)
	assert.Len(t, bundle.TechTrends, 1)
	assert.Equal(t, 3, store.searchTopK)
	assert.Equal(t, 5, store.knowledgeTopK)
}

func TestRetrieverFiltersKnowledgeByDetectedRole(t *testing.T) {
	store := &mockStore{}
	r := NewRetriever(store, &mockEmbedder{}, nil, 3, 5)

	_, err := r.Retrieve(context.Background(), "resume-1", longJD("senior backend"))
	require.NoError(t, err)

	assert.Equal(t, types.KnowledgeJobRequirements, store.knowledgeFilter.Type)
	assert.Equal(t, "backend developer", store.knowledgeFilter.Role)
	assert.Equal(t, "senior", store.knowledgeFilter.Seniority)
}

func TestRetrieverUnknownRoleLeavesFilterOpen(t *testing.T) {
	store := &mockStore{}
	r := NewRetriever(store, &mockEmbedder{}, nil, 3, 5)

	_, err := r.Retrieve(context.Background(), "resume-1",
		"Looking for a passionate generalist who enjoys solving hard problems across many domains every day.")
	require.NoError(t, err)

	assert.Empty(t, store.knowledgeFilter.Role)
	assert.Empty(t, store.knowledgeFilter.Seniority)
}

func TestRetrieverEmbeddingFailure(t *testing.T) {
	r := NewRetriever(&mockStore{}, &mockEmbedder{err: errors.New("provider down")}, nil, 3, 5)

	_, err := r.Retrieve(context.Background(), "resume-1", longJD("backend"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmbeddingProvider))
}

func TestRetrieverDatabaseFailure(t *testing.T) {
	store := &mockStore{searchErr: errors.New("connection reset")}
	r := NewRetriever(store, &mockEmbedder{}, nil, 3, 5)

	_, err := r.Retrieve(context.Background(), "resume-1", longJD("backend"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDatabaseFailed))
}
