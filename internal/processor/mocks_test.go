package processor

import (
	"context"
	"fmt"
	"sync"

	"resumate-go/internal/parser"
	"resumate-go/internal/storage"
	"resumate-go/internal/storage/models"
	"resumate-go/internal/types"

	"github.com/cloudwego/eino/components/embedding"
)

// mockStore 手写的 VectorStore 测试替身，按需注入返回值并记录调用
type mockStore struct {
	mu sync.Mutex

	resumeChunks   []types.RetrievedChunk
	marketEntries  []types.KnowledgeEntry
	atsEntries     []types.KnowledgeEntry
	trendEntries   []types.KnowledgeEntry
	existingResume *models.Resume
	chunkCount     int64

	ingestErr error
	searchErr error
	saveErr   error

	ingestedResume  *models.Resume
	ingestedChunks  []models.ResumeChunk
	savedOpt        *models.Optimization
	savedOutbox     *models.OutboxMessage
	knowledgeFilter storage.KnowledgeFilter
	searchTopK      int
	knowledgeTopK   int
}

func (m *mockStore) IngestResume(ctx context.Context, resume *models.Resume, chunks []models.ResumeChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ingestErr != nil {
		return m.ingestErr
	}
	m.ingestedResume = resume
	m.ingestedChunks = chunks
	return nil
}

func (m *mockStore) SearchResumeChunks(ctx context.Context, resumeID string, queryVec []float32, topK int) ([]types.RetrievedChunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	m.searchTopK = topK
	return m.resumeChunks, nil
}

func (m *mockStore) SearchKnowledge(ctx context.Context, queryVec []float32, filter storage.KnowledgeFilter, topK int) ([]types.KnowledgeEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.knowledgeFilter = filter
	m.knowledgeTopK = topK
	return m.marketEntries, nil
}

func (m *mockStore) GetATSBestPractices(ctx context.Context) ([]types.KnowledgeEntry, error) {
	return m.atsEntries, nil
}

func (m *mockStore) GetTechTrends(ctx context.Context, category string) ([]types.KnowledgeEntry, error) {
	return m.trendEntries, nil
}

func (m *mockStore) SaveOptimization(ctx context.Context, opt *models.Optimization, outboxMsg *models.OutboxMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.savedOpt = opt
	m.savedOutbox = outboxMsg
	return nil
}

func (m *mockStore) GetResumeByID(ctx context.Context, resumeID string) (*models.Resume, error) {
	return m.existingResume, nil
}

func (m *mockStore) GetResumeByTextMD5(ctx context.Context, textMD5 string) (*models.Resume, error) {
	return m.existingResume, nil
}

func (m *mockStore) CountResumeChunks(ctx context.Context, resumeID string) (int64, error) {
	return m.chunkCount, nil
}

// mockDedup DedupCache 测试替身
type mockDedup struct {
	exists     bool
	existingID string
	checkErr   error
	removed    []string
}

func (m *mockDedup) CheckAndSetTextMD5(ctx context.Context, textMD5, resumeID string) (bool, string, error) {
	if m.checkErr != nil {
		return false, "", m.checkErr
	}
	return m.exists, m.existingID, nil
}

func (m *mockDedup) RemoveTextMD5(ctx context.Context, textMD5 string) error {
	m.removed = append(m.removed, textMD5)
	return nil
}

// mockEmbedder 为每条文本返回固定维度的向量
type mockEmbedder struct {
	dims int
	err  error
}

func (m *mockEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	if m.err != nil {
		return nil, m.err
	}
	dims := m.dims
	if dims == 0 {
		dims = 4
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		vec := make([]float64, dims)
		for j := range vec {
			vec[j] = float64(i) + 0.1
		}
		out[i] = vec
	}
	return out, nil
}

func (m *mockEmbedder) GetDimensions() int {
	if m.dims == 0 {
		return 4
	}
	return m.dims
}

// mockGap 返回固定差距分析，记录收到的上下文
type mockGap struct {
	result            *types.GapAnalysis
	lastResumeContext string
	lastJobContext    string
}

func (m *mockGap) Analyze(ctx context.Context, resumeContext, jobContext string) *types.GapAnalysis {
	m.lastResumeContext = resumeContext
	m.lastJobContext = jobContext
	if m.result != nil {
		return m.result
	}
	return &types.GapAnalysis{
		MetricsFound:   []string{},
		TechStack:      []string{},
		MissingMetrics: []string{"quantifiable impact metrics"},
		KeywordMatches: []string{},
	}
}

// mockKeywords 返回固定关键词
type mockKeywords struct {
	keywords []string
}

func (m *mockKeywords) Extract(ctx context.Context, jobDescription string) []string {
	return m.keywords
}

// mockGenerator 返回固定生成结果并记录入参
type mockGenerator struct {
	output    string
	err       error
	lastInput parser.GenerationInput
}

func (m *mockGenerator) Generate(ctx context.Context, input parser.GenerationInput) (string, error) {
	m.lastInput = input
	if m.err != nil {
		return "", m.err
	}
	return m.output, nil
}

// mockCoverLetter 求职信生成测试替身
type mockCoverLetter struct {
	output    string
	err       error
	lastInput parser.CoverLetterInput
}

func (m *mockCoverLetter) Generate(ctx context.Context, input parser.CoverLetterInput) (string, error) {
	m.lastInput = input
	if m.err != nil {
		return "", m.err
	}
	return m.output, nil
}

// mockNews 新闻抓取测试替身
type mockNews struct {
	items []types.NewsItem
	err   error
}

func (m *mockNews) Fetch(ctx context.Context, companyName, companyURL string) ([]types.NewsItem, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.items, nil
}

// fixedSegmenter 把文本按固定长度切块，避免测试依赖真实分块逻辑
type fixedSegmenter struct {
	size int
}

func (s *fixedSegmenter) Segment(text string) []types.TextChunk {
	size := s.size
	if size == 0 {
		size = 50
	}
	runes := []rune(text)
	var chunks []types.TextChunk
	for i := 0; i < len(runes); i += size {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, types.TextChunk{
			Index:   len(chunks),
			Content: string(runes[i:end]),
			Length:  end - i,
		})
	}
	return chunks
}

// storeResume 构造库中已存在的简历记录
func storeResume(resumeID, text string) *models.Resume {
	return &models.Resume{
		ResumeID:     resumeID,
		UserID:       "anonymous",
		OriginalText: text,
	}
}

// longJD 生成一段满足最小长度要求的岗位描述
func longJD(role string) string {
	return fmt.Sprintf("We are hiring a %s engineer to build scalable distributed backend services with Go, PostgreSQL and Kubernetes.", role)
}
