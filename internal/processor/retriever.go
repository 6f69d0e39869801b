package processor

import (
	"context"
	"fmt"
	"log"

	"resumate-go/internal/storage"
	"resumate-go/internal/types"
)

const (
	defaultResumeTopK    = 3
	defaultKnowledgeTopK = 5
)

// Retriever 多源召回: 用一次JD向量化同时检索简历片段和知识库三个板块
type Retriever struct {
	store    VectorStore
	embedder TextEmbedder
	logger   *log.Logger

	resumeTopK    int
	knowledgeTopK int
}

// NewRetriever 创建检索器
func NewRetriever(store VectorStore, embedder TextEmbedder, logger *log.Logger, resumeTopK, knowledgeTopK int) *Retriever {
	if resumeTopK <= 0 {
		resumeTopK = defaultResumeTopK
	}
	if knowledgeTopK <= 0 {
		knowledgeTopK = defaultKnowledgeTopK
	}
	return &Retriever{
		store:         store,
		embedder:      embedder,
		logger:        logger,
		resumeTopK:    resumeTopK,
		knowledgeTopK: knowledgeTopK,
	}
}

// Retrieve 执行多源召回。JD只向量化一次，四路查询共用同一个查询向量。
func (r *Retriever) Retrieve(ctx context.Context, resumeID string, jobDescription string) (*types.RetrievalBundle, error) {
	vecs, err := r.embedder.EmbedStrings(ctx, []string{jobDescription})
	if err != nil {
		return nil, NewEmbeddingError(resumeID, fmt.Sprintf("JD向量化失败: %v", err))
	}
	if len(vecs) == 0 {
		return nil, NewEmbeddingError(resumeID, "JD向量化返回空结果")
	}
	queryVec := toFloat32(vecs[0])

	bundle := &types.RetrievalBundle{}

	// 1. 候选人自身经历
	chunks, err := r.store.SearchResumeChunks(ctx, resumeID, queryVec, r.resumeTopK)
	if err != nil {
		return nil, NewDatabaseError(resumeID, fmt.Sprintf("简历片段检索失败: %v", err))
	}
	bundle.UserExperience = chunks

	// 2. 岗位市场要求: 按识别出的角色/资历过滤，识别不出则不加过滤
	profile := DetectRoleProfile(jobDescription)
	filter := storage.KnowledgeFilter{
		Type:      types.KnowledgeJobRequirements,
		Role:      profile.Role,
		Seniority: profile.Seniority,
	}
	criteria, err := r.store.SearchKnowledge(ctx, queryVec, filter, r.knowledgeTopK)
	if err != nil {
		return nil, NewDatabaseError(resumeID, fmt.Sprintf("岗位要求检索失败: %v", err))
	}
	bundle.MarketCriteria = criteria

	// 3. ATS最佳实践: 按置信度而不是向量相似度
	ats, err := r.store.GetATSBestPractices(ctx)
	if err != nil {
		return nil, NewDatabaseError(resumeID, fmt.Sprintf("ATS实践检索失败: %v", err))
	}
	bundle.ATSBestPractices = ats

	// 4. 技术趋势: 近90天按时间倒序
	trends, err := r.store.GetTechTrends(ctx, "")
	if err != nil {
		return nil, NewDatabaseError(resumeID, fmt.Sprintf("技术趋势检索失败: %v", err))
	}
	bundle.TechTrends = trends

	if r.logger != nil {
		r.logger.Printf("召回完成: 简历片段=%d, 岗位要求=%d, ATS实践=%d, 技术趋势=%d (role=%q seniority=%q)",
			len(bundle.UserExperience), len(bundle.MarketCriteria),
			len(bundle.ATSBestPractices), len(bundle.TechTrends),
			profile.Role, profile.Seniority)
	}

	return bundle, nil
}

// toFloat32 pgvector要求float32向量
func toFloat32(vec []float64) []float32 {
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(v)
	}
	return out
}
