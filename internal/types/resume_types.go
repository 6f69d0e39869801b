package types

import "time"

// PipelineStage 表示优化流水线所处的阶段
type PipelineStage string

const (
	// StageUploaded 原始文本已接收
	StageUploaded PipelineStage = "UPLOADED"
	// StageIngested 分块与向量已落库
	StageIngested PipelineStage = "INGESTED"
	// StageRetrieved 多源检索完成
	StageRetrieved PipelineStage = "RETRIEVED"
	// StageGapAnalyzed 差距分析完成
	StageGapAnalyzed PipelineStage = "GAP_ANALYZED"
	// StageKeywordsExtracted 关键词提取完成
	StageKeywordsExtracted PipelineStage = "KEYWORDS_EXTRACTED"
	// StageGenerated 优化内容已生成
	StageGenerated PipelineStage = "GENERATED"
	// StagePersisted 优化结果已持久化（终态）
	StagePersisted PipelineStage = "PERSISTED"
	// StageFailed 流水线失败（终态）
	StageFailed PipelineStage = "FAILED"
)

// KnowledgeType 知识库条目类型
type KnowledgeType string

const (
	// KnowledgeJobRequirements 岗位要求类条目
	KnowledgeJobRequirements KnowledgeType = "job_requirements"
	// KnowledgeATSBestPractices ATS 格式化规则类条目
	KnowledgeATSBestPractices KnowledgeType = "ats_best_practices"
	// KnowledgeTechTrends 技术趋势类条目
	KnowledgeTechTrends KnowledgeType = "tech_trends"
)

// TextChunk 切分后的一个文本分块
type TextChunk struct {
	Index   int    `json:"index"`   // 在原文中的序号，从 0 开始
	Content string `json:"content"` // 分块文本
	Length  int    `json:"length"`  // 字符数
}

// RetrievedChunk 检索命中的简历分块
type RetrievedChunk struct {
	ChunkIndex int     `json:"chunk_index"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"` // 1 - 余弦距离，未舍入
}

// KnowledgeEntry 知识库条目
type KnowledgeEntry struct {
	ID         string        `json:"id"`
	Type       KnowledgeType `json:"type"`
	Content    string        `json:"content"`
	Role       string        `json:"role,omitempty"`
	Seniority  string        `json:"seniority,omitempty"`
	Category   string        `json:"category,omitempty"`
	Source     string        `json:"source,omitempty"`
	Confidence int           `json:"confidence"`
	CreatedAt  time.Time     `json:"created_at"`
}

// RetrievalBundle 一次优化运行的全部检索上下文
type RetrievalBundle struct {
	UserExperience   []RetrievedChunk `json:"user_experience"`   // 简历分块 topK=3
	MarketCriteria   []KnowledgeEntry `json:"market_criteria"`   // 按角色/级别过滤的岗位要求
	ATSBestPractices []KnowledgeEntry `json:"ats_best_practices"`
	TechTrends       []KnowledgeEntry `json:"tech_trends"`
}

// GapAnalysis 差距分析结果，四个列表均不为 nil
type GapAnalysis struct {
	MetricsFound   []string `json:"metricsFound"`   // 简历中已有的量化指标，原样摘录
	TechStack      []string `json:"techStack"`      // 简历与 JD 交集的技术栈
	MissingMetrics []string `json:"missingMetrics"` // 建议补充的量化维度
	KeywordMatches []string `json:"keywordMatches"` // 简历已覆盖的 JD 关键词
}

// RoleProfile 从 JD 推断出的角色画像，字段为空表示未识别
type RoleProfile struct {
	Role      string `json:"role,omitempty"`
	Seniority string `json:"seniority,omitempty"`
}

// RelevanceScore API 返回的检索相关度条目
type RelevanceScore struct {
	Similarity float64 `json:"similarity"` // 已舍入到 3 位小数
	Preview    string  `json:"preview"`    // 前 100 字符 + "..."
}

// OptimizeResult 一次优化运行的最终产物
type OptimizeResult struct {
	ResumeID        string           `json:"resumeId"`
	OptimizationID  string           `json:"optimizationId"`
	OriginalText    string           `json:"original"`
	OptimizedText   string           `json:"optimized"`
	Keywords        []string         `json:"keywords"`
	Model           string           `json:"model"`
	RelevanceScores []RelevanceScore `json:"relevanceScores"`
	ProcessingTime  string           `json:"processingTime"` // "%.2fs" 墙钟时间
}

// NewsItem 求职信生成用的公司新闻条目
type NewsItem struct {
	Title   string `json:"title"`
	Summary string `json:"summary,omitempty"`
	URL     string `json:"url,omitempty"`
	Source  string `json:"source,omitempty"` // 抓取来源: 公司页面URL或"google-news"
}
