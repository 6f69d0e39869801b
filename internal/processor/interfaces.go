package processor

import (
	"context"
	"io"

	"resumate-go/internal/parser"
	"resumate-go/internal/storage"
	"resumate-go/internal/storage/models"
	"resumate-go/internal/types"

	"github.com/cloudwego/eino/components/embedding"
)

//
// PDF解析相关接口
//

// PDFExtractor PDF提取器接口
type PDFExtractor interface {
	// ExtractFromFile 从PDF文件提取文本和元数据
	ExtractFromFile(ctx context.Context, filePath string) (string, map[string]interface{}, error)

	// ExtractTextFromReader 从io.Reader提取文本和元数据
	ExtractTextFromReader(ctx context.Context, reader io.Reader, uri string, options interface{}) (string, map[string]interface{}, error)

	// ExtractTextFromBytes 从字节数组提取文本和元数据
	ExtractTextFromBytes(ctx context.Context, data []byte, uri string, options interface{}) (string, map[string]interface{}, error)
}

//
// 分块与向量化接口
//

// Segmenter 文本分块接口
type Segmenter interface {
	Segment(text string) []types.TextChunk
}

// TextEmbedder 文本向量化接口 (符合 cloudwego/eino 规范)
type TextEmbedder interface {
	// EmbedStrings 将文本转换为向量表示
	EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error)

	// GetDimensions 返回嵌入向量的维度
	GetDimensions() int
}

//
// LLM组件接口
//

// GapAnalyzer 差距分析接口。实现永不返回错误，失败时给出保守默认值。
type GapAnalyzer interface {
	Analyze(ctx context.Context, resumeContext string, jobContext string) *types.GapAnalysis
}

// KeywordExtractor 关键词提取接口。失败时返回空列表。
type KeywordExtractor interface {
	Extract(ctx context.Context, jobDescription string) []string
}

// ContentGenerator 简历要点生成接口
type ContentGenerator interface {
	Generate(ctx context.Context, input parser.GenerationInput) (string, error)
}

// CoverLetterGenerator 求职信生成接口
type CoverLetterGenerator interface {
	Generate(ctx context.Context, input parser.CoverLetterInput) (string, error)
}

// NewsFetcher 公司新闻抓取接口
type NewsFetcher interface {
	Fetch(ctx context.Context, companyName, companyURL string) ([]types.NewsItem, error)
}

//
// 存储相关接口
//

// VectorStore 向量与业务数据存储接口，由 storage.Postgres 实现
type VectorStore interface {
	IngestResume(ctx context.Context, resume *models.Resume, chunks []models.ResumeChunk) error
	SearchResumeChunks(ctx context.Context, resumeID string, queryVec []float32, topK int) ([]types.RetrievedChunk, error)
	SearchKnowledge(ctx context.Context, queryVec []float32, filter storage.KnowledgeFilter, topK int) ([]types.KnowledgeEntry, error)
	GetATSBestPractices(ctx context.Context) ([]types.KnowledgeEntry, error)
	GetTechTrends(ctx context.Context, category string) ([]types.KnowledgeEntry, error)
	SaveOptimization(ctx context.Context, opt *models.Optimization, outboxMsg *models.OutboxMessage) error
	GetResumeByID(ctx context.Context, resumeID string) (*models.Resume, error)
	GetResumeByTextMD5(ctx context.Context, textMD5 string) (*models.Resume, error)
	CountResumeChunks(ctx context.Context, resumeID string) (int64, error)
}

// 编译期断言: storage.Postgres 满足 VectorStore
var _ VectorStore = (*storage.Postgres)(nil)

// DedupCache 文本去重缓存接口，由 storage.Redis 实现
type DedupCache interface {
	CheckAndSetTextMD5(ctx context.Context, textMD5, resumeID string) (bool, string, error)
	RemoveTextMD5(ctx context.Context, textMD5 string) error
}
