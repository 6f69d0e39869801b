package processor

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"resumate-go/internal/storage"
	"resumate-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleResume = `张三，后端工程师。
负责订单系统重构，QPS 从 2000 提升至 8000。
主导团队 Go 微服务迁移，维护 12 个核心服务。
熟悉 PostgreSQL、Redis、Kafka 与 Kubernetes。`

func newTestOptimizer(t *testing.T, store *mockStore, extraComp []ComponentOpt, extraSet []SettingOpt) *Optimizer {
	t.Helper()

	comps := []ComponentOpt{
		WithStore(store),
		WithSegmenter(&fixedSegmenter{size: 40}),
		WithEmbedder(&mockEmbedder{}),
		WithGapAnalyzer(&mockGap{}),
		WithKeywordExtractor(&mockKeywords{keywords: []string{"Go", "PostgreSQL"}}),
		WithContentGenerator(&mockGenerator{output: "• 重构订单系统，QPS 从 2000 提升至 8000"}),
	}
	comps = append(comps, extraComp...)

	sets := []SettingOpt{WithDefaultModel("deepseek/deepseek-chat")}
	sets = append(sets, extraSet...)

	opt, err := NewOptimizer(comps, sets)
	require.NoError(t, err)
	return opt
}

func TestOptimizeGapAnalyzerReceivesJobDescription(t *testing.T) {
	gap := &mockGap{}
	opt := newTestOptimizer(t, &mockStore{}, []ComponentOpt{WithGapAnalyzer(gap)}, nil)

	jd := longJD("backend")
	_, err := opt.Optimize(context.Background(), OptimizeParams{
		ResumeText:     sampleResume,
		JobDescription: jd,
	})
	require.NoError(t, err)

	// 知识库为空时，岗位上下文就是原始JD本身
	assert.Equal(t, jd, gap.lastJobContext)
}

func TestOptimizeGapAnalyzerAppendsMarketCriteria(t *testing.T) {
	store := &mockStore{
		marketEntries: []types.KnowledgeEntry{{Content: "系统设计深度是高级岗位的硬要求"}},
	}
	gap := &mockGap{}
	opt := newTestOptimizer(t, store, []ComponentOpt{WithGapAnalyzer(gap)}, nil)

	jd := longJD("backend")
	_, err := opt.Optimize(context.Background(), OptimizeParams{
		ResumeText:     sampleResume,
		JobDescription: jd,
	})
	require.NoError(t, err)

	// 原始JD在前，召回的市场要求作为补充拼在后面
	assert.True(t, strings.HasPrefix(gap.lastJobContext, jd))
	assert.Contains(t, gap.lastJobContext, "系统设计深度是高级岗位的硬要求")
}

func TestOptimizeHappyPath(t *testing.T) {
	store := &mockStore{
		resumeChunks: []types.RetrievedChunk{
			{ChunkIndex: 0, Content: strings.Repeat("经验片段", 30), Similarity: 0.87654},
		},
	}
	opt := newTestOptimizer(t, store, nil, nil)

	result, err := opt.Optimize(context.Background(), OptimizeParams{
		ResumeText:     sampleResume,
		JobDescription: longJD("backend"),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, result.ResumeID)
	assert.NotEmpty(t, result.OptimizationID)
	assert.Equal(t, sampleResume, result.OriginalText)
	assert.Contains(t, result.OptimizedText, "•")
	assert.Equal(t, []string{"Go", "PostgreSQL"}, result.Keywords)
	assert.Equal(t, "deepseek/deepseek-chat", result.Model)
	assert.True(t, strings.HasSuffix(result.ProcessingTime, "s"))

	// 相似度舍入到3位小数，预览截断到100字符
	require.Len(t, result.RelevanceScores, 1)
	assert.Equal(t, 0.877, result.RelevanceScores[0].Similarity)
	assert.LessOrEqual(t, len([]rune(result.RelevanceScores[0].Preview)), 100)

	// 入库验证: 简历和分块已持久化
	require.NotNil(t, store.ingestedResume)
	assert.Equal(t, "anonymous", store.ingestedResume.UserID)
	assert.NotEmpty(t, store.ingestedResume.TextMD5)
	assert.NotEmpty(t, store.ingestedChunks)

	// 优化记录已持久化
	require.NotNil(t, store.savedOpt)
	assert.Equal(t, result.OptimizationID, store.savedOpt.OptimizationID)
	assert.Equal(t, result.ResumeID, store.savedOpt.ResumeID)
}

func TestOptimizeRejectsShortJobDescription(t *testing.T) {
	opt := newTestOptimizer(t, &mockStore{}, nil, nil)

	_, err := opt.Optimize(context.Background(), OptimizeParams{
		ResumeText:     sampleResume,
		JobDescription: "need a dev",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidJobDescription))
}

func TestOptimizeRejectsEmptyResume(t *testing.T) {
	opt := newTestOptimizer(t, &mockStore{}, nil, nil)

	_, err := opt.Optimize(context.Background(), OptimizeParams{
		ResumeText:     "   \n ",
		JobDescription: longJD("backend"),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTextTooShort))
}

func TestOptimizeDedupCacheHitSkipsIngest(t *testing.T) {
	store := &mockStore{chunkCount: 4}
	dedup := &mockDedup{exists: true, existingID: "resume-existing"}
	opt := newTestOptimizer(t, store, []ComponentOpt{WithDedupCache(dedup)}, nil)

	result, err := opt.Optimize(context.Background(), OptimizeParams{
		ResumeText:     sampleResume,
		JobDescription: longJD("backend"),
	})
	require.NoError(t, err)

	assert.Equal(t, "resume-existing", result.ResumeID)
	assert.Nil(t, store.ingestedResume, "缓存命中时不应重复入库")
}

func TestOptimizeDedupHitWithoutChunksReingests(t *testing.T) {
	// 缓存命中但库里没有分块: 视作脏数据，重新入库
	store := &mockStore{chunkCount: 0}
	dedup := &mockDedup{exists: true, existingID: "resume-orphan"}
	opt := newTestOptimizer(t, store, []ComponentOpt{WithDedupCache(dedup)}, nil)

	result, err := opt.Optimize(context.Background(), OptimizeParams{
		ResumeText:     sampleResume,
		JobDescription: longJD("backend"),
	})
	require.NoError(t, err)

	assert.NotEqual(t, "resume-orphan", result.ResumeID)
	require.NotNil(t, store.ingestedResume)
}

func TestOptimizeDatabaseFallbackWhenNoDedupCache(t *testing.T) {
	store := &mockStore{chunkCount: 3}
	store.existingResume = storeResume("resume-db-hit", sampleResume)
	opt := newTestOptimizer(t, store, nil, nil)

	result, err := opt.Optimize(context.Background(), OptimizeParams{
		ResumeText:     sampleResume,
		JobDescription: longJD("backend"),
	})
	require.NoError(t, err)

	assert.Equal(t, "resume-db-hit", result.ResumeID)
	assert.Nil(t, store.ingestedResume)
}

func TestOptimizeEmbeddingFailureRollsBackDedup(t *testing.T) {
	store := &mockStore{}
	dedup := &mockDedup{}
	comps := []ComponentOpt{
		WithDedupCache(dedup),
		WithEmbedder(&mockEmbedder{err: errors.New("upstream 503")}),
	}
	opt := newTestOptimizer(t, store, comps, nil)

	_, err := opt.Optimize(context.Background(), OptimizeParams{
		ResumeText:     sampleResume,
		JobDescription: longJD("backend"),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmbeddingProvider))
	assert.NotEmpty(t, dedup.removed, "入库失败后应清除去重标记")
}

func TestOptimizeGenerationFailureIsFatal(t *testing.T) {
	store := &mockStore{}
	comps := []ComponentOpt{
		WithContentGenerator(&mockGenerator{err: errors.New("model overloaded")}),
	}
	opt := newTestOptimizer(t, store, comps, nil)

	_, err := opt.Optimize(context.Background(), OptimizeParams{
		ResumeText:     sampleResume,
		JobDescription: longJD("backend"),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLLMProvider))
	assert.Nil(t, store.savedOpt, "生成失败不应落任何优化记录")
}

func TestOptimizePersistFailure(t *testing.T) {
	store := &mockStore{saveErr: errors.New("serialization failure")}
	opt := newTestOptimizer(t, store, nil, nil)

	_, err := opt.Optimize(context.Background(), OptimizeParams{
		ResumeText:     sampleResume,
		JobDescription: longJD("backend"),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDatabaseFailed))
}

func TestOptimizeWritesOutboxEvent(t *testing.T) {
	store := &mockStore{}
	sets := []SettingOpt{WithOptimizationEvent("resume.events", "optimization.completed")}
	opt := newTestOptimizer(t, store, nil, sets)

	result, err := opt.Optimize(context.Background(), OptimizeParams{
		ResumeText:     sampleResume,
		JobDescription: longJD("backend"),
	})
	require.NoError(t, err)

	require.NotNil(t, store.savedOutbox)
	assert.Equal(t, "resume.events", store.savedOutbox.TargetExchange)
	assert.Equal(t, "optimization.completed", store.savedOutbox.TargetRoutingKey)
	assert.Equal(t, result.OptimizationID, store.savedOutbox.AggregateID)
	assert.Equal(t, "PENDING", store.savedOutbox.Status)

	var event storage.OptimizationCompletedEvent
	require.NoError(t, json.Unmarshal([]byte(store.savedOutbox.Payload), &event))
	assert.Equal(t, result.OptimizationID, event.OptimizationID)
	assert.Equal(t, 2, event.KeywordCount)
}

func TestOptimizeSkipsOutboxWhenExchangeUnset(t *testing.T) {
	store := &mockStore{}
	opt := newTestOptimizer(t, store, nil, nil)

	_, err := opt.Optimize(context.Background(), OptimizeParams{
		ResumeText:     sampleResume,
		JobDescription: longJD("backend"),
	})
	require.NoError(t, err)
	assert.Nil(t, store.savedOutbox)
}

func TestOptimizeModelOverride(t *testing.T) {
	store := &mockStore{}
	opt := newTestOptimizer(t, store, nil, nil)

	result, err := opt.Optimize(context.Background(), OptimizeParams{
		ResumeText:     sampleResume,
		JobDescription: longJD("backend"),
		Model:          "anthropic/claude-sonnet",
	})
	require.NoError(t, err)
	assert.Equal(t, "anthropic/claude-sonnet", result.Model)
	assert.Equal(t, "anthropic/claude-sonnet", store.savedOpt.ModelUsed)
}

func TestNewOptimizerValidation(t *testing.T) {
	_, err := NewOptimizer(nil, nil)
	assert.Error(t, err, "缺少必需组件时应拒绝构造")

	comps := []ComponentOpt{
		WithStore(&mockStore{}),
		WithSegmenter(&fixedSegmenter{}),
		WithEmbedder(&mockEmbedder{}),
		WithGapAnalyzer(&mockGap{}),
		WithKeywordExtractor(&mockKeywords{}),
		WithContentGenerator(&mockGenerator{output: "• x"}),
	}

	_, err = NewOptimizer(comps, []SettingOpt{
		WithPipelineTimeout(30 * time.Second),
		WithLLMCallTimeout(45 * time.Second),
	})
	assert.Error(t, err, "流水线超时必须大于单次LLM调用超时")

	_, err = NewOptimizer(comps, nil)
	assert.NoError(t, err)
}

func TestGenerateCoverLetter(t *testing.T) {
	store := &mockStore{
		resumeChunks: []types.RetrievedChunk{{Content: "主导微服务迁移", Similarity: 0.9}},
	}
	store.existingResume = storeResume("resume-1", sampleResume)

	letter := &mockCoverLetter{output: "尊敬的招聘团队……"}
	news := &mockNews{items: []types.NewsItem{{Title: "Acme 完成 B 轮融资，加速海外扩张计划落地"}}}
	comps := []ComponentOpt{WithCoverLetterGenerator(letter), WithNewsFetcher(news)}
	opt := newTestOptimizer(t, store, comps, nil)

	text, items, err := opt.GenerateCoverLetter(context.Background(), "resume-1", longJD("backend"), "Acme", "")
	require.NoError(t, err)

	assert.Equal(t, "尊敬的招聘团队……", text)
	assert.Len(t, items, 1)
	assert.Equal(t, "Acme", letter.lastInput.CompanyName)
	assert.Contains(t, letter.lastInput.ExperienceText, "微服务迁移")
}

func TestGenerateCoverLetterNewsFailureDegrades(t *testing.T) {
	store := &mockStore{}
	store.existingResume = storeResume("resume-1", sampleResume)

	letter := &mockCoverLetter{output: "cover letter"}
	comps := []ComponentOpt{
		WithCoverLetterGenerator(letter),
		WithNewsFetcher(&mockNews{err: errors.New("rss unavailable")}),
	}
	opt := newTestOptimizer(t, store, comps, nil)

	text, items, err := opt.GenerateCoverLetter(context.Background(), "resume-1", longJD("backend"), "Acme", "")
	require.NoError(t, err, "新闻抓取失败只降级不中断")
	assert.Equal(t, "cover letter", text)
	assert.Empty(t, items)
}

func TestGenerateCoverLetterResumeNotFound(t *testing.T) {
	comps := []ComponentOpt{WithCoverLetterGenerator(&mockCoverLetter{output: "x"})}
	opt := newTestOptimizer(t, &mockStore{}, comps, nil)

	_, _, err := opt.GenerateCoverLetter(context.Background(), "missing", longJD("backend"), "Acme", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrResumeNotFound))
}
