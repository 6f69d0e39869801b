package processor

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"strings"
	"time"

	"resumate-go/internal/constants"
	"resumate-go/internal/parser"
	"resumate-go/internal/storage"
	"resumate-go/internal/storage/models"
	"resumate-go/internal/types"

	"github.com/gofrs/uuid/v5"
	"github.com/pgvector/pgvector-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Components 聚合优化流水线的所有功能组件，便于集中管理和测试替换
type Components struct {
	Store       VectorStore          // 向量与业务数据存储
	Dedup       DedupCache           // 文本去重缓存 (可选)
	Segmenter   Segmenter            // 文本分块器
	Embedder    TextEmbedder         // 向量化组件
	Gap         GapAnalyzer          // 差距分析器
	Keywords    KeywordExtractor     // 关键词提取器
	Generator   ContentGenerator     // 内容生成器
	CoverLetter CoverLetterGenerator // 求职信生成器 (可选)
	News        NewsFetcher          // 公司新闻抓取器 (可选)
}

// Settings 纯配置项，不包含任何业务逻辑组件
type Settings struct {
	Logger                 *log.Logger
	PipelineTimeout        time.Duration // 整条流水线超时，应大于单次LLM调用超时
	LLMCallTimeout         time.Duration // 单次LLM调用超时
	IncludeMarketContext   bool          // 是否将市场上下文注入生成提示词
	ResumeTopK             int
	KnowledgeTopK          int
	OptimizationExchange   string // 优化完成事件的目标交换机
	OptimizationRoutingKey string
	DefaultModel           string
}

// Optimizer 简历优化流水线编排器。
// 阶段严格串行: Uploaded → Ingested → Retrieved → GapAnalyzed →
// KeywordsExtracted → Generated → Persisted，任一致命错误进入Failed。
type Optimizer struct {
	components Components
	settings   Settings
	retriever  *Retriever
	tracer     trace.Tracer
}

// OptimizeParams 单次优化请求参数
type OptimizeParams struct {
	ResumeText     string // 简历全文 (已完成文本提取)
	JobDescription string
	UserID         string
	FileName       string
	Model          string // 本次运行使用的模型名，为空时用Settings.DefaultModel
}

// NewOptimizer 创建流水线编排器
func NewOptimizer(compOpts []ComponentOpt, setOpts []SettingOpt) (*Optimizer, error) {
	components := Components{}
	for _, opt := range compOpts {
		opt(&components)
	}

	settings := Settings{
		Logger:          log.New(io.Discard, "", 0),
		PipelineTimeout: 120 * time.Second,
		LLMCallTimeout:  45 * time.Second,
		ResumeTopK:      defaultResumeTopK,
		KnowledgeTopK:   defaultKnowledgeTopK,
	}
	for _, opt := range setOpts {
		opt(&settings)
	}

	if components.Store == nil {
		return nil, fmt.Errorf("优化器缺少存储组件")
	}
	if components.Segmenter == nil {
		return nil, fmt.Errorf("优化器缺少分块组件")
	}
	if components.Embedder == nil {
		return nil, fmt.Errorf("优化器缺少向量化组件")
	}
	if components.Gap == nil || components.Keywords == nil || components.Generator == nil {
		return nil, fmt.Errorf("优化器缺少LLM组件")
	}
	if settings.PipelineTimeout <= settings.LLMCallTimeout {
		return nil, fmt.Errorf("流水线超时(%s)必须大于单次LLM调用超时(%s)",
			settings.PipelineTimeout, settings.LLMCallTimeout)
	}

	return &Optimizer{
		components: components,
		settings:   settings,
		retriever: NewRetriever(components.Store, components.Embedder, settings.Logger,
			settings.ResumeTopK, settings.KnowledgeTopK),
		tracer: otel.Tracer("resume-optimizer"),
	}, nil
}

// Optimize 执行完整的优化流水线
func (o *Optimizer) Optimize(ctx context.Context, params OptimizeParams) (*types.OptimizeResult, error) {
	if err := validateParams(params); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, o.settings.PipelineTimeout)
	defer cancel()

	ctx, span := o.tracer.Start(ctx, "optimizer.Optimize")
	defer span.End()

	startTime := time.Now()
	stage := types.StageUploaded

	fail := func(err error) (*types.OptimizeResult, error) {
		span.SetAttributes(attribute.String("pipeline.failed_stage", string(stage)))
		span.SetStatus(codes.Error, err.Error())
		o.settings.Logger.Printf("流水线失败 (阶段:%s): %v", stage, err)
		return nil, err
	}

	// 1. Ingest: 幂等入库
	resumeID, reused, err := o.ingest(ctx, params)
	if err != nil {
		return fail(err)
	}
	stage = types.StageIngested
	span.SetAttributes(
		attribute.String("resume.id", resumeID),
		attribute.Bool("resume.reused", reused),
	)

	// 2. Retrieve: 多源召回
	bundle, err := o.retriever.Retrieve(ctx, resumeID, params.JobDescription)
	if err != nil {
		return fail(err)
	}
	stage = types.StageRetrieved

	// 3. Gap analysis: 失败自动降级，永不中断。
	// 岗位上下文以原始JD为主体，召回的市场要求作为补充，知识库为空时分析依然成立
	jobContext := params.JobDescription
	if market := joinKnowledge(bundle.MarketCriteria); market != "" {
		jobContext += "\n\n补充的市场要求:\n" + market
	}
	gapCtx, gapCancel := context.WithTimeout(ctx, o.settings.LLMCallTimeout)
	gap := o.components.Gap.Analyze(gapCtx, joinChunks(bundle.UserExperience), jobContext)
	gapCancel()
	stage = types.StageGapAnalyzed

	// 4. Keywords: 失败降级为空列表
	kwCtx, kwCancel := context.WithTimeout(ctx, o.settings.LLMCallTimeout)
	keywords := o.components.Keywords.Extract(kwCtx, params.JobDescription)
	kwCancel()
	stage = types.StageKeywordsExtracted

	// 5. Generate: 致命步骤
	genCtx, genCancel := context.WithTimeout(ctx, o.settings.LLMCallTimeout)
	optimized, err := o.components.Generator.Generate(genCtx, parser.GenerationInput{
		ResumeFragments: chunkContents(bundle.UserExperience),
		Gap:             gap,
		Keywords:        keywords,
		MarketCriteria:  knowledgeContents(bundle.MarketCriteria),
		ATSRules:        knowledgeContents(bundle.ATSBestPractices),
		IncludeMarket:   o.settings.IncludeMarketContext,
	})
	genCancel()
	if err != nil {
		return fail(NewLLMError(resumeID, "generate", err.Error()))
	}
	stage = types.StageGenerated

	// 6. Persist: 优化记录 + 发件箱事件，同一事务
	modelUsed := params.Model
	if modelUsed == "" {
		modelUsed = o.settings.DefaultModel
	}
	processingMS := time.Since(startTime).Milliseconds()

	optimizationID, err := o.persist(ctx, resumeID, params, optimized, keywords, gap, modelUsed, processingMS)
	if err != nil {
		return fail(err)
	}
	stage = types.StagePersisted
	span.SetAttributes(attribute.String("optimization.id", optimizationID))

	return &types.OptimizeResult{
		ResumeID:        resumeID,
		OptimizationID:  optimizationID,
		OriginalText:    params.ResumeText,
		OptimizedText:   optimized,
		Keywords:        keywords,
		Model:           modelUsed,
		RelevanceScores: toRelevanceScores(bundle.UserExperience),
		ProcessingTime:  fmt.Sprintf("%.2fs", time.Since(startTime).Seconds()),
	}, nil
}

// validateParams 入参校验，所有检查先于任何外部调用
func validateParams(params OptimizeParams) error {
	if strings.TrimSpace(params.ResumeText) == "" {
		return &OptimizeError{Stage: "validate", BaseErr: ErrTextTooShort, Detail: "简历文本为空"}
	}
	if len(strings.TrimSpace(params.JobDescription)) < minJobDescriptionLength {
		return &OptimizeError{
			Stage:   "validate",
			BaseErr: ErrInvalidJobDescription,
			Detail:  fmt.Sprintf("岗位描述至少%d个字符", minJobDescriptionLength),
		}
	}
	return nil
}

// ingest 幂等入库: 相同文本 (MD5) 直接复用已有简历ID，不重复分块和向量化
func (o *Optimizer) ingest(ctx context.Context, params OptimizeParams) (string, bool, error) {
	sum := md5.Sum([]byte(params.ResumeText))
	textMD5 := hex.EncodeToString(sum[:])

	newID, err := uuid.NewV7()
	if err != nil {
		return "", false, fmt.Errorf("生成简历ID失败: %w", err)
	}
	resumeID := newID.String()

	// 先查缓存，命中后校验块数防止缓存与库不一致
	if o.components.Dedup != nil {
		exists, existingID, derr := o.components.Dedup.CheckAndSetTextMD5(ctx, textMD5, resumeID)
		if derr != nil {
			o.settings.Logger.Printf("[WARN] 去重缓存不可用, 回退数据库查询: %v", derr)
		} else if exists && existingID != "" {
			count, cerr := o.components.Store.CountResumeChunks(ctx, existingID)
			if cerr == nil && count > 0 {
				return existingID, true, nil
			}
			o.settings.Logger.Printf("[WARN] 缓存命中但简历%s无分块, 重新入库", existingID)
		}
	} else {
		existing, derr := o.components.Store.GetResumeByTextMD5(ctx, textMD5)
		if derr != nil {
			return "", false, NewDatabaseError("", fmt.Sprintf("查询简历MD5失败: %v", derr))
		}
		if existing != nil {
			count, cerr := o.components.Store.CountResumeChunks(ctx, existing.ResumeID)
			if cerr == nil && count > 0 {
				return existing.ResumeID, true, nil
			}
		}
	}

	chunks := o.components.Segmenter.Segment(params.ResumeText)
	if len(chunks) == 0 {
		return "", false, &OptimizeError{Stage: "ingest", BaseErr: ErrTextTooShort, Detail: "分块结果为空"}
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vecs, err := o.components.Embedder.EmbedStrings(ctx, texts)
	if err != nil {
		o.rollbackDedup(ctx, textMD5)
		return "", false, NewEmbeddingError(resumeID, err.Error())
	}
	if len(vecs) != len(chunks) {
		o.rollbackDedup(ctx, textMD5)
		return "", false, NewEmbeddingError(resumeID, fmt.Sprintf("向量数量不符: 期望%d, 实际%d", len(chunks), len(vecs)))
	}

	userID := params.UserID
	if userID == "" {
		userID = constants.DefaultUserID
	}
	resume := &models.Resume{
		ResumeID:     resumeID,
		UserID:       userID,
		OriginalText: params.ResumeText,
		FileName:     params.FileName,
		FileSize:     int64(len(params.ResumeText)),
		TextMD5:      textMD5,
	}

	chunkRows := make([]models.ResumeChunk, len(chunks))
	for i, c := range chunks {
		chunkRows[i] = models.ResumeChunk{
			ChunkIndex: c.Index,
			Content:    c.Content,
			Embedding:  pgvector.NewVector(toFloat32(vecs[i])),
		}
	}

	if err := o.components.Store.IngestResume(ctx, resume, chunkRows); err != nil {
		o.rollbackDedup(ctx, textMD5)
		return "", false, NewDatabaseError(resumeID, fmt.Sprintf("入库失败: %v", err))
	}

	return resumeID, false, nil
}

// rollbackDedup 入库失败后清掉去重标记，避免后续请求被幂等判定挡住
func (o *Optimizer) rollbackDedup(ctx context.Context, textMD5 string) {
	if o.components.Dedup == nil {
		return
	}
	if err := o.components.Dedup.RemoveTextMD5(ctx, textMD5); err != nil {
		o.settings.Logger.Printf("[WARN] 回滚去重标记失败 (md5=%s): %v", textMD5, err)
	}
}

// persist 落库优化记录，事件通过发件箱与记录同事务写入
func (o *Optimizer) persist(ctx context.Context, resumeID string, params OptimizeParams,
	optimized string, keywords []string, gap *types.GapAnalysis, modelUsed string, processingMS int64) (string, error) {

	optID, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("生成优化ID失败: %w", err)
	}

	keywordsJSON, err := models.SliceToJSON(keywords)
	if err != nil {
		return "", NewDatabaseError(resumeID, fmt.Sprintf("序列化关键词失败: %v", err))
	}
	gapJSON, err := storage.MarshalGapAnalysis(gap)
	if err != nil {
		return "", NewDatabaseError(resumeID, fmt.Sprintf("序列化差距分析失败: %v", err))
	}

	rec := &models.Optimization{
		OptimizationID:   optID.String(),
		ResumeID:         resumeID,
		JobDescription:   params.JobDescription,
		OptimizedContent: optimized,
		KeywordsJSON:     keywordsJSON,
		GapAnalysisJSON:  models.StringToJSON(gapJSON),
		ModelUsed:        modelUsed,
		ProcessingTimeMS: processingMS,
	}

	var outboxMsg *models.OutboxMessage
	if o.settings.OptimizationExchange != "" {
		payload, perr := json.Marshal(storage.OptimizationCompletedEvent{
			OptimizationID: optID.String(),
			ResumeID:       resumeID,
			ModelUsed:      modelUsed,
			KeywordCount:   len(keywords),
			ProcessingMS:   processingMS,
			CompletedAt:    time.Now(),
		})
		if perr != nil {
			return "", NewDatabaseError(resumeID, fmt.Sprintf("序列化完成事件失败: %v", perr))
		}
		outboxMsg = &models.OutboxMessage{
			AggregateID:      optID.String(),
			EventType:        "optimization.completed",
			Payload:          string(payload),
			TargetExchange:   o.settings.OptimizationExchange,
			TargetRoutingKey: o.settings.OptimizationRoutingKey,
			Status:           "PENDING",
		}
	}

	if err := o.components.Store.SaveOptimization(ctx, rec, outboxMsg); err != nil {
		return "", NewDatabaseError(resumeID, fmt.Sprintf("保存优化记录失败: %v", err))
	}

	return optID.String(), nil
}

// GenerateCoverLetter 基于已入库的简历生成求职信
func (o *Optimizer) GenerateCoverLetter(ctx context.Context, resumeID, jobDescription, companyName, companyURL string) (string, []types.NewsItem, error) {
	if o.components.CoverLetter == nil {
		return "", nil, fmt.Errorf("求职信组件未配置")
	}
	if len(strings.TrimSpace(jobDescription)) < minJobDescriptionLength {
		return "", nil, &OptimizeError{
			Stage:   "validate",
			BaseErr: ErrInvalidJobDescription,
			Detail:  fmt.Sprintf("岗位描述至少%d个字符", minJobDescriptionLength),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, o.settings.PipelineTimeout)
	defer cancel()

	resume, err := o.components.Store.GetResumeByID(ctx, resumeID)
	if err != nil {
		return "", nil, NewDatabaseError(resumeID, err.Error())
	}
	if resume == nil {
		return "", nil, &OptimizeError{ResumeID: resumeID, Stage: "lookup", BaseErr: ErrResumeNotFound}
	}

	// 召回与JD最相关的经历
	vecs, err := o.components.Embedder.EmbedStrings(ctx, []string{jobDescription})
	if err != nil {
		return "", nil, NewEmbeddingError(resumeID, err.Error())
	}
	if len(vecs) == 0 {
		return "", nil, NewEmbeddingError(resumeID, "向量化返回空结果")
	}
	chunks, err := o.components.Store.SearchResumeChunks(ctx, resumeID, toFloat32(vecs[0]), o.settings.ResumeTopK)
	if err != nil {
		return "", nil, NewDatabaseError(resumeID, err.Error())
	}

	// 新闻抓取失败只降级，不中断
	var news []types.NewsItem
	if o.components.News != nil {
		news, err = o.components.News.Fetch(ctx, companyName, companyURL)
		if err != nil {
			o.settings.Logger.Printf("[WARN] 抓取公司新闻失败, 求职信将不含时事内容: %v", err)
			news = nil
		}
	}

	letterCtx, letterCancel := context.WithTimeout(ctx, o.settings.LLMCallTimeout)
	defer letterCancel()
	letter, err := o.components.CoverLetter.Generate(letterCtx, parser.CoverLetterInput{
		CompanyName:    companyName,
		News:           news,
		ExperienceText: strings.Join(chunkContents(chunks), "\n\n---\n\n"),
		JobDescription: jobDescription,
	})
	if err != nil {
		return "", nil, NewLLMError(resumeID, "cover_letter", err.Error())
	}

	return letter, news, nil
}

// ----- 辅助函数 -----

func joinChunks(chunks []types.RetrievedChunk) string {
	return strings.Join(chunkContents(chunks), "\n\n")
}

func chunkContents(chunks []types.RetrievedChunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Content
	}
	return out
}

func joinKnowledge(entries []types.KnowledgeEntry) string {
	return strings.Join(knowledgeContents(entries), "\n")
}

func knowledgeContents(entries []types.KnowledgeEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Content
	}
	return out
}

// toRelevanceScores 相似度保留3位小数，预览截断到100字符
func toRelevanceScores(chunks []types.RetrievedChunk) []types.RelevanceScore {
	scores := make([]types.RelevanceScore, len(chunks))
	for i, c := range chunks {
		preview := c.Content
		if len([]rune(preview)) > 100 {
			preview = string([]rune(preview)[:100])
		}
		scores[i] = types.RelevanceScore{
			Similarity: math.Round(c.Similarity*1000) / 1000,
			Preview:    preview,
		}
	}
	return scores
}
