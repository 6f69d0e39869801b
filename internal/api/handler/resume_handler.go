package handler

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"resumate-go/internal/config"
	"resumate-go/internal/constants"
	"resumate-go/internal/logger"
	"resumate-go/internal/processor"
	"resumate-go/internal/storage"
	"resumate-go/internal/types"
)

// optimizeLockTTL 并发优化锁的保底过期时间，须覆盖整条流水线超时
const optimizeLockTTL = 3 * time.Minute

// ResumeHandler 简历优化接口处理器，协调文件解析、对象存储与优化流水线
type ResumeHandler struct {
	cfg       *config.Config
	storage   *storage.Storage
	optimizer *processor.Optimizer
	extractor processor.PDFExtractor
}

// NewResumeHandler 创建简历处理器
func NewResumeHandler(
	cfg *config.Config,
	storage *storage.Storage,
	optimizer *processor.Optimizer,
	extractor processor.PDFExtractor,
) *ResumeHandler {
	return &ResumeHandler{
		cfg:       cfg,
		storage:   storage,
		optimizer: optimizer,
		extractor: extractor,
	}
}

// OptimizeRequest 纯文本优化请求
type OptimizeRequest struct {
	ResumeText     string `json:"resume_text"`
	JobDescription string `json:"job_description"`
	Model          string `json:"model,omitempty"`
	UserID         string `json:"user_id,omitempty"`
}

// CoverLetterRequest 求职信生成请求
type CoverLetterRequest struct {
	ResumeID       string `json:"resume_id"`
	JobDescription string `json:"job_description"`
	CompanyName    string `json:"company_name"`
	CompanyURL     string `json:"company_url,omitempty"`
}

// CoverLetterResponse 求职信生成响应
type CoverLetterResponse struct {
	CoverLetter string           `json:"cover_letter"`
	News        []types.NewsItem `json:"news"`
}

// OptimizationRecord 历史优化记录的查询响应
type OptimizationRecord struct {
	OptimizationID   string             `json:"optimization_id"`
	ResumeID         string             `json:"resume_id"`
	JobDescription   string             `json:"job_description"`
	OptimizedContent string             `json:"optimized_content"`
	Keywords         []string           `json:"keywords"`
	GapAnalysis      *types.GapAnalysis `json:"gap_analysis,omitempty"`
	ModelUsed        string             `json:"model_used"`
	ProcessingTimeMS int64              `json:"processing_time_ms"`
	CreatedAt        time.Time          `json:"created_at"`
}

// HandleOptimizeText 处理纯文本简历优化
func (h *ResumeHandler) HandleOptimizeText(ctx context.Context, req OptimizeRequest) (*types.OptimizeResult, error) {
	result, err := h.optimizer.Optimize(ctx, processor.OptimizeParams{
		ResumeText:     req.ResumeText,
		JobDescription: req.JobDescription,
		UserID:         req.UserID,
		Model:          req.Model,
	})
	if err != nil {
		return nil, err
	}

	h.cacheResult(ctx, result)
	return result, nil
}

// HandleOptimizeUpload 处理PDF上传优化: 提取文本后走同一条流水线，
// 原始文件与解析文本异步归档到MinIO
func (h *ResumeHandler) HandleOptimizeUpload(ctx context.Context, reader io.Reader, fileSize int64,
	filename, jobDescription, modelName, userID string) (*types.OptimizeResult, error) {

	if ext := strings.ToLower(filepath.Ext(filename)); ext != "" && ext != ".pdf" {
		return nil, &processor.OptimizeError{
			Stage:   "extract",
			BaseErr: processor.ErrUnreadableDocument,
			Detail:  fmt.Sprintf("不支持的文件类型: %s", ext),
		}
	}

	fileBytes, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("读取上传文件内容失败: %w", err)
	}

	// 原始文件字节去重: 重复上传的文件不再重复归档到MinIO
	var rawDuplicate bool
	if h.storage.Redis != nil {
		dup, derr := h.storage.Redis.CheckAndAddRawFileMD5(ctx, rawFileMD5(fileBytes))
		if derr != nil {
			logger.Warn().Err(derr).Msg("原始文件去重检查失败, 按首次上传处理")
		} else {
			rawDuplicate = dup
		}
	}

	text, meta, err := h.extractor.ExtractTextFromBytes(ctx, fileBytes, filename, nil)
	if err != nil {
		return nil, &processor.OptimizeError{
			Stage:   "extract",
			BaseErr: processor.ErrUnreadableDocument,
			Detail:  err.Error(),
		}
	}
	logger.Debug().
		Str("filename", filename).
		Interface("meta", meta).
		Msg("PDF文本提取完成")

	if err := processor.ValidateResumeContent(text); err != nil {
		return nil, err
	}

	// 同一简历文本+JD的并发优化请求只放行一个，其余快速失败
	if h.storage.Redis != nil {
		lockKey := optimizeLockKey(text, jobDescription)
		lockValue, lerr := h.storage.Redis.AcquireLock(ctx, lockKey, optimizeLockTTL)
		if lerr != nil {
			logger.Warn().Err(lerr).Msg("获取优化锁失败, 跳过并发保护")
		} else if lockValue == "" {
			return nil, fmt.Errorf("相同的优化请求正在处理中, 请稍后查询结果")
		} else {
			defer func() {
				if _, rerr := h.storage.Redis.ReleaseLock(ctx, lockKey, lockValue); rerr != nil {
					logger.Warn().Err(rerr).Str("lock_key", lockKey).Msg("释放优化锁失败")
				}
			}()
		}
	}

	result, err := h.optimizer.Optimize(ctx, processor.OptimizeParams{
		ResumeText:     text,
		JobDescription: jobDescription,
		UserID:         userID,
		FileName:       filename,
		Model:          modelName,
	})
	if err != nil {
		return nil, err
	}

	if !rawDuplicate {
		h.archiveToMinIO(ctx, result.ResumeID, filename, fileBytes, text)
	}
	h.cacheResult(ctx, result)
	return result, nil
}

// rawFileMD5 原始文件字节的MD5十六进制值
func rawFileMD5(fileBytes []byte) string {
	sum := md5.Sum(fileBytes)
	return hex.EncodeToString(sum[:])
}

// optimizeLockKey 并发优化锁的key: 简历文本MD5 + 岗位描述MD5
func optimizeLockKey(text, jobDescription string) string {
	textSum := md5.Sum([]byte(text))
	jdSum := md5.Sum([]byte(jobDescription))
	return fmt.Sprintf(constants.KeyOptimizeLock, hex.EncodeToString(textSum[:]), hex.EncodeToString(jdSum[:]))
}

// HandleGetOptimization 查询历史优化记录，优先命中Redis结果缓存
func (h *ResumeHandler) HandleGetOptimization(ctx context.Context, optimizationID string) (*OptimizationRecord, error) {
	if strings.TrimSpace(optimizationID) == "" {
		return nil, fmt.Errorf("优化记录ID不能为空")
	}

	if h.storage.Redis != nil {
		if cached, err := h.storage.Redis.GetCachedOptimizationResult(ctx, optimizationID); err == nil && cached != "" {
			var rec OptimizationRecord
			if jerr := json.Unmarshal([]byte(cached), &rec); jerr == nil && rec.OptimizationID != "" {
				return &rec, nil
			}
		}
	}

	opt, err := h.storage.Postgres.GetOptimizationByID(ctx, optimizationID)
	if err != nil {
		return nil, fmt.Errorf("查询优化记录失败: %w", err)
	}
	if opt == nil {
		return nil, &processor.OptimizeError{
			Stage:   "lookup",
			BaseErr: processor.ErrResumeNotFound,
			Detail:  fmt.Sprintf("优化记录 %s 不存在", optimizationID),
		}
	}

	rec := &OptimizationRecord{
		OptimizationID:   opt.OptimizationID,
		ResumeID:         opt.ResumeID,
		JobDescription:   opt.JobDescription,
		OptimizedContent: opt.OptimizedContent,
		ModelUsed:        opt.ModelUsed,
		ProcessingTimeMS: opt.ProcessingTimeMS,
		CreatedAt:        opt.CreatedAt,
	}
	if len(opt.KeywordsJSON) > 0 {
		if err := json.Unmarshal(opt.KeywordsJSON, &rec.Keywords); err != nil {
			logger.Warn().Err(err).Str("optimization_id", optimizationID).Msg("解析关键词JSON失败")
		}
	}
	if len(opt.GapAnalysisJSON) > 0 {
		var gap types.GapAnalysis
		if err := json.Unmarshal(opt.GapAnalysisJSON, &gap); err == nil {
			rec.GapAnalysis = &gap
		}
	}
	return rec, nil
}

// ResumeRecord 简历基础信息查询响应
type ResumeRecord struct {
	ResumeID   string    `json:"resume_id"`
	UserID     string    `json:"user_id"`
	FileName   string    `json:"file_name,omitempty"`
	FileSize   int64     `json:"file_size,omitempty"`
	TextLength int       `json:"text_length"`
	ChunkCount int64     `json:"chunk_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// HandleGetResume 查询简历基础信息
func (h *ResumeHandler) HandleGetResume(ctx context.Context, resumeID string) (*ResumeRecord, error) {
	resume, err := h.storage.Postgres.GetResumeByID(ctx, resumeID)
	if err != nil {
		return nil, fmt.Errorf("查询简历失败: %w", err)
	}
	if resume == nil {
		return nil, &processor.OptimizeError{
			ResumeID: resumeID,
			Stage:    "lookup",
			BaseErr:  processor.ErrResumeNotFound,
		}
	}

	chunkCount, err := h.storage.Postgres.CountResumeChunks(ctx, resumeID)
	if err != nil {
		logger.Warn().Err(err).Str("resume_id", resumeID).Msg("统计简历分块数失败")
	}

	return &ResumeRecord{
		ResumeID:   resume.ResumeID,
		UserID:     resume.UserID,
		FileName:   resume.FileName,
		FileSize:   resume.FileSize,
		TextLength: len([]rune(resume.OriginalText)),
		ChunkCount: chunkCount,
		CreatedAt:  resume.CreatedAt,
	}, nil
}

// HandleListOptimizations 按简历维度列出历史优化记录
func (h *ResumeHandler) HandleListOptimizations(ctx context.Context, resumeID string) ([]OptimizationRecord, error) {
	opts, err := h.storage.Postgres.ListOptimizationsByResume(ctx, resumeID)
	if err != nil {
		return nil, fmt.Errorf("查询优化记录列表失败: %w", err)
	}

	records := make([]OptimizationRecord, 0, len(opts))
	for _, opt := range opts {
		rec := OptimizationRecord{
			OptimizationID:   opt.OptimizationID,
			ResumeID:         opt.ResumeID,
			OptimizedContent: opt.OptimizedContent,
			ModelUsed:        opt.ModelUsed,
			ProcessingTimeMS: opt.ProcessingTimeMS,
			CreatedAt:        opt.CreatedAt,
		}
		if len(opt.KeywordsJSON) > 0 {
			_ = json.Unmarshal(opt.KeywordsJSON, &rec.Keywords)
		}
		records = append(records, rec)
	}
	return records, nil
}

// HandleCoverLetter 处理求职信生成请求
func (h *ResumeHandler) HandleCoverLetter(ctx context.Context, req CoverLetterRequest) (*CoverLetterResponse, error) {
	if strings.TrimSpace(req.CompanyName) == "" {
		return nil, fmt.Errorf("公司名称不能为空")
	}

	letter, news, err := h.optimizer.GenerateCoverLetter(ctx, req.ResumeID, req.JobDescription, req.CompanyName, req.CompanyURL)
	if err != nil {
		return nil, err
	}
	if news == nil {
		news = []types.NewsItem{}
	}
	return &CoverLetterResponse{CoverLetter: letter, News: news}, nil
}

// archiveToMinIO 归档原始文件与解析文本，失败只告警不影响主流程
func (h *ResumeHandler) archiveToMinIO(ctx context.Context, resumeID, filename string, fileBytes []byte, text string) {
	if h.storage.MinIO == nil {
		return
	}

	ext := filepath.Ext(filename)
	if ext == "" {
		ext = ".pdf"
	}
	if _, err := h.storage.MinIO.UploadResumeFile(ctx, resumeID, ext, bytes.NewReader(fileBytes), int64(len(fileBytes))); err != nil {
		logger.Warn().Err(err).Str("resume_id", resumeID).Msg("归档原始文件到MinIO失败")
	}
	if _, err := h.storage.MinIO.UploadParsedText(ctx, resumeID, text); err != nil {
		logger.Warn().Err(err).Str("resume_id", resumeID).Msg("归档解析文本到MinIO失败")
	}
}

// cacheResult 以查询接口的响应结构缓存优化结果
func (h *ResumeHandler) cacheResult(ctx context.Context, result *types.OptimizeResult) {
	if h.storage.Redis == nil {
		return
	}
	rec := OptimizationRecord{
		OptimizationID:   result.OptimizationID,
		ResumeID:         result.ResumeID,
		OptimizedContent: result.OptimizedText,
		Keywords:         result.Keywords,
		ModelUsed:        result.Model,
		CreatedAt:        time.Now(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := h.storage.Redis.CacheOptimizationResult(ctx, result.OptimizationID, string(data)); err != nil {
		logger.Warn().Err(err).Str("optimization_id", result.OptimizationID).Msg("缓存优化结果失败")
	}
}
