package router

import (
	"context"
	"errors"
	"time"

	"resumate-go/internal/api/handler"
	"resumate-go/internal/constants"
	"resumate-go/internal/logger"
	"resumate-go/internal/processor"
	"resumate-go/pkg/ratelimit"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// RegisterRoutes 注册API路由。qpm<=0 时不启用接口限流。
func RegisterRoutes(h *server.Hertz, resumeHandler *handler.ResumeHandler, knowledgeHandler *handler.KnowledgeHandler, qpm int) {
	api := h.Group("/api/v1")

	if qpm > 0 {
		bucket := ratelimit.NewTokenBucket(qpm, qpm)
		api.Use(func(c context.Context, ctx *app.RequestContext) {
			if !bucket.Allow() {
				ctx.AbortWithStatusJSON(consts.StatusTooManyRequests, utils.H{"error": "请求过于频繁，请稍后重试"})
				return
			}
			ctx.Next(c)
		})
	}

	// 简历优化: multipart上传PDF，或JSON提交纯文本
	api.POST("/resume/optimize", func(c context.Context, ctx *app.RequestContext) {
		if fileHeader, err := ctx.FormFile("file"); err == nil {
			if fileHeader.Size > constants.MaxResumeFileSize {
				ctx.JSON(consts.StatusRequestEntityTooLarge, utils.H{"error": "文件超过大小限制"})
				return
			}
			jobDescription := ctx.PostForm("job_description")
			modelName := ctx.PostForm("model")
			userID := ctx.PostForm("user_id")

			file, err := fileHeader.Open()
			if err != nil {
				ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "打开上传文件失败"})
				return
			}
			defer file.Close()

			resp, err := resumeHandler.HandleOptimizeUpload(c, file, fileHeader.Size,
				fileHeader.Filename, jobDescription, modelName, userID)
			if err != nil {
				writeError(ctx, err)
				return
			}
			ctx.JSON(consts.StatusOK, resp)
			return
		}

		var req handler.OptimizeRequest
		if err := ctx.BindJSON(&req); err != nil {
			ctx.JSON(consts.StatusBadRequest, utils.H{"error": "请求体格式错误"})
			return
		}
		resp, err := resumeHandler.HandleOptimizeText(c, req)
		if err != nil {
			writeError(ctx, err)
			return
		}
		ctx.JSON(consts.StatusOK, resp)
	})

	// 查询简历基础信息
	api.GET("/resume/:id", func(c context.Context, ctx *app.RequestContext) {
		resp, err := resumeHandler.HandleGetResume(c, ctx.Param("id"))
		if err != nil {
			writeError(ctx, err)
			return
		}
		ctx.JSON(consts.StatusOK, resp)
	})

	// 查询单条优化记录
	api.GET("/optimization/:id", func(c context.Context, ctx *app.RequestContext) {
		resp, err := resumeHandler.HandleGetOptimization(c, ctx.Param("id"))
		if err != nil {
			writeError(ctx, err)
			return
		}
		ctx.JSON(consts.StatusOK, resp)
	})

	// 按简历列出历史优化记录
	api.GET("/resume/:id/optimizations", func(c context.Context, ctx *app.RequestContext) {
		resp, err := resumeHandler.HandleListOptimizations(c, ctx.Param("id"))
		if err != nil {
			writeError(ctx, err)
			return
		}
		ctx.JSON(consts.StatusOK, utils.H{"optimizations": resp})
	})

	// 求职信生成
	api.POST("/resume/cover-letter", func(c context.Context, ctx *app.RequestContext) {
		var req handler.CoverLetterRequest
		if err := ctx.BindJSON(&req); err != nil {
			ctx.JSON(consts.StatusBadRequest, utils.H{"error": "请求体格式错误"})
			return
		}
		resp, err := resumeHandler.HandleCoverLetter(c, req)
		if err != nil {
			writeError(ctx, err)
			return
		}
		ctx.JSON(consts.StatusOK, resp)
	})

	// 知识库条目写入 (内部接口，供管理工具与测试使用)
	api.POST("/knowledge", func(c context.Context, ctx *app.RequestContext) {
		var req handler.KnowledgeAddRequest
		if err := ctx.BindJSON(&req); err != nil {
			ctx.JSON(consts.StatusBadRequest, utils.H{"error": "请求体格式错误"})
			return
		}
		entryID, err := knowledgeHandler.HandleAddKnowledge(c, req)
		if err != nil {
			ctx.JSON(consts.StatusBadRequest, utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(consts.StatusOK, utils.H{"id": entryID})
	})

	// 健康检查
	api.GET("/health", func(c context.Context, ctx *app.RequestContext) {
		ctx.JSON(consts.StatusOK, utils.H{"status": "ok"})
	})
}

// writeError 输出错误响应。5xx只返回通用提示和参考时间戳，细节进日志。
func writeError(ctx *app.RequestContext, err error) {
	status := statusForError(err)
	if status >= consts.StatusInternalServerError {
		ref := time.Now().Format(time.RFC3339)
		logger.Error().Err(err).Str("ref", ref).Msg("请求处理失败")
		ctx.JSON(status, utils.H{"error": "服务暂时不可用，请稍后重试", "ref": ref})
		return
	}
	ctx.JSON(status, utils.H{"error": err.Error()})
}

// statusForError 将流水线错误映射为HTTP状态码
func statusForError(err error) int {
	switch {
	case errors.Is(err, processor.ErrInvalidJobDescription),
		errors.Is(err, processor.ErrTextTooShort),
		errors.Is(err, processor.ErrNotResumeLike),
		errors.Is(err, processor.ErrUnreadableDocument):
		return consts.StatusBadRequest
	case errors.Is(err, processor.ErrResumeNotFound):
		return consts.StatusNotFound
	case errors.Is(err, processor.ErrEmbeddingProvider),
		errors.Is(err, processor.ErrLLMProvider):
		return consts.StatusBadGateway
	default:
		return consts.StatusInternalServerError
	}
}
