package parser

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	einoschema "github.com/cloudwego/eino/schema"
)

const keywordExtractorPrompt = `从下面的岗位描述中提取ATS筛选会关注的关键词 (技术栈、工具、方法论、资质认证)。
只输出关键词本身，用英文逗号分隔，不要编号，不要解释，不要任何额外文本。

岗位描述:
"""
%s
"""`

// maxExtractedKeywords 防止LLM输出失控时关键词无限膨胀
const maxExtractedKeywords = 30

// LLMKeywordExtractor 从岗位描述中提取ATS关键词。
// 提取失败时返回空列表，不中断流水线。
type LLMKeywordExtractor struct {
	llmModel model.ToolCallingChatModel
	logger   *log.Logger
}

// NewLLMKeywordExtractor 创建关键词提取器
func NewLLMKeywordExtractor(llmModel model.ToolCallingChatModel, logger *log.Logger) *LLMKeywordExtractor {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &LLMKeywordExtractor{
		llmModel: llmModel,
		logger:   logger,
	}
}

// Extract 提取关键词，按逗号切分并去除空白项
func (e *LLMKeywordExtractor) Extract(ctx context.Context, jobDescription string) []string {
	if e.llmModel == nil || strings.TrimSpace(jobDescription) == "" {
		return []string{}
	}

	userMsg := einoschema.UserMessage(fmt.Sprintf(keywordExtractorPrompt, jobDescription))

	response, err := e.llmModel.Generate(ctx, []*einoschema.Message{userMsg})
	if err != nil {
		e.logger.Printf("[LLMKeywordExtractor] LLM调用失败, 返回空关键词列表: %v", err)
		return []string{}
	}
	if response == nil || response.Content == "" {
		e.logger.Printf("[LLMKeywordExtractor] LLM返回空响应")
		return []string{}
	}

	return parseKeywordList(response.Content)
}

// parseKeywordList 解析逗号分隔的关键词文本
func parseKeywordList(raw string) []string {
	keywords := []string{}
	seen := make(map[string]bool)

	for _, part := range strings.Split(raw, ",") {
		kw := strings.TrimSpace(part)
		kw = strings.Trim(kw, "\"'`")
		if kw == "" {
			continue
		}
		lower := strings.ToLower(kw)
		if seen[lower] {
			continue
		}
		seen[lower] = true
		keywords = append(keywords, kw)
		if len(keywords) >= maxExtractedKeywords {
			break
		}
	}
	return keywords
}
