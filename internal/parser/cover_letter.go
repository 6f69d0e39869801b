package parser

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"resumate-go/internal/types"

	"github.com/cloudwego/eino/components/model"
	einoschema "github.com/cloudwego/eino/schema"
)

const coverLetterPrompt = `你是一位擅长撰写技术求职信的专家。

**材料：**
目标公司: %s

公司近期新闻:
%s

候选人相关经历:
"""
%s
"""

岗位要求:
"""
%s
"""

**写作要求：**
- 写一封简短的求职信 (150-250个英文单词)。
- 如果有公司新闻，明确提到其中一条，并说明它与候选人经历的关联。
- 自然地融入岗位要求中的关键词。
- 语气专业、直接，不要空话套话。
- 只输出求职信正文，不要抬头或署名模板。`

// CoverLetterInput 求职信生成输入
type CoverLetterInput struct {
	CompanyName    string
	News           []types.NewsItem
	ExperienceText string // 召回的相关经历片段
	JobDescription string
}

// LLMCoverLetterGenerator 基于召回经历和公司新闻生成个性化求职信
type LLMCoverLetterGenerator struct {
	llmModel model.ToolCallingChatModel
	logger   *log.Logger
}

// NewLLMCoverLetterGenerator 创建求职信生成器
func NewLLMCoverLetterGenerator(llmModel model.ToolCallingChatModel, logger *log.Logger) *LLMCoverLetterGenerator {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &LLMCoverLetterGenerator{
		llmModel: llmModel,
		logger:   logger,
	}
}

// Generate 生成求职信。新闻为空时提示词中标注"无"，不视为错误。
func (g *LLMCoverLetterGenerator) Generate(ctx context.Context, input CoverLetterInput) (string, error) {
	if g.llmModel == nil {
		return "", fmt.Errorf("LLMCoverLetterGenerator: llmModel未初始化")
	}
	if strings.TrimSpace(input.CompanyName) == "" {
		return "", fmt.Errorf("公司名称不能为空")
	}

	newsText := "无"
	if len(input.News) > 0 {
		var titles []string
		for _, item := range input.News {
			titles = append(titles, "- "+item.Title)
		}
		newsText = strings.Join(titles, "\n")
	}

	userMsg := einoschema.UserMessage(fmt.Sprintf(coverLetterPrompt,
		input.CompanyName, newsText, input.ExperienceText, input.JobDescription))

	response, err := g.llmModel.Generate(ctx, []*einoschema.Message{userMsg})
	if err != nil {
		return "", fmt.Errorf("求职信生成失败: %w", err)
	}
	if response == nil || strings.TrimSpace(response.Content) == "" {
		return "", fmt.Errorf("求职信生成返回空响应")
	}

	return strings.TrimSpace(response.Content), nil
}
