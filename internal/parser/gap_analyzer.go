package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"
	"unicode/utf8"

	"resumate-go/internal/types"

	"github.com/cloudwego/eino/components/model"
	einoschema "github.com/cloudwego/eino/schema"
)

// LLMGapAnalyzer 对比简历与岗位要求，找出量化指标与关键词的缺口。
// 分析失败不会中断流水线: 任何错误都降级为保守的默认分析结果。
type LLMGapAnalyzer struct {
	llmModel       model.ToolCallingChatModel
	promptTemplate string
	logger         *log.Logger
}

// LLMGapAnalyzerOption 分析器配置选项
type LLMGapAnalyzerOption func(*LLMGapAnalyzer)

// WithGapPromptTemplate 设置自定义提示词模板
func WithGapPromptTemplate(template string) LLMGapAnalyzerOption {
	return func(a *LLMGapAnalyzer) {
		a.promptTemplate = template
	}
}

// NewLLMGapAnalyzer 创建差距分析器
func NewLLMGapAnalyzer(llmModel model.ToolCallingChatModel, logger *log.Logger, options ...LLMGapAnalyzerOption) *LLMGapAnalyzer {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	analyzer := &LLMGapAnalyzer{
		llmModel: llmModel,
		logger:   logger,
	}

	analyzer.generatePromptTemplate()

	for _, opt := range options {
		opt(analyzer)
	}

	return analyzer
}

func (a *LLMGapAnalyzer) generatePromptTemplate() {
	a.promptTemplate = `你是一位资深的简历优化分析师。请对比下面的【候选人简历片段】和【岗位要求上下文】，严格按照指定的JSON格式输出差距分析。

**请严格遵循以下JSON输出格式规范：**
1.  **"metricsFound"**: 字符串数组，简历中已有的量化成果 (数字、百分比、规模)。没有则输出空数组。
2.  **"techStack"**: 字符串数组，简历中出现的技术栈名称。
3.  **"missingMetrics"**: 字符串数组，简历缺失但岗位看重的量化维度 (如性能提升、成本节约、团队规模)。
4.  **"keywordMatches"**: 字符串数组，简历与岗位要求都出现的关键词。

**JSON格式细节要求：**
- 完整输出必须是一个合法的JSON对象。
- 所有字段名和字符串值都必须使用双引号。
- 字符串值内部如果包含双引号(")，必须使用反斜杠(\\")进行转义。
- 禁止在JSON结构之外输出任何额外文本、解释或Markdown标记。

【候选人简历片段】:
"""
%s
"""

【岗位要求上下文】:
"""
%s
"""

请基于以上指令输出JSON结果。`
}

// Analyze 执行差距分析。
// 任何失败 (LLM出错、响应不可解析) 都返回保守默认值而不是错误，
// 保证上游流水线总能拿到可用的分析结构。
func (a *LLMGapAnalyzer) Analyze(ctx context.Context, resumeContext string, jobContext string) *types.GapAnalysis {
	if a.llmModel == nil {
		a.logger.Printf("[LLMGapAnalyzer] llmModel未初始化, 使用默认分析结果")
		return defaultGapAnalysis()
	}

	userMsgContent := fmt.Sprintf(a.promptTemplate, resumeContext, jobContext)

	systemMsg := einoschema.SystemMessage("你是一位专注于ATS简历优化的分析助手，只输出JSON。")
	userMsg := einoschema.UserMessage(userMsgContent)

	response, err := a.llmModel.Generate(ctx, []*einoschema.Message{systemMsg, userMsg})
	if err != nil {
		a.logger.Printf("[LLMGapAnalyzer] LLM调用失败, 降级为默认分析: %v", err)
		return defaultGapAnalysis()
	}
	if response == nil || response.Content == "" {
		a.logger.Printf("[LLMGapAnalyzer] LLM返回空响应, 降级为默认分析")
		return defaultGapAnalysis()
	}

	processedContent := strings.TrimPrefix(response.Content, "\uFEFF")

	jsonStr := extractJSONObject(processedContent)
	if jsonStr == "" {
		a.logger.Printf("[LLMGapAnalyzer] 响应中未找到JSON对象, 降级为默认分析. 响应: %.200s", processedContent)
		return defaultGapAnalysis()
	}

	if !utf8.ValidString(jsonStr) {
		jsonStr = strings.ToValidUTF8(jsonStr, "")
	}

	var result types.GapAnalysis
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		// 解析失败 -> 自动修复字符串内部未转义的引号再试一次
		fixedJSONStr := sanitizeJSON(jsonStr)
		if jsonErr := json.Unmarshal([]byte(fixedJSONStr), &result); jsonErr != nil {
			a.logger.Printf("[LLMGapAnalyzer] JSON解析失败(含修复重试), 降级为默认分析: %v / %v", err, jsonErr)
			return defaultGapAnalysis()
		}
	}

	// 列表字段永不为nil
	normalizeGapAnalysis(&result)
	return &result
}

// defaultGapAnalysis 保守默认值: 假定缺少量化指标
func defaultGapAnalysis() *types.GapAnalysis {
	return &types.GapAnalysis{
		MetricsFound:   []string{},
		TechStack:      []string{},
		MissingMetrics: []string{"quantifiable impact metrics"},
		KeywordMatches: []string{},
	}
}

func normalizeGapAnalysis(g *types.GapAnalysis) {
	if g.MetricsFound == nil {
		g.MetricsFound = []string{}
	}
	if g.TechStack == nil {
		g.TechStack = []string{}
	}
	if g.MissingMetrics == nil {
		g.MissingMetrics = []string{}
	}
	if g.KeywordMatches == nil {
		g.KeywordMatches = []string{}
	}
}

// extractJSONObject 通过花括号配对从文本中提取第一个完整的JSON对象
func extractJSONObject(text string) string {
	start := strings.Index(text, "{")
	if start == -1 {
		return ""
	}
	level := 0
	for i := start; i < len(text); i++ {
		if text[i] == '{' {
			level++
		} else if text[i] == '}' {
			level--
			if level == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

// sanitizeJSON 会遍历 src，将任何位于字符串字面量内部但并非"真正结束"的双引号写成 \"，
// 以保证整个 JSON 在 Go 端能够正常反序列化。
// 它通过检查下一个非空白字符是否为 :, ], }, 或 , 来判断该 " 是否为字符串的结束。
func sanitizeJSON(src string) string {
	var b strings.Builder
	inStr := false
	escaped := false

	for i := 0; i < len(src); i++ {
		c := src[i]

		if c == '"' && !escaped {
			if !inStr {
				inStr = true
				b.WriteByte(c)
			} else {
				j := i + 1
				for j < len(src) && (src[j] == ' ' || src[j] == '\t' || src[j] == '\n' || src[j] == '\r') {
					j++
				}
				if j < len(src) && (src[j] == ':' || src[j] == ',' || src[j] == ']' || src[j] == '}') {
					inStr = false
					b.WriteByte(c)
				} else {
					b.WriteString("\\\"")
				}
			}
			escaped = false

		} else if c == '\\' && !escaped {
			escaped = true
			b.WriteByte(c)

		} else {
			b.WriteByte(c)
			escaped = false
		}
	}

	return b.String()
}
