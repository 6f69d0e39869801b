package parser

import (
	"context"
	"fmt"
	"io"
	"log"
	"regexp"
	"strings"

	"resumate-go/internal/types"

	"github.com/cloudwego/eino/components/model"
	einoschema "github.com/cloudwego/eino/schema"
)

// GenerationInput 内容生成的输入上下文
type GenerationInput struct {
	ResumeFragments []string            // 召回的简历片段
	Gap             *types.GapAnalysis  // 差距分析结果
	Keywords        []string            // 目标关键词
	MarketCriteria  []string            // 岗位市场要求 (可选注入)
	ATSRules        []string            // ATS写作规则 (可选注入)
	IncludeMarket   bool                // 是否将市场上下文注入提示词
}

// LLMContentGenerator 基于少样本提示词生成优化后的简历要点。
// 生成后通过groundNumbers做数字溯源校验，杜绝LLM编造量化指标。
type LLMContentGenerator struct {
	llmModel        model.ToolCallingChatModel
	promptTemplate  string
	fewShotExamples string
	logger          *log.Logger
}

// LLMContentGeneratorOption 生成器配置选项
type LLMContentGeneratorOption func(*LLMContentGenerator)

// WithGeneratorPromptTemplate 设置自定义提示词模板
func WithGeneratorPromptTemplate(template string) LLMContentGeneratorOption {
	return func(g *LLMContentGenerator) {
		g.promptTemplate = template
	}
}

// WithGeneratorFewShotExamples 设置少样本示例
func WithGeneratorFewShotExamples(examples string) LLMContentGeneratorOption {
	return func(g *LLMContentGenerator) {
		g.fewShotExamples = examples
	}
}

// NewLLMContentGenerator 创建内容生成器
func NewLLMContentGenerator(llmModel model.ToolCallingChatModel, logger *log.Logger, options ...LLMContentGeneratorOption) *LLMContentGenerator {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	generator := &LLMContentGenerator{
		llmModel: llmModel,
		logger:   logger,
	}

	generator.generatePromptTemplate()

	for _, opt := range options {
		opt(generator)
	}

	if generator.fewShotExamples == "" {
		generator.generateFewShotExamples()
	}

	return generator
}

func (g *LLMContentGenerator) generatePromptTemplate() {
	g.promptTemplate = `你是一位专业的简历优化写手。请基于下面的材料，把候选人的经历改写为更有竞争力的简历要点。

**硬性规则 (违反任何一条都视为失败)：**
1. 最多输出5条要点，每条以"•"开头。
2. 每条不超过2行，约25个英文单词 (或50个汉字) 以内。
3. 只能使用【已有量化指标】中出现过的数字。缺失的量化数据一律用占位符表示，
   格式为 [METRIC: 需要补充的指标说明]，禁止编造任何数字。
4. 自然地融入【目标关键词】，但不得堆砌。
5. 只输出要点本身，不要标题、解释或Markdown标记。

【候选人经历片段】:
"""
%s
"""

【已有量化指标】: %s
【缺失的量化维度】: %s
【目标关键词】: %s
%s
请输出优化后的要点。`
}

func (g *LLMContentGenerator) generateFewShotExamples() {
	g.fewShotExamples = `以下是简历要点改写的示例，请学习其中的写法：

示例1 (已有量化指标，直接复用)
经历片段: "负责订单服务的开发和维护，做了一些性能优化，QPS从2000提升到5000。"
已有量化指标: ["QPS从2000提升到5000"]
示例输出:
• Optimized order service throughput from 2,000 to 5,000 QPS through connection pooling and query tuning

示例2 (缺少量化指标，使用占位符而不是编造)
经历片段: "搭建了团队的CI/CD流水线，显著缩短了发布时间。"
已有量化指标: []
缺失的量化维度: ["发布耗时缩短比例"]
示例输出:
• Built the team's CI/CD pipeline, cutting release time by [METRIC: release time reduction percentage]

示例3 (融入关键词)
经历片段: "用Go写了一个内部的消息分发组件。"
目标关键词: ["Go", "RabbitMQ", "microservices"]
示例输出:
• Designed a Go-based message dispatch component integrating RabbitMQ across microservices, handling [METRIC: daily message volume]`
}

// Generate 生成优化后的简历要点并做数字溯源校验
func (g *LLMContentGenerator) Generate(ctx context.Context, input GenerationInput) (string, error) {
	if g.llmModel == nil {
		return "", fmt.Errorf("LLMContentGenerator: llmModel未初始化")
	}

	fragments := strings.Join(input.ResumeFragments, "\n\n")

	metricsFound := []string{}
	missingMetrics := []string{}
	if input.Gap != nil {
		metricsFound = input.Gap.MetricsFound
		missingMetrics = input.Gap.MissingMetrics
	}

	marketSection := ""
	if input.IncludeMarket && (len(input.MarketCriteria) > 0 || len(input.ATSRules) > 0) {
		var sb strings.Builder
		if len(input.MarketCriteria) > 0 {
			sb.WriteString("【岗位市场要求】:\n- ")
			sb.WriteString(strings.Join(input.MarketCriteria, "\n- "))
			sb.WriteString("\n")
		}
		if len(input.ATSRules) > 0 {
			sb.WriteString("【ATS写作规则】:\n- ")
			sb.WriteString(strings.Join(input.ATSRules, "\n- "))
			sb.WriteString("\n")
		}
		marketSection = sb.String()
	}

	userMsgContent := fmt.Sprintf(g.promptTemplate,
		fragments,
		formatList(metricsFound),
		formatList(missingMetrics),
		formatList(input.Keywords),
		marketSection,
	)

	systemMsg := einoschema.SystemMessage(g.fewShotExamples + "\n\n你是一位严格遵守数字溯源规则的简历优化写手。")
	userMsg := einoschema.UserMessage(userMsgContent)

	response, err := g.llmModel.Generate(ctx, []*einoschema.Message{systemMsg, userMsg})
	if err != nil {
		return "", fmt.Errorf("LLMContentGenerator: LLM调用失败: %w", err)
	}
	if response == nil || strings.TrimSpace(response.Content) == "" {
		return "", fmt.Errorf("LLMContentGenerator: LLM返回空响应")
	}

	content := normalizeBullets(response.Content)
	content = g.groundNumbers(content, metricsFound)

	return content, nil
}

// normalizeBullets 清理输出: 只保留"•"开头的要点，最多5条
func normalizeBullets(raw string) string {
	lines := strings.Split(strings.TrimSpace(raw), "\n")
	var bullets []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		// 常见的列表前缀统一为"•"
		if strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ") {
			line = "• " + line[2:]
		}
		if !strings.HasPrefix(line, "•") {
			continue
		}
		bullets = append(bullets, line)
		if len(bullets) >= 5 {
			break
		}
	}
	if len(bullets) == 0 {
		// 模型没按列表格式输出时整体保留，溯源校验仍会执行
		return strings.TrimSpace(raw)
	}
	return strings.Join(bullets, "\n")
}

var (
	numberPattern      = regexp.MustCompile(`\d+(?:[.,]\d+)*%?`)
	placeholderPattern = regexp.MustCompile(`\[METRIC:[^\]]*\]`)
)

// groundNumbers 数字溯源: 输出中的数字必须作为完整数字出现在metricsFound里，
// 否则替换为占位符。按完整token比较，"2000"不会为"200"背书。
// 已在占位符内部的数字不处理。
func (g *LLMContentGenerator) groundNumbers(content string, metricsFound []string) string {
	allowed := allowedNumberSet(metricsFound)

	// 先把占位符挖掉，避免占位符内的数字被二次替换
	type hole struct{ start, end int }
	var holes []hole
	for _, loc := range placeholderPattern.FindAllStringIndex(content, -1) {
		holes = append(holes, hole{loc[0], loc[1]})
	}
	inHole := func(start, end int) bool {
		for _, h := range holes {
			if start >= h.start && end <= h.end {
				return true
			}
		}
		return false
	}

	var b strings.Builder
	last := 0
	for _, loc := range numberPattern.FindAllStringIndex(content, -1) {
		start, end := loc[0], loc[1]
		token := content[start:end]

		if inHole(start, end) || allowed[canonicalNumber(token)] {
			continue
		}

		g.logger.Printf("[LLMContentGenerator] 数字'%s'未在已有指标中找到, 替换为占位符", token)
		b.WriteString(content[last:start])
		b.WriteString("[METRIC: verify this figure]")
		last = end
	}
	b.WriteString(content[last:])
	return b.String()
}

// allowedNumberSet 从已有指标中提取全部数字token作为白名单
func allowedNumberSet(metricsFound []string) map[string]bool {
	set := make(map[string]bool)
	for _, metric := range metricsFound {
		for _, tok := range numberPattern.FindAllString(metric, -1) {
			set[canonicalNumber(tok)] = true
		}
	}
	return set
}

// canonicalNumber 去掉千分位逗号和百分号，"2,000"与"2000"视为同一数字
func canonicalNumber(tok string) string {
	tok = strings.ReplaceAll(tok, ",", "")
	return strings.TrimSuffix(tok, "%")
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	return `["` + strings.Join(items, `", "`) + `"]`
}
