package parser

import (
	"context"
	"errors"
	"testing"

	"resumate-go/pkg/agent"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGapAnalyzerParsesWellFormedJSON(t *testing.T) {
	mockLLM := agent.NewMockChatClient(`{
  "metricsFound": ["QPS从2000提升到5000"],
  "techStack": ["Go", "PostgreSQL"],
  "missingMetrics": ["团队规模"],
  "keywordMatches": ["Go", "microservices"]
}`, nil)

	analyzer := NewLLMGapAnalyzer(mockLLM, nil)
	result := analyzer.Analyze(context.Background(), "负责订单服务", "高级Go工程师")

	require.NotNil(t, result)
	assert.Equal(t, []string{"QPS从2000提升到5000"}, result.MetricsFound)
	assert.Equal(t, []string{"Go", "PostgreSQL"}, result.TechStack)
	assert.Equal(t, []string{"团队规模"}, result.MissingMetrics)
	assert.Equal(t, []string{"Go", "microservices"}, result.KeywordMatches)
}

func TestGapAnalyzerExtractsJSONFromNoisyResponse(t *testing.T) {
	mockLLM := agent.NewMockChatClient("好的，以下是分析结果：\n```json\n"+
		`{"metricsFound": [], "techStack": ["Go"], "missingMetrics": [], "keywordMatches": []}`+
		"\n```\n希望对您有帮助！", nil)

	analyzer := NewLLMGapAnalyzer(mockLLM, nil)
	result := analyzer.Analyze(context.Background(), "resume", "jd")

	require.NotNil(t, result)
	assert.Equal(t, []string{"Go"}, result.TechStack, "应能从Markdown包裹的响应中提取JSON")
}

func TestGapAnalyzerStripsLeadingBOM(t *testing.T) {
	mockLLM := agent.NewMockChatClient("\ufeff"+
		`{"metricsFound": ["12个服务"], "techStack": [], "missingMetrics": [], "keywordMatches": []}`, nil)

	analyzer := NewLLMGapAnalyzer(mockLLM, nil)
	result := analyzer.Analyze(context.Background(), "resume", "jd")

	require.NotNil(t, result)
	assert.Equal(t, []string{"12个服务"}, result.MetricsFound, "响应开头的BOM不应影响JSON解析")
}

func TestGapAnalyzerFallsBackOnLLMError(t *testing.T) {
	mockLLM := agent.NewMockChatClient("", errors.New("provider unavailable"))

	analyzer := NewLLMGapAnalyzer(mockLLM, nil)
	result := analyzer.Analyze(context.Background(), "resume", "jd")

	require.NotNil(t, result, "LLM失败时应返回默认分析而不是nil")
	assert.Empty(t, result.MetricsFound)
	assert.Empty(t, result.TechStack)
	assert.Equal(t, []string{"quantifiable impact metrics"}, result.MissingMetrics)
	assert.NotNil(t, result.KeywordMatches)
}

func TestGapAnalyzerFallsBackOnGarbageResponse(t *testing.T) {
	mockLLM := agent.NewMockChatClient("这不是JSON", nil)

	analyzer := NewLLMGapAnalyzer(mockLLM, nil)
	result := analyzer.Analyze(context.Background(), "resume", "jd")

	require.NotNil(t, result)
	assert.Equal(t, []string{"quantifiable impact metrics"}, result.MissingMetrics)
}

func TestGapAnalyzerNormalizesNilLists(t *testing.T) {
	// 字段缺失时JSON解析出nil切片，必须归一化为空切片
	mockLLM := agent.NewMockChatClient(`{"techStack": ["Go"]}`, nil)

	analyzer := NewLLMGapAnalyzer(mockLLM, nil)
	result := analyzer.Analyze(context.Background(), "resume", "jd")

	require.NotNil(t, result)
	assert.NotNil(t, result.MetricsFound)
	assert.NotNil(t, result.MissingMetrics)
	assert.NotNil(t, result.KeywordMatches)
}

func TestExtractJSONObject(t *testing.T) {
	assert.Equal(t, `{"a": 1}`, extractJSONObject(`前缀 {"a": 1} 后缀`))
	assert.Equal(t, `{"a": {"b": 2}}`, extractJSONObject(`{"a": {"b": 2}}`))
	assert.Equal(t, "", extractJSONObject("没有对象"))
	assert.Equal(t, "", extractJSONObject(`{"未闭合": 1`))
}

func TestSanitizeJSONFixesInnerQuotes(t *testing.T) {
	// 字符串内部未转义的引号应被修复
	broken := `{"summary": "实现了"高可用"架构"}`
	fixed := sanitizeJSON(broken)
	assert.Contains(t, fixed, `\"高可用\"`)
}
