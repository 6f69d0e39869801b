package parser

import (
	"context"
	"errors"
	"strings"
	"testing"

	"resumate-go/internal/types"
	"resumate-go/pkg/agent"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentGeneratorKeepsGroundedNumbers(t *testing.T) {
	mockLLM := agent.NewMockChatClient(
		"• Optimized order service throughput from 2000 to 5000 QPS", nil)

	gen := NewLLMContentGenerator(mockLLM, nil)
	out, err := gen.Generate(context.Background(), GenerationInput{
		ResumeFragments: []string{"订单服务优化，QPS从2000提升到5000"},
		Gap: &types.GapAnalysis{
			MetricsFound: []string{"QPS从2000提升到5000"},
		},
	})

	require.NoError(t, err)
	assert.Contains(t, out, "2000", "指标中存在的数字应保留")
	assert.Contains(t, out, "5000")
	assert.NotContains(t, out, "[METRIC: verify this figure]")
}

func TestContentGeneratorReplacesFabricatedNumbers(t *testing.T) {
	// 模型编造了40%，但指标列表里没有
	mockLLM := agent.NewMockChatClient(
		"• Reduced latency by 40% through caching", nil)

	gen := NewLLMContentGenerator(mockLLM, nil)
	out, err := gen.Generate(context.Background(), GenerationInput{
		ResumeFragments: []string{"做了缓存优化"},
		Gap: &types.GapAnalysis{
			MetricsFound: []string{},
		},
	})

	require.NoError(t, err)
	assert.NotContains(t, out, "40%")
	assert.Contains(t, out, "[METRIC: verify this figure]")
}

func TestContentGeneratorRejectsSubstringNumbers(t *testing.T) {
	// 200是2000的子串，但指标中没有独立出现的200，必须被替换
	mockLLM := agent.NewMockChatClient(
		"• Handled 200 services while raising QPS from 2,000 to 5000", nil)

	gen := NewLLMContentGenerator(mockLLM, nil)
	out, err := gen.Generate(context.Background(), GenerationInput{
		ResumeFragments: []string{"订单服务优化"},
		Gap: &types.GapAnalysis{
			MetricsFound: []string{"QPS从2000提升到5000"},
		},
	})

	require.NoError(t, err)
	assert.NotContains(t, out, "200 services")
	assert.Contains(t, out, "[METRIC: verify this figure]")
	assert.Contains(t, out, "2,000", "千分位写法的同一数字应视为已溯源")
	assert.Contains(t, out, "5000")
}

func TestContentGeneratorPreservesPlaceholderNumbers(t *testing.T) {
	mockLLM := agent.NewMockChatClient(
		"• Cut release time by [METRIC: from 3 days to hours]", nil)

	gen := NewLLMContentGenerator(mockLLM, nil)
	out, err := gen.Generate(context.Background(), GenerationInput{
		ResumeFragments: []string{"搭建CI/CD"},
		Gap:             &types.GapAnalysis{MetricsFound: []string{}},
	})

	require.NoError(t, err)
	assert.Contains(t, out, "[METRIC: from 3 days to hours]", "占位符内部的数字不应被二次替换")
}

func TestContentGeneratorCapsBullets(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 8; i++ {
		sb.WriteString("• Bullet point without numbers\n")
	}
	mockLLM := agent.NewMockChatClient(sb.String(), nil)

	gen := NewLLMContentGenerator(mockLLM, nil)
	out, err := gen.Generate(context.Background(), GenerationInput{
		ResumeFragments: []string{"经历"},
	})

	require.NoError(t, err)
	assert.Equal(t, 5, strings.Count(out, "•"), "最多保留5条要点")
}

func TestContentGeneratorNormalizesDashBullets(t *testing.T) {
	mockLLM := agent.NewMockChatClient("- First point\n* Second point", nil)

	gen := NewLLMContentGenerator(mockLLM, nil)
	out, err := gen.Generate(context.Background(), GenerationInput{
		ResumeFragments: []string{"经历"},
	})

	require.NoError(t, err)
	for _, line := range strings.Split(out, "\n") {
		assert.True(t, strings.HasPrefix(line, "•"), "所有要点应以•开头: %s", line)
	}
}

func TestContentGeneratorInjectsMarketContextWhenEnabled(t *testing.T) {
	mockLLM := agent.NewMockChatClient("• ok", nil)

	gen := NewLLMContentGenerator(mockLLM, nil)
	_, err := gen.Generate(context.Background(), GenerationInput{
		ResumeFragments: []string{"经历"},
		MarketCriteria:  []string{"5年以上Go经验"},
		ATSRules:        []string{"使用动词开头"},
		IncludeMarket:   true,
	})
	require.NoError(t, err)

	var found bool
	for _, msg := range mockLLM.GetReceivedMessages() {
		if strings.Contains(msg.Content, "5年以上Go经验") && strings.Contains(msg.Content, "使用动词开头") {
			found = true
		}
	}
	assert.True(t, found, "开启市场上下文时提示词应包含市场要求与ATS规则")
}

func TestContentGeneratorOmitsMarketContextByDefault(t *testing.T) {
	mockLLM := agent.NewMockChatClient("• ok", nil)

	gen := NewLLMContentGenerator(mockLLM, nil)
	_, err := gen.Generate(context.Background(), GenerationInput{
		ResumeFragments: []string{"经历"},
		MarketCriteria:  []string{"5年以上Go经验"},
		IncludeMarket:   false,
	})
	require.NoError(t, err)

	for _, msg := range mockLLM.GetReceivedMessages() {
		assert.NotContains(t, msg.Content, "5年以上Go经验", "默认不注入市场上下文")
	}
}

func TestContentGeneratorPropagatesLLMError(t *testing.T) {
	mockLLM := agent.NewMockChatClient("", errors.New("provider down"))

	gen := NewLLMContentGenerator(mockLLM, nil)
	_, err := gen.Generate(context.Background(), GenerationInput{
		ResumeFragments: []string{"经历"},
	})

	require.Error(t, err, "内容生成失败是致命错误，必须上抛")
}
