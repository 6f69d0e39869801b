package parser

import (
	"context"
	"errors"
	"testing"

	"resumate-go/internal/types"
	"resumate-go/pkg/agent"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoverLetterGenerate(t *testing.T) {
	mock := agent.NewMockChatClient("Dear hiring team, I was excited to read about your Series B...", nil)
	g := NewLLMCoverLetterGenerator(mock, nil)

	letter, err := g.Generate(context.Background(), CoverLetterInput{
		CompanyName:    "Acme",
		News:           []types.NewsItem{{Title: "Acme raises Series B to expand its platform engineering team"}},
		ExperienceText: "主导微服务迁移，维护12个核心服务",
		JobDescription: "Senior backend engineer, Go, PostgreSQL, Kubernetes",
	})
	require.NoError(t, err)
	assert.Contains(t, letter, "Series B")

	// 新闻标题应出现在提示词中
	messages := mock.GetReceivedMessages()
	require.NotEmpty(t, messages)
	assert.Contains(t, messages[0].Content, "Acme raises Series B")
}

func TestCoverLetterEmptyNewsUsesPlaceholder(t *testing.T) {
	mock := agent.NewMockChatClient("求职信正文", nil)
	g := NewLLMCoverLetterGenerator(mock, nil)

	_, err := g.Generate(context.Background(), CoverLetterInput{
		CompanyName:    "Acme",
		ExperienceText: "经历片段",
		JobDescription: "岗位要求",
	})
	require.NoError(t, err)

	messages := mock.GetReceivedMessages()
	require.NotEmpty(t, messages)
	assert.Contains(t, messages[0].Content, "无")
}

func TestCoverLetterRequiresCompanyName(t *testing.T) {
	g := NewLLMCoverLetterGenerator(agent.NewMockChatClient("x", nil), nil)

	_, err := g.Generate(context.Background(), CoverLetterInput{CompanyName: "  "})
	assert.Error(t, err)
}

func TestCoverLetterLLMErrorIsFatal(t *testing.T) {
	g := NewLLMCoverLetterGenerator(agent.NewMockChatClient("", errors.New("model overloaded")), nil)

	_, err := g.Generate(context.Background(), CoverLetterInput{
		CompanyName:    "Acme",
		JobDescription: "岗位要求",
	})
	assert.Error(t, err)
}
