package handler

import (
	"context"
	"testing"

	"resumate-go/internal/config"
	"resumate-go/internal/storage"

	"github.com/stretchr/testify/assert"
)

// 校验逻辑先于任何外部依赖执行，这些用例不需要真实的存储或向量服务
func TestHandleAddKnowledgeValidation(t *testing.T) {
	h := NewKnowledgeHandler(&config.Config{}, &storage.Storage{}, nil)

	tests := []struct {
		name string
		req  KnowledgeAddRequest
	}{
		{"不支持的类型", KnowledgeAddRequest{Type: "company_gossip", Content: "x"}},
		{"空内容", KnowledgeAddRequest{Type: "job_requirements", Content: "   "}},
		{"置信度超界", KnowledgeAddRequest{Type: "tech_trends", Content: "Go持续流行", Confidence: 120}},
		{"置信度为负", KnowledgeAddRequest{Type: "tech_trends", Content: "Go持续流行", Confidence: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.HandleAddKnowledge(context.Background(), tt.req)
			assert.Error(t, err)
		})
	}
}

func TestHandleCoverLetterRequiresCompanyName(t *testing.T) {
	h := NewResumeHandler(&config.Config{}, &storage.Storage{}, nil, nil)

	_, err := h.HandleCoverLetter(context.Background(), CoverLetterRequest{
		ResumeID:       "resume-1",
		JobDescription: "some long enough job description text for a backend engineer position in a large company",
	})
	assert.Error(t, err)
}

func TestHandleGetOptimizationRequiresID(t *testing.T) {
	h := NewResumeHandler(&config.Config{}, &storage.Storage{}, nil, nil)

	_, err := h.HandleGetOptimization(context.Background(), "  ")
	assert.Error(t, err)
}
