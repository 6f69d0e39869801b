package router

import (
	"errors"
	"fmt"
	"testing"

	"resumate-go/internal/processor"

	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/stretchr/testify/assert"
)

func TestStatusForError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"岗位描述过短", processor.ErrInvalidJobDescription, consts.StatusBadRequest},
		{"文本过短", processor.ErrTextTooShort, consts.StatusBadRequest},
		{"不可读文档", processor.ErrUnreadableDocument, consts.StatusBadRequest},
		{"简历不存在", processor.ErrResumeNotFound, consts.StatusNotFound},
		{"向量服务异常", processor.ErrEmbeddingProvider, consts.StatusBadGateway},
		{"LLM服务异常", processor.ErrLLMProvider, consts.StatusBadGateway},
		{"未知错误", errors.New("boom"), consts.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusForError(tt.err))
		})
	}
}

func TestStatusForWrappedError(t *testing.T) {
	// 包装后的流水线错误仍应正确映射
	wrapped := fmt.Errorf("处理失败: %w", &processor.OptimizeError{
		Stage:   "validate",
		BaseErr: processor.ErrInvalidJobDescription,
	})
	assert.Equal(t, consts.StatusBadRequest, statusForError(wrapped))
}
