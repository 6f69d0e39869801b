package processor

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateResumeContent(t *testing.T) {
	resumeLike := "张三，后端工程师。工作经历：负责订单系统重构。教育背景：计算机科学学士。" +
		strings.Repeat("熟悉Go、PostgreSQL、Redis与Kubernetes等技术栈。", 10)

	tests := []struct {
		name    string
		text    string
		wantErr error
	}{
		{"合法简历文本", resumeLike, nil},
		{"过短文本", "张三的工作经历", ErrTextTooShort},
		{"长但非简历内容", strings.Repeat("今天天气不错，适合出去走走。", 30), ErrNotResumeLike},
		{"空文本", "   ", ErrTextTooShort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateResumeContent(tt.text)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, tt.wantErr))
			}
		})
	}
}
