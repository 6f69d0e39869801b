package processor

import (
	"errors"
	"fmt"
)

// 定义基础错误类型
var (
	ErrInvalidJobDescription = errors.New("岗位描述不合法")
	ErrUnreadableDocument    = errors.New("无法读取简历文档")
	ErrTextTooShort          = errors.New("简历文本过短")
	ErrNotResumeLike         = errors.New("文档内容不像简历")
	ErrResumeNotFound        = errors.New("简历不存在")
	ErrEmbeddingProvider     = errors.New("向量服务调用失败")
	ErrLLMProvider           = errors.New("LLM服务调用失败")
	ErrDatabaseFailed        = errors.New("数据库操作失败")
)

// minJobDescriptionLength 岗位描述的最小长度，不足则拒绝进入流水线
const minJobDescriptionLength = 50

// OptimizeError 包含详细错误信息的自定义错误
type OptimizeError struct {
	ResumeID string
	Stage    string
	BaseErr  error
	Detail   string
}

func (e *OptimizeError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (阶段:%s, 简历:%s): %s", e.BaseErr, e.Stage, e.ResumeID, e.Detail)
	}
	return fmt.Sprintf("%s (阶段:%s, 简历:%s)", e.BaseErr, e.Stage, e.ResumeID)
}

func (e *OptimizeError) Unwrap() error {
	return e.BaseErr
}

// Is 实现 errors.Is 接口以支持错误比较
func (e *OptimizeError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

// 错误构造函数

func NewEmbeddingError(resumeID, detail string) error {
	return &OptimizeError{
		ResumeID: resumeID,
		Stage:    "embedding",
		BaseErr:  ErrEmbeddingProvider,
		Detail:   detail,
	}
}

func NewLLMError(resumeID, stage, detail string) error {
	return &OptimizeError{
		ResumeID: resumeID,
		Stage:    stage,
		BaseErr:  ErrLLMProvider,
		Detail:   detail,
	}
}

func NewDatabaseError(resumeID, detail string) error {
	return &OptimizeError{
		ResumeID: resumeID,
		Stage:    "database",
		BaseErr:  ErrDatabaseFailed,
		Detail:   detail,
	}
}

func NewExtractionError(baseErr error, detail string) error {
	return &OptimizeError{
		Stage:   "extract",
		BaseErr: baseErr,
		Detail:  detail,
	}
}
